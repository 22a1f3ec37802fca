// Package voice turns one spoken utterance into dashboard commands.
package voice

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/emy-mhmd/Smart-Irrigation-System/internal/metrics"
	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model"
	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/entities"
	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/messages"
	"github.com/emy-mhmd/Smart-Irrigation-System/pkg/dedup"
)

const (
	DefaultLang = "en-US"

	statusPrompt  = "Listening... Please say 'Set threshold to [number]' or 'Set daytime to [on/off]'."
	statusError   = "Sorry, there was an error recognizing your voice. Please try again."
	statusEnded   = "Voice recognition stopped. Click 'Start Voice Recording' to try again."
	statusStopped = "Voice recognition stopped."
)

// Recognizer is the speech engine contract: one non-continuous session,
// results and end of session are reported back to the Interpreter.
type Recognizer interface {
	Start(session string, opts messages.RecognitionOptions) error
	Stop(session string) error
}

// Publisher sends validated commands.
type Publisher interface {
	Send(cmd messages.OutboundCommand) error
}

// Interpreter owns at most one voice session. It is not safe for concurrent
// use; the app loop is its only caller.
type Interpreter struct {
	rec  Recognizer
	pub  Publisher
	sink model.Sink
	log  zerolog.Logger
	opts messages.RecognitionOptions

	state   entities.SessionState
	session string
	seen    *dedup.Deduper
	newID   func() string
}

func New(rec Recognizer, pub Publisher, sink model.Sink, lang string, log zerolog.Logger) *Interpreter {
	if lang == "" {
		lang = DefaultLang
	}
	return &Interpreter{
		rec:  rec,
		pub:  pub,
		sink: sink,
		log:  log,
		opts: messages.RecognitionOptions{
			Lang:            lang,
			Continuous:      false,
			InterimResults:  false,
			MaxAlternatives: 1,
		},
		state: entities.SessionIdle,
		seen:  dedup.New(10*time.Minute, 1000),
		newID: func() string { return uuid.New().String() },
	}
}

// State returns the session state.
func (i *Interpreter) State() entities.SessionState { return i.state }

// Session returns the id of the current session, empty when idle.
func (i *Interpreter) Session() string { return i.session }

// Listening reports whether a session is capturing speech.
func (i *Interpreter) Listening() bool { return i.state == entities.SessionListening }

// Toggle stops the listening session, or starts one when none is listening.
func (i *Interpreter) Toggle() {
	if i.Listening() {
		i.Stop()
		return
	}
	i.Start()
}

// Start opens a new session. It is a no-op while one is listening.
func (i *Interpreter) Start() {
	if i.Listening() {
		return
	}
	id := i.newID()
	i.session = id
	i.state = entities.SessionListening
	metrics.VoiceSessions.WithLabelValues("started").Inc()
	i.status(statusPrompt)
	i.log.Info().Str("session", id).Str("lang", i.opts.Lang).Msg("voice recognition started")

	if err := i.rec.Start(id, i.opts); err != nil {
		i.log.Error().Err(err).Str("session", id).Msg("speech recognizer did not start")
		i.OnError(id, err.Error())
		i.OnEnd(id)
	}
}

// Stop cancels the listening session. Results arriving afterwards for it
// are discarded.
func (i *Interpreter) Stop() {
	if !i.Listening() {
		return
	}
	i.state = entities.SessionEnded
	metrics.VoiceSessions.WithLabelValues("stopped").Inc()
	if err := i.rec.Stop(i.session); err != nil {
		i.log.Warn().Err(err).Str("session", i.session).Msg("speech recognizer stop failed")
	}
	i.status(statusStopped)
}

// OnResult applies the commands found in transcript. requestID, when set,
// makes repeated deliveries of one result idempotent.
func (i *Interpreter) OnResult(session, transcript, requestID string) {
	if !i.current(session) || !i.Listening() {
		i.log.Debug().Str("session", session).Msg("dropping result of inactive session")
		return
	}
	if !i.seen.ShouldProcess(requestID) {
		i.log.Debug().Str("request", requestID).Msg("duplicate voice result")
		return
	}
	i.log.Info().Str("session", session).Str("transcript", transcript).Msg("voice command")

	cmds := Parse(transcript)
	if len(cmds) == 0 {
		i.log.Debug().Str("transcript", transcript).Msg("transcript matched no command")
		return
	}
	for _, cmd := range cmds {
		i.apply(cmd)
	}
}

func (i *Interpreter) apply(cmd messages.OutboundCommand) {
	metrics.VoiceCommands.WithLabelValues(string(cmd.Topic)).Inc()
	switch cmd.Topic {
	case entities.TopicThreshold:
		i.sink.Emit(messages.UIEvent{Kind: messages.UIThresholdInput, Text: cmd.Payload})
		i.status(fmt.Sprintf("Threshold set to %s%%", cmd.Payload))
	case entities.TopicIrrigationMode:
		i.sink.Emit(messages.UIEvent{Kind: messages.UIModeSelect, Text: cmd.Payload})
		i.status(fmt.Sprintf("Daytime irrigation set to %s", cmd.Payload))
	}
	if err := i.pub.Send(cmd); err != nil {
		i.log.Error().Err(err).Str("topic", string(cmd.Topic)).Msg("voice command not published")
	}
}

// OnError reports a recognition failure. No retry is attempted.
func (i *Interpreter) OnError(session, reason string) {
	if !i.current(session) {
		return
	}
	metrics.VoiceSessions.WithLabelValues("error").Inc()
	i.log.Error().Str("session", session).Str("reason", reason).Msg("speech recognition error")
	i.status(statusError)
}

// OnEnd closes the session and returns to idle.
func (i *Interpreter) OnEnd(session string) {
	if !i.current(session) {
		return
	}
	metrics.VoiceSessions.WithLabelValues("ended").Inc()
	i.state = entities.SessionIdle
	i.session = ""
	i.status(statusEnded)
}

func (i *Interpreter) current(session string) bool {
	return session != "" && session == i.session
}

func (i *Interpreter) status(text string) {
	i.sink.Emit(messages.UIEvent{Kind: messages.UIVoiceStatus, Text: text, Session: i.session})
}
