// Package app is the application context: it owns the message router, the
// voice interpreter and the single loop that feeds them.
package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model"
	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/entities"
	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/messages"
	"github.com/emy-mhmd/Smart-Irrigation-System/internal/services/router"
	"github.com/emy-mhmd/Smart-Irrigation-System/internal/services/voice"
	"github.com/emy-mhmd/Smart-Irrigation-System/pkg/broker"
	"github.com/emy-mhmd/Smart-Irrigation-System/pkg/logger"
)

const defaultQueueSize = 64

// Recorder receives every inbound message after routing.
type Recorder interface {
	Record(messages.InboundEvent)
}

type Options struct {
	VoiceLang string
	QueueSize int
	Recorder  Recorder
}

// App handlers run one at a time on the Run goroutine, so the router and
// the interpreter need no locking. Other goroutines only Post.
type App struct {
	events   chan Event
	done     chan struct{}
	router   *router.Router
	voice    *voice.Interpreter
	recorder Recorder
	log      zerolog.Logger
	now      func() time.Time
}

func New(b router.Broker, rec voice.Recognizer, sink model.Sink, opts Options, log zerolog.Logger) *App {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	r := router.New(b, sink, logger.Component(log, "router"))
	return &App{
		events:   make(chan Event, opts.QueueSize),
		done:     make(chan struct{}),
		router:   r,
		voice:    voice.New(rec, r, sink, opts.VoiceLang, logger.Component(log, "voice")),
		recorder: opts.Recorder,
		log:      log,
		now:      time.Now,
	}
}

// Post queues ev for the loop. It returns false once the loop has stopped.
func (a *App) Post(ev Event) bool {
	select {
	case <-a.done:
		return false
	default:
	}
	select {
	case a.events <- ev:
		return true
	case <-a.done:
		return false
	}
}

// Run processes events until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	defer close(a.done)
	a.log.Info().Msg("dashboard loop started")
	for {
		select {
		case <-ctx.Done():
			a.log.Info().Msg("dashboard loop stopped")
			return nil
		case ev := <-a.events:
			a.handle(ev)
		}
	}
}

func (a *App) handle(ev Event) {
	switch e := ev.(type) {
	case Connected:
		a.router.OnConnect()
	case ConnectionLost:
		a.router.OnDisconnect(e.Err)
	case StateChanged:
		a.router.OnState(e.State)
	case Subscribed:
		a.router.OnSubscribed(e.Topics, e.Err)
	case MessageReceived:
		a.router.OnMessage(e.Message)
		if a.recorder != nil {
			a.recorder.Record(e.Message)
		}
	case ThresholdSubmitted:
		a.router.SetThreshold(e.Value)
	case ModeChanged:
		a.router.SetMode(e.Value)
	case VoiceToggled:
		a.voice.Toggle()
	case VoiceResult:
		a.voice.OnResult(e.Session, e.Transcript, e.RequestID)
	case VoiceError:
		a.voice.OnError(e.Session, e.Reason)
	case VoiceEnded:
		a.voice.OnEnd(e.Session)
	default:
		a.log.Warn().Type("event", ev).Msg("unhandled event")
	}
}

// BrokerHandlers adapts broker callbacks into loop events.
func (a *App) BrokerHandlers() broker.Handlers {
	return broker.Handlers{
		OnConnect: func() { a.Post(Connected{}) },
		OnLost:    func(err error) { a.Post(ConnectionLost{Err: err}) },
		OnState:   func(s entities.ConnState) { a.Post(StateChanged{State: s}) },
		OnSubscribed: func(topics []entities.Topic, err error) {
			a.Post(Subscribed{Topics: topics, Err: err})
		},
		OnMessage: func(topic string, payload []byte) {
			a.Post(MessageReceived{Message: messages.InboundEvent{
				Topic:      entities.Topic(topic),
				Payload:    string(payload),
				ReceivedAt: a.now(),
			}})
		},
	}
}
