package dashboard

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/emy-mhmd/Smart-Irrigation-System/internal/metrics"
	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/entities"
	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/messages"
)

// ErrNoSpeaker is returned when a voice session is requested and no browser
// is connected to capture it.
var ErrNoSpeaker = errors.New("no browser connected for speech recognition")

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
	maxMessage = 4096
)

// State is what a newly connected page needs to render the dashboard.
type State struct {
	Connection  string            `json:"connection"`
	Displays    map[string]string `json:"displays"`
	Threshold   string            `json:"threshold"`
	Mode        string            `json:"mode"`
	VoiceStatus string            `json:"voice_status"`
	Session     string            `json:"session,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans UI events out to every connected page and acts as the speech
// recognizer by delegating sessions to one of them.
type Hub struct {
	log zerolog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	speaker *client
	state   State

	// page running the live session; pinned until the session ends
	capture *client
	session string
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[*client]struct{}),
		state: State{
			Connection: string(entities.ConnDisconnected),
			Displays:   make(map[string]string),
		},
	}
}

// Emit implements the UI sink.
func (h *Hub) Emit(ev messages.UIEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.apply(ev)
	h.broadcast(ev)
}

func (h *Hub) apply(ev messages.UIEvent) {
	switch ev.Kind {
	case messages.UIDisplay:
		h.state.Displays[ev.Field] = ev.Text
	case messages.UIThresholdInput:
		h.state.Threshold = ev.Text
	case messages.UIModeSelect:
		h.state.Mode = ev.Text
	case messages.UIVoiceStatus:
		h.state.VoiceStatus = ev.Text
		h.state.Session = ev.Session
		if ev.Session == "" {
			h.capture, h.session = nil, ""
		}
	case messages.UIConnection:
		h.state.Connection = ev.Text
	}
}

// broadcast must be called with mu held. Clients that cannot keep up are
// dropped.
func (h *Hub) broadcast(ev messages.UIEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Msg("encode ui event")
		return
	}
	for c := range h.clients {
		h.sendLocked(c, b)
	}
}

func (h *Hub) sendLocked(c *client, b []byte) bool {
	select {
	case c.send <- b:
		return true
	default:
		h.log.Warn().Msg("dropping slow dashboard client")
		h.removeLocked(c)
		return false
	}
}

// Snapshot returns a copy of the current dashboard state.
func (h *Hub) Snapshot() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.state
	s.Displays = make(map[string]string, len(h.state.Displays))
	for k, v := range h.state.Displays {
		s.Displays[k] = v
	}
	return s
}

// Clients returns the number of connected pages.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	metrics.UIClients.Set(float64(len(h.clients)))
	for _, ev := range h.replay() {
		b, err := json.Marshal(ev)
		if err == nil && !h.sendLocked(c, b) {
			break
		}
	}
	return c
}

// replay turns the snapshot into the events a fresh page applies in order.
func (h *Hub) replay() []messages.UIEvent {
	evs := []messages.UIEvent{{Kind: messages.UIConnection, Text: h.state.Connection}}
	for _, f := range []entities.DisplayField{entities.DisplaySoilMoisture, entities.DisplayLightIntensity, entities.DisplayPumpState} {
		if v, ok := h.state.Displays[string(f)]; ok {
			evs = append(evs, messages.UIEvent{Kind: messages.UIDisplay, Field: string(f), Text: v})
		}
	}
	if h.state.Threshold != "" {
		evs = append(evs, messages.UIEvent{Kind: messages.UIThresholdInput, Text: h.state.Threshold})
	}
	if h.state.Mode != "" {
		evs = append(evs, messages.UIEvent{Kind: messages.UIModeSelect, Text: h.state.Mode})
	}
	if h.state.VoiceStatus != "" {
		evs = append(evs, messages.UIEvent{Kind: messages.UIVoiceStatus, Text: h.state.VoiceStatus, Session: h.state.Session})
	}
	return evs
}

// unregister removes c and returns the session it was capturing, if any.
func (h *Hub) unregister(c *client) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var session string
	if h.capture == c {
		session = h.session
		h.capture, h.session = nil, ""
	}
	h.removeLocked(c)
	return session
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	if h.speaker == c {
		h.speaker = nil
	}
	metrics.UIClients.Set(float64(len(h.clients)))
}

// setSpeaker marks c as the page that captures the next voice session. It
// has no effect while a session is live.
func (h *Hub) setSpeaker(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.capture != nil {
		return
	}
	if _, ok := h.clients[c]; ok {
		h.speaker = c
	}
}

// pickSpeaker must be called with mu held. It falls back to any connected page.
func (h *Hub) pickSpeaker() *client {
	if h.speaker != nil {
		return h.speaker
	}
	for c := range h.clients {
		h.speaker = c
		return c
	}
	return nil
}

// Start asks a page to open a speech recognition session.
func (h *Hub) Start(session string, opts messages.RecognitionOptions) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.pickSpeaker()
	if c == nil {
		return ErrNoSpeaker
	}
	if err := h.sendTo(c, messages.UIEvent{Kind: messages.UIRecognitionStart, Session: session, Recognition: &opts}); err != nil {
		return err
	}
	h.capture, h.session = c, session
	return nil
}

// Stop asks the page that started session to end it. The page answers with
// an end notification.
func (h *Hub) Stop(session string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.capture == nil {
		return ErrNoSpeaker
	}
	return h.sendTo(h.capture, messages.UIEvent{Kind: messages.UIRecognitionStop, Session: session})
}

func (h *Hub) sendTo(c *client, ev messages.UIEvent) error {
	if _, ok := h.clients[c]; !ok {
		return ErrNoSpeaker
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if !h.sendLocked(c, b) {
		return ErrNoSpeaker
	}
	return nil
}

// writePump owns all writes on c.conn.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case b, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				h.log.Debug().Err(err).Msg("dashboard client write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// CloseAll disconnects every page.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}
