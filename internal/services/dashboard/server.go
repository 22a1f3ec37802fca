// Package dashboard serves the operator page, its WebSocket feed and a small
// JSON API over the application loop.
package dashboard

import (
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/emy-mhmd/Smart-Irrigation-System/internal/app"
	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/messages"
)

//go:embed static
var static embed.FS

// Poster queues events for the application loop.
type Poster interface {
	Post(ev app.Event) bool
}

// ClientMessage is what a page sends over the WebSocket.
type ClientMessage struct {
	Type       string `json:"type"`
	Value      string `json:"value,omitempty"`
	Session    string `json:"session,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type Server struct {
	hub      *Hub
	post     Poster
	health   *Health
	history  http.Handler
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewServer(hub *Hub, post Poster, health *Health, log zerolog.Logger) *Server {
	return &Server{
		hub:    hub,
		post:   post,
		health: health,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The page is served by this same process; any origin is
			// accepted for local tools.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// WithHistory mounts h on /api/history/{field}.
func (s *Server) WithHistory(h http.Handler) *Server {
	s.history = h
	return s
}

// Router returns the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/threshold", s.handleThreshold).Methods(http.MethodPost)
	api.HandleFunc("/mode", s.handleMode).Methods(http.MethodPost)
	api.HandleFunc("/voice/toggle", s.handleVoiceToggle).Methods(http.MethodPost)
	api.HandleFunc("/voice/transcript", s.handleTranscript).Methods(http.MethodPost)
	if s.history != nil {
		api.Handle("/history/{field}", s.history).Methods(http.MethodGet)
	}

	r.Handle("/healthz", s.health.Healthz()).Methods(http.MethodGet)
	r.Handle("/readyz", s.health.Readyz()).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	page, _ := fs.Sub(static, "static")
	r.PathPrefix("/").Handler(http.FileServer(http.FS(page))).Methods(http.MethodGet)
	return r
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := s.hub.register(conn)
	s.log.Info().Str("remote", r.RemoteAddr).Msg("dashboard page connected")
	go s.hub.writePump(c)
	s.readPump(c)
}

func (s *Server) readPump(c *client) {
	defer func() {
		if session := s.hub.unregister(c); session != "" {
			s.post.Post(app.VoiceEnded{Session: session})
		}
		_ = c.conn.Close()
		s.log.Info().Msg("dashboard page disconnected")
	}()
	c.conn.SetReadLimit(maxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var m ClientMessage
		if err := c.conn.ReadJSON(&m); err != nil {
			var syntax *json.SyntaxError
			var typ *json.UnmarshalTypeError
			if errors.As(err, &syntax) || errors.As(err, &typ) {
				s.log.Warn().Err(err).Msg("malformed client message")
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Msg("dashboard client read failed")
			}
			return
		}
		if m.Type == "voice_toggle" {
			s.hub.setSpeaker(c)
		}
		ev, ok := toEvent(m)
		if !ok {
			s.log.Warn().Str("type", m.Type).Msg("unknown client message")
			continue
		}
		s.post.Post(ev)
	}
}

func toEvent(m ClientMessage) (app.Event, bool) {
	switch m.Type {
	case "threshold":
		return app.ThresholdSubmitted{Value: m.Value}, true
	case "mode":
		return app.ModeChanged{Value: m.Value}, true
	case "voice_toggle":
		return app.VoiceToggled{}, true
	case "voice_result":
		return app.VoiceResult{Session: m.Session, Transcript: m.Transcript, RequestID: m.RequestID}, true
	case "voice_error":
		return app.VoiceError{Session: m.Session, Reason: m.Reason}, true
	case "voice_end":
		return app.VoiceEnded{Session: m.Session}, true
	}
	return nil, false
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.Snapshot())
}

type valueRequest struct {
	Value string `json:"value"`
}

// handleThreshold always forwards the value so an invalid one raises the
// same operator alert as the page does; the status code mirrors validation.
func (s *Server) handleThreshold(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if !decode(w, r, &req) {
		return
	}
	if !s.post.Post(app.ThresholdSubmitted{Value: req.Value}) {
		writeError(w, http.StatusServiceUnavailable, "dashboard is shutting down")
		return
	}
	if _, err := messages.NewThresholdCommand(req.Value); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, req)
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if !decode(w, r, &req) {
		return
	}
	req.Value = strings.ToUpper(strings.TrimSpace(req.Value))
	if _, err := messages.NewModeCommand(req.Value); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.accept(w, app.ModeChanged{Value: req.Value}, req)
}

func (s *Server) handleVoiceToggle(w http.ResponseWriter, _ *http.Request) {
	s.accept(w, app.VoiceToggled{}, struct{}{})
}

type transcriptRequest struct {
	Session    string `json:"session"`
	Transcript string `json:"transcript"`
	RequestID  string `json:"request_id"`
}

// handleTranscript lets a client without a microphone inject what the
// recognizer heard. Without a session id the current one is used.
func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	var req transcriptRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Session == "" {
		req.Session = s.hub.Snapshot().Session
	}
	if req.Session == "" {
		writeError(w, http.StatusConflict, "no voice session is listening")
		return
	}
	s.accept(w, app.VoiceResult{Session: req.Session, Transcript: req.Transcript, RequestID: req.RequestID}, req)
}

func (s *Server) accept(w http.ResponseWriter, ev app.Event, body any) {
	if !s.post.Post(ev) {
		writeError(w, http.StatusServiceUnavailable, "dashboard is shutting down")
		return
	}
	writeJSON(w, http.StatusAccepted, body)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessage)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
