package dashboard

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Connectivity reports whether the broker link is up.
type Connectivity interface {
	IsConnected() bool
}

// WriteErrors reports the age of the last failed telemetry write.
type WriteErrors interface {
	LastErrorAge() time.Duration
}

// Breaker reports the state of the publish circuit breaker.
type Breaker interface {
	BreakerState() gobreaker.State
}

// Health backs /healthz and /readyz. History is nil when the telemetry
// mirror is off.
type Health struct {
	Broker    Connectivity
	Publisher Breaker
	History   WriteErrors
	// Writes failing more recently than this mark the service degraded.
	MinErrorAge time.Duration
}

func (h *Health) historyOK() (enabled, ok bool) {
	if h.History == nil {
		return false, true
	}
	return true, h.History.LastErrorAge() > h.MinErrorAge
}

// Healthz reports the status of every dependency; it always answers 200.
func (h *Health) Healthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		type status struct {
			Status          string   `json:"status"`
			MQTTConnected   bool     `json:"mqtt_connected"`
			InfluxEnabled   bool     `json:"influx_enabled"`
			InfluxOK        bool     `json:"influx_ok"`
			LastWriteErrorS *float64 `json:"last_write_error_age_sec,omitempty"`
			PublishBreaker  string   `json:"publish_breaker,omitempty"`
		}
		st := status{MQTTConnected: h.Broker != nil && h.Broker.IsConnected()}
		breakerOK := true
		if h.Publisher != nil {
			bs := h.Publisher.BreakerState()
			st.PublishBreaker = bs.String()
			breakerOK = bs != gobreaker.StateOpen
		}
		st.InfluxEnabled, st.InfluxOK = h.historyOK()
		if st.InfluxEnabled {
			age := h.History.LastErrorAge().Seconds()
			st.LastWriteErrorS = &age
		}
		switch {
		case st.MQTTConnected && st.InfluxOK && breakerOK:
			st.Status = "ok"
		case st.MQTTConnected:
			st.Status = "degraded"
		default:
			st.Status = "down"
		}
		writeJSON(w, http.StatusOK, st)
	})
}

// Readyz answers 200 only while the broker is connected.
func (h *Health) Readyz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		ready := h.Broker != nil && h.Broker.IsConnected()
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, struct {
			Ready bool `json:"ready"`
		}{ready})
	})
}
