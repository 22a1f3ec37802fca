// Package history mirrors the readings shown on the dashboard into InfluxDB.
package history

import (
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/entities"
	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/messages"
)

// PointWriter is the subset of the non-blocking influx WriteAPI in use.
type PointWriter interface {
	WritePoint(point *write.Point)
	Errors() <-chan error
}

// Recorder writes readings asynchronously and tracks the last write error
// for the health endpoints. A nil Recorder is valid and records nothing.
type Recorder struct {
	api PointWriter
	log zerolog.Logger

	mu      sync.RWMutex
	lastErr time.Time
	counts  map[entities.Topic]int64
	now     func() time.Time
}

func NewRecorder(w PointWriter, log zerolog.Logger) *Recorder {
	r := &Recorder{
		api:     w,
		log:     log,
		lastErr: time.Now().Add(-24 * time.Hour),
		counts:  make(map[entities.Topic]int64),
		now:     time.Now,
	}
	go r.watchErrors(w.Errors())
	return r
}

func (r *Recorder) watchErrors(errs <-chan error) {
	for err := range errs {
		if err == nil {
			continue
		}
		r.mu.Lock()
		r.lastErr = r.now()
		r.mu.Unlock()
		r.log.Error().Err(err).Msg("influx write error")
	}
}

// Record queues ev for writing. It never blocks on the network.
func (r *Recorder) Record(ev messages.InboundEvent) {
	if r == nil {
		return
	}
	p := EventToPoint(ev)
	if p == nil {
		return
	}
	r.api.WritePoint(p)
	r.mu.Lock()
	r.counts[ev.Topic]++
	r.mu.Unlock()
}

// Count returns how many readings of topic were queued.
func (r *Recorder) Count(topic entities.Topic) int64 {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counts[topic]
}

// LastErrorAge returns the time since the last failed write.
func (r *Recorder) LastErrorAge() time.Duration {
	if r == nil {
		return 99999 * time.Hour
	}
	r.mu.RLock()
	t := r.lastErr
	r.mu.RUnlock()
	return r.now().Sub(t)
}
