package history

import (
	"math"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/entities"
	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/messages"
)

// EventToPoint maps a reading to one point named after its display field.
// The raw text is always kept; "value" is added when the text is a number
// or an ON/OFF state. Unknown topics yield nil.
func EventToPoint(ev messages.InboundEvent) *write.Point {
	field, ok := entities.DisplayFor(ev.Topic)
	if !ok {
		return nil
	}
	ts := ev.ReceivedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	tags := map[string]string{"topic": string(ev.Topic)}
	fields := map[string]interface{}{"raw": ev.Payload}
	if v, ok := numeric(ev.Payload); ok {
		fields["value"] = v
	}
	return influxdb2.NewPoint(string(field), tags, fields, ts)
}

func numeric(payload string) (float64, bool) {
	s := strings.TrimSpace(payload)
	switch strings.ToUpper(s) {
	case string(entities.ModeOn):
		return 1, true
	case string(entities.ModeOff):
		return 0, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
