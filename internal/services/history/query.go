package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/entities"
)

// Sample is one stored reading as exposed by the history API.
type Sample struct {
	Time  string   `json:"time"` // RFC3339
	Raw   string   `json:"raw"`
	Value *float64 `json:"value,omitempty"`
}

// Querier is the subset of the influx QueryAPI in use.
type Querier interface {
	Query(ctx context.Context, query string) (*api.QueryTableResult, error)
}

type queryParams struct {
	Minutes   int
	Limit     int
	TimeoutMS int
}

func parseParams(r *http.Request) queryParams {
	q := r.URL.Query()
	get := func(k string, def, min, max int) int {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				if n < min {
					return min
				}
				if n > max {
					return max
				}
				return n
			}
		}
		return def
	}
	return queryParams{
		Minutes:   get("minutes", 60, 1, 7*24*60),
		Limit:     get("limit", 100, 1, 1000),
		TimeoutMS: get("timeout_ms", 2000, 200, 5000),
	}
}

// buildFlux pivots raw and value into one row per sample, newest first.
func buildFlux(bucket string, field entities.DisplayField, minutes, limit int) string {
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q)
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> keep(columns: ["_time", "raw", "value"])
  |> sort(columns: ["_time"], desc: true)
  |> limit(n: %d)
`, bucket, minutes, string(field), limit)
}

func knownField(name string) (entities.DisplayField, bool) {
	for _, t := range entities.InboundTopics() {
		if f, _ := entities.DisplayFor(t); string(f) == name {
			return f, true
		}
	}
	return "", false
}

// NewHandler serves GET /api/history/{field}?minutes=60&limit=100.
// Query failures answer an empty list with an X-Error header.
func NewHandler(q Querier, bucket string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		field, ok := knownField(mux.Vars(r)["field"])
		if !ok {
			http.Error(w, "unknown field", http.StatusNotFound)
			return
		}
		p := parseParams(r)
		ctx, cancel := context.WithTimeout(r.Context(), time.Duration(p.TimeoutMS)*time.Millisecond)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		res, err := q.Query(ctx, buildFlux(bucket, field, p.Minutes, p.Limit))
		if err != nil {
			w.Header().Set("X-Error", "influx-query-error")
			_, _ = w.Write([]byte("[]\n"))
			return
		}
		defer res.Close()

		out := make([]Sample, 0, p.Limit)
		for res.Next() {
			rec := res.Record()
			s := Sample{Time: rec.Time().UTC().Format(time.RFC3339)}
			if v, ok := rec.ValueByKey("raw").(string); ok {
				s.Raw = v
			}
			if v, ok := rec.ValueByKey("value").(float64); ok {
				s.Value = &v
			}
			out = append(out, s)
		}
		if res.Err() != nil {
			w.Header().Set("X-Error", "influx-iter-error")
		}
		_ = json.NewEncoder(w).Encode(out)
	})
}
