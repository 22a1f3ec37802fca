package sensor_simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

const (
	// gainPerMin: +2% per minute while the pump runs, in [0..1].
	gainPerMin = 0.02

	defaultSeed   = 0.45
	defaultMaxLux = 1000.0

	sunrise = 6
	sunset  = 18
)

// Reading is one sample of the simulated field.
type Reading struct {
	Moisture int     // percent, 0..100
	Light    float64 // lux
	Daylight bool
	At       time.Time
}

// DataGenerator keeps the soil moisture state and advances it with the
// elapsed time: it decays while the pump is off and rises while it runs.
type DataGenerator struct {
	mu          sync.Mutex
	last        time.Time
	moisture    float64 // [0..1]
	decayPerMin float64
	maxLux      float64
	rnd         *rand.Rand
	now         func() time.Time
}

// NewDataGenerator starts from seed (fraction, 0..1; out of range values use
// a default) and loses decayPerMin of moisture per minute when dry.
func NewDataGenerator(seed, decayPerMin float64) *DataGenerator {
	if seed <= 0 || seed > 1 {
		seed = defaultSeed
	}
	return &DataGenerator{
		moisture:    seed,
		decayPerMin: math.Max(0, decayPerMin),
		maxLux:      defaultMaxLux,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
	}
}

// Next advances the state and returns a sample.
func (g *DataGenerator) Next(pumpOn bool) Reading {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if g.last.IsZero() {
		g.last = now
	}
	dtMin := math.Max(0, now.Sub(g.last).Minutes())
	if pumpOn {
		g.moisture = clamp01(g.moisture + gainPerMin*dtMin)
	} else {
		g.moisture = clamp01(g.moisture - g.decayPerMin*dtMin)
	}
	g.last = now

	light := LightAt(now, g.maxLux)
	if light > 0 {
		// a few percent of cloud noise
		light = math.Max(0, light*(0.95+0.1*g.rnd.Float64()))
	}
	return Reading{
		Moisture: int(math.Round(g.moisture * 100)),
		Light:    math.Round(light),
		Daylight: Daylight(now),
		At:       now,
	}
}

// Daylight reports whether t falls between sunrise and sunset, local time.
func Daylight(t time.Time) bool {
	h := t.Hour()
	return h >= sunrise && h < sunset
}

// LightAt is a half-sine between sunrise and sunset peaking at maxLux.
func LightAt(t time.Time, maxLux float64) float64 {
	if !Daylight(t) {
		return 0
	}
	hours := float64(t.Hour()-sunrise) + float64(t.Minute())/60
	return maxLux * math.Sin(math.Pi*hours/float64(sunset-sunrise))
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
