package state

import (
	"sort"

	"github.com/vocabamas/amas/internal/domain"
)

// HabitRecognizerConfig controls the time-of-day histogram smoothing and
// the sliding-window size for session/batch medians. Grounded on the
// teacher's 24-bucket seasonal array (infra/autoscale.go's
// seasonal[24]float64 + seasonBucket(t)).
type HabitRecognizerConfig struct {
	Beta                float64
	MinTimeEventsForSlots int
	MedianWindow        int
	DefaultSessionMin   float64
	DefaultBatchSize    float64
	TopKSlots           int
}

func DefaultHabitRecognizerConfig() HabitRecognizerConfig {
	return HabitRecognizerConfig{
		Beta:                  0.9,
		MinTimeEventsForSlots: 10,
		MedianWindow:          50,
		DefaultSessionMin:     15,
		DefaultBatchSize:      8,
		TopKSlots:             3,
	}
}

// HabitRecognizer updates a HabitProfile from observed session events.
type HabitRecognizer struct {
	cfg           HabitRecognizerConfig
	sessionWindow []float64
	batchWindow   []float64
}

func NewHabitRecognizer(cfg HabitRecognizerConfig) *HabitRecognizer {
	if cfg.Beta <= 0 || cfg.Beta >= 1 {
		cfg.Beta = 0.9
	}
	if cfg.MinTimeEventsForSlots <= 0 {
		cfg.MinTimeEventsForSlots = 10
	}
	if cfg.MedianWindow <= 0 {
		cfg.MedianWindow = 50
	}
	if cfg.TopKSlots <= 0 {
		cfg.TopKSlots = 3
	}
	return &HabitRecognizer{cfg: cfg}
}

// bucketHour returns the 0..23 histogram bucket for an hour-of-day.
func bucketHour(hour float64) int {
	b := int(hour)
	if b < 0 {
		b = 0
	}
	if b > 23 {
		b = 23
	}
	return b
}

// Observe records one event's time-of-day into the histogram and, when
// provided, a session length and batch size into the rolling medians.
func (h *HabitRecognizer) Observe(p *domain.HabitProfile, hourOfDay float64, sessionMinutes, batchSize float64) {
	bucket := bucketHour(hourOfDay)

	// EMA update of the 24-bin histogram, then renormalise so it stays a
	// proper distribution (mass sums to 1).
	for i := range p.TimePref {
		target := float32(0)
		if i == bucket {
			target = 1
		}
		p.TimePref[i] = float32(h.cfg.Beta)*p.TimePref[i] + float32(1-h.cfg.Beta)*target
	}
	normalizeHistogram(&p.TimePref)
	p.TimeEvents++

	if p.TimeEvents >= h.cfg.MinTimeEventsForSlots {
		p.PreferredTimeSlots = topKSlots(p.TimePref, h.cfg.TopKSlots)
	} else {
		p.PreferredTimeSlots = nil
	}

	if sessionMinutes > 0 {
		h.sessionWindow = pushWindow(h.sessionWindow, sessionMinutes, h.cfg.MedianWindow)
		p.SessionSamples++
		p.SessionMedianMin = medianOrDefault(h.sessionWindow, h.cfg.DefaultSessionMin)
	} else if p.SessionSamples == 0 {
		p.SessionMedianMin = h.cfg.DefaultSessionMin
	}

	if batchSize > 0 {
		h.batchWindow = pushWindow(h.batchWindow, batchSize, h.cfg.MedianWindow)
		p.BatchSamples++
		p.BatchMedian = medianOrDefault(h.batchWindow, h.cfg.DefaultBatchSize)
	} else if p.BatchSamples == 0 {
		p.BatchMedian = h.cfg.DefaultBatchSize
	}
}

func normalizeHistogram(h *[24]float32) {
	var sum float32
	for _, v := range h {
		sum += v
	}
	if sum <= 0 {
		return
	}
	for i := range h {
		h[i] /= sum
	}
}

func topKSlots(h [24]float32, k int) []int {
	type bucket struct {
		idx  int
		mass float32
	}
	buckets := make([]bucket, 24)
	for i, v := range h {
		buckets[i] = bucket{i, v}
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].mass > buckets[j].mass })
	if k > len(buckets) {
		k = len(buckets)
	}
	out := make([]int, 0, k)
	for i := 0; i < k; i++ {
		if buckets[i].mass <= 0 {
			break
		}
		out = append(out, buckets[i].idx)
	}
	sort.Ints(out)
	return out
}

func pushWindow(w []float64, v float64, cap int) []float64 {
	w = append(w, v)
	if len(w) > cap {
		w = w[len(w)-cap:]
	}
	return w
}

func medianOrDefault(w []float64, def float64) float64 {
	if len(w) == 0 {
		return def
	}
	sorted := append([]float64(nil), w...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
