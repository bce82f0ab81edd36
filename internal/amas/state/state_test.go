package state

import (
	"math"
	"testing"

	"github.com/vocabamas/amas/internal/domain"
)

func TestAttentionMonitor_Update_MismatchSkips(t *testing.T) {
	m := NewAttentionMonitor(DefaultAttentionMonitorConfig())
	prev := 0.6
	got := m.Update(prev, []float64{1, 2}) // wrong length
	if got != prev {
		t.Errorf("mismatched feature length should skip update, got %f want %f", got, prev)
	}
}

func TestAttentionMonitor_Update_NaNTreatedAsZero(t *testing.T) {
	m := NewAttentionMonitor(DefaultAttentionMonitorConfig())
	f := make([]float64, 8)
	f[0] = math.NaN()
	got := m.Update(0.5, f)
	if math.IsNaN(got) {
		t.Fatal("NaN propagated into attention output")
	}
}

func TestAttentionMonitor_CorrectAnswerIncreasesAttention(t *testing.T) {
	m := NewAttentionMonitor(DefaultAttentionMonitorConfig())
	// Negative feature vector -> -w.f > 0 -> sigmoid > 0.5 -> A rises from a low start.
	f := []float64{-1, -1, -1, -1, -1, -1, -1, -1}
	got := m.Update(0.3, f)
	if got <= 0.3 {
		t.Errorf("attention should rise toward higher raw signal, got %f from 0.3", got)
	}
}

func TestCognitiveProfiler_BlendAsymptotesToLongTerm(t *testing.T) {
	p := NewCognitiveProfiler(DefaultCognitiveProfilerConfig())
	prof := &CognitiveProfile{}
	var mem float64
	for i := 0; i < 500; i++ {
		mem, _, _ = p.Update(prof, RecentStats{Accuracy: 1.0, ReferenceRT: 2000, AvgResponseTime: 2000})
	}
	if mem < 0.9 {
		t.Errorf("after many consistent samples mem should approach 1.0, got %f", mem)
	}
}

func TestHabitRecognizer_PreferredSlotsGatedBySampleCount(t *testing.T) {
	h := NewHabitRecognizer(DefaultHabitRecognizerConfig())
	p := &domain.HabitProfile{}
	for i := 0; i < 9; i++ {
		h.Observe(p, 20, 15, 8)
	}
	if p.PreferredTimeSlots != nil {
		t.Errorf("preferredTimeSlots should stay empty before 10 samples, got %v", p.PreferredTimeSlots)
	}
	h.Observe(p, 20, 15, 8)
	if len(p.PreferredTimeSlots) == 0 {
		t.Error("preferredTimeSlots should be populated at 10 samples")
	}
}

func TestHabitRecognizer_Defaults(t *testing.T) {
	h := NewHabitRecognizer(DefaultHabitRecognizerConfig())
	p := &domain.HabitProfile{}
	h.Observe(p, 10, 0, 0)
	if p.SessionMedianMin != 15 || p.BatchMedian != 8 {
		t.Errorf("defaults not applied: session=%f batch=%f", p.SessionMedianMin, p.BatchMedian)
	}
}

func TestTrendAnalyzer_RingBufferNeverExceedsCapacity(t *testing.T) {
	cfg := DefaultTrendAnalyzerConfig()
	cfg.WindowDays = 5 // capacity = 15
	ta := NewTrendAnalyzer(cfg)
	base := int64(0)
	for i := 0; i < 100; i++ {
		ta.Observe(base+int64(i)*dayMS()/10, float64(i)/100)
	}
	if len(ta.samples) > ta.capacity() {
		t.Fatalf("ring buffer exceeded capacity: %d > %d", len(ta.samples), ta.capacity())
	}
}

func TestTrendAnalyzer_ClassifyUp(t *testing.T) {
	cfg := DefaultTrendAnalyzerConfig()
	cfg.MinSamples = 5
	cfg.MinSpanDays = 1
	ta := NewTrendAnalyzer(cfg)
	base := int64(0)
	for i := 0; i < 20; i++ {
		ta.Observe(base+int64(i)*dayMS(), 0.3+float64(i)*0.02)
	}
	trend := ta.Classify()
	if trend.Label != domain.TrendUp {
		t.Errorf("Classify() label = %v, want up (slope=%f)", trend.Label, trend.SlopePerDay)
	}
}

func TestTrendAnalyzer_OutOfOrderAppendSorted(t *testing.T) {
	ta := NewTrendAnalyzer(DefaultTrendAnalyzerConfig())
	ta.Observe(3*dayMS(), 0.5)
	ta.Observe(1*dayMS(), 0.4)
	ta.Observe(2*dayMS(), 0.45)
	for i := 1; i < len(ta.samples); i++ {
		if ta.samples[i].tsMS < ta.samples[i-1].tsMS {
			t.Fatalf("samples not sorted: %+v", ta.samples)
		}
	}
}
