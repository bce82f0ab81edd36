package visual

import (
	"testing"

	"github.com/vocabamas/amas/internal/domain"
)

func TestProcess_RejectsLowConfidence(t *testing.T) {
	p := NewProcessor(DefaultConfig())
	got := p.Process(domain.VisualFatigueSample{Score: 0.5, Confidence: 0.1, Timestamp: 0}, 0)
	if got.IsValid {
		t.Error("sample below minConfidence should be invalid")
	}
}

func TestProcess_FreshnessDecaysLinearly(t *testing.T) {
	p := NewProcessor(DefaultConfig())
	fresh := p.Process(domain.VisualFatigueSample{Score: 0.5, Confidence: 0.9, Timestamp: 0}, 0)
	if fresh.Freshness != 1 {
		t.Errorf("freshness at age 0 = %f, want 1", fresh.Freshness)
	}

	stale := p.Process(domain.VisualFatigueSample{Score: 0.5, Confidence: 0.9, Timestamp: 0}, 15_000)
	if stale.Freshness < 0.49 || stale.Freshness > 0.51 {
		t.Errorf("freshness at half of maxAge = %f, want ~0.5", stale.Freshness)
	}

	expired := p.Process(domain.VisualFatigueSample{Score: 0.5, Confidence: 0.9, Timestamp: 0}, 60_000)
	if expired.Freshness != 0 {
		t.Errorf("freshness beyond maxAge = %f, want 0", expired.Freshness)
	}
}

func TestProcess_OutlierClipping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HistorySize = 5
	p := NewProcessor(cfg)
	for i := 0; i < 5; i++ {
		p.Process(domain.VisualFatigueSample{Score: 0.3, Confidence: 0.9, Timestamp: 0}, 0)
	}
	got := p.Process(domain.VisualFatigueSample{Score: 1.0, Confidence: 0.9, Timestamp: 0}, 0)
	if got.Score >= 0.9 {
		t.Errorf("outlier score should be clipped toward history mean, got %f", got.Score)
	}
}

func TestCalibrate_ClampsMultiplier(t *testing.T) {
	p := NewProcessor(DefaultConfig())
	got := p.Calibrate(0.5, 1.0, 0.1, 0.01) // perclos/threshold huge -> clamp at 1.5x
	if got != domain.Clamp01(0.5*1.5) {
		t.Errorf("Calibrate() = %f, want clamp at 1.5x multiplier", got)
	}
}
