package domain

import (
	"math"
	"testing"
)

func TestUserState_Clamp(t *testing.T) {
	tests := []struct {
		name string
		in   UserState
		want UserState
	}{
		{
			name: "in range untouched",
			in:   UserState{A: 0.5, F: 0.5, M: 0.1, C: CognitiveState{Mem: 0.5, Speed: 0.5, Stability: 0.5}, Conf: 0.5},
			want: UserState{A: 0.5, F: 0.5, M: 0.1, C: CognitiveState{Mem: 0.5, Speed: 0.5, Stability: 0.5}, Conf: 0.5},
		},
		{
			name: "out of range clamps",
			in:   UserState{A: 1.5, F: 0, M: -2, C: CognitiveState{Mem: 2}, Conf: -1},
			want: UserState{A: 1, F: 0.05, M: -1, C: CognitiveState{Mem: 1}, Conf: 0},
		},
		{
			name: "NaN mapped to safe defaults",
			in:   UserState{A: math.NaN(), F: math.NaN(), M: math.NaN(), Conf: math.NaN()},
			want: UserState{A: 0.5, F: 0.05, M: 0, Conf: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.in
			s.Clamp()
			if s.A != tt.want.A || s.F != tt.want.F || s.M != tt.want.M || s.Conf != tt.want.Conf {
				t.Errorf("Clamp() = %+v, want %+v", s, tt.want)
			}
		})
	}
}

func TestColdStartState_Advance_Monotonic(t *testing.T) {
	c := &ColdStartState{Phase: PhaseNormal}
	c.Advance(PhaseClassify)
	if c.Phase != PhaseNormal {
		t.Errorf("phase regressed to %v, invariant 7 violated", c.Phase)
	}

	c2 := &ColdStartState{Phase: PhaseClassify}
	c2.Advance(PhaseExplore)
	if c2.Phase != PhaseExplore {
		t.Errorf("phase = %v, want explore", c2.Phase)
	}
}

func TestMemoryTrace_Append_BoundedCapacity(t *testing.T) {
	tr := &MemoryTrace{UserID: "u1", WordID: "w1"}
	for i := 0; i < MaxMemoryEvents+10; i++ {
		tr.Append(float64(i), i%2 == 0)
	}
	if len(tr.Events) != MaxMemoryEvents {
		t.Fatalf("len(Events) = %d, want %d", len(tr.Events), MaxMemoryEvents)
	}
	if tr.Events[0].SecondsAgo != float64(MaxMemoryEvents+9) {
		t.Errorf("most recent event not retained: got %v", tr.Events[0])
	}
}

func TestContextVector_AlignTo(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		d      int
		want   int
	}{
		{"zero pad", []float64{1, 2, 3}, 5, 5},
		{"truncate", []float64{1, 2, 3, 4, 5}, 3, 3},
		{"exact", []float64{1, 2}, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ContextVector{Values: tt.values}
			v.AlignTo(tt.d)
			if len(v.Values) != tt.want {
				t.Errorf("AlignTo(%d) len = %d, want %d", tt.d, len(v.Values), tt.want)
			}
		})
	}
}

func TestVisualFatigueSample_Valid(t *testing.T) {
	tests := []struct {
		name string
		s    VisualFatigueSample
		want bool
	}{
		{"valid", VisualFatigueSample{Score: 0.5, Perclos: 0.2, BlinkRate: 12, Confidence: 0.8}, true},
		{"score out of range", VisualFatigueSample{Score: 1.5, Confidence: 0.8}, false},
		{"nan score", VisualFatigueSample{Score: math.NaN(), Confidence: 0.8}, false},
		{"negative blink rate", VisualFatigueSample{BlinkRate: -1, Confidence: 0.8}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}
