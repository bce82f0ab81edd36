package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vocabamas/amas/internal/amas/engine"
	"github.com/vocabamas/amas/internal/domain"
	"github.com/vocabamas/amas/internal/infra/observability"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	e := engine.NewEngine(engine.Config{}, nil, nil)
	return NewServer(e)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	s := testServer(t)
	w := doJSON(t, s.Handler(), http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestHandleProcess_MissingUserIDRejected(t *testing.T) {
	s := testServer(t)
	req := processRequest{Event: domain.LearningEventInput{WordID: "w1"}}
	w := doJSON(t, s.Handler(), http.MethodPost, "/amas/process", req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleProcess_ValidEventReturnsStrategy(t *testing.T) {
	s := testServer(t)
	req := processRequest{
		UserID:    "u1",
		SessionID: "s1",
		Event:     domain.LearningEventInput{WordID: "w1", IsCorrect: true, ResponseTimeMS: 1200},
	}
	w := doJSON(t, s.Handler(), http.MethodPost, "/amas/process", req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result domain.AmasProcessResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.DecisionID == "" {
		t.Error("expected a non-empty decisionId")
	}
	if result.SessionID != "s1" {
		t.Errorf("sessionId = %q, want s1", result.SessionID)
	}
}

func TestHandleVisualFatigue_OutOfRangeRejected(t *testing.T) {
	s := testServer(t)
	req := visualFatigueRequest{
		UserID:              "u1",
		VisualFatigueSample: domain.VisualFatigueSample{Score: 1.5, Confidence: 0.5},
	}
	w := doJSON(t, s.Handler(), http.MethodPost, "/visual-fatigue/metrics", req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleVisualFatigue_ValidSampleReturnsFusion(t *testing.T) {
	s := testServer(t)
	req := visualFatigueRequest{
		UserID:         "u1",
		SessionMinutes: 10,
		VisualFatigueSample: domain.VisualFatigueSample{
			Score: 0.4, Perclos: 0.2, BlinkRate: 12, Confidence: 0.9,
		},
	}
	w := doJSON(t, s.Handler(), http.MethodPost, "/visual-fatigue/metrics", req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp visualFatigueResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Processed.IsValid {
		t.Error("expected processed.isValid=true")
	}
}

func TestHandleReward_OutOfRangeRejected(t *testing.T) {
	s := testServer(t)
	req := rewardRequest{UserID: "u1", Reward: 2}
	w := doJSON(t, s.Handler(), http.MethodPost, "/amas/reward", req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleReward_ValidRewardAccepted(t *testing.T) {
	s := testServer(t)
	req := rewardRequest{UserID: "u1", Reward: 0.5, ScheduledFor: 1000}
	w := doJSON(t, s.Handler(), http.MethodPost, "/amas/reward", req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp rewardResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID == "" {
		t.Error("expected a non-empty id")
	}
	if resp.Status != domain.RewardPending {
		t.Errorf("status = %q, want PENDING", resp.Status)
	}
}

func TestHandleExplainDecision_UnknownReturns404(t *testing.T) {
	s := testServer(t)
	w := doJSON(t, s.Handler(), http.MethodGet, "/amas/explain-decision?decisionId=nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleExplainDecision_MissingParamRejected(t *testing.T) {
	s := testServer(t)
	w := doJSON(t, s.Handler(), http.MethodGet, "/amas/explain-decision", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleLearningCurve_DaysOutOfRangeRejected(t *testing.T) {
	s := testServer(t)
	w := doJSON(t, s.Handler(), http.MethodGet, "/amas/learning-curve?userId=u1&days=400", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleCounterfactual_NoModelYetRejected(t *testing.T) {
	s := testServer(t)
	req := counterfactualRequest{
		UserID:       "u1",
		Hypothetical: domain.Strategy{BatchSize: 10, Difficulty: domain.DifficultyHard, IntervalScale: 1, NewRatio: 0.2},
	}
	w := doJSON(t, s.Handler(), http.MethodPost, "/amas/counterfactual", req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleCounterfactual_SettlesAfterColdStartReturnsScores(t *testing.T) {
	s := testServer(t)
	for i := 0; i < 30; i++ {
		req := processRequest{
			UserID:    "u1",
			SessionID: "s1",
			Event:     domain.LearningEventInput{WordID: "w1", IsCorrect: true, ResponseTimeMS: 1000},
		}
		doJSON(t, s.Handler(), http.MethodPost, "/amas/process", req)
	}

	req := counterfactualRequest{
		UserID:       "u1",
		Hypothetical: domain.Strategy{BatchSize: 10, Difficulty: domain.DifficultyHard, IntervalScale: 1, NewRatio: 0.2},
	}
	w := doJSON(t, s.Handler(), http.MethodPost, "/amas/counterfactual", req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleProcess_MetricsMiddlewareLabelsRoutePattern(t *testing.T) {
	s := testServer(t)
	req := processRequest{UserID: "u1", SessionID: "s1", Event: domain.LearningEventInput{WordID: "w1", ResponseTimeMS: 500}}
	w := doJSON(t, s.Handler(), http.MethodPost, "/amas/process", req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := testutil.ToFloat64(observability.HTTPRequestsTotal.WithLabelValues("/amas/process", http.MethodPost, "2xx")); got < 1 {
		t.Errorf("requests_total{route=/amas/process,method=POST,status=2xx} = %v, want >= 1", got)
	}
}
