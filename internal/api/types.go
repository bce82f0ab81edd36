package api

import "github.com/vocabamas/amas/internal/domain"

// processRequest is POST /amas/process's body (spec §6.1).
type processRequest struct {
	UserID    string                    `json:"userId"`
	SessionID string                    `json:"sessionId"`
	Event     domain.LearningEventInput `json:"event"`
	Context   domain.EventContext       `json:"context"`
}

// rewardRequest is POST /amas/reward's body (spec §6.3).
type rewardRequest struct {
	UserID         string  `json:"userId"`
	Reward         float64 `json:"reward"`
	ScheduledFor   int64   `json:"scheduledFor"`
	AnswerRecordID string  `json:"answerRecordId,omitempty"`
	SessionID      string  `json:"sessionId,omitempty"`
}

// rewardResponse acknowledges a queued reward.
type rewardResponse struct {
	ID     string              `json:"id"`
	Status domain.RewardStatus `json:"status"`
}

// counterfactualRequest is POST /amas/counterfactual's body (spec §6.4).
type counterfactualRequest struct {
	UserID       string              `json:"userId"`
	Hypothetical domain.Strategy     `json:"hypothetical"`
	Context      domain.EventContext `json:"context"`
}

// visualFatigueRequest is POST /visual-fatigue/metrics's body (spec §6.2).
// The embedded VisualFatigueSample's fields flatten into the JSON object
// alongside userId/sessionMinutes.
type visualFatigueRequest struct {
	UserID         string `json:"userId"`
	SessionMinutes float64 `json:"sessionMinutes"`
	domain.VisualFatigueSample
}

// visualFatigueResponse is spec §6.2's response shape.
type visualFatigueResponse struct {
	Processed processedBlock `json:"processed"`
	Fusion    fusionBlock    `json:"fusion"`
}

type processedBlock struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	IsValid    bool    `json:"isValid"`
}

type fusionBlock struct {
	FusedFatigue    float64             `json:"fusedFatigue"`
	VisualFatigue   float64             `json:"visualFatigue"`
	BehaviorFatigue float64             `json:"behaviorFatigue"`
	FatigueLevel    domain.FatigueLevel `json:"fatigueLevel"`
	Recommendations []string            `json:"recommendations"`
}

// learningCurveResponse wraps GET /amas/learning-curve's time series.
type learningCurveResponse struct {
	UserID  string                 `json:"userId"`
	Samples []domain.AbilitySample `json:"samples"`
}
