package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/vocabamas/amas/internal/domain"
)

// handleProcess implements POST /amas/process (spec §6.1).
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	result, err := s.engine.Process(r.Context(), req.UserID, req.SessionID, req.Event, req.Context, time.Now().UnixMilli())
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleVisualFatigue implements POST /visual-fatigue/metrics (spec §6.2).
func (s *Server) handleVisualFatigue(w http.ResponseWriter, r *http.Request) {
	var req visualFatigueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidUserID.Error())
		return
	}
	if !req.VisualFatigueSample.Valid() {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidFatigueData.Error())
		return
	}

	fusion, err := s.engine.ProcessVisualFatigue(req.UserID, req.VisualFatigueSample, time.Now().UnixMilli(), req.SessionMinutes)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, visualFatigueResponse{
		Processed: processedBlock{
			Score:      req.VisualFatigueSample.Score,
			Confidence: req.VisualFatigueSample.Confidence,
			IsValid:    true,
		},
		Fusion: fusionBlock{
			FusedFatigue:    fusion.FusedFatigue,
			VisualFatigue:   fusion.Visual,
			BehaviorFatigue: fusion.Behavior,
			FatigueLevel:    fusion.Level,
			Recommendations: fusion.Recommendations,
		},
	})
}

// handleReward implements POST /amas/reward (spec §6.3): enqueues the item
// and returns immediately, leaving application to the reward-drain cron.
func (s *Server) handleReward(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidUserID.Error())
		return
	}
	if req.Reward < -1 || req.Reward > 1 {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidReward.Error())
		return
	}

	item := domain.RewardQueueItem{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		Reward:         req.Reward,
		ScheduledFor:   req.ScheduledFor,
		AnswerRecordID: req.AnswerRecordID,
		SessionID:      req.SessionID,
		Status:         domain.RewardPending,
	}
	s.engine.EnqueueReward(item)
	writeJSON(w, http.StatusAccepted, rewardResponse{ID: item.ID, Status: item.Status})
}

// handleExplainDecision implements GET /amas/explain-decision (spec §6.4).
func (s *Server) handleExplainDecision(w http.ResponseWriter, r *http.Request) {
	decisionID := r.URL.Query().Get("decisionId")
	if decisionID == "" {
		writeError(w, http.StatusBadRequest, "decisionId is required")
		return
	}
	record, err := s.engine.DecisionRecord(decisionID)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleLearningCurve implements GET /amas/learning-curve (spec §6.4).
func (s *Server) handleLearningCurve(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidUserID.Error())
		return
	}
	days, err := strconv.Atoi(r.URL.Query().Get("days"))
	if err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidDays.Error())
		return
	}

	samples, err := s.engine.LearningCurve(userID, days)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, learningCurveResponse{UserID: userID, Samples: samples})
}

// handleCounterfactual implements POST /amas/counterfactual (spec §6.4).
func (s *Server) handleCounterfactual(w http.ResponseWriter, r *http.Request) {
	var req counterfactualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	result, err := s.engine.Counterfactual(req.UserID, req.Hypothetical, req.Context, time.Now().UnixMilli())
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// errStatus maps a domain sentinel error to its HTTP status code (spec §7).
func errStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidUserID),
		errors.Is(err, domain.ErrInvalidEvent),
		errors.Is(err, domain.ErrInvalidReward),
		errors.Is(err, domain.ErrInvalidFatigueData),
		errors.Is(err, domain.ErrInvalidDays):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDecisionNotFound), errors.Is(err, domain.ErrNoMemoryTrace):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrCircuitBreakerOpen), errors.Is(err, domain.ErrNativeUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrPersistenceTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
