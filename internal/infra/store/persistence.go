package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vocabamas/amas/internal/domain"
)

// Verify DB satisfies the core's persistence boundary at compile time.
var _ domain.PersistenceManager = (*DB)(nil)

func (d *DB) LoadState(userID string) (*domain.UserState, error) {
	if v, ok := d.cache.get("state:" + userID); ok {
		s := v.(domain.UserState)
		return &s, nil
	}
	var stateJSON string
	err := d.db.QueryRow(`SELECT state_json FROM user_state WHERE user_id = ?`, userID).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load state for %s: %w", userID, err)
	}
	state, err := decodeStrict[domain.UserState]([]byte(stateJSON))
	if err != nil {
		return nil, err
	}
	state.Clamp()
	d.cache.set("state:"+userID, state)
	return &state, nil
}

func (d *DB) SaveState(userID string, state *domain.UserState, cold *domain.ColdStartState) error {
	stateJSON, err := encodeJSON(state)
	if err != nil {
		return err
	}
	coldJSON, err := encodeJSON(cold)
	if err != nil {
		return err
	}
	_, err = d.db.Exec(`
		INSERT INTO user_state (user_id, state_json, cold_start_json, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(user_id) DO UPDATE SET
			state_json      = excluded.state_json,
			cold_start_json = excluded.cold_start_json,
			updated_at      = datetime('now')
	`, userID, string(stateJSON), string(coldJSON))
	if err != nil {
		return fmt.Errorf("store: save state for %s: %w", userID, err)
	}
	d.cache.set("state:"+userID, *state)
	return nil
}

func (d *DB) LoadModel(userID string) (*domain.BanditModel, error) {
	if v, ok := d.cache.get("model:" + userID); ok {
		m := v.(domain.BanditModel)
		return &m, nil
	}
	var modelJSON string
	err := d.db.QueryRow(`SELECT model_json FROM bandit_model WHERE user_id = ?`, userID).Scan(&modelJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load model for %s: %w", userID, err)
	}
	model, err := decodeStrict[domain.BanditModel]([]byte(modelJSON))
	if err != nil {
		return nil, err
	}
	d.cache.set("model:"+userID, model)
	return &model, nil
}

func (d *DB) SaveModel(userID string, model *domain.BanditModel) error {
	modelJSON, err := encodeJSON(model)
	if err != nil {
		return err
	}
	_, err = d.db.Exec(`
		INSERT INTO bandit_model (user_id, model_json, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(user_id) DO UPDATE SET
			model_json = excluded.model_json,
			updated_at = datetime('now')
	`, userID, string(modelJSON))
	if err != nil {
		return fmt.Errorf("store: save model for %s: %w", userID, err)
	}
	d.cache.set("model:"+userID, *model)
	return nil
}

func (d *DB) LoadHabit(userID string) (*domain.HabitProfile, error) {
	if v, ok := d.cache.get("habit:" + userID); ok {
		h := v.(domain.HabitProfile)
		return &h, nil
	}
	var habitJSON string
	err := d.db.QueryRow(`SELECT habit_json FROM habit_profile WHERE user_id = ?`, userID).Scan(&habitJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load habit for %s: %w", userID, err)
	}
	habit, err := decodeStrict[domain.HabitProfile]([]byte(habitJSON))
	if err != nil {
		return nil, err
	}
	d.cache.set("habit:"+userID, habit)
	return &habit, nil
}

func (d *DB) SaveHabit(userID string, h *domain.HabitProfile) error {
	habitJSON, err := encodeJSON(h)
	if err != nil {
		return err
	}
	_, err = d.db.Exec(`
		INSERT INTO habit_profile (user_id, habit_json, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(user_id) DO UPDATE SET
			habit_json = excluded.habit_json,
			updated_at = datetime('now')
	`, userID, string(habitJSON))
	if err != nil {
		return fmt.Errorf("store: save habit for %s: %w", userID, err)
	}
	d.cache.set("habit:"+userID, *h)
	return nil
}

func (d *DB) LoadThresholds(userID string) (*domain.PersonalisedThresholds, error) {
	if v, ok := d.cache.get("thresholds:" + userID); ok {
		th := v.(domain.PersonalisedThresholds)
		return &th, nil
	}
	var thJSON string
	err := d.db.QueryRow(`SELECT thresholds_json FROM personalised_thresholds WHERE user_id = ?`, userID).Scan(&thJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load thresholds for %s: %w", userID, err)
	}
	th, err := decodeStrict[domain.PersonalisedThresholds]([]byte(thJSON))
	if err != nil {
		return nil, err
	}
	d.cache.set("thresholds:"+userID, th)
	return &th, nil
}

func (d *DB) SaveThresholds(userID string, t *domain.PersonalisedThresholds) error {
	thJSON, err := encodeJSON(t)
	if err != nil {
		return err
	}
	_, err = d.db.Exec(`
		INSERT INTO personalised_thresholds (user_id, thresholds_json, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(user_id) DO UPDATE SET
			thresholds_json = excluded.thresholds_json,
			updated_at      = datetime('now')
	`, userID, string(thJSON))
	if err != nil {
		return fmt.Errorf("store: save thresholds for %s: %w", userID, err)
	}
	d.cache.set("thresholds:"+userID, *t)
	return nil
}

func (d *DB) LoadMemoryTrace(userID, wordID string) (*domain.MemoryTrace, error) {
	cacheKey := "trace:" + userID + "/" + wordID
	if v, ok := d.cache.get(cacheKey); ok {
		tr := v.(domain.MemoryTrace)
		return &tr, nil
	}
	var traceJSON string
	err := d.db.QueryRow(`SELECT trace_json FROM memory_trace WHERE user_id = ? AND word_id = ?`, userID, wordID).Scan(&traceJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load memory trace for %s/%s: %w", userID, wordID, err)
	}
	tr, err := decodeStrict[domain.MemoryTrace]([]byte(traceJSON))
	if err != nil {
		return nil, err
	}
	d.cache.set(cacheKey, tr)
	return &tr, nil
}

func (d *DB) SaveMemoryTrace(userID string, t *domain.MemoryTrace) error {
	traceJSON, err := encodeJSON(t)
	if err != nil {
		return err
	}
	_, err = d.db.Exec(`
		INSERT INTO memory_trace (user_id, word_id, trace_json, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(user_id, word_id) DO UPDATE SET
			trace_json = excluded.trace_json,
			updated_at = datetime('now')
	`, userID, t.WordID, string(traceJSON))
	if err != nil {
		return fmt.Errorf("store: save memory trace for %s/%s: %w", userID, t.WordID, err)
	}
	d.cache.set("trace:"+userID+"/"+t.WordID, *t)
	return nil
}

func (d *DB) SaveContextVector(userID, answerRecordID, sessionID string, v domain.ContextVector) error {
	vecJSON, err := encodeJSON(v)
	if err != nil {
		return err
	}
	_, err = d.db.Exec(`
		INSERT INTO context_vector (user_id, answer_record_id, session_id, vector_json, created_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT(user_id, answer_record_id, session_id) DO UPDATE SET
			vector_json = excluded.vector_json
	`, userID, answerRecordID, sessionID, string(vecJSON))
	if err != nil {
		return fmt.Errorf("store: save context vector for %s/%s: %w", userID, answerRecordID, err)
	}
	return nil
}

func (d *DB) LoadContextVector(userID, answerRecordID, sessionID string) (*domain.ContextVector, error) {
	var vecJSON string
	err := d.db.QueryRow(`
		SELECT vector_json FROM context_vector WHERE user_id = ? AND answer_record_id = ? AND session_id = ?
	`, userID, answerRecordID, sessionID).Scan(&vecJSON)
	if err == sql.ErrNoRows {
		return nil, domain.ErrDecisionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load context vector for %s/%s: %w", userID, answerRecordID, err)
	}
	v, err := decodeStrict[domain.ContextVector]([]byte(vecJSON))
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (d *DB) EnqueueReward(item domain.RewardQueueItem) error {
	_, err := d.db.Exec(`
		INSERT INTO reward_queue (id, user_id, reward, scheduled_for, session_id, answer_record_id, attempts, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			reward           = excluded.reward,
			scheduled_for    = excluded.scheduled_for,
			session_id       = excluded.session_id,
			answer_record_id = excluded.answer_record_id,
			attempts         = excluded.attempts,
			status           = excluded.status
	`, item.ID, item.UserID, item.Reward, item.ScheduledFor, item.SessionID, item.AnswerRecordID, item.Attempts, string(item.Status))
	if err != nil {
		return fmt.Errorf("store: enqueue reward %s: %w", item.ID, err)
	}
	return nil
}

func (d *DB) DrainDueRewards(now int64, limit int) ([]domain.RewardQueueItem, error) {
	rows, err := d.db.Query(`
		SELECT id, user_id, reward, scheduled_for, session_id, answer_record_id, attempts, status
		FROM reward_queue
		WHERE status = 'PENDING' AND scheduled_for <= ?
		ORDER BY scheduled_for ASC
		LIMIT ?
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("store: drain due rewards: %w", err)
	}
	defer rows.Close()

	var out []domain.RewardQueueItem
	for rows.Next() {
		var item domain.RewardQueueItem
		var status string
		if err := rows.Scan(&item.ID, &item.UserID, &item.Reward, &item.ScheduledFor, &item.SessionID, &item.AnswerRecordID, &item.Attempts, &status); err != nil {
			return nil, fmt.Errorf("store: scan reward row: %w", err)
		}
		item.Status = domain.RewardStatus(status)
		out = append(out, item)
	}
	return out, rows.Err()
}

func (d *DB) UpdateRewardItem(item domain.RewardQueueItem) error {
	return d.EnqueueReward(item)
}

func (d *DB) SaveDecisionTrace(record any) error {
	recJSON, err := encodeJSON(record)
	if err != nil {
		return err
	}
	id, ok := decisionIDOf(record)
	if !ok {
		return fmt.Errorf("store: decision trace record has no DecisionID field")
	}
	_, err = d.db.Exec(`
		INSERT INTO decision_trace (decision_id, record_json, created_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(decision_id) DO UPDATE SET
			record_json = excluded.record_json
	`, id, string(recJSON))
	if err != nil {
		return fmt.Errorf("store: save decision trace %s: %w", id, err)
	}
	return nil
}

func (d *DB) LoadDecisionTrace(decisionID string) (any, error) {
	var recJSON string
	err := d.db.QueryRow(`SELECT record_json FROM decision_trace WHERE decision_id = ?`, decisionID).Scan(&recJSON)
	if err == sql.ErrNoRows {
		return nil, domain.ErrDecisionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load decision trace %s: %w", decisionID, err)
	}
	var v any
	if err := json.Unmarshal([]byte(recJSON), &v); err != nil {
		return nil, fmt.Errorf("store: decode decision trace %s: %w", decisionID, err)
	}
	return v, nil
}

func (d *DB) AbilitySeries(userID string, days int) ([]domain.AbilitySample, error) {
	cutoff := time.Now().UnixMilli() - int64(days)*24*3600*1000
	rows, err := d.db.Query(`
		SELECT ts, ability FROM ability_sample
		WHERE user_id = ? AND ts >= ?
		ORDER BY ts ASC
	`, userID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("store: load ability series for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []domain.AbilitySample
	for rows.Next() {
		var s domain.AbilitySample
		if err := rows.Scan(&s.TS, &s.Ability); err != nil {
			return nil, fmt.Errorf("store: scan ability sample: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (d *DB) AppendAbilitySample(userID string, sample domain.AbilitySample) error {
	_, err := d.db.Exec(`
		INSERT INTO ability_sample (user_id, ts, ability)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, ts) DO UPDATE SET ability = excluded.ability
	`, userID, sample.TS, sample.Ability)
	if err != nil {
		return fmt.Errorf("store: append ability sample for %s: %w", userID, err)
	}
	return nil
}
