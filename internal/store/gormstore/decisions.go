package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"omerta/internal/logger"
	"omerta/internal/store"
	storemodel "omerta/internal/store/model"
)

// LogDecisions applies the dedupe/merge rule inside one transaction per call:
// the read-modify-write on the (asset, day, source) key must not interleave
// with another producer's write.
func (s *GormStore) LogDecisions(ctx context.Context, inputs []store.DecisionInput, now time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("gorm store not initialized")
	}
	now = now.UTC()
	day := now.Format("2006-01-02")
	changed := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, in := range inputs {
			asset := store.NormalizeAsset(in.Asset)
			if asset == "" {
				logger.Warnf("decision ledger: skip entry without asset")
				continue
			}
			action := store.NormalizeAction(in.Action)

			var existing storemodel.DecisionModel
			err := tx.Where("asset = ? AND day = ? AND source = ?", asset, day, in.Source).
				First(&existing).Error
			switch {
			case err == nil:
				if existing.Status == storemodel.DecisionStatusEvaluated {
					// Already closed; re-logging the same key is a no-op.
					continue
				}
				applyDecisionInput(&existing, action, in, now)
				if err := tx.Save(&existing).Error; err != nil {
					return err
				}
				changed++
			case errors.Is(err, gorm.ErrRecordNotFound):
				m := storemodel.DecisionModel{
					Asset:         asset,
					Day:           day,
					Source:        in.Source,
					Action:        action,
					DecisionTime:  now.Unix(),
					Status:        storemodel.DecisionStatusOpen,
					CreatedAtUnix: now.Unix(),
				}
				applyDecisionInput(&m, action, in, now)
				if err := tx.Create(&m).Error; err != nil {
					return err
				}
				changed++
			default:
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("logging decisions failed: %w", err)
	}
	return changed, nil
}

// applyDecisionInput implements "new non-empty wins" for merge and create.
func applyDecisionInput(m *storemodel.DecisionModel, action string, in store.DecisionInput, now time.Time) {
	m.Action = action
	if in.ReferencePrice != nil {
		m.ReferencePrice = in.ReferencePrice
	}
	if in.Confidence != nil {
		m.Confidence = in.Confidence
	}
	if in.HorizonDays != nil {
		m.HorizonDays = in.HorizonDays
	}
	if in.Reason != "" {
		m.Reason = in.Reason
	}
	if len(in.Meta) > 0 {
		merged := map[string]any{}
		if len(m.Meta) > 0 {
			// Unparseable old meta is dropped rather than poisoning the merge.
			if err := json.Unmarshal(m.Meta, &merged); err != nil {
				merged = map[string]any{}
			}
		}
		for k, v := range in.Meta {
			merged[k] = v
		}
		if raw, err := json.Marshal(merged); err == nil {
			m.Meta = datatypes.JSON(raw)
		}
	}
	m.UpdatedAtUnix = now.Unix()
}

func (s *GormStore) ListPending(ctx context.Context, cutoff time.Time) ([]store.Decision, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	var models []storemodel.DecisionModel
	err := s.db.WithContext(ctx).
		Where("status = ? AND decision_time <= ?", storemodel.DecisionStatusOpen, cutoff.UTC().Unix()).
		Order("decision_time ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("listing pending decisions failed: %w", err)
	}
	out := make([]store.Decision, 0, len(models))
	for _, m := range models {
		out = append(out, decisionModelToRecord(m))
	}
	return out, nil
}

func (s *GormStore) MarkEvaluated(ctx context.Context, id int64, realizedPercent float64, evaluatedAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	at := evaluatedAt.UTC().Unix()
	res := s.db.WithContext(ctx).Model(&storemodel.DecisionModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":           storemodel.DecisionStatusEvaluated,
			"realized_percent": realizedPercent,
			"evaluated_at":     at,
			"retry_count":      0,
			"updated_at":       time.Now().Unix(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RecordOutcome closes the decision and inserts its learning record inside
// one transaction. Either both writes land or neither does.
func (s *GormStore) RecordOutcome(ctx context.Context, decisionID int64, realizedPercent float64, evaluatedAt time.Time, rec store.LearningRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	at := evaluatedAt.UTC().Unix()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&storemodel.DecisionModel{}).
			Where("id = ?", decisionID).
			Updates(map[string]interface{}{
				"status":           storemodel.DecisionStatusEvaluated,
				"realized_percent": realizedPercent,
				"evaluated_at":     at,
				"retry_count":      0,
				"updated_at":       time.Now().Unix(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		m := storemodel.LearningRecordModel{
			Timestamp:       rec.Timestamp.UTC().Unix(),
			Asset:           store.NormalizeAsset(rec.Asset),
			Action:          rec.Action,
			RealizedPercent: rec.RealizedPercent,
			Correct:         rec.Correct,
			HorizonDays:     rec.HorizonDays,
			Origin:          rec.Origin,
			PassID:          rec.PassID,
			CreatedAtUnix:   time.Now().Unix(),
		}
		return tx.Create(&m).Error
	})
	if err != nil {
		return fmt.Errorf("recording decision outcome failed: %w", err)
	}
	return nil
}

func (s *GormStore) IncrementRetry(ctx context.Context, id int64) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("gorm store not initialized")
	}
	res := s.db.WithContext(ctx).Model(&storemodel.DecisionModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"retry_count": gorm.Expr("retry_count + 1"),
			"updated_at":  time.Now().Unix(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	var m storemodel.DecisionModel
	if err := s.db.WithContext(ctx).Select("retry_count").First(&m, id).Error; err != nil {
		return 0, err
	}
	return m.RetryCount, nil
}

func (s *GormStore) ForceClose(ctx context.Context, id int64, note string, at time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	res := s.db.WithContext(ctx).Model(&storemodel.DecisionModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       storemodel.DecisionStatusEvaluated,
			"eval_note":    note,
			"evaluated_at": at.UTC().Unix(),
			"updated_at":   time.Now().Unix(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func decisionModelToRecord(m storemodel.DecisionModel) store.Decision {
	rec := store.Decision{
		ID:              m.ID,
		Asset:           m.Asset,
		Action:          m.Action,
		Day:             m.Day,
		Source:          m.Source,
		DecisionTime:    time.Unix(m.DecisionTime, 0).UTC(),
		ReferencePrice:  m.ReferencePrice,
		HorizonDays:     m.HorizonDays,
		Confidence:      m.Confidence,
		Reason:          m.Reason,
		Status:          store.DecisionStatus(m.Status),
		RetryCount:      m.RetryCount,
		RealizedPercent: m.RealizedPercent,
		EvalNote:        m.EvalNote,
	}
	if m.EvaluatedAtUnix != nil {
		at := time.Unix(*m.EvaluatedAtUnix, 0).UTC()
		rec.EvaluatedAt = &at
	}
	if len(m.Meta) > 0 {
		meta := map[string]any{}
		if err := json.Unmarshal(m.Meta, &meta); err == nil {
			rec.Meta = meta
		}
	}
	return rec
}
