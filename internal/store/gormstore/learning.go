package gormstore

import (
	"context"
	"fmt"
	"time"

	"omerta/internal/store"
	storemodel "omerta/internal/store/model"
)

func (s *GormStore) AppendLearning(ctx context.Context, rec store.LearningRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
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
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("appending learning record failed: %w", err)
	}
	return nil
}

func (s *GormStore) ListLearning(ctx context.Context, since time.Time) ([]store.LearningRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	q := s.db.WithContext(ctx).Model(&storemodel.LearningRecordModel{})
	if !since.IsZero() {
		q = q.Where("timestamp >= ?", since.UTC().Unix())
	}
	var models []storemodel.LearningRecordModel
	if err := q.Order("timestamp ASC, id ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing learning records failed: %w", err)
	}
	out := make([]store.LearningRecord, 0, len(models))
	for _, m := range models {
		out = append(out, store.LearningRecord{
			ID:              m.ID,
			Timestamp:       time.Unix(m.Timestamp, 0).UTC(),
			Asset:           m.Asset,
			Action:          m.Action,
			RealizedPercent: m.RealizedPercent,
			Correct:         m.Correct,
			HorizonDays:     m.HorizonDays,
			Origin:          m.Origin,
			PassID:          m.PassID,
		})
	}
	return out, nil
}
