package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"omerta/internal/logger"
	"omerta/internal/store"
	storemodel "omerta/internal/store/model"
)

func (s *GormStore) RecordPrices(ctx context.Context, snaps []store.PriceSnapshot) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("gorm store not initialized")
	}
	now := time.Now().Unix()
	models := make([]storemodel.PriceSnapshotModel, 0, len(snaps))
	for _, snap := range snaps {
		asset := store.NormalizeAsset(snap.Asset)
		if asset == "" || snap.Price <= 0 || snap.Timestamp.IsZero() {
			logger.Warnf("price store: skip malformed snapshot asset=%q price=%v", snap.Asset, snap.Price)
			continue
		}
		models = append(models, storemodel.PriceSnapshotModel{
			Asset:         asset,
			Price:         snap.Price,
			Timestamp:     snap.Timestamp.UTC().Unix(),
			Source:        snap.Source,
			CreatedAtUnix: now,
		})
	}
	if len(models) == 0 {
		return 0, nil
	}
	if err := s.db.WithContext(ctx).CreateInBatches(&models, 200).Error; err != nil {
		return 0, fmt.Errorf("recording price snapshots failed: %w", err)
	}
	return len(models), nil
}

func (s *GormStore) NearestPrice(ctx context.Context, asset string, target time.Time, tolerance time.Duration) (store.PriceSnapshot, bool, error) {
	if s == nil || s.db == nil {
		return store.PriceSnapshot{}, false, fmt.Errorf("gorm store not initialized")
	}
	asset = store.NormalizeAsset(asset)
	if asset == "" || tolerance < 0 {
		return store.PriceSnapshot{}, false, nil
	}
	targetSec := target.UTC().Unix()
	tolSec := int64(tolerance.Seconds())
	var m storemodel.PriceSnapshotModel
	// Smallest absolute delta wins; id ASC makes the earlier-recorded row win
	// exact ties. Rows with non-positive price are ignored rather than fatal.
	err := s.db.WithContext(ctx).
		Where("asset = ? AND price > 0 AND timestamp BETWEEN ? AND ?", asset, targetSec-tolSec, targetSec+tolSec).
		Order(fmt.Sprintf("ABS(timestamp - %d) ASC, id ASC", targetSec)).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.PriceSnapshot{}, false, nil
	}
	if err != nil {
		return store.PriceSnapshot{}, false, fmt.Errorf("nearest price lookup failed: %w", err)
	}
	return store.PriceSnapshot{
		Asset:     m.Asset,
		Price:     m.Price,
		Timestamp: time.Unix(m.Timestamp, 0).UTC(),
		Source:    m.Source,
	}, true, nil
}

func (s *GormStore) ListPrices(ctx context.Context, asset string, from, to time.Time) ([]store.PriceSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	asset = store.NormalizeAsset(asset)
	if asset == "" {
		return nil, nil
	}
	var models []storemodel.PriceSnapshotModel
	err := s.db.WithContext(ctx).
		Where("asset = ? AND price > 0 AND timestamp BETWEEN ? AND ?", asset, from.UTC().Unix(), to.UTC().Unix()).
		Order("timestamp ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("listing price snapshots failed: %w", err)
	}
	out := make([]store.PriceSnapshot, 0, len(models))
	for _, m := range models {
		out = append(out, store.PriceSnapshot{
			Asset:     m.Asset,
			Price:     m.Price,
			Timestamp: time.Unix(m.Timestamp, 0).UTC(),
			Source:    m.Source,
		})
	}
	return out, nil
}

func (s *GormStore) PrunePricesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("gorm store not initialized")
	}
	res := s.db.WithContext(ctx).
		Where("timestamp < ?", cutoff.UTC().Unix()).
		Delete(&storemodel.PriceSnapshotModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("pruning price snapshots failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}
