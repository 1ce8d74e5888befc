package model

import "gorm.io/datatypes"

type DecisionStatus int

const (
	DecisionStatusOpen      DecisionStatus = 0
	DecisionStatusEvaluated DecisionStatus = 1
)

// PriceSnapshotModel maps to 'price_snapshots'. Rows are append-only; the id
// column doubles as the recording order for nearest-price tie-breaks.
type PriceSnapshotModel struct {
	ID            int64   `gorm:"column:id;primaryKey"`
	Asset         string  `gorm:"column:asset;index:idx_price_asset_ts,priority:1"`
	Price         float64 `gorm:"column:price"`
	Timestamp     int64   `gorm:"column:timestamp;index:idx_price_asset_ts,priority:2"`
	Source        string  `gorm:"column:source"`
	CreatedAtUnix int64   `gorm:"column:created_at"`
}

func (PriceSnapshotModel) TableName() string { return "price_snapshots" }

// DecisionModel maps to 'decisions'. The unique index enforces the
// (asset, day, source) dedupe key.
type DecisionModel struct {
	ID              int64          `gorm:"column:id;primaryKey"`
	Asset           string         `gorm:"column:asset;uniqueIndex:idx_decision_key,priority:1"`
	Day             string         `gorm:"column:day;uniqueIndex:idx_decision_key,priority:2"`
	Source          string         `gorm:"column:source;uniqueIndex:idx_decision_key,priority:3"`
	Action          string         `gorm:"column:action"`
	DecisionTime    int64          `gorm:"column:decision_time"`
	ReferencePrice  *float64       `gorm:"column:reference_price"`
	HorizonDays     *int           `gorm:"column:horizon_days"`
	Confidence      *float64       `gorm:"column:confidence"`
	Reason          string         `gorm:"column:reason"`
	Status          DecisionStatus `gorm:"column:status;index"`
	RetryCount      int            `gorm:"column:retry_count"`
	EvaluatedAtUnix *int64         `gorm:"column:evaluated_at"`
	RealizedPercent *float64       `gorm:"column:realized_percent"`
	EvalNote        string         `gorm:"column:eval_note"`
	Meta            datatypes.JSON `gorm:"column:meta;type:TEXT"`
	CreatedAtUnix   int64          `gorm:"column:created_at"`
	UpdatedAtUnix   int64          `gorm:"column:updated_at"`
}

func (DecisionModel) TableName() string { return "decisions" }

// LearningRecordModel maps to 'learning_records'. Append-only.
type LearningRecordModel struct {
	ID              int64   `gorm:"column:id;primaryKey"`
	Timestamp       int64   `gorm:"column:timestamp;index"`
	Asset           string  `gorm:"column:asset;index"`
	Action          string  `gorm:"column:action"`
	RealizedPercent float64 `gorm:"column:realized_percent"`
	Correct         bool    `gorm:"column:correct"`
	HorizonDays     int     `gorm:"column:horizon_days"`
	Origin          string  `gorm:"column:origin"`
	PassID          string  `gorm:"column:pass_id"`
	CreatedAtUnix   int64   `gorm:"column:created_at"`
}

func (LearningRecordModel) TableName() string { return "learning_records" }
