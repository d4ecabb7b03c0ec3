package database

import (
	"time"

	"gorm.io/gorm"
)

// DecodeRun represents one run of the decode pipeline, from input open
// to input exhaustion or shutdown.
type DecodeRun struct {
	ID               uint       `gorm:"primarykey" json:"id"`
	Source           string     `gorm:"size:255;not null" json:"source"`
	StartedAt        time.Time  `gorm:"index;not null" json:"started_at"`
	FinishedAt       *time.Time `gorm:"index" json:"finished_at"`
	Segments         uint64     `gorm:"default:0" json:"segments"`
	Windows          uint64     `gorm:"default:0" json:"windows"`
	BytesOut         uint64     `gorm:"default:0" json:"bytes_out"`
	Resets           uint64     `gorm:"default:0" json:"resets"`
	MetadataFaults   uint64     `gorm:"default:0" json:"metadata_faults"`
	MeanBranchMetric float64    `gorm:"default:0" json:"mean_branch_metric"`
	CreatedAt        time.Time  `json:"created_at"`
}

// TableName specifies the table name for DecodeRun
func (DecodeRun) TableName() string {
	return "decode_runs"
}

// BeforeCreate hook to ensure timestamps are set
func (d *DecodeRun) BeforeCreate(tx *gorm.DB) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	if d.StartedAt.IsZero() {
		d.StartedAt = time.Now()
	}
	return nil
}

// Finished reports whether the run has completed
func (d *DecodeRun) Finished() bool {
	return d.FinishedAt != nil
}

// BranchMetricSample records the best path metric of one trellis
// branch at a point in time, for signal quality history.
type BranchMetricSample struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	DecodeRunID uint      `gorm:"index;not null" json:"decode_run_id"`
	Branch      int       `gorm:"index;not null" json:"branch"`
	Metric      float64   `gorm:"not null" json:"metric"`
	SampledAt   time.Time `gorm:"index;not null" json:"sampled_at"`
}

// TableName specifies the table name for BranchMetricSample
func (BranchMetricSample) TableName() string {
	return "branch_metric_samples"
}

// BeforeCreate hook to ensure SampledAt is set
func (s *BranchMetricSample) BeforeCreate(tx *gorm.DB) error {
	if s.SampledAt.IsZero() {
		s.SampledAt = time.Now()
	}
	return nil
}
