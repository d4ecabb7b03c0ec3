package database

import (
	"time"

	"gorm.io/gorm"
)

// DecodeRunRepository handles decode run database operations
type DecodeRunRepository struct {
	db *gorm.DB
}

// NewDecodeRunRepository creates a new decode run repository
func NewDecodeRunRepository(db *gorm.DB) *DecodeRunRepository {
	return &DecodeRunRepository{db: db}
}

// Create adds a new decode run record
func (r *DecodeRunRepository) Create(run *DecodeRun) error {
	return r.db.Create(run).Error
}

// Finish marks a run completed and stores its final counters
func (r *DecodeRunRepository) Finish(run *DecodeRun) error {
	if run.FinishedAt == nil {
		now := time.Now()
		run.FinishedAt = &now
	}
	return r.db.Save(run).Error
}

// AddSample records a branch metric sample for a run
func (r *DecodeRunRepository) AddSample(sample *BranchMetricSample) error {
	return r.db.Create(sample).Error
}

// AddSamples records one sample per branch in a single batch
func (r *DecodeRunRepository) AddSamples(runID uint, branchMetrics []float64) error {
	if len(branchMetrics) == 0 {
		return nil
	}
	now := time.Now()
	samples := make([]BranchMetricSample, len(branchMetrics))
	for i, m := range branchMetrics {
		samples[i] = BranchMetricSample{
			DecodeRunID: runID,
			Branch:      i,
			Metric:      m,
			SampledAt:   now,
		}
	}
	return r.db.Create(&samples).Error
}

// GetRecent retrieves the most recent N decode runs
func (r *DecodeRunRepository) GetRecent(limit int) ([]DecodeRun, error) {
	var runs []DecodeRun
	err := r.db.Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// GetByID retrieves a single decode run
func (r *DecodeRunRepository) GetByID(id uint) (*DecodeRun, error) {
	var run DecodeRun
	if err := r.db.First(&run, id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// GetSamples retrieves the samples for a run, oldest first
func (r *DecodeRunRepository) GetSamples(runID uint, limit int) ([]BranchMetricSample, error) {
	var samples []BranchMetricSample
	err := r.db.Where("decode_run_id = ?", runID).
		Order("sampled_at ASC").
		Limit(limit).
		Find(&samples).Error
	return samples, err
}

// GetSamplesByBranch retrieves the samples for one branch of a run
func (r *DecodeRunRepository) GetSamplesByBranch(runID uint, branch, limit int) ([]BranchMetricSample, error) {
	var samples []BranchMetricSample
	err := r.db.Where("decode_run_id = ? AND branch = ?", runID, branch).
		Order("sampled_at ASC").
		Limit(limit).
		Find(&samples).Error
	return samples, err
}

// DeleteOlderThan deletes runs started before the specified time,
// along with their samples
func (r *DecodeRunRepository) DeleteOlderThan(before time.Time) (int64, error) {
	var ids []uint
	if err := r.db.Model(&DecodeRun{}).
		Where("started_at < ?", before).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := r.db.Where("decode_run_id IN ?", ids).Delete(&BranchMetricSample{}).Error; err != nil {
		return 0, err
	}
	result := r.db.Where("id IN ?", ids).Delete(&DecodeRun{})
	return result.RowsAffected, result.Error
}
