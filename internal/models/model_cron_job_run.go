package models

import (
	"time"

	"gorm.io/datatypes"
)

// CronJobRun records one execution of a named scheduled job. Append-only:
// a run is written once when it finishes and then only queried.
type CronJobRun struct {
	ID        string     `gorm:"column:id;type:uuid;primary_key" json:"id"`
	JobName   string     `gorm:"column:job_name;type:varchar(64);not null;index:idx_job_name_started_at,priority:1" json:"job_name"`
	StartedAt time.Time  `gorm:"column:started_at;not null;index:idx_job_name_started_at,priority:2,sort:desc" json:"started_at"`
	FinishedAt *time.Time `gorm:"column:finished_at;default:null" json:"finished_at"`
	Success   bool       `gorm:"column:success;not null" json:"success"`
	// Processed/Failed are summary counters, e.g. memberships expired or
	// renewals attempted during the run.
	Processed int                `gorm:"column:processed;not null;default:0" json:"processed"`
	Failed    int                `gorm:"column:failed;not null;default:0" json:"failed"`
	Error     string             `gorm:"column:error;type:text" json:"error,omitempty"`
	Counters  datatypes.JSONMap  `gorm:"column:counters;type:jsonb;default:'{}'" json:"counters"`
	CreatedAt time.Time          `json:"created_at"`
}

func (CronJobRun) TableName() string {
	return "cron_job_runs"
}

func (r *CronJobRun) Duration() time.Duration {
	if r == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
