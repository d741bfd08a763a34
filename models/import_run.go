package models

import "time"

const (
	ImportRunStatusProcessing = "processing"
	ImportRunStatusCompleted  = "completed"
	ImportRunStatusCancelled  = "cancelled"
	ImportRunStatusError      = "error"
)

// ImportRun is the audit record for one bulk import execution. It is
// created when the run starts and updated exactly once when the run
// reaches a terminal status.
type ImportRun struct {
	ID                uint       `gorm:"primaryKey;autoIncrement" json:"run_id"`
	FileName          string     `gorm:"column:file_name;type:varchar(255);not null" json:"file_name"`
	Initiator         string     `gorm:"column:initiator;type:varchar(120);not null" json:"initiator"`
	Profile           string     `gorm:"column:profile;type:varchar(20);not null" json:"profile"`
	Status            string     `gorm:"type:enum('processing','completed','cancelled','error');not null;default:'processing'" json:"status"`
	ErrorMessage      *string    `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	TotalRows         uint       `gorm:"column:total_rows;not null;default:0" json:"total_rows"`
	SuccessCount      uint       `gorm:"column:success_count;not null;default:0" json:"success_count"`
	ErrorCount        uint       `gorm:"column:error_count;not null;default:0" json:"error_count"`
	DuplicateCount    uint       `gorm:"column:duplicate_count;not null;default:0" json:"duplicate_count"`
	ContractsDetected uint       `gorm:"column:contracts_detected;not null;default:0" json:"contracts_detected"`
	ContractsInserted uint       `gorm:"column:contracts_inserted;not null;default:0" json:"contracts_inserted"`
	StartedAt         time.Time  `gorm:"column:started_at;autoCreateTime" json:"started_at"`
	CompletedAt       *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (ImportRun) TableName() string { return "import_runs" }

// Terminal reports whether the run has left the processing status.
func (r *ImportRun) Terminal() bool {
	return r.Status != ImportRunStatusProcessing
}
