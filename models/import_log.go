package models

import "time"

// ImportLog is the generic audit trail written once at run start and
// once at the terminal state. Purely observability; never read by the
// pipeline itself.
type ImportLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID     uint      `gorm:"column:run_id;index;not null" json:"run_id"`
	Action    string    `gorm:"column:action;type:varchar(40);not null" json:"action"`
	Message   string    `gorm:"column:message;type:text" json:"message"`
	Initiator string    `gorm:"column:initiator;type:varchar(120)" json:"initiator"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (ImportLog) TableName() string { return "import_logs" }
