package rdb

import "time"

// RunRecord is the RDB persistence model for domain Run.
// Table name: runs
type RunRecord struct {
	ID          string    `gorm:"primaryKey;type:text;not null"`
	WorkspaceID string    `gorm:"type:text;not null;index"`
	Operation   string    `gorm:"type:text;not null"`
	Args        string    `gorm:"type:text"` // JSON encoded []string
	ExitCode    int       `gorm:"not null"`
	Stdout      string    `gorm:"type:text"`
	Stderr      string    `gorm:"type:text"`
	Success     bool      `gorm:"not null"`
	Changes     bool      `gorm:"not null"`
	StartedAt   time.Time `gorm:"not null;index"`
	FinishedAt  time.Time `gorm:"not null"`
}

func (RunRecord) TableName() string { return "runs" }

// ChangeRecord is the RDB persistence model for domain FileChange.
// Table name: file_changes
type ChangeRecord struct {
	Seq       uint      `gorm:"primaryKey;autoIncrement"`
	ProjectID string    `gorm:"type:text;not null;index"`
	Timestamp time.Time `gorm:"not null"`
	FilePath  string    `gorm:"type:text;not null"`
	Operation string    `gorm:"type:text;not null"`
	OldHash   string    `gorm:"type:text"`
	NewHash   string    `gorm:"type:text"`
	Summary   string    `gorm:"type:text"`
}

func (ChangeRecord) TableName() string { return "file_changes" }
