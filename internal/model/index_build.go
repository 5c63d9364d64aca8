package model

import "time"

// IndexBuild is one successful ProcessDocuments run.
type IndexBuild struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	BuildID    string    `gorm:"size:36;not null;uniqueIndex" json:"build_id"`
	IndexName  string    `gorm:"size:128;not null;index" json:"index_name"`
	Model      string    `gorm:"size:128;not null" json:"model"`
	Metric     string    `gorm:"size:16;not null" json:"metric"`
	Dimension  int       `gorm:"not null" json:"dimension"`
	Documents  int       `gorm:"not null" json:"documents"`
	ChunkCount int       `gorm:"not null" json:"chunk_count"`
	Truncated  int       `gorm:"not null" json:"truncated"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
