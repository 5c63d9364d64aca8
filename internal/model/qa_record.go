package model

import "time"

type QARecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BuildID   string    `gorm:"size:36;index" json:"build_id"`
	Question  string    `gorm:"type:text;not null" json:"question"`
	Answer    string    `gorm:"type:text" json:"answer"`
	Outcome   string    `gorm:"size:32;not null;index" json:"outcome"`
	Sources   int       `json:"sources"`
	Cached    bool      `json:"cached"`
	LatencyMS int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}
