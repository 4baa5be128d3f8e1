// Package models defines the persisted database models of the relay.
package models

import (
	"time"

	"gorm.io/datatypes"
)

// SessionLog is the per-request summary row written after each relayed chat
// completion. Parts holds the emitted output events as JSON; RequestBody is
// stored encrypted when body capture is enabled.
type SessionLog struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	SessionID     string         `gorm:"type:varchar(64);uniqueIndex" json:"session_id"`
	Model         string         `gorm:"type:varchar(128);index" json:"model"`
	ClientIP      string         `gorm:"type:varchar(64)" json:"client_ip"`
	UpstreamAddr  string         `gorm:"type:varchar(512)" json:"upstream_addr"`
	StatusCode    int            `json:"status_code"`
	FinishReason  string         `gorm:"type:varchar(32)" json:"finish_reason"`
	TextChars     int            `json:"text_chars"`
	ThinkingChars int            `json:"thinking_chars"`
	ToolCalls     int            `json:"tool_calls"`
	DroppedLines  int            `json:"dropped_lines"`
	DurationMs    int64          `json:"duration_ms"`
	ErrorMessage  string         `gorm:"type:varchar(2048)" json:"error_message,omitempty"`
	Parts         datatypes.JSON `gorm:"type:json" json:"parts,omitempty"`
	RequestBody   string         `gorm:"type:text" json:"-"`
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`
}

// TableName sets the table name for SessionLog.
func (SessionLog) TableName() string {
	return "session_logs"
}
