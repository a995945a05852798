package models

import "time"

// Sequence holds one counter per document kind and day.
type Sequence struct {
	Kind         SequenceKind `gorm:"primaryKey;size:32" json:"kind"`
	Period       string       `gorm:"primaryKey;size:8" json:"period"`
	CurrentValue int64        `gorm:"not null;default:0" json:"current_value"`
	UpdatedAt    time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}
