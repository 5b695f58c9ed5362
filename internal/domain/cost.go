package domain

import (
	"time"

	"github.com/google/uuid"
)

type CostKind string

const (
	CostKindImage CostKind = "image"
	CostKindAudio CostKind = "audio"
)

// CostLogEntry is one billable generation call. The table is append-only; the
// video's total_cost column is always recomputed as the sum over its entries.
type CostLogEntry struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	VideoID      uint64    `gorm:"column:video_id;not null;index" json:"video_id"`
	Kind         CostKind  `gorm:"column:kind;not null" json:"kind"`
	Model        string    `gorm:"column:model;not null" json:"model"`
	InputTokens  int       `gorm:"column:input_tokens;not null;default:0" json:"input_tokens"`
	OutputTokens int       `gorm:"column:output_tokens;not null;default:0" json:"output_tokens"`
	// Estimated marks entries whose token counts came from the model-tier
	// fallback table because the API omitted usage counters.
	Estimated bool      `gorm:"column:estimated;not null;default:false" json:"estimated"`
	Cost      float64   `gorm:"column:cost;not null;default:0" json:"cost"`
	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (CostLogEntry) TableName() string { return "cost_log_entries" }
