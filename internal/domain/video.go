package domain

import (
	"time"

	"gorm.io/datatypes"
)

type VideoType string

const (
	VideoTypeShort VideoType = "short"
	VideoTypeLong  VideoType = "long"
)

// Per-stage status enums. Each stage column advances independently; the
// terminal value of one stage is the precondition of the next.
const (
	ScriptStatusPending   = "pending"
	ScriptStatusGenerated = "generated"

	AssetStatusPending    = "pending"
	AssetStatusGenerating = "generating"
	AssetStatusGenerated  = "generated"
	AssetStatusError      = "error"

	RenderStatusPending   = "pending"
	RenderStatusRendering = "rendering"
	RenderStatusRendered  = "rendered"
	RenderStatusError     = "error"

	UploadStatusPending = "pending"
	UploadStatusBlocked = "blocked"
)

// Video is one video job, advanced stage-by-stage by the pipelines. The
// status columns are the durable, externally observable pipeline state.
type Video struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	VideoType VideoType `gorm:"column:video_type;not null;default:'short'" json:"video_type"`

	ScriptStatus string `gorm:"column:script_status;not null;default:'pending';index" json:"script_status"`
	AssetStatus  string `gorm:"column:asset_status;not null;default:'pending';index" json:"asset_status"`
	RenderStatus string `gorm:"column:render_status;not null;default:'pending';index" json:"render_status"`
	UploadStatus string `gorm:"column:upload_status;not null;default:'pending';index" json:"upload_status"`

	AssetError  string `gorm:"column:asset_error" json:"asset_error,omitempty"`
	RenderError string `gorm:"column:render_error" json:"render_error,omitempty"`

	ImageModel string `gorm:"column:image_model;not null" json:"image_model"`
	TTSModel   string `gorm:"column:tts_model;not null" json:"tts_model"`
	// Chosen once by the asset pipeline and pinned for the whole video so a
	// retry never mixes narration voices.
	TTSVoice string `gorm:"column:tts_voice" json:"tts_voice,omitempty"`

	ArticleID        string         `gorm:"column:article_id;index" json:"article_id"`
	ArticleTitle     string         `gorm:"column:article_title" json:"article_title"`
	ArticleText      string         `gorm:"column:article_text;type:text" json:"article_text,omitempty"`
	ArticleImageURLs datatypes.JSON `gorm:"column:article_image_urls;type:jsonb" json:"article_image_urls,omitempty"`

	// Always rewritten from the cost-log sum, never incremented in place.
	TotalCost float64 `gorm:"column:total_cost;not null;default:0" json:"total_cost"`

	BlockReasons datatypes.JSON `gorm:"column:block_reasons;type:jsonb" json:"block_reasons,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Video) TableName() string { return "videos" }
