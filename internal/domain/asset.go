package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type AssetType string

const (
	AssetTypeGridImage      AssetType = "grid_image"
	AssetTypeSlideImage     AssetType = "slide_image"
	AssetTypeThumbnailImage AssetType = "thumbnail_image"
	AssetTypeSlideAudio     AssetType = "slide_audio"
	AssetTypePromptText     AssetType = "prompt_text"
	AssetTypeRenderedVideo  AssetType = "rendered_video"
)

// GeneratedAsset is one physical artifact produced by a pipeline run. The set
// of rows per (video, asset_type) is always a complete replacement of the
// previous generation, never a merge.
type GeneratedAsset struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	VideoID    uint64         `gorm:"column:video_id;not null;index;uniqueIndex:ux_asset_video_type_index" json:"video_id"`
	AssetType  AssetType      `gorm:"column:asset_type;not null;uniqueIndex:ux_asset_video_type_index" json:"asset_type"`
	AssetIndex int            `gorm:"column:asset_index;not null;default:0;uniqueIndex:ux_asset_video_type_index" json:"asset_index"`
	StorageKey string         `gorm:"column:storage_key;not null" json:"storage_key"`
	PublicURL  string         `gorm:"column:public_url;not null" json:"public_url"`
	MimeType   string         `gorm:"column:mime_type;not null" json:"mime_type"`
	SizeBytes  int64          `gorm:"column:size_bytes;not null;default:0" json:"size_bytes"`
	Metadata   datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (GeneratedAsset) TableName() string { return "generated_assets" }

// CropRect is a pixel rectangle inside the decoded grid image.
type CropRect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// GridCell maps one of the nine tiles of a composite image to a slide, the
// thumbnail, or an intentionally blank filler.
type GridCell struct {
	Index      int      `json:"index"`
	SlideIndex *int     `json:"slide_index,omitempty"`
	Thumbnail  bool     `json:"thumbnail,omitempty"`
	Empty      bool     `json:"empty,omitempty"`
	Crop       CropRect `json:"crop"`
}

// GridLayout is the metadata blob of a grid_image asset. Crops are always
// recomputed from the decoded pixel dimensions, since generation services may
// return a slightly different size than requested.
type GridLayout struct {
	Cells       []GridCell `json:"cells"`
	ImageWidth  int        `json:"image_width"`
	ImageHeight int        `json:"image_height"`
}

// ImageMetadata is the metadata blob of slide_image and thumbnail_image assets.
type ImageMetadata struct {
	SlideIndex int    `json:"slide_index"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Model      string `json:"model,omitempty"`
	Thumbnail  bool   `json:"thumbnail,omitempty"`
}

// AudioMetadata is the metadata blob of slide_audio assets. DurationMs is
// derived from the raw sample byte count, never taken from the API response.
type AudioMetadata struct {
	SlideIndex int    `json:"slide_index"`
	Voice      string `json:"voice"`
	DurationMs int64  `json:"duration_ms"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	BitDepth   int    `json:"bit_depth"`
}

// RenderMetadata is the metadata blob of rendered_video assets.
type RenderMetadata struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	DurationMs int64   `json:"duration_ms"`
	Codec      string  `json:"codec"`
	FrameRate  float64 `json:"frame_rate"`
	SlideCount int     `json:"slide_count"`
}

// EncodeMetadata writes a typed metadata blob onto the asset row. The schema
// is keyed by AssetType; callers must pass the matching struct.
func (a *GeneratedAsset) EncodeMetadata(meta any) error {
	if meta == nil {
		a.Metadata = nil
		return nil
	}
	switch a.AssetType {
	case AssetTypeGridImage:
		if _, ok := meta.(GridLayout); !ok {
			return fmt.Errorf("asset metadata: %s expects GridLayout, got %T", a.AssetType, meta)
		}
	case AssetTypeSlideImage, AssetTypeThumbnailImage:
		if _, ok := meta.(ImageMetadata); !ok {
			return fmt.Errorf("asset metadata: %s expects ImageMetadata, got %T", a.AssetType, meta)
		}
	case AssetTypeSlideAudio:
		if _, ok := meta.(AudioMetadata); !ok {
			return fmt.Errorf("asset metadata: %s expects AudioMetadata, got %T", a.AssetType, meta)
		}
	case AssetTypeRenderedVideo:
		if _, ok := meta.(RenderMetadata); !ok {
			return fmt.Errorf("asset metadata: %s expects RenderMetadata, got %T", a.AssetType, meta)
		}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("asset metadata: encode %s: %w", a.AssetType, err)
	}
	a.Metadata = datatypes.JSON(raw)
	return nil
}

func (a *GeneratedAsset) GridLayout() (GridLayout, error) {
	var out GridLayout
	if a.AssetType != AssetTypeGridImage {
		return out, fmt.Errorf("asset %s: grid layout requested on %s asset", a.ID, a.AssetType)
	}
	if err := json.Unmarshal(a.Metadata, &out); err != nil {
		return out, fmt.Errorf("asset %s: decode grid layout: %w", a.ID, err)
	}
	return out, nil
}

func (a *GeneratedAsset) AudioMetadata() (AudioMetadata, error) {
	var out AudioMetadata
	if a.AssetType != AssetTypeSlideAudio {
		return out, fmt.Errorf("asset %s: audio metadata requested on %s asset", a.ID, a.AssetType)
	}
	if err := json.Unmarshal(a.Metadata, &out); err != nil {
		return out, fmt.Errorf("asset %s: decode audio metadata: %w", a.ID, err)
	}
	return out, nil
}

func (a *GeneratedAsset) ImageMetadata() (ImageMetadata, error) {
	var out ImageMetadata
	if a.AssetType != AssetTypeSlideImage && a.AssetType != AssetTypeThumbnailImage {
		return out, fmt.Errorf("asset %s: image metadata requested on %s asset", a.ID, a.AssetType)
	}
	if err := json.Unmarshal(a.Metadata, &out); err != nil {
		return out, fmt.Errorf("asset %s: decode image metadata: %w", a.ID, err)
	}
	return out, nil
}

func (a *GeneratedAsset) RenderMetadata() (RenderMetadata, error) {
	var out RenderMetadata
	if a.AssetType != AssetTypeRenderedVideo {
		return out, fmt.Errorf("asset %s: render metadata requested on %s asset", a.ID, a.AssetType)
	}
	if err := json.Unmarshal(a.Metadata, &out); err != nil {
		return out, fmt.Errorf("asset %s: decode render metadata: %w", a.ID, err)
	}
	return out, nil
}
