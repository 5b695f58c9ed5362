package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Slide is one narrated, timed segment of the final video. Slides are
// immutable once the script stage has finished.
type Slide struct {
	Index                int     `json:"index"`
	Headline             string  `json:"headline"`
	ImageDescription     string  `json:"image_description"`
	Narration            string  `json:"narration"`
	EstimatedDurationSec float64 `json:"estimated_duration_sec"`
	DirectorNotes        string  `json:"director_notes,omitempty"`
}

// VideoScript is the read-only input of the asset pipeline: an ordered slide
// list plus one thumbnail description, written once by the script stage.
type VideoScript struct {
	ID                   uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	VideoID              uint64         `gorm:"column:video_id;not null;uniqueIndex" json:"video_id"`
	Slides               datatypes.JSON `gorm:"column:slides;type:jsonb;not null" json:"slides"`
	ThumbnailDescription string         `gorm:"column:thumbnail_description;type:text" json:"thumbnail_description"`
	CreatedAt            time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (VideoScript) TableName() string { return "video_scripts" }

func (s *VideoScript) DecodeSlides() ([]Slide, error) {
	if len(s.Slides) == 0 {
		return nil, fmt.Errorf("video script %s: empty slides", s.ID)
	}
	var out []Slide
	if err := json.Unmarshal(s.Slides, &out); err != nil {
		return nil, fmt.Errorf("video script %s: decode slides: %w", s.ID, err)
	}
	return out, nil
}

func (s *VideoScript) SetSlides(slides []Slide) error {
	raw, err := json.Marshal(slides)
	if err != nil {
		return err
	}
	s.Slides = datatypes.JSON(raw)
	return nil
}
