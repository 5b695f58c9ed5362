package render

import (
	"github.com/yungbote/newsreel-backend/internal/media/timeline"
)

const (
	WorkflowName = "video-render"

	ActivityClaimRender      = "render.ClaimRender"
	ActivityLoadRenderInputs = "render.LoadRenderInputs"
	ActivityBuildTimeline    = "render.BuildTimeline"
	ActivityRenderInSandbox  = "render.RenderInSandbox"
	ActivityCompleteRender   = "render.CompleteRender"
	ActivityMarkFailed       = "render.MarkFailed"
)

type Input struct {
	VideoID uint64 `json:"video_id"`
}

type Result struct {
	Success    bool   `json:"success"`
	VideoID    uint64 `json:"video_id"`
	PublicURL  string `json:"public_url,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

// RenderInputs pairs every slide's still with its narration track and
// measured duration, ordered by slide index.
type RenderInputs struct {
	VideoID uint64                `json:"video_id"`
	Slides  []timeline.SlideInput `json:"slides"`
}

type RenderRequest struct {
	VideoID  uint64             `json:"video_id"`
	Timeline *timeline.Timeline `json:"timeline"`
}

type RenderSummary struct {
	PublicURL  string `json:"public_url"`
	SizeBytes  int64  `json:"size_bytes"`
	DurationMs int64  `json:"duration_ms"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Codec      string `json:"codec"`
}
