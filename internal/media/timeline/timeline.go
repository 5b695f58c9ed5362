package timeline

import (
	"fmt"
)

const (
	// FPS is the fixed composition frame rate.
	FPS = 30
	// FadeFrames is the fixed fade length: one second of frames.
	FadeFrames = FPS
)

// SlideInput is one slide's media plus its measured narration duration.
type SlideInput struct {
	SlideIndex int
	ImageURL   string
	AudioURL   string
	DurationMs int64
}

// Segment is one slide's placement on the render timeline. Slides sit
// back-to-back: a segment's start frame is the exact cumulative sum of the
// preceding frame counts, with no overlap and no gaps. Audio offsets follow
// the same arithmetic, so narration stays in sync with its image.
type Segment struct {
	SlideIndex int     `json:"slide_index"`
	ImageURL   string  `json:"image_url"`
	AudioURL   string  `json:"audio_url"`
	StartFrame int     `json:"start_frame"`
	FrameCount int     `json:"frame_count"`
	AudioStart float64 `json:"audio_start_sec"`

	// Ken Burns zoom alternates by slide parity: even slides zoom in
	// 1.0 -> 1.2, odd slides zoom out 1.2 -> 1.0 across their duration.
	ZoomFrom float64 `json:"zoom_from"`
	ZoomTo   float64 `json:"zoom_to"`

	// One-second opacity fades at segment boundaries; the first slide skips
	// its fade-in, the last skips its fade-out.
	FadeIn  bool `json:"fade_in"`
	FadeOut bool `json:"fade_out"`
}

// Timeline is the full composition handed to the external renderer.
type Timeline struct {
	FPS         int       `json:"fps"`
	Segments    []Segment `json:"segments"`
	TotalFrames int       `json:"total_frames"`
	DurationMs  int64     `json:"duration_ms"`
}

// FrameCount converts a narration duration to frames, rounding up so audio is
// never truncated.
func FrameCount(durationMs int64) int {
	return int((durationMs*FPS + 999) / 1000)
}

// Build places slides back-to-back at 30 fps. Every input must carry a
// positive measured duration; a missing duration is a data-integrity failure,
// not something to paper over.
func Build(inputs []SlideInput) (*Timeline, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("timeline: no slides")
	}

	tl := &Timeline{FPS: FPS, Segments: make([]Segment, 0, len(inputs))}
	startFrame := 0
	for i, in := range inputs {
		if in.DurationMs <= 0 {
			return nil, fmt.Errorf("timeline: slide %d has no audio duration", in.SlideIndex)
		}
		if in.ImageURL == "" {
			return nil, fmt.Errorf("timeline: slide %d has no image", in.SlideIndex)
		}
		if in.AudioURL == "" {
			return nil, fmt.Errorf("timeline: slide %d has no audio", in.SlideIndex)
		}

		seg := Segment{
			SlideIndex: in.SlideIndex,
			ImageURL:   in.ImageURL,
			AudioURL:   in.AudioURL,
			StartFrame: startFrame,
			FrameCount: FrameCount(in.DurationMs),
			AudioStart: float64(startFrame) / FPS,
			FadeIn:     i > 0,
			FadeOut:    i < len(inputs)-1,
		}
		if in.SlideIndex%2 == 0 {
			seg.ZoomFrom, seg.ZoomTo = 1.0, 1.2
		} else {
			seg.ZoomFrom, seg.ZoomTo = 1.2, 1.0
		}

		tl.Segments = append(tl.Segments, seg)
		startFrame += seg.FrameCount
		tl.DurationMs += in.DurationMs
	}
	tl.TotalFrames = startFrame
	return tl, nil
}

// OpacityAt returns the segment's opacity at an absolute frame. Fades are
// linear over FadeFrames and clamp to the boundary value outside their range.
func (s Segment) OpacityAt(frame int) float64 {
	opacity := 1.0
	local := frame - s.StartFrame
	if s.FadeIn {
		v := float64(local) / FadeFrames
		opacity = opacity * clamp01(v)
	}
	if s.FadeOut {
		v := float64(s.FrameCount-local) / FadeFrames
		opacity = opacity * clamp01(v)
	}
	return opacity
}

// ZoomAt returns the segment's scale factor at an absolute frame, linearly
// interpolated across the segment's duration.
func (s Segment) ZoomAt(frame int) float64 {
	if s.FrameCount <= 1 {
		return s.ZoomFrom
	}
	progress := clamp01(float64(frame-s.StartFrame) / float64(s.FrameCount-1))
	return s.ZoomFrom + (s.ZoomTo-s.ZoomFrom)*progress
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
