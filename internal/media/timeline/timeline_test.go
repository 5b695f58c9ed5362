package timeline

import (
	"fmt"
	"math"
	"testing"
)

func inputs(durations ...int64) []SlideInput {
	out := make([]SlideInput, len(durations))
	for i, d := range durations {
		out[i] = SlideInput{
			SlideIndex: i,
			ImageURL:   fmt.Sprintf("https://cdn.example/slide-%d.png", i),
			AudioURL:   fmt.Sprintf("https://cdn.example/slide-%d.wav", i),
			DurationMs: d,
		}
	}
	return out
}

func TestBuildSixSlideScenario(t *testing.T) {
	durations := []int64{3000, 4500, 3200, 5000, 2800, 4100}
	tl, err := Build(inputs(durations...))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(tl.Segments) != 6 {
		t.Fatalf("expected 6 segments, got %d", len(tl.Segments))
	}
	if tl.DurationMs != 22600 {
		t.Fatalf("total duration = %dms, want 22600ms", tl.DurationMs)
	}
	// 90+135+96+150+84+123
	if tl.TotalFrames != 678 {
		t.Fatalf("total frames = %d, want 678", tl.TotalFrames)
	}

	wantFrames := []int{90, 135, 96, 150, 84, 123}
	start := 0
	for i, seg := range tl.Segments {
		if seg.FrameCount != wantFrames[i] {
			t.Fatalf("segment %d: frame count %d, want %d", i, seg.FrameCount, wantFrames[i])
		}
		if seg.StartFrame != start {
			t.Fatalf("segment %d: start %d, want cumulative %d", i, seg.StartFrame, start)
		}
		if got := seg.AudioStart; math.Abs(got-float64(start)/30) > 1e-9 {
			t.Fatalf("segment %d: audio offset %f does not match start frame %d", i, got, start)
		}
		start += seg.FrameCount
	}
}

func TestFrameCountRoundsUp(t *testing.T) {
	for _, tc := range []struct {
		ms   int64
		want int
	}{
		{1000, 30},
		{1001, 31},
		{999, 30},
		{33, 1},
		{34, 2},
		{3200, 96},
	} {
		if got := FrameCount(tc.ms); got != tc.want {
			t.Fatalf("FrameCount(%d) = %d, want %d", tc.ms, got, tc.want)
		}
	}
}

func TestBuildNoOverlapNoGaps(t *testing.T) {
	durations := []int64{750, 1212, 90, 4999, 2038, 61, 33}
	tl, err := Build(inputs(durations...))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	sum := 0
	for i, seg := range tl.Segments {
		if seg.StartFrame != sum {
			t.Fatalf("segment %d: start %d, want %d", i, seg.StartFrame, sum)
		}
		sum += seg.FrameCount
	}
	if tl.TotalFrames != sum {
		t.Fatalf("total frames %d != cumulative %d", tl.TotalFrames, sum)
	}
}

func TestZoomAlternatesByParity(t *testing.T) {
	tl, err := Build(inputs(2000, 2000, 2000))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, seg := range tl.Segments {
		if seg.SlideIndex%2 == 0 {
			if seg.ZoomFrom != 1.0 || seg.ZoomTo != 1.2 {
				t.Fatalf("even slide %d: zoom %f->%f, want in 1.0->1.2", seg.SlideIndex, seg.ZoomFrom, seg.ZoomTo)
			}
		} else {
			if seg.ZoomFrom != 1.2 || seg.ZoomTo != 1.0 {
				t.Fatalf("odd slide %d: zoom %f->%f, want out 1.2->1.0", seg.SlideIndex, seg.ZoomFrom, seg.ZoomTo)
			}
		}
	}

	first := tl.Segments[0]
	if got := first.ZoomAt(first.StartFrame); got != 1.0 {
		t.Fatalf("zoom at first frame = %f, want 1.0", got)
	}
	if got := first.ZoomAt(first.StartFrame + first.FrameCount - 1); math.Abs(got-1.2) > 1e-9 {
		t.Fatalf("zoom at last frame = %f, want 1.2", got)
	}
}

func TestFadesSkipFirstInAndLastOut(t *testing.T) {
	tl, err := Build(inputs(2000, 2000, 2000))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if tl.Segments[0].FadeIn {
		t.Fatal("first slide must not fade in")
	}
	if tl.Segments[len(tl.Segments)-1].FadeOut {
		t.Fatal("last slide must not fade out")
	}
	mid := tl.Segments[1]
	if !mid.FadeIn || !mid.FadeOut {
		t.Fatal("middle slide must fade both ways")
	}

	// Linear ramp over one second, clamped outside.
	if got := mid.OpacityAt(mid.StartFrame); got != 0 {
		t.Fatalf("opacity at fade-in start = %f, want 0", got)
	}
	if got := mid.OpacityAt(mid.StartFrame + FadeFrames/2); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("opacity mid fade-in = %f, want 0.5", got)
	}
	if got := mid.OpacityAt(mid.StartFrame + FadeFrames); got != 1 {
		t.Fatalf("opacity after fade-in = %f, want 1", got)
	}
	if got := mid.OpacityAt(mid.StartFrame + mid.FrameCount); got != 0 {
		t.Fatalf("opacity at segment end = %f, want 0", got)
	}
	if got := mid.OpacityAt(mid.StartFrame - 10); got != 0 {
		t.Fatalf("opacity before segment = %f, want clamp to 0", got)
	}
}

func TestBuildRejectsMissingInputs(t *testing.T) {
	if _, err := Build(nil); err == nil {
		t.Fatal("expected error for empty timeline")
	}

	bad := inputs(1000, 1000)
	bad[1].DurationMs = 0
	if _, err := Build(bad); err == nil {
		t.Fatal("expected error for missing duration")
	}

	bad = inputs(1000, 1000)
	bad[0].ImageURL = ""
	if _, err := Build(bad); err == nil {
		t.Fatal("expected error for missing image")
	}
}
