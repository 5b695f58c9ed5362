package assetgen

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/fogleman/gg"

	types "github.com/yungbote/newsreel-backend/internal/domain"
	"github.com/yungbote/newsreel-backend/internal/platform/gemini"
	"github.com/yungbote/newsreel-backend/internal/platform/logger"
)

// fakeImageClient returns a canned raster for every request and records what
// was asked for. failOn matches against the prompt to fail selected slides.
type fakeImageClient struct {
	mu       sync.Mutex
	requests []gemini.ImageRequest
	data     []byte
	failOn   string
}

func (f *fakeImageClient) GenerateImage(_ context.Context, req gemini.ImageRequest) (*gemini.ImageResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.failOn != "" && strings.Contains(req.Prompt, f.failOn) {
		return nil, fmt.Errorf("generation quota exceeded")
	}
	return &gemini.ImageResult{Data: f.data, MimeType: "image/png", Usage: gemini.Usage{InputTokens: 10, OutputTokens: 20}}, nil
}

func (f *fakeImageClient) GenerateSpeech(context.Context, gemini.SpeechRequest) (*gemini.SpeechResult, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeImageClient) AnalyzeJSON(context.Context, gemini.AnalysisRequest) ([]byte, gemini.Usage, error) {
	return nil, gemini.Usage{}, fmt.Errorf("not implemented")
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	dc := gg.NewContext(w, h)
	dc.SetRGB(0.2, 0.4, 0.6)
	dc.Clear()
	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func testSlides(n int) []types.Slide {
	slides := make([]types.Slide, n)
	for i := range slides {
		slides[i] = types.Slide{Index: i, ImageDescription: fmt.Sprintf("scene %d", i), Narration: fmt.Sprintf("line %d", i)}
	}
	return slides
}

func TestSingleImageryAspectFollowsVideoType(t *testing.T) {
	for _, tc := range []struct {
		videoType types.VideoType
		aspect    string
		phrase    string
	}{
		{types.VideoTypeShort, "9:16", "vertical 9:16"},
		{types.VideoTypeLong, "16:9", "widescreen 16:9"},
	} {
		client := &fakeImageClient{data: pngBytes(t, 120, 90)}
		strategy := &singleImagery{log: testLogger(t), client: client, model: "gemini-2.5-flash"}

		out, err := strategy.Generate(context.Background(), ImageryJob{
			VideoID:      1,
			VideoType:    tc.videoType,
			ArticleTitle: "headline",
			Slides:       testSlides(2),
		})
		if err != nil {
			t.Fatalf("%s: Generate: %v", tc.videoType, err)
		}
		if len(out.Slides) != 2 {
			t.Fatalf("%s: expected 2 slides, got %d", tc.videoType, len(out.Slides))
		}
		for _, req := range client.requests {
			if req.AspectRatio != tc.aspect {
				t.Fatalf("%s: expected aspect ratio %s, got %s", tc.videoType, tc.aspect, req.AspectRatio)
			}
			if !strings.Contains(req.Prompt, tc.phrase) {
				t.Fatalf("%s: prompt missing orientation %q:\n%s", tc.videoType, tc.phrase, req.Prompt)
			}
		}
	}
}

func TestGridImageryAspectFollowsVideoType(t *testing.T) {
	client := &fakeImageClient{data: pngBytes(t, 300, 300)}
	strategy := &gridImagery{log: testLogger(t), client: client, model: "imagen-test"}

	out, err := strategy.Generate(context.Background(), ImageryJob{
		VideoID:              1,
		VideoType:            types.VideoTypeLong,
		ArticleTitle:         "headline",
		Slides:               testSlides(3),
		ThumbnailDescription: "cover",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(out.Slides) != 3 {
		t.Fatalf("expected 3 slides, got %d", len(out.Slides))
	}
	if len(client.requests) != 1 {
		t.Fatalf("expected 1 grid request, got %d", len(client.requests))
	}
	if got := client.requests[0].AspectRatio; got != "16:9" {
		t.Fatalf("expected aspect ratio 16:9 for a long video, got %s", got)
	}
	if !strings.Contains(client.requests[0].Prompt, "widescreen 16:9") {
		t.Fatalf("grid prompt missing widescreen orientation:\n%s", client.requests[0].Prompt)
	}
}

func TestSingleImageryPartialFailureKeepsSuccesses(t *testing.T) {
	client := &fakeImageClient{data: pngBytes(t, 120, 90), failOn: "scene 1"}
	strategy := &singleImagery{log: testLogger(t), client: client, model: "gemini-2.5-flash"}

	out, err := strategy.Generate(context.Background(), ImageryJob{
		VideoID:      1,
		ArticleTitle: "headline",
		Slides:       testSlides(3),
	})
	if err == nil {
		t.Fatal("expected a batch error for the failed slide")
	}
	if out == nil || len(out.Slides) != 2 {
		t.Fatalf("expected 2 surviving slides alongside the error, got %+v", out)
	}
	for _, img := range out.Slides {
		if img.SlideIndex == 1 {
			t.Fatal("failed slide must not appear in the output")
		}
	}
	if len(out.Calls) != 2 {
		t.Fatalf("expected 2 billable calls, got %d", len(out.Calls))
	}
	if out.Thumbnail != nil {
		t.Fatal("a partial pass must not emit a thumbnail")
	}
}

func TestSingleImagerySkipsReusedSlides(t *testing.T) {
	client := &fakeImageClient{data: pngBytes(t, 120, 90)}
	strategy := &singleImagery{log: testLogger(t), client: client, model: "gemini-2.5-flash"}

	out, err := strategy.Generate(context.Background(), ImageryJob{
		VideoID:      1,
		ArticleTitle: "headline",
		Slides:       testSlides(3),
		SkipSlides:   map[int]bool{0: true},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(client.requests) != 2 {
		t.Fatalf("expected 2 requests for the gaps, got %d", len(client.requests))
	}
	if len(out.Slides) != 2 {
		t.Fatalf("expected 2 generated slides, got %d", len(out.Slides))
	}
	for _, img := range out.Slides {
		if img.SlideIndex == 0 {
			t.Fatal("reused slide must not be regenerated")
		}
	}
	if out.Thumbnail == nil {
		t.Fatal("final slide was generated this pass; expected a thumbnail")
	}
}

func TestSingleImageryNoThumbnailWhenFinalSlideReused(t *testing.T) {
	client := &fakeImageClient{data: pngBytes(t, 120, 90)}
	strategy := &singleImagery{log: testLogger(t), client: client, model: "gemini-2.5-flash"}

	out, err := strategy.Generate(context.Background(), ImageryJob{
		VideoID:      1,
		ArticleTitle: "headline",
		Slides:       testSlides(3),
		SkipSlides:   map[int]bool{2: true},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Thumbnail != nil {
		t.Fatal("thumbnail must come from the stored final slide, not this pass")
	}
}

func TestSlideBudgetFollowsVideoType(t *testing.T) {
	if got := slideBudgetFor(types.VideoTypeShort); got != 8 {
		t.Fatalf("short budget: expected 8, got %d", got)
	}
	if got := slideBudgetFor(types.VideoTypeLong); got != 17 {
		t.Fatalf("long budget: expected 17, got %d", got)
	}
}
