package assetgen

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	types "github.com/yungbote/newsreel-backend/internal/domain"
	"github.com/yungbote/newsreel-backend/internal/media/grid"
	"github.com/yungbote/newsreel-backend/internal/platform/gemini"
	"github.com/yungbote/newsreel-backend/internal/platform/logger"
	"github.com/yungbote/newsreel-backend/internal/tasks"
)

// ImageryJob carries everything one imagery pass needs: the slides, the
// thumbnail brief, and the reference photography fetched from the source
// article.
type ImageryJob struct {
	VideoID              uint64
	VideoType            types.VideoType
	ArticleTitle         string
	Slides               []types.Slide
	ThumbnailDescription string
	References           []gemini.ReferenceImage
	// SkipSlides marks slide indexes already persisted by an earlier attempt
	// of this step; the single-image branch regenerates only the gaps.
	SkipSlides map[int]bool
}

// GeneratedImage is one finished slide or thumbnail raster, ready to upload.
type GeneratedImage struct {
	SlideIndex int
	Data       []byte
	MimeType   string
	Width      int
	Height     int
	Thumbnail  bool
}

// GridArtifact is one raw composite image plus the layout its slides were
// extracted with. The composite is persisted alongside its extractions for
// auditability.
type GridArtifact struct {
	GridIndex int
	Data      []byte
	MimeType  string
	Layout    types.GridLayout
}

// GenerationCall records the billing facts of one API call.
type GenerationCall struct {
	Usage     gemini.Usage
	Estimated bool
}

type ImageryOutput struct {
	Grids     []GridArtifact
	Slides    []GeneratedImage
	Thumbnail *GeneratedImage
	Prompts   []string
	Calls     []GenerationCall
}

// SlideImagery is the model-capability branch of the imagery step. Composite
// models tile many slides into one 3x3 grid per call; simpler models generate
// each slide independently.
type SlideImagery interface {
	Generate(ctx context.Context, job ImageryJob) (*ImageryOutput, error)
}

// ImageryForModel picks the strategy for a model. Dedicated image models
// follow multi-panel composition instructions reliably; everything else gets
// one request per slide.
func ImageryForModel(log *logger.Logger, client gemini.Client, model string) SlideImagery {
	if strings.Contains(strings.ToLower(model), "image") {
		return &gridImagery{log: log, client: client, model: model}
	}
	return &singleImagery{log: log, client: client, model: model}
}

// aspectFor maps the video format to the generation aspect ratio: shorts are
// vertical, longs widescreen.
func aspectFor(t types.VideoType) string {
	if t == types.VideoTypeLong {
		return "16:9"
	}
	return "9:16"
}

func orientationFor(t types.VideoType) string {
	if t == types.VideoTypeLong {
		return "widescreen 16:9"
	}
	return "vertical 9:16"
}

// slideBudgetFor caps the script length per format: a short fits one grid
// (cell 8 reserved for the thumbnail), a long may span two.
func slideBudgetFor(t types.VideoType) int {
	if t == types.VideoTypeLong {
		return grid.MaxSlidesPerVideo
	}
	return grid.CellsPerGrid - 1
}

type gridImagery struct {
	log    *logger.Logger
	client gemini.Client
	model  string
}

func (g *gridImagery) Generate(ctx context.Context, job ImageryJob) (*ImageryOutput, error) {
	layouts, err := grid.BuildLayouts(len(job.Slides), true)
	if err != nil {
		return nil, err
	}

	out := &ImageryOutput{}
	for gi, layout := range layouts {
		prompt := buildGridPrompt(job, layout)
		res, err := g.client.GenerateImage(ctx, gemini.ImageRequest{
			Model:           g.model,
			Prompt:          prompt,
			AspectRatio:     aspectFor(job.VideoType),
			ReferenceImages: job.References,
		})
		if err != nil {
			return nil, fmt.Errorf("grid %d: %w", gi, err)
		}
		out.Prompts = append(out.Prompts, prompt)
		out.Calls = append(out.Calls, callFor(g.model, "image", res.Usage))

		img, err := grid.Decode(res.Data)
		if err != nil {
			return nil, fmt.Errorf("grid %d: %w", gi, err)
		}
		bounds := img.Bounds()
		layout, err = grid.RecomputeCrops(layout, bounds.Dx(), bounds.Dy())
		if err != nil {
			return nil, fmt.Errorf("grid %d: %w", gi, err)
		}
		split, err := grid.Split(img, layout)
		if err != nil {
			return nil, fmt.Errorf("grid %d: %w", gi, err)
		}

		out.Grids = append(out.Grids, GridArtifact{
			GridIndex: gi,
			Data:      res.Data,
			MimeType:  res.MimeType,
			Layout:    layout,
		})
		for _, s := range split.Slides {
			encoded, err := encodePNG(s.Image)
			if err != nil {
				return nil, fmt.Errorf("grid %d slide %d: %w", gi, s.SlideIndex, err)
			}
			b := s.Image.Bounds()
			out.Slides = append(out.Slides, GeneratedImage{
				SlideIndex: s.SlideIndex,
				Data:       encoded,
				MimeType:   "image/png",
				Width:      b.Dx(),
				Height:     b.Dy(),
			})
		}
		if split.Thumbnail != nil {
			encoded, err := encodePNG(split.Thumbnail)
			if err != nil {
				return nil, fmt.Errorf("grid %d thumbnail: %w", gi, err)
			}
			b := split.Thumbnail.Bounds()
			out.Thumbnail = &GeneratedImage{
				Data:      encoded,
				MimeType:  "image/png",
				Width:     b.Dx(),
				Height:    b.Dy(),
				Thumbnail: true,
			}
		}
	}
	if len(out.Slides) != len(job.Slides) {
		return nil, fmt.Errorf("imagery: extracted %d slides, script has %d", len(out.Slides), len(job.Slides))
	}
	if out.Thumbnail == nil {
		return nil, fmt.Errorf("imagery: grid pass produced no thumbnail")
	}
	return out, nil
}

type singleImagery struct {
	log    *logger.Logger
	client gemini.Client
	model  string
}

func (s *singleImagery) Generate(ctx context.Context, job ImageryJob) (*ImageryOutput, error) {
	missing := make([]types.Slide, 0, len(job.Slides))
	for _, slide := range job.Slides {
		if !job.SkipSlides[slide.Index] {
			missing = append(missing, slide)
		}
	}

	type slideResult struct {
		img    GeneratedImage
		prompt string
		call   GenerationCall
	}

	limit := gemini.ConcurrencyLimit(s.model)
	results, runErr := tasks.Run(ctx, limit, len(missing), func(ctx context.Context, i int) (slideResult, error) {
		slide := missing[i]
		prompt := buildSlidePrompt(job, slide)
		res, genErr := s.client.GenerateImage(ctx, gemini.ImageRequest{
			Model:           s.model,
			Prompt:          prompt,
			AspectRatio:     aspectFor(job.VideoType),
			ReferenceImages: job.References,
		})
		if genErr != nil {
			return slideResult{}, genErr
		}
		img, decErr := grid.Decode(res.Data)
		if decErr != nil {
			return slideResult{}, decErr
		}
		b := img.Bounds()
		return slideResult{
			img: GeneratedImage{
				SlideIndex: slide.Index,
				Data:       res.Data,
				MimeType:   res.MimeType,
				Width:      b.Dx(),
				Height:     b.Dy(),
			},
			prompt: prompt,
			call:   callFor(s.model, "image", res.Usage),
		}, nil
	})

	// Successes survive a partial batch failure: the caller persists and bills
	// them before surfacing the error, so a retry regenerates only the gaps.
	out := &ImageryOutput{}
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		out.Slides = append(out.Slides, r.Value.img)
		out.Prompts = append(out.Prompts, r.Value.prompt)
		out.Calls = append(out.Calls, r.Value.call)
	}
	if runErr != nil {
		return out, fmt.Errorf("imagery: %w", runErr)
	}

	// No grid means no reserved thumbnail cell; the final slide image stands
	// in for it. When the final slide was reused from a prior attempt the
	// caller derives the thumbnail from the stored copy instead.
	finalIndex := job.Slides[len(job.Slides)-1].Index
	for _, img := range out.Slides {
		if img.SlideIndex != finalIndex {
			continue
		}
		out.Thumbnail = &GeneratedImage{
			Data:      img.Data,
			MimeType:  img.MimeType,
			Width:     img.Width,
			Height:    img.Height,
			Thumbnail: true,
		}
	}
	return out, nil
}

func buildGridPrompt(job ImageryJob, layout types.GridLayout) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a single image tiled as a %dx%d grid of equally sized cells, numbered 0-8 left to right, top to bottom.\n", grid.GridRows, grid.GridCols)
	fmt.Fprintf(&b, "Each cell is an independent %s news illustration. No borders, no gutters, no text overlays.\n", orientationFor(job.VideoType))
	fmt.Fprintf(&b, "Story: %s\n\n", job.ArticleTitle)
	for _, cell := range layout.Cells {
		switch {
		case cell.SlideIndex != nil:
			slide := job.Slides[*cell.SlideIndex]
			fmt.Fprintf(&b, "Cell %d: %s\n", cell.Index, strings.TrimSpace(slide.ImageDescription))
		case cell.Thumbnail:
			fmt.Fprintf(&b, "Cell %d (cover thumbnail): %s\n", cell.Index, strings.TrimSpace(job.ThumbnailDescription))
		default:
			fmt.Fprintf(&b, "Cell %d: solid black, completely empty.\n", cell.Index)
		}
	}
	if len(job.References) > 0 {
		b.WriteString("\nMatch the people, places and objects shown in the attached reference photos.")
	}
	return b.String()
}

func buildSlidePrompt(job ImageryJob, slide types.Slide) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a %s news illustration. No text overlays.\n", orientationFor(job.VideoType))
	fmt.Fprintf(&b, "Story: %s\n", job.ArticleTitle)
	fmt.Fprintf(&b, "Scene: %s\n", strings.TrimSpace(slide.ImageDescription))
	if strings.TrimSpace(slide.DirectorNotes) != "" {
		fmt.Fprintf(&b, "Direction: %s\n", strings.TrimSpace(slide.DirectorNotes))
	}
	if len(job.References) > 0 {
		b.WriteString("Match the people, places and objects shown in the attached reference photos.")
	}
	return b.String()
}

// callFor swaps in the tier estimate when the API omitted usage counters, so
// every call gets billed deterministically.
func callFor(model, kind string, u gemini.Usage) GenerationCall {
	if u.Empty() {
		return GenerationCall{Usage: gemini.EstimatedUsage(model, kind), Estimated: true}
	}
	return GenerationCall{Usage: u}
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
