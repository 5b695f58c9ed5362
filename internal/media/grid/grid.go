package grid

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	types "github.com/yungbote/newsreel-backend/internal/domain"
)

// Cells per composite image. Generation prompts always request a 3x3 tiling;
// the thumbnail, when present, occupies the last cell.
const (
	GridRows      = 3
	GridCols      = 3
	CellsPerGrid  = GridRows * GridCols
	ThumbnailCell = CellsPerGrid - 1
)

// MaxSlidesPerVideo is the hard slide budget across one or two grids: eight
// slide cells on the first grid (cell 8 is the thumbnail) plus nine on the
// second.
const MaxSlidesPerVideo = (CellsPerGrid - 1) + CellsPerGrid

// BuildLayouts assigns slide indexes to grid cells. Grid 0 carries slides
// 0..7 plus the thumbnail in cell 8; a second grid carries the remainder.
// Trailing cells are marked Empty: the generation prompt fills them with
// solid-black placeholders which must never become assets.
func BuildLayouts(slideCount int, withThumbnail bool) ([]types.GridLayout, error) {
	if slideCount < 1 {
		return nil, fmt.Errorf("grid layout: slide count must be positive, got %d", slideCount)
	}
	if slideCount > MaxSlidesPerVideo {
		return nil, fmt.Errorf("grid layout: %d slides exceed the %d-slide budget", slideCount, MaxSlidesPerVideo)
	}

	firstGridSlides := CellsPerGrid
	if withThumbnail {
		firstGridSlides = CellsPerGrid - 1
	}

	layouts := []types.GridLayout{buildLayout(0, min(slideCount, firstGridSlides), withThumbnail)}
	if slideCount > firstGridSlides {
		layouts = append(layouts, buildLayout(firstGridSlides, slideCount-firstGridSlides, false))
	}
	return layouts, nil
}

func buildLayout(slideOffset, slides int, withThumbnail bool) types.GridLayout {
	layout := types.GridLayout{Cells: make([]types.GridCell, CellsPerGrid)}
	for c := 0; c < CellsPerGrid; c++ {
		cell := types.GridCell{Index: c}
		switch {
		case withThumbnail && c == ThumbnailCell:
			cell.Thumbnail = true
		case c < slides:
			idx := slideOffset + c
			cell.SlideIndex = &idx
		default:
			cell.Empty = true
		}
		layout.Cells[c] = cell
	}
	return layout
}

// RecomputeCrops derives every cell's crop rectangle from the decoded pixel
// dimensions. Generation services may return a slightly different size than
// requested, so the prompt dimensions are never used here.
func RecomputeCrops(layout types.GridLayout, imageWidth, imageHeight int) (types.GridLayout, error) {
	if imageWidth < GridCols || imageHeight < GridRows {
		return layout, fmt.Errorf("grid crops: image %dx%d too small to tile", imageWidth, imageHeight)
	}
	cellW := imageWidth / GridCols
	cellH := imageHeight / GridRows
	layout.ImageWidth = imageWidth
	layout.ImageHeight = imageHeight
	for i := range layout.Cells {
		c := layout.Cells[i].Index
		row := c / GridCols
		col := c % GridCols
		layout.Cells[i].Crop = types.CropRect{
			X: col * cellW,
			Y: row * cellH,
			W: cellW,
			H: cellH,
		}
	}
	return layout, nil
}

// Decode decodes a generated composite image (png, jpeg or webp). An
// undecodable grid fails as a whole: no slide may be emitted from it.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode grid image: %w", err)
	}
	return img, nil
}

// SlideImage is one extracted, independently addressable slide raster.
type SlideImage struct {
	SlideIndex int
	Image      *image.RGBA
}

// SplitResult carries the per-cell extractions of one grid.
type SplitResult struct {
	Layout    types.GridLayout
	Slides    []SlideImage
	Thumbnail *image.RGBA
}

// Split crops one decoded composite image into independent per-slide rasters
// plus the optional thumbnail. Each crop is copied into its own buffer; two
// cells never share backing pixels. Empty cells are skipped, the thumbnail
// cell is extracted but never emitted as a slide.
func Split(img image.Image, layout types.GridLayout) (*SplitResult, error) {
	if img == nil {
		return nil, fmt.Errorf("grid split: nil image")
	}
	bounds := img.Bounds()
	recomputed, err := RecomputeCrops(layout, bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}

	out := &SplitResult{Layout: recomputed}
	for _, cell := range recomputed.Cells {
		if cell.Empty {
			continue
		}
		crop := cropCopy(img, cell.Crop)
		if cell.Thumbnail {
			out.Thumbnail = crop
			continue
		}
		if cell.SlideIndex == nil {
			return nil, fmt.Errorf("grid split: cell %d is neither empty, thumbnail nor mapped to a slide", cell.Index)
		}
		out.Slides = append(out.Slides, SlideImage{SlideIndex: *cell.SlideIndex, Image: crop})
	}
	return out, nil
}

func cropCopy(src image.Image, rect types.CropRect) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, rect.W, rect.H))
	origin := src.Bounds().Min
	draw.Draw(dst, dst.Bounds(), src, image.Pt(origin.X+rect.X, origin.Y+rect.Y), draw.Src)
	return dst
}
