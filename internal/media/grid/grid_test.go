package grid

import (
	"image"
	"testing"

	"github.com/fogleman/gg"

	types "github.com/yungbote/newsreel-backend/internal/domain"
)

// paintGrid renders a synthetic composite: each populated cell a distinct
// solid color, every trailing cell solid black, matching what the generation
// prompt produces for underfilled grids.
func paintGrid(t *testing.T, w, h, populated int, withThumbnail bool) image.Image {
	t.Helper()
	dc := gg.NewContext(w, h)
	dc.SetRGB(0, 0, 0)
	dc.Clear()

	cellW := float64(w) / 3
	cellH := float64(h) / 3
	colors := [][3]float64{
		{0.9, 0.1, 0.1}, {0.1, 0.9, 0.1}, {0.1, 0.1, 0.9},
		{0.9, 0.9, 0.1}, {0.9, 0.1, 0.9}, {0.1, 0.9, 0.9},
		{0.6, 0.3, 0.1}, {0.3, 0.6, 0.9}, {0.8, 0.8, 0.8},
	}
	for c := 0; c < populated; c++ {
		row := c / 3
		col := c % 3
		rgb := colors[c]
		dc.SetRGB(rgb[0], rgb[1], rgb[2])
		dc.DrawRectangle(float64(col)*cellW, float64(row)*cellH, cellW, cellH)
		dc.Fill()
	}
	if withThumbnail {
		dc.SetRGB(1, 0.5, 0)
		dc.DrawRectangle(2*cellW, 2*cellH, cellW, cellH)
		dc.Fill()
	}
	return dc.Image()
}

func TestSplitEmitsExactlyPopulatedCells(t *testing.T) {
	for _, tc := range []struct {
		name      string
		w, h      int
		slides    int
		thumbnail bool
	}{
		{"full grid with thumbnail", 1536, 2688, 8, true},
		{"partial grid", 1536, 2688, 5, true},
		{"no thumbnail", 1536, 2688, 6, false},
		// Generation services may return sizes the prompt did not ask for;
		// crops must follow the decoded dimensions, floored per cell.
		{"odd dimensions", 1537, 2690, 4, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			layouts, err := BuildLayouts(tc.slides, tc.thumbnail)
			if err != nil {
				t.Fatalf("BuildLayouts: %v", err)
			}
			if len(layouts) != 1 {
				t.Fatalf("expected one grid for %d slides, got %d", tc.slides, len(layouts))
			}

			src := paintGrid(t, tc.w, tc.h, tc.slides, tc.thumbnail)
			res, err := Split(src, layouts[0])
			if err != nil {
				t.Fatalf("Split: %v", err)
			}

			if len(res.Slides) != tc.slides {
				t.Fatalf("expected %d slide images, got %d", tc.slides, len(res.Slides))
			}
			if tc.thumbnail && res.Thumbnail == nil {
				t.Fatal("expected a thumbnail extraction")
			}
			if !tc.thumbnail && res.Thumbnail != nil {
				t.Fatal("unexpected thumbnail extraction")
			}

			wantW, wantH := tc.w/3, tc.h/3
			for _, slide := range res.Slides {
				b := slide.Image.Bounds()
				if b.Dx() != wantW || b.Dy() != wantH {
					t.Fatalf("slide %d: size %dx%d, want %dx%d", slide.SlideIndex, b.Dx(), b.Dy(), wantW, wantH)
				}
			}
		})
	}
}

func TestSplitCropsArePixelIdentical(t *testing.T) {
	const w, h = 1536, 2688
	layouts, err := BuildLayouts(8, true)
	if err != nil {
		t.Fatalf("BuildLayouts: %v", err)
	}
	src := paintGrid(t, w, h, 8, true)
	res, err := Split(src, layouts[0])
	if err != nil {
		t.Fatalf("Split: %v", err)
	}

	cellW, cellH := w/3, h/3
	for _, slide := range res.Slides {
		cell := res.Layout.Cells[slide.SlideIndex]
		for y := 0; y < cellH; y += 37 {
			for x := 0; x < cellW; x += 41 {
				want := src.At(cell.Crop.X+x, cell.Crop.Y+y)
				got := slide.Image.At(x, y)
				wr, wg, wb, wa := want.RGBA()
				gr, gg2, gb, ga := got.RGBA()
				if wr != gr || wg != gg2 || wb != gb || wa != ga {
					t.Fatalf("slide %d: pixel (%d,%d) differs from source region", slide.SlideIndex, x, y)
				}
			}
		}
	}
}

func TestSplitCropsAreIndependentCopies(t *testing.T) {
	layouts, err := BuildLayouts(4, false)
	if err != nil {
		t.Fatalf("BuildLayouts: %v", err)
	}
	src := paintGrid(t, 900, 900, 4, false)
	res, err := Split(src, layouts[0])
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(res.Slides) < 2 {
		t.Fatalf("need at least two slides, got %d", len(res.Slides))
	}

	before := res.Slides[1].Image.RGBAAt(0, 0)
	for i := range res.Slides[0].Image.Pix {
		res.Slides[0].Image.Pix[i] = 0xFF
	}
	after := res.Slides[1].Image.RGBAAt(0, 0)
	if before != after {
		t.Fatal("mutating one crop changed a sibling crop")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("not an image at all")); err == nil {
		t.Fatal("expected decode failure")
	}
}

func TestBuildLayoutsTwoGrids(t *testing.T) {
	layouts, err := BuildLayouts(13, true)
	if err != nil {
		t.Fatalf("BuildLayouts: %v", err)
	}
	if len(layouts) != 2 {
		t.Fatalf("expected two grids for 13 slides, got %d", len(layouts))
	}

	if !layouts[0].Cells[ThumbnailCell].Thumbnail {
		t.Fatal("thumbnail must live in cell 8 of grid 0")
	}
	seen := map[int]bool{}
	for gi, layout := range layouts {
		for _, cell := range layout.Cells {
			if cell.SlideIndex == nil {
				continue
			}
			if seen[*cell.SlideIndex] {
				t.Fatalf("grid %d: slide %d assigned twice", gi, *cell.SlideIndex)
			}
			seen[*cell.SlideIndex] = true
		}
	}
	for i := 0; i < 13; i++ {
		if !seen[i] {
			t.Fatalf("slide %d missing from layouts", i)
		}
	}
	// Remaining cells of grid 1 stay empty placeholders.
	for _, cell := range layouts[1].Cells {
		if cell.SlideIndex == nil && !cell.Empty {
			t.Fatalf("grid 1 cell %d: unassigned cell must be empty", cell.Index)
		}
	}
}

func TestBuildLayoutsRejectsOverBudget(t *testing.T) {
	if _, err := BuildLayouts(MaxSlidesPerVideo+1, true); err == nil {
		t.Fatal("expected budget error")
	}
	if _, err := BuildLayouts(0, true); err == nil {
		t.Fatal("expected error for zero slides")
	}
}

func TestRecomputeCropsUsesDecodedDims(t *testing.T) {
	layouts, err := BuildLayouts(8, true)
	if err != nil {
		t.Fatalf("BuildLayouts: %v", err)
	}
	// Request was 1536x2688, service returned 1520x2700.
	recomputed, err := RecomputeCrops(layouts[0], 1520, 2700)
	if err != nil {
		t.Fatalf("RecomputeCrops: %v", err)
	}
	cellW, cellH := 1520/3, 2700/3
	for _, cell := range recomputed.Cells {
		row := cell.Index / 3
		col := cell.Index % 3
		want := types.CropRect{X: col * cellW, Y: row * cellH, W: cellW, H: cellH}
		if cell.Crop != want {
			t.Fatalf("cell %d: crop %+v, want %+v", cell.Index, cell.Crop, want)
		}
	}
}
