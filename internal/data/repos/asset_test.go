package repos

import (
	"context"
	"testing"

	"github.com/yungbote/newsreel-backend/internal/data/repos/testutil"
	types "github.com/yungbote/newsreel-backend/internal/domain"
	"github.com/yungbote/newsreel-backend/internal/platform/dbctx"
)

func TestGeneratedAssetRepoFullReplace(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewGeneratedAssetRepo(db, testutil.Logger(t))

	video := testutil.SeedVideo(t, ctx, tx, nil)
	testutil.SeedSlideImageAssets(t, ctx, tx, video.ID, 6)

	// Regenerating with 8 new slides must leave exactly 8 rows, none of them
	// from the prior run.
	replacement := make([]*types.GeneratedAsset, 0, 8)
	for i := 0; i < 8; i++ {
		replacement = append(replacement, &types.GeneratedAsset{
			VideoID:    video.ID,
			AssetType:  types.AssetTypeSlideImage,
			AssetIndex: i,
			StorageKey: "videos/test/slide-v2",
			PublicURL:  "https://example.test/slide-v2",
			MimeType:   "image/png",
			SizeBytes:  2048,
		})
	}
	if err := repo.ReplaceForTypes(dbc, video.ID, []types.AssetType{types.AssetTypeSlideImage}, replacement); err != nil {
		t.Fatalf("ReplaceForTypes: %v", err)
	}

	rows, err := repo.ListByTypes(dbc, video.ID, []types.AssetType{types.AssetTypeSlideImage})
	if err != nil {
		t.Fatalf("ListByTypes: %v", err)
	}
	if len(rows) != 8 {
		t.Fatalf("expected 8 slide image rows after replace, got %d", len(rows))
	}
	for i, row := range rows {
		if row.AssetIndex != i {
			t.Fatalf("row %d: expected asset_index %d, got %d", i, i, row.AssetIndex)
		}
		if row.StorageKey != "videos/test/slide-v2" {
			t.Fatalf("row %d survived from the prior generation: key=%s", i, row.StorageKey)
		}
	}
}

func TestGeneratedAssetRepoReplaceToEmpty(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewGeneratedAssetRepo(db, testutil.Logger(t))

	video := testutil.SeedVideo(t, ctx, tx, nil)
	testutil.SeedSlideImageAssets(t, ctx, tx, video.ID, 3)

	if err := repo.ReplaceForTypes(dbc, video.ID, []types.AssetType{types.AssetTypeSlideImage}, nil); err != nil {
		t.Fatalf("ReplaceForTypes: %v", err)
	}
	rows, err := repo.ListByTypes(dbc, video.ID, []types.AssetType{types.AssetTypeSlideImage})
	if err != nil {
		t.Fatalf("ListByTypes: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected 0 rows after replace-to-empty, got %d", len(rows))
	}
}
