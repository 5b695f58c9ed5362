package repos

import (
	"context"
	"testing"

	"github.com/yungbote/newsreel-backend/internal/data/repos/testutil"
	types "github.com/yungbote/newsreel-backend/internal/domain"
	"github.com/yungbote/newsreel-backend/internal/platform/dbctx"
)

func TestVideoRepoMarkAssetGenerating(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewVideoRepo(db, testutil.Logger(t))

	video := testutil.SeedVideo(t, ctx, tx, nil)

	claimed, err := repo.MarkAssetGenerating(dbc, video.ID, "Kore")
	if err != nil {
		t.Fatalf("MarkAssetGenerating: %v", err)
	}
	if !claimed {
		t.Fatal("expected first claim to succeed")
	}

	// A second concurrent invocation must detect the in-progress state and
	// abort rather than race.
	claimed, err = repo.MarkAssetGenerating(dbc, video.ID, "Puck")
	if err != nil {
		t.Fatalf("MarkAssetGenerating (second): %v", err)
	}
	if claimed {
		t.Fatal("expected second claim to be rejected while generating")
	}

	got, err := repo.Get(dbc, video.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AssetStatus != types.AssetStatusGenerating {
		t.Fatalf("expected asset_status=generating, got %s", got.AssetStatus)
	}
	if got.TTSVoice != "Kore" {
		t.Fatalf("voice must stay pinned to the first claim, got %s", got.TTSVoice)
	}
}

func TestVideoRepoMarkAssetGeneratingRequiresScript(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewVideoRepo(db, testutil.Logger(t))

	video := testutil.SeedVideo(t, ctx, tx, func(v *types.Video) {
		v.ScriptStatus = types.ScriptStatusPending
	})

	claimed, err := repo.MarkAssetGenerating(dbc, video.ID, "Kore")
	if err != nil {
		t.Fatalf("MarkAssetGenerating: %v", err)
	}
	if claimed {
		t.Fatal("claim must fail while the script stage is incomplete")
	}
}

func TestVideoRepoMarkAssetGeneratedClearsStaleBlockReasons(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewVideoRepo(db, testutil.Logger(t))

	video := testutil.SeedVideo(t, ctx, tx, nil)

	if _, err := repo.MarkAssetGenerating(dbc, video.ID, "Kore"); err != nil {
		t.Fatalf("MarkAssetGenerating: %v", err)
	}
	reasons := []byte(`["GRAPHIC_VIOLENCE: depicts injury"]`)
	if err := repo.MarkAssetGenerated(dbc, video.ID, types.UploadStatusBlocked, 1.0, reasons); err != nil {
		t.Fatalf("MarkAssetGenerated (blocked): %v", err)
	}
	got, err := repo.Get(dbc, video.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.BlockReasons) == 0 {
		t.Fatal("expected block reasons to be recorded")
	}

	// A clean re-run must clear the reasons from the prior blocked run.
	if _, err := repo.MarkAssetGenerating(dbc, video.ID, "Kore"); err != nil {
		t.Fatalf("MarkAssetGenerating (rerun): %v", err)
	}
	if err := repo.MarkAssetGenerated(dbc, video.ID, types.UploadStatusPending, 2.0, nil); err != nil {
		t.Fatalf("MarkAssetGenerated (clean): %v", err)
	}
	got, err = repo.Get(dbc, video.ID)
	if err != nil {
		t.Fatalf("Get (rerun): %v", err)
	}
	if len(got.BlockReasons) != 0 {
		t.Fatalf("stale block reasons survived a clean re-run: %s", got.BlockReasons)
	}
	if got.UploadStatus != types.UploadStatusPending {
		t.Fatalf("expected upload_status=pending, got %s", got.UploadStatus)
	}
}

func TestVideoRepoMarkRenderingRequiresAssets(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewVideoRepo(db, testutil.Logger(t))

	video := testutil.SeedVideo(t, ctx, tx, nil)

	claimed, err := repo.MarkRendering(dbc, video.ID)
	if err != nil {
		t.Fatalf("MarkRendering: %v", err)
	}
	if claimed {
		t.Fatal("render claim must fail before assets are generated")
	}

	if _, err := repo.MarkAssetGenerating(dbc, video.ID, "Kore"); err != nil {
		t.Fatalf("MarkAssetGenerating: %v", err)
	}
	if err := repo.MarkAssetGenerated(dbc, video.ID, types.UploadStatusPending, 1.25, nil); err != nil {
		t.Fatalf("MarkAssetGenerated: %v", err)
	}

	claimed, err = repo.MarkRendering(dbc, video.ID)
	if err != nil {
		t.Fatalf("MarkRendering (after generate): %v", err)
	}
	if !claimed {
		t.Fatal("expected render claim to succeed after assets generated")
	}
}
