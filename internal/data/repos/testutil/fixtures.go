package testutil

import (
	"context"
	"testing"

	"gorm.io/gorm"

	types "github.com/yungbote/newsreel-backend/internal/domain"
)

func SeedVideo(tb testing.TB, ctx context.Context, tx *gorm.DB, mutate func(*types.Video)) *types.Video {
	tb.Helper()
	v := &types.Video{
		VideoType:    types.VideoTypeShort,
		ScriptStatus: types.ScriptStatusGenerated,
		AssetStatus:  types.AssetStatusPending,
		RenderStatus: types.RenderStatusPending,
		UploadStatus: types.UploadStatusPending,
		ImageModel:   "imagen-flash",
		TTSModel:     "tts-flash",
		ArticleID:    "article-1",
		ArticleTitle: "Seed article",
	}
	if mutate != nil {
		mutate(v)
	}
	if err := tx.WithContext(ctx).Create(v).Error; err != nil {
		tb.Fatalf("seed video: %v", err)
	}
	return v
}

func SeedSlideImageAssets(tb testing.TB, ctx context.Context, tx *gorm.DB, videoID uint64, count int) []*types.GeneratedAsset {
	tb.Helper()
	assets := make([]*types.GeneratedAsset, 0, count)
	for i := 0; i < count; i++ {
		a := &types.GeneratedAsset{
			VideoID:    videoID,
			AssetType:  types.AssetTypeSlideImage,
			AssetIndex: i,
			StorageKey: "videos/test/slide",
			PublicURL:  "https://example.test/slide",
			MimeType:   "image/png",
			SizeBytes:  1024,
		}
		if err := tx.WithContext(ctx).Create(a).Error; err != nil {
			tb.Fatalf("seed slide asset %d: %v", i, err)
		}
		assets = append(assets, a)
	}
	return assets
}
