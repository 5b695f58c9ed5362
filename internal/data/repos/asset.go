package repos

import (
	"gorm.io/gorm"

	types "github.com/yungbote/newsreel-backend/internal/domain"
	"github.com/yungbote/newsreel-backend/internal/platform/dbctx"
	"github.com/yungbote/newsreel-backend/internal/platform/logger"
)

// GeneratedAssetRepo persists pipeline artifacts. ReplaceForTypes is the only
// write path for regenerable asset types: it deletes every prior row of the
// given types before inserting the new set, so a partial old/new mix never
// persists.
type GeneratedAssetRepo interface {
	ReplaceForTypes(dbc dbctx.Context, videoID uint64, assetTypes []types.AssetType, assets []*types.GeneratedAsset) error
	ListByTypes(dbc dbctx.Context, videoID uint64, assetTypes []types.AssetType) ([]*types.GeneratedAsset, error)
	DeleteForTypes(dbc dbctx.Context, videoID uint64, assetTypes []types.AssetType) error
}

type generatedAssetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGeneratedAssetRepo(db *gorm.DB, baseLog *logger.Logger) GeneratedAssetRepo {
	return &generatedAssetRepo{db: db, log: baseLog.With("repo", "GeneratedAssetRepo")}
}

func (r *generatedAssetRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *generatedAssetRepo) ReplaceForTypes(dbc dbctx.Context, videoID uint64, assetTypes []types.AssetType, assets []*types.GeneratedAsset) error {
	return r.handle(dbc).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("video_id = ? AND asset_type IN ?", videoID, assetTypes).
			Delete(&types.GeneratedAsset{}).Error; err != nil {
			return err
		}
		if len(assets) == 0 {
			return nil
		}
		return tx.Create(&assets).Error
	})
}

func (r *generatedAssetRepo) ListByTypes(dbc dbctx.Context, videoID uint64, assetTypes []types.AssetType) ([]*types.GeneratedAsset, error) {
	var out []*types.GeneratedAsset
	err := r.handle(dbc).
		Where("video_id = ? AND asset_type IN ?", videoID, assetTypes).
		Order("asset_type ASC, asset_index ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *generatedAssetRepo) DeleteForTypes(dbc dbctx.Context, videoID uint64, assetTypes []types.AssetType) error {
	return r.handle(dbc).
		Where("video_id = ? AND asset_type IN ?", videoID, assetTypes).
		Delete(&types.GeneratedAsset{}).Error
}
