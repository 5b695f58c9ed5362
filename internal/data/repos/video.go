package repos

import (
	"errors"
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/newsreel-backend/internal/domain"
	"github.com/yungbote/newsreel-backend/internal/platform/dbctx"
	"github.com/yungbote/newsreel-backend/internal/platform/logger"
)

// VideoRepo is the status facade of the pipelines. The conditional Mark*
// methods implement the stage preconditions: an update that matches zero rows
// means another invocation already holds the stage, and the caller must abort
// instead of racing.
type VideoRepo interface {
	Get(dbc dbctx.Context, id uint64) (*types.Video, error)
	Create(dbc dbctx.Context, video *types.Video) error

	// MarkAssetGenerating transitions pending/generated/error -> generating and
	// pins the narration voice when none is set. Returns false when the video
	// is not in a startable state.
	MarkAssetGenerating(dbc dbctx.Context, id uint64, voice string) (bool, error)
	MarkAssetGenerated(dbc dbctx.Context, id uint64, uploadStatus string, totalCost float64, blockReasons []byte) error
	MarkAssetError(dbc dbctx.Context, id uint64, message string) error

	MarkRendering(dbc dbctx.Context, id uint64) (bool, error)
	MarkRendered(dbc dbctx.Context, id uint64) error
	MarkRenderError(dbc dbctx.Context, id uint64, message string) error

	UpdateFields(dbc dbctx.Context, id uint64, updates map[string]interface{}) error
}

type videoRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVideoRepo(db *gorm.DB, baseLog *logger.Logger) VideoRepo {
	return &videoRepo{db: db, log: baseLog.With("repo", "VideoRepo")}
}

func (r *videoRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *videoRepo) Get(dbc dbctx.Context, id uint64) (*types.Video, error) {
	var video types.Video
	err := r.handle(dbc).First(&video, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &video, nil
}

func (r *videoRepo) Create(dbc dbctx.Context, video *types.Video) error {
	return r.handle(dbc).Create(video).Error
}

func (r *videoRepo) MarkAssetGenerating(dbc dbctx.Context, id uint64, voice string) (bool, error) {
	now := time.Now().UTC()
	res := r.handle(dbc).
		Model(&types.Video{}).
		Where("id = ? AND script_status = ? AND asset_status <> ?",
			id, types.ScriptStatusGenerated, types.AssetStatusGenerating).
		Updates(map[string]interface{}{
			"asset_status": types.AssetStatusGenerating,
			"asset_error":  "",
			"tts_voice":    gorm.Expr("CASE WHEN tts_voice = '' OR tts_voice IS NULL THEN ? ELSE tts_voice END", voice),
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *videoRepo) MarkAssetGenerated(dbc dbctx.Context, id uint64, uploadStatus string, totalCost float64, blockReasons []byte) error {
	// block_reasons is always rewritten: a re-run that comes back clean must
	// clear reasons recorded by a prior blocked run.
	updates := map[string]interface{}{
		"asset_status":  types.AssetStatusGenerated,
		"upload_status": uploadStatus,
		"total_cost":    totalCost,
		"block_reasons": nil,
		"updated_at":    time.Now().UTC(),
	}
	if len(blockReasons) > 0 {
		updates["block_reasons"] = blockReasons
	}
	return r.handle(dbc).Model(&types.Video{}).Where("id = ?", id).Updates(updates).Error
}

func (r *videoRepo) MarkAssetError(dbc dbctx.Context, id uint64, message string) error {
	return r.handle(dbc).Model(&types.Video{}).Where("id = ?", id).Updates(map[string]interface{}{
		"asset_status": types.AssetStatusError,
		"asset_error":  message,
		"updated_at":   time.Now().UTC(),
	}).Error
}

func (r *videoRepo) MarkRendering(dbc dbctx.Context, id uint64) (bool, error) {
	res := r.handle(dbc).
		Model(&types.Video{}).
		Where("id = ? AND asset_status = ? AND render_status <> ?",
			id, types.AssetStatusGenerated, types.RenderStatusRendering).
		Updates(map[string]interface{}{
			"render_status": types.RenderStatusRendering,
			"render_error":  "",
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *videoRepo) MarkRendered(dbc dbctx.Context, id uint64) error {
	return r.handle(dbc).Model(&types.Video{}).Where("id = ?", id).Updates(map[string]interface{}{
		"render_status": types.RenderStatusRendered,
		"updated_at":    time.Now().UTC(),
	}).Error
}

func (r *videoRepo) MarkRenderError(dbc dbctx.Context, id uint64, message string) error {
	return r.handle(dbc).Model(&types.Video{}).Where("id = ?", id).Updates(map[string]interface{}{
		"render_status": types.RenderStatusError,
		"render_error":  message,
		"updated_at":    time.Now().UTC(),
	}).Error
}

func (r *videoRepo) UpdateFields(dbc dbctx.Context, id uint64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now().UTC()
	return r.handle(dbc).Model(&types.Video{}).Where("id = ?", id).Updates(updates).Error
}
