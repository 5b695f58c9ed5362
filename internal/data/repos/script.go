package repos

import (
	"errors"

	"gorm.io/gorm"

	types "github.com/yungbote/newsreel-backend/internal/domain"
	"github.com/yungbote/newsreel-backend/internal/platform/dbctx"
	"github.com/yungbote/newsreel-backend/internal/platform/logger"
)

type VideoScriptRepo interface {
	Create(dbc dbctx.Context, script *types.VideoScript) error
	GetByVideoID(dbc dbctx.Context, videoID uint64) (*types.VideoScript, error)
}

type videoScriptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVideoScriptRepo(db *gorm.DB, baseLog *logger.Logger) VideoScriptRepo {
	return &videoScriptRepo{db: db, log: baseLog.With("repo", "VideoScriptRepo")}
}

func (r *videoScriptRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *videoScriptRepo) Create(dbc dbctx.Context, script *types.VideoScript) error {
	return r.handle(dbc).Create(script).Error
}

func (r *videoScriptRepo) GetByVideoID(dbc dbctx.Context, videoID uint64) (*types.VideoScript, error) {
	var script types.VideoScript
	err := r.handle(dbc).First(&script, "video_id = ?", videoID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &script, nil
}
