package repos

import (
	"errors"

	"gorm.io/gorm"

	types "github.com/yungbote/newsreel-backend/internal/domain"
	"github.com/yungbote/newsreel-backend/internal/platform/dbctx"
	"github.com/yungbote/newsreel-backend/internal/platform/logger"
)

type PolicyRunRepo interface {
	Create(dbc dbctx.Context, run *types.PolicyRun) error
	// GetLatestByStage returns nil when the stage has never run.
	GetLatestByStage(dbc dbctx.Context, videoID uint64, stage types.PolicyStage) (*types.PolicyRun, error)
}

type policyRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPolicyRunRepo(db *gorm.DB, baseLog *logger.Logger) PolicyRunRepo {
	return &policyRunRepo{db: db, log: baseLog.With("repo", "PolicyRunRepo")}
}

func (r *policyRunRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *policyRunRepo) Create(dbc dbctx.Context, run *types.PolicyRun) error {
	return r.handle(dbc).Create(run).Error
}

func (r *policyRunRepo) GetLatestByStage(dbc dbctx.Context, videoID uint64, stage types.PolicyStage) (*types.PolicyRun, error) {
	var run types.PolicyRun
	err := r.handle(dbc).
		Where("video_id = ? AND stage = ?", videoID, stage).
		Order("created_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}
