package repos

import (
	"gorm.io/gorm"

	types "github.com/yungbote/newsreel-backend/internal/domain"
	"github.com/yungbote/newsreel-backend/internal/platform/dbctx"
	"github.com/yungbote/newsreel-backend/internal/platform/logger"
)

type CostLogRepo interface {
	Append(dbc dbctx.Context, entries []*types.CostLogEntry) error
	// SumForVideo derives the video's total cost from its log entries.
	SumForVideo(dbc dbctx.Context, videoID uint64) (float64, error)
}

type costLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCostLogRepo(db *gorm.DB, baseLog *logger.Logger) CostLogRepo {
	return &costLogRepo{db: db, log: baseLog.With("repo", "CostLogRepo")}
}

func (r *costLogRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *costLogRepo) Append(dbc dbctx.Context, entries []*types.CostLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.handle(dbc).Create(&entries).Error
}

func (r *costLogRepo) SumForVideo(dbc dbctx.Context, videoID uint64) (float64, error) {
	var total float64
	err := r.handle(dbc).
		Model(&types.CostLogEntry{}).
		Where("video_id = ?", videoID).
		Select("COALESCE(SUM(cost), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
