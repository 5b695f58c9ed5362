package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	temporalsdkclient "go.temporal.io/sdk/client"

	types "github.com/yungbote/newsreel-backend/internal/domain"
	"github.com/yungbote/newsreel-backend/internal/data/repos"
	"github.com/yungbote/newsreel-backend/internal/pipeline/assetgen"
	"github.com/yungbote/newsreel-backend/internal/pipeline/render"
	"github.com/yungbote/newsreel-backend/internal/platform/dbctx"
	"github.com/yungbote/newsreel-backend/internal/platform/logger"
	"github.com/yungbote/newsreel-backend/internal/temporalx"
)

// VideoHandler is the admin surface: poll a video's pipeline state and kick
// the pipelines. Status polling is the failure-visibility mechanism; there is
// no push channel.
type VideoHandler struct {
	log      *logger.Logger
	tc       temporalsdkclient.Client
	videos   repos.VideoRepo
	assets   repos.GeneratedAssetRepo
	policies repos.PolicyRunRepo
}

func NewVideoHandler(log *logger.Logger, tc temporalsdkclient.Client, videos repos.VideoRepo, assets repos.GeneratedAssetRepo, policies repos.PolicyRunRepo) *VideoHandler {
	return &VideoHandler{
		log:      log.With("handler", "VideoHandler"),
		tc:       tc,
		videos:   videos,
		assets:   assets,
		policies: policies,
	}
}

func (h *VideoHandler) videoID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid video id"})
		return 0, false
	}
	return id, true
}

// GET /api/videos/:id
func (h *VideoHandler) GetVideo(c *gin.Context) {
	id, ok := h.videoID(c)
	if !ok {
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	video, err := h.videos.Get(dbc, id)
	if err != nil {
		h.log.Error("video lookup failed", "video_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if video == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
		return
	}

	policyStages := gin.H{}
	for _, stage := range []types.PolicyStage{types.PolicyStageScriptLight, types.PolicyStageAssetStrong} {
		run, err := h.policies.GetLatestByStage(dbc, id, stage)
		if err != nil {
			h.log.Error("policy lookup failed", "video_id", id, "stage", stage, "error", err)
			continue
		}
		if run != nil {
			policyStages[string(stage)] = run.StageStatus
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"video":  video,
		"policy": policyStages,
	})
}

// GET /api/videos/:id/assets
func (h *VideoHandler) ListAssets(c *gin.Context) {
	id, ok := h.videoID(c)
	if !ok {
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	assets, err := h.assets.ListByTypes(dbc, id, []types.AssetType{
		types.AssetTypeGridImage,
		types.AssetTypeSlideImage,
		types.AssetTypeThumbnailImage,
		types.AssetTypeSlideAudio,
		types.AssetTypePromptText,
		types.AssetTypeRenderedVideo,
	})
	if err != nil {
		h.log.Error("asset lookup failed", "video_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"assets": assets})
}

// POST /api/videos/:id/generate-assets
func (h *VideoHandler) GenerateAssets(c *gin.Context) {
	h.startWorkflow(c, "assetgen-video-%d", assetgen.WorkflowName, func(id uint64) any {
		return assetgen.Input{VideoID: id}
	})
}

// POST /api/videos/:id/render
func (h *VideoHandler) Render(c *gin.Context) {
	h.startWorkflow(c, "render-video-%d", render.WorkflowName, func(id uint64) any {
		return render.Input{VideoID: id}
	})
}

func (h *VideoHandler) startWorkflow(c *gin.Context, idFormat, workflowName string, input func(uint64) any) {
	id, ok := h.videoID(c)
	if !ok {
		return
	}
	if h.tc == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pipelines are not configured"})
		return
	}
	cfg := temporalx.LoadConfig()
	run, err := h.tc.ExecuteWorkflow(c.Request.Context(), temporalsdkclient.StartWorkflowOptions{
		ID:        fmt.Sprintf(idFormat, id),
		TaskQueue: cfg.TaskQueue,
	}, workflowName, input(id))
	if err != nil {
		h.log.Error("workflow start failed", "video_id", id, "workflow", workflowName, "error", err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"workflow_id": run.GetID(),
		"run_id":      run.GetRunID(),
	})
}
