package render

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/newsreel-backend/internal/media/timeline"
)

func dbActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 1.0,
			MaximumAttempts:    5,
		},
	}
}

func renderActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 20 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    10 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    2 * time.Minute,
			MaximumAttempts:    3,
		},
	}
}

// Workflow renders one video whose assets are fully generated: claim, load
// the slide media set, compute the timeline, run the external renderer in a
// sandbox, then mark the video rendered. A failed claim is a refusal; any
// later failure writes the render error onto the video row.
func Workflow(ctx workflow.Context, in Input) (*Result, error) {
	log := workflow.GetLogger(ctx)
	dbCtx := workflow.WithActivityOptions(ctx, dbActivityOptions())
	renderCtx := workflow.WithActivityOptions(ctx, renderActivityOptions())

	fail := func(step string, err error) (*Result, error) {
		msg := fmt.Sprintf("%s: %v", step, err)
		dctx, cancel := workflow.NewDisconnectedContext(ctx)
		defer cancel()
		dctx = workflow.WithActivityOptions(dctx, dbActivityOptions())
		if markErr := workflow.ExecuteActivity(dctx, ActivityMarkFailed, in.VideoID, msg).Get(dctx, nil); markErr != nil {
			log.Error("could not record render error", "video_id", in.VideoID, "error", markErr)
		}
		return &Result{Success: false, VideoID: in.VideoID, Error: msg}, err
	}

	if err := workflow.ExecuteActivity(dbCtx, ActivityClaimRender, in.VideoID).Get(ctx, nil); err != nil {
		log.Warn("render refused", "video_id", in.VideoID, "error", err)
		return &Result{Success: false, VideoID: in.VideoID, Error: err.Error()}, err
	}

	var inputs RenderInputs
	if err := workflow.ExecuteActivity(dbCtx, ActivityLoadRenderInputs, in.VideoID).Get(ctx, &inputs); err != nil {
		return fail("load inputs", err)
	}

	var tl timeline.Timeline
	if err := workflow.ExecuteActivity(dbCtx, ActivityBuildTimeline, inputs).Get(ctx, &tl); err != nil {
		return fail("timeline", err)
	}

	var summary RenderSummary
	if err := workflow.ExecuteActivity(renderCtx, ActivityRenderInSandbox,
		RenderRequest{VideoID: in.VideoID, Timeline: &tl}).Get(ctx, &summary); err != nil {
		return fail("render", err)
	}

	if err := workflow.ExecuteActivity(dbCtx, ActivityCompleteRender, in.VideoID).Get(ctx, nil); err != nil {
		return fail("complete", err)
	}

	return &Result{
		Success:    true,
		VideoID:    in.VideoID,
		PublicURL:  summary.PublicURL,
		DurationMs: summary.DurationMs,
	}, nil
}
