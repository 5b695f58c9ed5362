package assetgen

import (
	"fmt"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	types "github.com/yungbote/newsreel-backend/internal/domain"
	"github.com/yungbote/newsreel-backend/internal/pipeline/render"
)

// dbActivityOptions covers cheap idempotent database steps: constant-delay
// retries, since backing off further buys nothing against a local store.
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

// apiActivityOptions covers expensive external-API steps: exponential backoff
// against rate limits and transient upstream failures.
func apiActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    2 * time.Minute,
			MaximumAttempts:    5,
		},
	}
}

// Workflow drives one video from generated script to generated assets: claim,
// reference fetch, imagery, narration, policy gate, finalize, then the render
// pipeline unless policy blocked publication. Failures before the claim are
// refusals and leave the video untouched; failures after it write the error
// onto the video row.
func Workflow(ctx workflow.Context, in Input) (*Result, error) {
	log := workflow.GetLogger(ctx)
	dbCtx := workflow.WithActivityOptions(ctx, dbActivityOptions())
	apiCtx := workflow.WithActivityOptions(ctx, apiActivityOptions())

	refuse := func(step string, err error) (*Result, error) {
		log.Warn("asset generation refused", "video_id", in.VideoID, "step", step, "error", err)
		return &Result{Success: false, VideoID: in.VideoID, Error: fmt.Sprintf("%s: %v", step, err)}, err
	}
	fail := func(step string, err error) (*Result, error) {
		msg := fmt.Sprintf("%s: %v", step, err)
		// Disconnected context so the error still lands if the workflow
		// context is already cancelled.
		dctx, cancel := workflow.NewDisconnectedContext(ctx)
		defer cancel()
		dctx = workflow.WithActivityOptions(dctx, dbActivityOptions())
		if markErr := workflow.ExecuteActivity(dctx, ActivityMarkFailed, in.VideoID, msg).Get(dctx, nil); markErr != nil {
			log.Error("could not record asset error", "video_id", in.VideoID, "error", markErr)
		}
		return &Result{Success: false, VideoID: in.VideoID, Error: msg}, err
	}

	var loaded LoadResult
	if err := workflow.ExecuteActivity(dbCtx, ActivityLoadAndValidate, in.VideoID).Get(ctx, &loaded); err != nil {
		return refuse("load", err)
	}

	var voice string
	if err := workflow.ExecuteActivity(dbCtx, ActivityPinVoiceMarkGenerating, in.VideoID).Get(ctx, &voice); err != nil {
		return refuse("claim", err)
	}

	var refKeys []string
	if err := workflow.ExecuteActivity(apiCtx, ActivityFetchReferenceImages, in.VideoID).Get(ctx, &refKeys); err != nil {
		// Reference grounding is best-effort end to end.
		log.Warn("reference fetch failed; continuing without references", "video_id", in.VideoID, "error", err)
		refKeys = nil
	}

	var imagery ImagerySummary
	if err := workflow.ExecuteActivity(apiCtx, ActivityGenerateImagery,
		ImageryInput{VideoID: in.VideoID, ReferenceKeys: refKeys}).Get(ctx, &imagery); err != nil {
		return fail("imagery", err)
	}

	var narration NarrationSummary
	if err := workflow.ExecuteActivity(apiCtx, ActivityGenerateNarration, in.VideoID).Get(ctx, &narration); err != nil {
		return fail("narration", err)
	}

	var verdict PolicySummary
	if err := workflow.ExecuteActivity(apiCtx, ActivityRunAssetPolicyCheck, in.VideoID).Get(ctx, &verdict); err != nil {
		return fail("policy", err)
	}

	var finalized FinalizeResult
	if err := workflow.ExecuteActivity(dbCtx, ActivityFinalize, FinalizeInput{
		VideoID:      in.VideoID,
		Privacy:      verdict.Privacy,
		BlockReasons: verdict.BlockReasons,
	}).Get(ctx, &finalized); err != nil {
		return fail("finalize", err)
	}

	result := &Result{
		Success:      true,
		VideoID:      in.VideoID,
		PolicyStatus: verdict.OverallStatus,
		UploadStatus: finalized.UploadStatus,
		TotalCost:    finalized.TotalCost,
	}

	if verdict.OverallStatus == string(types.PolicyStatusBlock) {
		log.Info("policy blocked publication; render suppressed", "video_id", in.VideoID, "reasons", verdict.BlockReasons)
		return result, nil
	}

	// The render pipeline outlives this workflow: abandoned child, waited on
	// only until it is confirmed started.
	childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
		WorkflowID:        fmt.Sprintf("render-video-%d", in.VideoID),
		ParentClosePolicy: enumspb.PARENT_CLOSE_POLICY_ABANDON,
	})
	child := workflow.ExecuteChildWorkflow(childCtx, render.WorkflowName, render.Input{VideoID: in.VideoID})
	if err := child.GetChildWorkflowExecution().Get(ctx, nil); err != nil {
		log.Error("render pipeline failed to start", "video_id", in.VideoID, "error", err)
		return result, nil
	}
	result.RenderQueued = true
	return result, nil
}
