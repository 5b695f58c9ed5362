package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/newsreel-backend/internal/pipeline/assetgen"
	"github.com/yungbote/newsreel-backend/internal/pipeline/render"
	"github.com/yungbote/newsreel-backend/internal/platform/envutil"
	"github.com/yungbote/newsreel-backend/internal/platform/logger"
	"github.com/yungbote/newsreel-backend/internal/temporalx"
)

// Runner hosts both pipelines on one task queue.
type Runner struct {
	log        *logger.Logger
	tc         temporalsdkclient.Client
	assetActs  *assetgen.Activities
	renderActs *render.Activities
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, assetActs *assetgen.Activities, renderActs *render.Activities) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if assetActs == nil || renderActs == nil {
		return nil, fmt.Errorf("temporal worker missing activity deps")
	}
	return &Runner{log: log, tc: tc, assetActs: assetActs, renderActs: renderActs}, nil
}

// Start brings the worker up with startup retries, so a cold Temporal server
// or a not-yet-registered namespace does not take the process down.
func (r *Runner) Start(ctx context.Context) error {
	cfg := temporalx.LoadConfig()
	r.log.Info("starting temporal worker", "address", cfg.Address, "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue)

	if envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false) {
		if err := temporalx.EnsureNamespace(ctx, cfg, r.log); err != nil {
			r.log.Warn("temporal namespace ensure failed; worker start will retry", "namespace", cfg.Namespace, "error", err)
		}
	}

	maxWait := time.Duration(envutil.Int("TEMPORAL_WORKER_START_MAX_WAIT_SECONDS", 60)) * time.Second
	deadline := time.Now().Add(maxWait)

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		w := r.newWorker(cfg.TaskQueue)
		startErr := w.Start()
		if startErr == nil {
			go func() {
				<-ctx.Done()
				w.Stop()
			}()
			r.log.Info("temporal worker started", "task_queue", cfg.TaskQueue, "attempts", attempt)
			return nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		if errors.As(startErr, &nfe) && envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false) {
			_ = temporalx.EnsureNamespace(ctx, cfg, r.log)
		}

		if maxWait <= 0 || time.Now().After(deadline) {
			if errors.As(startErr, &nfe) {
				return fmt.Errorf("temporal namespace not found (namespace=%s): %w", cfg.Namespace, startErr)
			}
			return startErr
		}
		r.log.Warn("temporal worker failed to start; retrying", "attempt", attempt, "error", startErr)
		time.Sleep(startBackoff(attempt))
	}
}

func (r *Runner) newWorker(taskQueue string) worker.Worker {
	concurrency := envutil.Int("WORKER_CONCURRENCY", 8)
	if concurrency < 1 {
		concurrency = 1
	}
	w := worker.New(r.tc, taskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})

	w.RegisterWorkflowWithOptions(assetgen.Workflow, workflow.RegisterOptions{Name: assetgen.WorkflowName})
	w.RegisterWorkflowWithOptions(render.Workflow, workflow.RegisterOptions{Name: render.WorkflowName})

	reg := func(name string, fn any) {
		w.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
	}
	reg(assetgen.ActivityLoadAndValidate, r.assetActs.LoadAndValidate)
	reg(assetgen.ActivityPinVoiceMarkGenerating, r.assetActs.PinVoiceMarkGenerating)
	reg(assetgen.ActivityFetchReferenceImages, r.assetActs.FetchReferenceImages)
	reg(assetgen.ActivityGenerateImagery, r.assetActs.GenerateImagery)
	reg(assetgen.ActivityGenerateNarration, r.assetActs.GenerateNarration)
	reg(assetgen.ActivityRunAssetPolicyCheck, r.assetActs.RunAssetPolicyCheck)
	reg(assetgen.ActivityFinalize, r.assetActs.Finalize)
	reg(assetgen.ActivityMarkFailed, r.assetActs.MarkFailed)

	reg(render.ActivityClaimRender, r.renderActs.ClaimRender)
	reg(render.ActivityLoadRenderInputs, r.renderActs.LoadRenderInputs)
	reg(render.ActivityBuildTimeline, r.renderActs.BuildTimeline)
	reg(render.ActivityRenderInSandbox, r.renderActs.RenderInSandbox)
	reg(render.ActivityCompleteRender, r.renderActs.CompleteRender)
	reg(render.ActivityMarkFailed, r.renderActs.MarkFailed)

	return w
}

func startBackoff(attempt int) time.Duration {
	const base = 250 * time.Millisecond
	const max = 5 * time.Second
	sleep := base
	for i := 1; i < attempt; i++ {
		sleep *= 2
		if sleep >= max {
			return max
		}
	}
	return sleep
}
