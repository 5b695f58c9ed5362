package assetgen

import (
	"context"
	"strings"
	"testing"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	types "github.com/yungbote/newsreel-backend/internal/domain"
	"github.com/yungbote/newsreel-backend/internal/pipeline/render"
)

// stubEnv wires a workflow test environment where every activity is a
// recording stub. Individual tests override behavior before executing.
type stubEnv struct {
	env   *testsuite.TestWorkflowEnvironment
	steps []string

	policySummary PolicySummary
	imageryErr    error
	claimErr      error
	renderStarted bool
	failedMessage string
}

func newStubEnv(t *testing.T) *stubEnv {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	s := &stubEnv{
		env: ts.NewTestWorkflowEnvironment(),
		policySummary: PolicySummary{
			StageStatus:   string(types.PolicyStatusPass),
			OverallStatus: string(types.PolicyStatusPass),
			Privacy:       "public",
		},
	}

	s.env.RegisterWorkflowWithOptions(Workflow, workflow.RegisterOptions{Name: WorkflowName})
	s.env.RegisterWorkflowWithOptions(func(ctx workflow.Context, in render.Input) (*render.Result, error) {
		s.renderStarted = true
		return &render.Result{Success: true, VideoID: in.VideoID}, nil
	}, workflow.RegisterOptions{Name: render.WorkflowName})

	reg := func(name string, fn any) {
		s.env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
	}
	reg(ActivityLoadAndValidate, func(ctx context.Context, id uint64) (*LoadResult, error) {
		s.steps = append(s.steps, "load")
		return &LoadResult{SlideCount: 6, ImageModel: "gemini-2.5-flash-image", TTSModel: "gemini-2.5-flash-preview-tts"}, nil
	})
	reg(ActivityPinVoiceMarkGenerating, func(ctx context.Context, id uint64) (string, error) {
		s.steps = append(s.steps, "claim")
		if s.claimErr != nil {
			return "", s.claimErr
		}
		return "Kore", nil
	})
	reg(ActivityFetchReferenceImages, func(ctx context.Context, id uint64) ([]string, error) {
		s.steps = append(s.steps, "references")
		return []string{"videos/7/reference/a.jpg"}, nil
	})
	reg(ActivityGenerateImagery, func(ctx context.Context, in ImageryInput) (*ImagerySummary, error) {
		s.steps = append(s.steps, "imagery")
		if s.imageryErr != nil {
			return nil, s.imageryErr
		}
		return &ImagerySummary{GridCount: 1, SlideCount: 6, Cost: 0.04}, nil
	})
	reg(ActivityGenerateNarration, func(ctx context.Context, id uint64) (*NarrationSummary, error) {
		s.steps = append(s.steps, "narration")
		return &NarrationSummary{SlideCount: 6, Voice: "Kore", TotalMs: 22600, Cost: 0.02}, nil
	})
	reg(ActivityRunAssetPolicyCheck, func(ctx context.Context, id uint64) (*PolicySummary, error) {
		s.steps = append(s.steps, "policy")
		return &s.policySummary, nil
	})
	reg(ActivityFinalize, func(ctx context.Context, in FinalizeInput) (*FinalizeResult, error) {
		s.steps = append(s.steps, "finalize")
		uploadStatus := types.UploadStatusPending
		if in.Privacy == "none" {
			uploadStatus = types.UploadStatusBlocked
		}
		return &FinalizeResult{UploadStatus: uploadStatus, TotalCost: 0.06}, nil
	})
	reg(ActivityMarkFailed, func(ctx context.Context, id uint64, message string) error {
		s.failedMessage = message
		return nil
	})
	return s
}

func TestWorkflowHappyPathQueuesRender(t *testing.T) {
	s := newStubEnv(t)
	s.env.ExecuteWorkflow(WorkflowName, Input{VideoID: 7})

	if !s.env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := s.env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}

	var res Result
	if err := s.env.GetWorkflowResult(&res); err != nil {
		t.Fatalf("result: %v", err)
	}
	if !res.Success {
		t.Fatalf("result not successful: %+v", res)
	}
	if res.UploadStatus != types.UploadStatusPending {
		t.Fatalf("upload status = %q, want pending", res.UploadStatus)
	}
	if !res.RenderQueued || !s.renderStarted {
		t.Fatal("render pipeline was not started")
	}

	want := []string{"load", "claim", "references", "imagery", "narration", "policy", "finalize"}
	if len(s.steps) != len(want) {
		t.Fatalf("steps = %v, want %v", s.steps, want)
	}
	for i := range want {
		if s.steps[i] != want[i] {
			t.Fatalf("step %d = %q, want %q", i, s.steps[i], want[i])
		}
	}
	if s.failedMessage != "" {
		t.Fatalf("unexpected failure recorded: %q", s.failedMessage)
	}
}

func TestWorkflowBlockSuppressesRender(t *testing.T) {
	s := newStubEnv(t)
	s.policySummary = PolicySummary{
		StageStatus:   string(types.PolicyStatusBlock),
		OverallStatus: string(types.PolicyStatusBlock),
		Privacy:       "none",
		BlockReasons:  []string{"GRAPHIC_VIOLENCE: gore in slide 2"},
	}
	s.env.ExecuteWorkflow(WorkflowName, Input{VideoID: 7})

	if err := s.env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var res Result
	if err := s.env.GetWorkflowResult(&res); err != nil {
		t.Fatalf("result: %v", err)
	}
	if !res.Success {
		t.Fatalf("blocked video still finalizes: %+v", res)
	}
	if res.UploadStatus != types.UploadStatusBlocked {
		t.Fatalf("upload status = %q, want blocked", res.UploadStatus)
	}
	if res.RenderQueued || s.renderStarted {
		t.Fatal("render pipeline must not start for a blocked video")
	}
}

func TestWorkflowImageryFailureRecordsError(t *testing.T) {
	s := newStubEnv(t)
	s.imageryErr = temporal.NewNonRetryableApplicationError("generation service rejected the prompt", "upstream", nil)
	s.env.ExecuteWorkflow(WorkflowName, Input{VideoID: 7})

	if s.env.GetWorkflowError() == nil {
		t.Fatal("expected workflow error")
	}
	if !strings.Contains(s.failedMessage, "imagery") {
		t.Fatalf("asset error not recorded, got %q", s.failedMessage)
	}
	if s.renderStarted {
		t.Fatal("render must not start after a failed pipeline")
	}
	for _, step := range s.steps {
		if step == "narration" {
			t.Fatal("steps after the failed one must not run")
		}
	}
}

func TestWorkflowClaimRefusalLeavesVideoUntouched(t *testing.T) {
	s := newStubEnv(t)
	s.claimErr = temporal.NewNonRetryableApplicationError("not in a startable state", "precondition", nil)
	s.env.ExecuteWorkflow(WorkflowName, Input{VideoID: 7})

	if s.env.GetWorkflowError() == nil {
		t.Fatal("expected workflow error")
	}
	if s.failedMessage != "" {
		t.Fatalf("a refused claim must not write an asset error, got %q", s.failedMessage)
	}
	for _, step := range s.steps {
		if step == "imagery" {
			t.Fatal("pipeline body must not run after a refused claim")
		}
	}
}
