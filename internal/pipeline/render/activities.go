package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"

	types "github.com/yungbote/newsreel-backend/internal/domain"
	"github.com/yungbote/newsreel-backend/internal/data/repos"
	"github.com/yungbote/newsreel-backend/internal/media/mp4"
	"github.com/yungbote/newsreel-backend/internal/media/timeline"
	"github.com/yungbote/newsreel-backend/internal/platform/dbctx"
	"github.com/yungbote/newsreel-backend/internal/platform/envutil"
	"github.com/yungbote/newsreel-backend/internal/platform/gcp"
	"github.com/yungbote/newsreel-backend/internal/platform/logger"
	"github.com/yungbote/newsreel-backend/internal/platform/sandbox"
)

const (
	compositionPath = "/workspace/composition.json"
	outputPath      = "/workspace/output.mp4"
)

type Activities struct {
	Log     *logger.Logger
	Videos  repos.VideoRepo
	Assets  repos.GeneratedAssetRepo
	Bucket  gcp.BucketService
	Sandbox sandbox.Service
}

func failFatal(format string, args ...any) error {
	return temporal.NewNonRetryableApplicationError(fmt.Sprintf(format, args...), "precondition", nil)
}

func (a *Activities) ClaimRender(ctx context.Context, videoID uint64) error {
	claimed, err := a.Videos.MarkRendering(dbctx.Context{Ctx: ctx}, videoID)
	if err != nil {
		return err
	}
	if !claimed {
		return failFatal("video %d: not renderable (assets not generated, or another render holds it)", videoID)
	}
	a.Log.Info("render claimed", "video_id", videoID)
	return nil
}

// LoadRenderInputs assembles the per-slide image/audio pairs. Any hole in
// the asset set is a data-integrity failure and fails loudly: rendering a
// partial video would silently drop story content.
func (a *Activities) LoadRenderInputs(ctx context.Context, videoID uint64) (*RenderInputs, error) {
	dbc := dbctx.Context{Ctx: ctx}
	assets, err := a.Assets.ListByTypes(dbc, videoID,
		[]types.AssetType{types.AssetTypeSlideImage, types.AssetTypeSlideAudio})
	if err != nil {
		return nil, err
	}

	imageBySlide := map[int]string{}
	audioBySlide := map[int]*types.GeneratedAsset{}
	for _, asset := range assets {
		switch asset.AssetType {
		case types.AssetTypeSlideImage:
			imageBySlide[asset.AssetIndex] = asset.PublicURL
		case types.AssetTypeSlideAudio:
			audioBySlide[asset.AssetIndex] = asset
		}
	}
	if len(imageBySlide) == 0 {
		return nil, failFatal("video %d: no slide images to render", videoID)
	}
	if len(audioBySlide) != len(imageBySlide) {
		return nil, failFatal("video %d: %d slide images but %d audio tracks", videoID, len(imageBySlide), len(audioBySlide))
	}

	inputs := make([]timeline.SlideInput, 0, len(imageBySlide))
	for slideIndex, imageURL := range imageBySlide {
		audioAsset, ok := audioBySlide[slideIndex]
		if !ok {
			return nil, failFatal("video %d: slide %d has no audio track", videoID, slideIndex)
		}
		meta, err := audioAsset.AudioMetadata()
		if err != nil {
			return nil, failFatal("video %d: slide %d: %v", videoID, slideIndex, err)
		}
		if meta.DurationMs <= 0 {
			return nil, failFatal("video %d: slide %d audio has no measured duration", videoID, slideIndex)
		}
		inputs = append(inputs, timeline.SlideInput{
			SlideIndex: slideIndex,
			ImageURL:   imageURL,
			AudioURL:   audioAsset.PublicURL,
			DurationMs: meta.DurationMs,
		})
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].SlideIndex < inputs[j].SlideIndex })

	return &RenderInputs{VideoID: videoID, Slides: inputs}, nil
}

func (a *Activities) BuildTimeline(ctx context.Context, in RenderInputs) (*timeline.Timeline, error) {
	tl, err := timeline.Build(in.Slides)
	if err != nil {
		return nil, failFatal("video %d: %v", in.VideoID, err)
	}
	a.Log.Info("timeline built",
		"video_id", in.VideoID, "slides", len(tl.Segments), "frames", tl.TotalFrames, "duration_ms", tl.DurationMs)
	return tl, nil
}

// RenderInSandbox runs the external renderer inside a disposable sandbox:
// write the composition, run the renderer against public media URLs, probe
// and read back the output, validate it structurally, then upload and persist
// it. The sandbox is killed on every path.
func (a *Activities) RenderInSandbox(ctx context.Context, req RenderRequest) (*RenderSummary, error) {
	if req.Timeline == nil || len(req.Timeline.Segments) == 0 {
		return nil, failFatal("video %d: empty timeline", req.VideoID)
	}

	sess, err := a.Sandbox.Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("create sandbox: %w", err)
	}
	defer func() {
		killCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := sess.Kill(killCtx); err != nil {
			a.Log.Warn("sandbox teardown failed", "video_id", req.VideoID, "sandbox_id", sess.ID(), "error", err)
		}
	}()

	composition, err := json.Marshal(req.Timeline)
	if err != nil {
		return nil, err
	}
	if err := sess.WriteFile(ctx, compositionPath, composition); err != nil {
		return nil, fmt.Errorf("write composition: %w", err)
	}

	renderCmd := envutil.String("RENDER_COMMAND",
		fmt.Sprintf("newsreel-render --composition %s --output %s", compositionPath, outputPath))
	renderTimeout := time.Duration(envutil.Int("RENDER_TIMEOUT_SECONDS", 600)) * time.Second
	res, err := sess.RunCommand(ctx, renderCmd, renderTimeout)
	if err != nil {
		return nil, fmt.Errorf("run renderer: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("renderer exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	probed, err := a.probe(ctx, sess)
	if err != nil {
		return nil, err
	}

	data, err := sess.ReadFile(ctx, outputPath)
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	info, err := mp4.Validate(data)
	if err != nil {
		return nil, fmt.Errorf("video %d: rendered file failed validation: %w", req.VideoID, err)
	}
	durationMs := probed.durationMs
	if durationMs <= 0 {
		durationMs = info.DurationMs
	}
	if durationMs <= 0 {
		return nil, fmt.Errorf("video %d: rendered file reports no duration", req.VideoID)
	}

	key := gcp.ObjectKey(req.VideoID, "renders", "mp4")
	if err := a.Bucket.Upload(ctx, key, "video/mp4", bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("upload render: %w", err)
	}

	asset := &types.GeneratedAsset{
		VideoID:    req.VideoID,
		AssetType:  types.AssetTypeRenderedVideo,
		StorageKey: key,
		PublicURL:  a.Bucket.PublicURL(key),
		MimeType:   "video/mp4",
		SizeBytes:  int64(len(data)),
	}
	meta := types.RenderMetadata{
		Width:      probed.width,
		Height:     probed.height,
		DurationMs: durationMs,
		Codec:      probed.codec,
		FrameRate:  probed.frameRate,
		SlideCount: len(req.Timeline.Segments),
	}
	if err := asset.EncodeMetadata(meta); err != nil {
		return nil, err
	}
	if err := a.Assets.ReplaceForTypes(dbctx.Context{Ctx: ctx}, req.VideoID,
		[]types.AssetType{types.AssetTypeRenderedVideo}, []*types.GeneratedAsset{asset}); err != nil {
		return nil, err
	}

	a.Log.Info("render complete",
		"video_id", req.VideoID, "bytes", len(data), "duration_ms", durationMs, "codec", probed.codec)
	return &RenderSummary{
		PublicURL:  asset.PublicURL,
		SizeBytes:  asset.SizeBytes,
		DurationMs: durationMs,
		Width:      probed.width,
		Height:     probed.height,
		Codec:      probed.codec,
	}, nil
}

func (a *Activities) CompleteRender(ctx context.Context, videoID uint64) error {
	return a.Videos.MarkRendered(dbctx.Context{Ctx: ctx}, videoID)
}

func (a *Activities) MarkFailed(ctx context.Context, videoID uint64, message string) error {
	return a.Videos.MarkRenderError(dbctx.Context{Ctx: ctx}, videoID, message)
}

type probeInfo struct {
	width      int
	height     int
	codec      string
	frameRate  float64
	durationMs int64
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (a *Activities) probe(ctx context.Context, sess sandbox.Session) (*probeInfo, error) {
	cmd := fmt.Sprintf("ffprobe -v error -print_format json -show_format -show_streams %s", outputPath)
	res, err := sess.RunCommand(ctx, cmd, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("probe output: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("ffprobe exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	var out ffprobeOutput
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return nil, fmt.Errorf("probe output: %w", err)
	}

	info := &probeInfo{}
	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		info.width = s.Width
		info.height = s.Height
		info.codec = s.CodecName
		info.frameRate = parseFrameRate(s.AvgFrameRate)
		break
	}
	if info.width == 0 || info.height == 0 {
		return nil, fmt.Errorf("probe output: no video stream")
	}
	if secs, err := strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64); err == nil {
		info.durationMs = int64(secs * 1000)
	}
	return info, nil
}

// parseFrameRate reads ffprobe's fractional rate form ("30/1").
func parseFrameRate(s string) float64 {
	parts := strings.SplitN(strings.TrimSpace(s), "/", 2)
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0
	}
	if len(parts) == 1 {
		return num
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || den == 0 {
		return 0
	}
	return num / den
}
