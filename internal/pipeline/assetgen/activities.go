package assetgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"

	types "github.com/yungbote/newsreel-backend/internal/domain"
	"github.com/yungbote/newsreel-backend/internal/data/repos"
	"github.com/yungbote/newsreel-backend/internal/media/audio"
	"github.com/yungbote/newsreel-backend/internal/platform/dbctx"
	"github.com/yungbote/newsreel-backend/internal/platform/gcp"
	"github.com/yungbote/newsreel-backend/internal/platform/gemini"
	"github.com/yungbote/newsreel-backend/internal/platform/logger"
	"github.com/yungbote/newsreel-backend/internal/policy"
	"github.com/yungbote/newsreel-backend/internal/tasks"
)

const (
	maxReferenceImages    = 3
	maxReferenceImageSize = 8 << 20
)

type Activities struct {
	Log      *logger.Logger
	Videos   repos.VideoRepo
	Scripts  repos.VideoScriptRepo
	Assets   repos.GeneratedAssetRepo
	Policies repos.PolicyRunRepo
	Costs    repos.CostLogRepo
	Bucket   gcp.BucketService
	Gen      gemini.Client
	Checker  *policy.Checker
	HTTP     *http.Client
}

// failFatal marks an error non-retryable: retrying cannot fix a missing row,
// a malformed script or a violated precondition.
func failFatal(format string, args ...any) error {
	return temporal.NewNonRetryableApplicationError(fmt.Sprintf(format, args...), "precondition", nil)
}

func (a *Activities) load(ctx context.Context, videoID uint64) (*types.Video, []types.Slide, *types.VideoScript, error) {
	dbc := dbctx.Context{Ctx: ctx}
	video, err := a.Videos.Get(dbc, videoID)
	if err != nil {
		return nil, nil, nil, err
	}
	if video == nil {
		return nil, nil, nil, failFatal("video %d not found", videoID)
	}
	script, err := a.Scripts.GetByVideoID(dbc, videoID)
	if err != nil {
		return nil, nil, nil, err
	}
	if script == nil {
		return nil, nil, nil, failFatal("video %d has no script", videoID)
	}
	slides, err := script.DecodeSlides()
	if err != nil {
		return nil, nil, nil, failFatal("video %d: %v", videoID, err)
	}
	return video, slides, script, nil
}

func (a *Activities) LoadAndValidate(ctx context.Context, videoID uint64) (*LoadResult, error) {
	video, slides, _, err := a.load(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if video.ScriptStatus != types.ScriptStatusGenerated {
		return nil, failFatal("video %d: script status is %q, want %q", videoID, video.ScriptStatus, types.ScriptStatusGenerated)
	}
	if video.ImageModel == "" || video.TTSModel == "" {
		return nil, failFatal("video %d: missing generation model configuration", videoID)
	}
	if len(slides) == 0 {
		return nil, failFatal("video %d: script has no slides", videoID)
	}
	if budget := slideBudgetFor(video.VideoType); len(slides) > budget {
		return nil, failFatal("video %d: %d slides exceed the %d-slide %s budget", videoID, len(slides), budget, video.VideoType)
	}
	return &LoadResult{SlideCount: len(slides), ImageModel: video.ImageModel, TTSModel: video.TTSModel}, nil
}

func (a *Activities) PinVoiceMarkGenerating(ctx context.Context, videoID uint64) (string, error) {
	dbc := dbctx.Context{Ctx: ctx}
	claimed, err := a.Videos.MarkAssetGenerating(dbc, videoID, pickVoice(videoID))
	if err != nil {
		return "", err
	}
	if !claimed {
		return "", failFatal("video %d: not in a startable state (script not generated, or another run holds it)", videoID)
	}
	video, err := a.Videos.Get(dbc, videoID)
	if err != nil {
		return "", err
	}
	a.Log.Info("asset generation claimed", "video_id", videoID, "voice", video.TTSVoice)
	return video.TTSVoice, nil
}

// FetchReferenceImages caches up to three source-article photos in the media
// bucket for generation grounding. Best-effort: an unreachable photo is
// skipped, never fatal.
func (a *Activities) FetchReferenceImages(ctx context.Context, videoID uint64) ([]string, error) {
	dbc := dbctx.Context{Ctx: ctx}
	video, err := a.Videos.Get(dbc, videoID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, failFatal("video %d not found", videoID)
	}

	var urls []string
	if len(video.ArticleImageURLs) > 0 {
		if err := json.Unmarshal(video.ArticleImageURLs, &urls); err != nil {
			a.Log.Warn("unreadable article image list; skipping references", "video_id", videoID, "error", err)
			return nil, nil
		}
	}

	var keys []string
	for _, u := range urls {
		if len(keys) >= maxReferenceImages {
			break
		}
		data, mimeType, err := a.fetchImage(ctx, u)
		if err != nil {
			a.Log.Warn("reference image fetch failed; skipping", "video_id", videoID, "url", u, "error", err)
			continue
		}
		key := gcp.ObjectKey(videoID, "reference", gcp.ExtForMime(mimeType))
		if err := a.Bucket.Upload(ctx, key, mimeType, bytes.NewReader(data)); err != nil {
			a.Log.Warn("reference image upload failed; skipping", "video_id", videoID, "url", u, "error", err)
			continue
		}
		keys = append(keys, key)
	}
	a.Log.Info("reference images cached", "video_id", videoID, "count", len(keys))
	return keys, nil
}

func (a *Activities) fetchImage(ctx context.Context, url string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	httpClient := a.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReferenceImageSize))
	if err != nil {
		return nil, "", err
	}
	mimeType := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, "", fmt.Errorf("content type %q is not an image", mimeType)
	}
	return data, mimeType, nil
}

func (a *Activities) GenerateImagery(ctx context.Context, in ImageryInput) (*ImagerySummary, error) {
	video, slides, script, err := a.load(ctx, in.VideoID)
	if err != nil {
		return nil, err
	}

	var refs []gemini.ReferenceImage
	for _, key := range in.ReferenceKeys {
		data, err := a.Bucket.Download(ctx, key)
		if err != nil {
			a.Log.Warn("reference image download failed; generating without it", "video_id", in.VideoID, "key", key, "error", err)
			continue
		}
		refs = append(refs, gemini.ReferenceImage{Data: data, MimeType: gcp.MimeForKey(key)})
	}

	dbc := dbctx.Context{Ctx: ctx}
	strategy := ImageryForModel(a.Log, a.Gen, video.ImageModel)

	job := ImageryJob{
		VideoID:              in.VideoID,
		VideoType:            video.VideoType,
		ArticleTitle:         video.ArticleTitle,
		Slides:               slides,
		ThumbnailDescription: script.ThumbnailDescription,
		References:           refs,
	}

	// Per-slide generation can keep slides persisted by an earlier attempt of
	// this step, as long as they came from the same model; the grid branch
	// always regenerates its composites wholesale.
	var reused []*types.GeneratedAsset
	if _, ok := strategy.(*singleImagery); ok {
		existing, err := a.Assets.ListByTypes(dbc, in.VideoID, []types.AssetType{types.AssetTypeSlideImage})
		if err != nil {
			return nil, err
		}
		job.SkipSlides = make(map[int]bool, len(existing))
		for _, row := range existing {
			meta, err := row.ImageMetadata()
			if err != nil || meta.Model != video.ImageModel {
				continue
			}
			job.SkipSlides[meta.SlideIndex] = true
			reused = append(reused, row)
		}
	}

	out, genErr := strategy.Generate(ctx, job)
	if genErr != nil && (out == nil || len(out.Slides) == 0) {
		return nil, genErr
	}

	var assets []*types.GeneratedAsset
	for _, row := range reused {
		copyRow := *row
		copyRow.ID = uuid.Nil
		assets = append(assets, &copyRow)
	}

	for _, g := range out.Grids {
		asset, err := a.uploadAsset(ctx, in.VideoID, types.AssetTypeGridImage, g.GridIndex, "grids", g.Data, g.MimeType)
		if err != nil {
			return nil, err
		}
		if err := asset.EncodeMetadata(g.Layout); err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	for _, s := range out.Slides {
		asset, err := a.uploadAsset(ctx, in.VideoID, types.AssetTypeSlideImage, s.SlideIndex, "slides", s.Data, s.MimeType)
		if err != nil {
			return nil, err
		}
		meta := types.ImageMetadata{SlideIndex: s.SlideIndex, Width: s.Width, Height: s.Height, Model: video.ImageModel}
		if err := asset.EncodeMetadata(meta); err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}

	if genErr != nil {
		// Persist and bill the slides that landed before surfacing the batch
		// error, so a retry regenerates only the gaps.
		if err := a.Assets.ReplaceForTypes(dbc, in.VideoID, []types.AssetType{types.AssetTypeSlideImage}, assets); err != nil {
			return nil, err
		}
		if _, err := a.appendCosts(dbc, in.VideoID, types.CostKindImage, video.ImageModel, out.Calls); err != nil {
			return nil, err
		}
		return nil, genErr
	}

	thumbImg := out.Thumbnail
	if thumbImg == nil {
		// Final slide was reused this pass; its stored bytes stand in.
		thumbImg, err = a.thumbnailFromStored(ctx, reused, slides[len(slides)-1].Index)
		if err != nil {
			return nil, err
		}
	}
	thumb, err := a.uploadAsset(ctx, in.VideoID, types.AssetTypeThumbnailImage, 0, "thumbnails", thumbImg.Data, thumbImg.MimeType)
	if err != nil {
		return nil, err
	}
	thumbMeta := types.ImageMetadata{Width: thumbImg.Width, Height: thumbImg.Height, Model: video.ImageModel, Thumbnail: true}
	if err := thumb.EncodeMetadata(thumbMeta); err != nil {
		return nil, err
	}
	assets = append(assets, thumb)

	for i, prompt := range out.Prompts {
		asset, err := a.uploadAsset(ctx, in.VideoID, types.AssetTypePromptText, i, "prompts", []byte(prompt), "text/plain")
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}

	replaced := []types.AssetType{
		types.AssetTypeGridImage,
		types.AssetTypeSlideImage,
		types.AssetTypeThumbnailImage,
		types.AssetTypePromptText,
	}
	if err := a.Assets.ReplaceForTypes(dbc, in.VideoID, replaced, assets); err != nil {
		return nil, err
	}

	cost, err := a.appendCosts(dbc, in.VideoID, types.CostKindImage, video.ImageModel, out.Calls)
	if err != nil {
		return nil, err
	}

	a.Log.Info("imagery generated",
		"video_id", in.VideoID, "grids", len(out.Grids), "slides", len(out.Slides), "reused", len(reused), "cost", cost)
	return &ImagerySummary{
		GridCount:    len(out.Grids),
		SlideCount:   len(out.Slides) + len(reused),
		ThumbnailURL: thumb.PublicURL,
		Cost:         cost,
	}, nil
}

func (a *Activities) thumbnailFromStored(ctx context.Context, rows []*types.GeneratedAsset, slideIndex int) (*GeneratedImage, error) {
	for _, row := range rows {
		meta, err := row.ImageMetadata()
		if err != nil || meta.SlideIndex != slideIndex {
			continue
		}
		data, err := a.Bucket.Download(ctx, row.StorageKey)
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", row.StorageKey, err)
		}
		return &GeneratedImage{
			Data:      data,
			MimeType:  row.MimeType,
			Width:     meta.Width,
			Height:    meta.Height,
			Thumbnail: true,
		}, nil
	}
	return nil, failFatal("no image for final slide %d to derive a thumbnail from", slideIndex)
}

func (a *Activities) GenerateNarration(ctx context.Context, videoID uint64) (*NarrationSummary, error) {
	video, slides, _, err := a.load(ctx, videoID)
	if err != nil {
		return nil, err
	}
	voice := strings.TrimSpace(video.TTSVoice)
	if voice == "" {
		return nil, failFatal("video %d: no narration voice pinned", videoID)
	}

	dbc := dbctx.Context{Ctx: ctx}
	existing, err := a.Assets.ListByTypes(dbc, videoID, []types.AssetType{types.AssetTypeSlideAudio})
	if err != nil {
		return nil, err
	}
	// Audio persisted by an earlier attempt of this step is kept as long as
	// its voice matches the pin; only the gaps are regenerated.
	reusable := make(map[int]*types.GeneratedAsset, len(existing))
	for _, row := range existing {
		meta, err := row.AudioMetadata()
		if err != nil || meta.Voice != voice || meta.DurationMs <= 0 {
			continue
		}
		reusable[meta.SlideIndex] = row
	}
	var missing []types.Slide
	for _, s := range slides {
		if _, ok := reusable[s.Index]; !ok {
			missing = append(missing, s)
		}
	}

	type audioResult struct {
		asset *types.GeneratedAsset
		call  GenerationCall
		ms    int64
	}
	results, runErr := tasks.Run(ctx, gemini.ConcurrencyLimit(video.TTSModel), len(missing),
		func(ctx context.Context, i int) (audioResult, error) {
			slide := missing[i]
			res, err := a.Gen.GenerateSpeech(ctx, gemini.SpeechRequest{
				Model: video.TTSModel,
				Text:  slide.Narration,
				Voice: voice,
			})
			if err != nil {
				return audioResult{}, fmt.Errorf("slide %d: %w", slide.Index, err)
			}
			durationMs, err := audio.DurationMs(len(res.PCM), res.SampleRate, res.Channels, res.BitDepth)
			if err != nil {
				return audioResult{}, fmt.Errorf("slide %d: %w", slide.Index, err)
			}
			wav, err := audio.EncodeWAV(res.PCM, res.SampleRate, res.Channels, res.BitDepth)
			if err != nil {
				return audioResult{}, fmt.Errorf("slide %d: %w", slide.Index, err)
			}
			asset, err := a.uploadAsset(ctx, videoID, types.AssetTypeSlideAudio, slide.Index, "audio", wav, "audio/wav")
			if err != nil {
				return audioResult{}, fmt.Errorf("slide %d: %w", slide.Index, err)
			}
			meta := types.AudioMetadata{
				SlideIndex: slide.Index,
				Voice:      voice,
				DurationMs: durationMs,
				SampleRate: res.SampleRate,
				Channels:   res.Channels,
				BitDepth:   res.BitDepth,
			}
			if err := asset.EncodeMetadata(meta); err != nil {
				return audioResult{}, err
			}
			return audioResult{asset: asset, call: callFor(video.TTSModel, "audio", res.Usage), ms: durationMs}, nil
		})

	// Persist every success before surfacing the batch error: a retry of this
	// step must not re-bill work that already landed.
	var rows []*types.GeneratedAsset
	var calls []GenerationCall
	var totalMs int64
	for _, row := range reusable {
		copyRow := *row
		copyRow.ID = uuid.Nil
		rows = append(rows, &copyRow)
	}
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		rows = append(rows, r.Value.asset)
		calls = append(calls, r.Value.call)
		totalMs += r.Value.ms
	}
	if err := a.Assets.ReplaceForTypes(dbc, videoID, []types.AssetType{types.AssetTypeSlideAudio}, rows); err != nil {
		return nil, err
	}
	cost, err := a.appendCosts(dbc, videoID, types.CostKindAudio, video.TTSModel, calls)
	if err != nil {
		return nil, err
	}
	if runErr != nil {
		return nil, fmt.Errorf("narration for video %d: %w", videoID, runErr)
	}

	for _, row := range reusable {
		if meta, err := row.AudioMetadata(); err == nil {
			totalMs += meta.DurationMs
		}
	}
	a.Log.Info("narration generated",
		"video_id", videoID, "slides", len(slides), "reused", len(reusable), "total_ms", totalMs, "cost", cost)
	return &NarrationSummary{
		SlideCount:  len(slides),
		ReusedCount: len(reusable),
		Voice:       voice,
		TotalMs:     totalMs,
		Cost:        cost,
	}, nil
}

func (a *Activities) RunAssetPolicyCheck(ctx context.Context, videoID uint64) (*PolicySummary, error) {
	video, _, _, err := a.load(ctx, videoID)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	slideAssets, err := a.Assets.ListByTypes(dbc, videoID, []types.AssetType{types.AssetTypeSlideImage})
	if err != nil {
		return nil, err
	}
	if len(slideAssets) == 0 {
		return nil, failFatal("video %d: no slide imagery to check", videoID)
	}

	images := make([]gemini.ReferenceImage, 0, len(slideAssets))
	for _, asset := range slideAssets {
		data, err := a.Bucket.Download(ctx, asset.StorageKey)
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", asset.StorageKey, err)
		}
		images = append(images, gemini.ReferenceImage{Data: data, MimeType: asset.MimeType})
	}

	findings, _, err := a.Checker.CheckAssets(ctx, policy.AssetCheckInput{
		ArticleTitle: video.ArticleTitle,
		ArticleText:  video.ArticleText,
		Images:       images,
	})
	if err != nil {
		return nil, err
	}

	stage := policy.DeriveStageStatus(findings)
	run := &types.PolicyRun{VideoID: videoID, Stage: types.PolicyStageAssetStrong, StageStatus: stage}
	if err := run.SetFindings(findings); err != nil {
		return nil, err
	}
	if err := a.Policies.Create(dbc, run); err != nil {
		return nil, err
	}

	var scriptStatus types.PolicyStatus
	if scriptRun, err := a.Policies.GetLatestByStage(dbc, videoID, types.PolicyStageScriptLight); err != nil {
		return nil, err
	} else if scriptRun != nil {
		scriptStatus = scriptRun.StageStatus
	}
	overall := policy.DeriveOverallStatus(scriptStatus, stage)
	privacy := policy.DerivePublishPrivacy(overall)

	var blockReasons []string
	for _, f := range findings {
		if f.Status == types.PolicyStatusBlock {
			blockReasons = append(blockReasons, fmt.Sprintf("%s: %s", f.RuleCode, f.Reason))
		}
	}

	a.Log.Info("asset policy stage derived",
		"video_id", videoID, "stage_status", stage, "overall", overall, "privacy", privacy)
	return &PolicySummary{
		StageStatus:   string(stage),
		OverallStatus: string(overall),
		Privacy:       string(privacy),
		BlockReasons:  blockReasons,
	}, nil
}

func (a *Activities) Finalize(ctx context.Context, in FinalizeInput) (*FinalizeResult, error) {
	dbc := dbctx.Context{Ctx: ctx}
	total, err := a.Costs.SumForVideo(dbc, in.VideoID)
	if err != nil {
		return nil, err
	}
	uploadStatus := types.UploadStatusPending
	if in.Privacy == string(policy.PublishNone) {
		uploadStatus = types.UploadStatusBlocked
	}
	var blockJSON []byte
	if len(in.BlockReasons) > 0 {
		blockJSON, err = json.Marshal(in.BlockReasons)
		if err != nil {
			return nil, err
		}
	}
	if err := a.Videos.MarkAssetGenerated(dbc, in.VideoID, uploadStatus, total, blockJSON); err != nil {
		return nil, err
	}
	a.Log.Info("asset generation finalized",
		"video_id", in.VideoID, "upload_status", uploadStatus, "total_cost", total)
	return &FinalizeResult{UploadStatus: uploadStatus, TotalCost: total}, nil
}

func (a *Activities) MarkFailed(ctx context.Context, videoID uint64, message string) error {
	return a.Videos.MarkAssetError(dbctx.Context{Ctx: ctx}, videoID, message)
}

func (a *Activities) uploadAsset(ctx context.Context, videoID uint64, assetType types.AssetType, index int, kind string, data []byte, mimeType string) (*types.GeneratedAsset, error) {
	key := gcp.ObjectKey(videoID, kind, gcp.ExtForMime(mimeType))
	if err := a.Bucket.Upload(ctx, key, mimeType, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}
	return &types.GeneratedAsset{
		VideoID:    videoID,
		AssetType:  assetType,
		AssetIndex: index,
		StorageKey: key,
		PublicURL:  a.Bucket.PublicURL(key),
		MimeType:   mimeType,
		SizeBytes:  int64(len(data)),
	}, nil
}

func (a *Activities) appendCosts(dbc dbctx.Context, videoID uint64, kind types.CostKind, model string, calls []GenerationCall) (float64, error) {
	if len(calls) == 0 {
		return 0, nil
	}
	entries := make([]*types.CostLogEntry, 0, len(calls))
	var total float64
	for _, c := range calls {
		cost := gemini.Cost(model, c.Usage)
		total += cost
		entries = append(entries, &types.CostLogEntry{
			VideoID:      videoID,
			Kind:         kind,
			Model:        model,
			InputTokens:  c.Usage.InputTokens,
			OutputTokens: c.Usage.OutputTokens,
			Estimated:    c.Estimated,
			Cost:         cost,
		})
	}
	if err := a.Costs.Append(dbc, entries); err != nil {
		return 0, err
	}
	return total, nil
}
