package assetgen

// Workflow and activity registration names.
const (
	WorkflowName = "asset-generation"

	ActivityLoadAndValidate        = "assetgen.LoadAndValidate"
	ActivityPinVoiceMarkGenerating = "assetgen.PinVoiceMarkGenerating"
	ActivityFetchReferenceImages   = "assetgen.FetchReferenceImages"
	ActivityGenerateImagery        = "assetgen.GenerateImagery"
	ActivityGenerateNarration      = "assetgen.GenerateNarration"
	ActivityRunAssetPolicyCheck    = "assetgen.RunAssetPolicyCheck"
	ActivityFinalize               = "assetgen.Finalize"
	ActivityMarkFailed             = "assetgen.MarkFailed"
)

type Input struct {
	VideoID uint64 `json:"video_id"`
}

// Result is the workflow's terminal summary. Media never crosses the
// workflow boundary; activities persist bytes and return scalars.
type Result struct {
	Success      bool    `json:"success"`
	VideoID      uint64  `json:"video_id"`
	PolicyStatus string  `json:"policy_status,omitempty"`
	UploadStatus string  `json:"upload_status,omitempty"`
	TotalCost    float64 `json:"total_cost,omitempty"`
	RenderQueued bool    `json:"render_queued"`
	Error        string  `json:"error,omitempty"`
}

type LoadResult struct {
	SlideCount int    `json:"slide_count"`
	ImageModel string `json:"image_model"`
	TTSModel   string `json:"tts_model"`
}

type ImageryInput struct {
	VideoID       uint64   `json:"video_id"`
	ReferenceKeys []string `json:"reference_keys,omitempty"`
}

type ImagerySummary struct {
	GridCount    int     `json:"grid_count"`
	SlideCount   int     `json:"slide_count"`
	ThumbnailURL string  `json:"thumbnail_url"`
	Cost         float64 `json:"cost"`
}

type NarrationSummary struct {
	SlideCount  int     `json:"slide_count"`
	ReusedCount int     `json:"reused_count"`
	Voice       string  `json:"voice"`
	TotalMs     int64   `json:"total_ms"`
	Cost        float64 `json:"cost"`
}

type PolicySummary struct {
	StageStatus   string   `json:"stage_status"`
	OverallStatus string   `json:"overall_status"`
	Privacy       string   `json:"privacy"`
	BlockReasons  []string `json:"block_reasons,omitempty"`
}

type FinalizeInput struct {
	VideoID      uint64   `json:"video_id"`
	Privacy      string   `json:"privacy"`
	BlockReasons []string `json:"block_reasons,omitempty"`
}

type FinalizeResult struct {
	UploadStatus string  `json:"upload_status"`
	TotalCost    float64 `json:"total_cost"`
}
