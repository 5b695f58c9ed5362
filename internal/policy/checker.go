package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	types "github.com/yungbote/newsreel-backend/internal/domain"
	"github.com/yungbote/newsreel-backend/internal/platform/gemini"
	"github.com/yungbote/newsreel-backend/internal/platform/logger"
)

const checkerSystemPrompt = `You are a content-policy reviewer for short news videos. You are given the
source article text and every generated slide image for one video. Evaluate the material against each
rule and return JSON only, matching this shape exactly:
{"findings":[{"rule_code":"...","status":"PASS|WARN|REVIEW|BLOCK","reason":"...","evidence":["..."]}]}
Rules to evaluate:
- GRAPHIC_VIOLENCE: gore, injury detail, or violent imagery beyond newsworthy context.
- REAL_PERSON_DEPICTION: photorealistic depictions of identifiable private individuals.
- MISINFO_VISUAL: imagery that materially misrepresents the article's claims.
- HATE_OR_HARASSMENT: content targeting protected groups.
- ADULT_CONTENT: sexual or explicit material.
Emit one finding per rule. Use BLOCK only for clear violations, REVIEW when a human must decide,
WARN for borderline-but-publishable, PASS otherwise. Evidence entries must reference the slide
index or quote the article text.`

// AssetCheckInput is everything the strong (image-aware) check sees: the
// source article and the full set of generated slide imagery.
type AssetCheckInput struct {
	ArticleTitle string
	ArticleText  string
	Images       []gemini.ReferenceImage
}

// Checker runs the asset-strong policy stage against a generative model and
// returns normalized findings for aggregation.
type Checker struct {
	log    *logger.Logger
	client gemini.Client
	model  string
}

func NewChecker(log *logger.Logger, client gemini.Client, model string) *Checker {
	return &Checker{log: log.With("service", "PolicyChecker"), client: client, model: model}
}

type checkerResponse struct {
	Findings []types.PolicyFinding `json:"findings"`
}

// CheckAssets sends the article text plus all slide images to the model and
// decodes its structured verdict. A response that cannot be decoded, or that
// carries no findings at all, is an error: the caller retries rather than
// treating a malformed verdict as a PASS.
func (c *Checker) CheckAssets(ctx context.Context, in AssetCheckInput) ([]types.PolicyFinding, gemini.Usage, error) {
	if len(in.Images) == 0 {
		return nil, gemini.Usage{}, fmt.Errorf("policy check: no images to evaluate")
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Article title: %s\n\n", strings.TrimSpace(in.ArticleTitle))
	fmt.Fprintf(&prompt, "Article text:\n%s\n\n", strings.TrimSpace(in.ArticleText))
	fmt.Fprintf(&prompt, "The %d attached images are the video's slides, in slide order.", len(in.Images))

	raw, usage, err := c.client.AnalyzeJSON(ctx, gemini.AnalysisRequest{
		Model:  c.model,
		System: checkerSystemPrompt,
		Prompt: prompt.String(),
		Images: in.Images,
	})
	if err != nil {
		return nil, usage, fmt.Errorf("policy check: %w", err)
	}

	var resp checkerResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, usage, fmt.Errorf("policy check: malformed verdict: %w", err)
	}
	if len(resp.Findings) == 0 {
		return nil, usage, fmt.Errorf("policy check: verdict carried no findings")
	}

	findings := make([]types.PolicyFinding, 0, len(resp.Findings))
	for _, f := range resp.Findings {
		f.Status = normalizeFindingStatus(f.Status)
		if strings.TrimSpace(f.RuleCode) == "" {
			f.RuleCode = "UNSPECIFIED"
		}
		findings = append(findings, f)
	}
	c.log.Info("asset policy check complete",
		"model", c.model, "findings", len(findings), "stage_status", DeriveStageStatus(findings))
	return findings, usage, nil
}

// normalizeFindingStatus maps whatever casing the model emitted onto the
// known statuses. Anything unrecognized escalates to REVIEW rather than
// silently passing.
func normalizeFindingStatus(s types.PolicyStatus) types.PolicyStatus {
	switch types.PolicyStatus(strings.ToUpper(strings.TrimSpace(string(s)))) {
	case types.PolicyStatusPass:
		return types.PolicyStatusPass
	case types.PolicyStatusWarn:
		return types.PolicyStatusWarn
	case types.PolicyStatusReview:
		return types.PolicyStatusReview
	case types.PolicyStatusBlock:
		return types.PolicyStatusBlock
	default:
		return types.PolicyStatusReview
	}
}
