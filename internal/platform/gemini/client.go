package gemini

import (
	"context"
	"fmt"
	"os"
	"strings"

	genai "google.golang.org/genai"

	"github.com/yungbote/newsreel-backend/internal/platform/logger"
)

// Usage carries the token counters reported by the API. They are advisory:
// when the API omits them the caller falls back to model-tier estimates for
// cost accounting.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

func (u Usage) Empty() bool { return u.InputTokens == 0 && u.OutputTokens == 0 }

// ReferenceImage grounds an image generation request in source-article
// photography.
type ReferenceImage struct {
	Data     []byte
	MimeType string
}

type ImageRequest struct {
	Model  string
	Prompt string
	// AspectRatio is a hint; the service may return slightly different pixel
	// dimensions than the ratio implies.
	AspectRatio     string
	ReferenceImages []ReferenceImage
}

type ImageResult struct {
	Data     []byte
	MimeType string
	Usage    Usage
}

type SpeechRequest struct {
	Model string
	Text  string
	Voice string
}

// SpeechResult carries raw PCM samples. Duration is always derived from the
// byte count downstream, never reported here.
type SpeechResult struct {
	PCM        []byte
	SampleRate int
	Channels   int
	BitDepth   int
	Usage      Usage
}

type AnalysisRequest struct {
	Model  string
	System string
	Prompt string
	Images []ReferenceImage
}

// Client is the narrow generative AI contract the pipelines consume:
// text in, image or audio or structured JSON out.
type Client interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error)
	GenerateSpeech(ctx context.Context, req SpeechRequest) (*SpeechResult, error)
	// AnalyzeJSON runs a multimodal prompt with a JSON response constraint and
	// returns the raw JSON text.
	AnalyzeJSON(ctx context.Context, req AnalysisRequest) ([]byte, Usage, error)
}

// Gemini TTS output format: 24kHz mono 16-bit little-endian PCM.
const (
	TTSSampleRate = 24000
	TTSChannels   = 1
	TTSBitDepth   = 16
)

type client struct {
	log *logger.Logger
	gc  *genai.Client
}

func NewClient(ctx context.Context, log *logger.Logger) (Client, error) {
	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing env var GEMINI_API_KEY")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &client{log: log.With("service", "GeminiClient"), gc: gc}, nil
}

func (c *client) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("gemini image: empty prompt")
	}
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	for _, ref := range req.ReferenceImages {
		if len(ref.Data) == 0 {
			continue
		}
		parts = append(parts, genai.NewPartFromBytes(ref.Data, ref.MimeType))
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}
	if strings.TrimSpace(req.AspectRatio) != "" {
		cfg.ImageConfig = &genai.ImageConfig{AspectRatio: req.AspectRatio}
	}

	resp, err := c.gc.Models.GenerateContent(ctx, req.Model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini image generation (model=%s): %w", req.Model, err)
	}

	out := &ImageResult{Usage: usageFrom(resp)}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				out.Data = part.InlineData.Data
				out.MimeType = part.InlineData.MIMEType
				break
			}
		}
		if out.Data != nil {
			break
		}
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("gemini image generation (model=%s): response carried no image bytes", req.Model)
	}
	if out.MimeType == "" {
		out.MimeType = "image/png"
	}
	return out, nil
}

func (c *client) GenerateSpeech(ctx context.Context, req SpeechRequest) (*SpeechResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("gemini speech: empty text")
	}
	if strings.TrimSpace(req.Voice) == "" {
		return nil, fmt.Errorf("gemini speech: no voice selected")
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: req.Voice},
			},
		},
	}

	resp, err := c.gc.Models.GenerateContent(ctx, req.Model,
		[]*genai.Content{genai.NewContentFromText(req.Text, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini speech synthesis (model=%s voice=%s): %w", req.Model, req.Voice, err)
	}

	out := &SpeechResult{
		SampleRate: TTSSampleRate,
		Channels:   TTSChannels,
		BitDepth:   TTSBitDepth,
		Usage:      usageFrom(resp),
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				out.PCM = part.InlineData.Data
				break
			}
		}
		if out.PCM != nil {
			break
		}
	}
	if len(out.PCM) == 0 {
		return nil, fmt.Errorf("gemini speech synthesis (model=%s): response carried no audio bytes", req.Model)
	}
	return out, nil
}

func (c *client) AnalyzeJSON(ctx context.Context, req AnalysisRequest) ([]byte, Usage, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, Usage{}, fmt.Errorf("gemini analysis: empty prompt")
	}
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	for _, img := range req.Images {
		if len(img.Data) == 0 {
			continue
		}
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MimeType))
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	if strings.TrimSpace(req.System) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := c.gc.Models.GenerateContent(ctx, req.Model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, Usage{}, fmt.Errorf("gemini analysis (model=%s): %w", req.Model, err)
	}

	usage := usageFrom(resp)
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, usage, fmt.Errorf("gemini analysis (model=%s): empty response", req.Model)
	}
	return []byte(text), usage, nil
}

func usageFrom(resp *genai.GenerateContentResponse) Usage {
	if resp == nil || resp.UsageMetadata == nil {
		return Usage{}
	}
	return Usage{
		InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
		OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
	}
}
