package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/yungbote/newsreel-backend/internal/platform/logger"
)

// Service provisions disposable execution sandboxes for video composition.
// A session is a remote machine with a filesystem and a shell; callers must
// Kill every session they create, success or failure.
type Service interface {
	Create(ctx context.Context) (Session, error)
}

type Session interface {
	ID() string
	WriteFile(ctx context.Context, path string, data []byte) error
	ReadFile(ctx context.Context, path string) ([]byte, error)
	RunCommand(ctx context.Context, cmd string, timeout time.Duration) (*CommandResult, error)
	Kill(ctx context.Context) error
}

type CommandResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

type Config struct {
	BaseURL  string
	APIKey   string
	Template string
}

func LoadConfig() Config {
	return Config{
		BaseURL:  strings.TrimRight(strings.TrimSpace(os.Getenv("SANDBOX_SERVICE_URL")), "/"),
		APIKey:   strings.TrimSpace(os.Getenv("SANDBOX_API_KEY")),
		Template: strings.TrimSpace(os.Getenv("SANDBOX_TEMPLATE")),
	}
}

type service struct {
	log  *logger.Logger
	cfg  Config
	http *http.Client
}

func NewService(log *logger.Logger) (Service, error) {
	cfg := LoadConfig()
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("missing env var SANDBOX_SERVICE_URL")
	}
	return &service{
		log:  log.With("service", "SandboxService"),
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Minute},
	}, nil
}

func (s *service) Create(ctx context.Context) (Session, error) {
	body := map[string]string{}
	if s.cfg.Template != "" {
		body["template"] = s.cfg.Template
	}
	var out struct {
		SandboxID string `json:"sandbox_id"`
	}
	if err := s.doJSON(ctx, http.MethodPost, "/v1/sandboxes", body, &out); err != nil {
		return nil, fmt.Errorf("sandbox create: %w", err)
	}
	if strings.TrimSpace(out.SandboxID) == "" {
		return nil, fmt.Errorf("sandbox create: service returned no sandbox id")
	}
	s.log.Info("Sandbox created", "sandbox_id", out.SandboxID)
	return &session{svc: s, id: out.SandboxID}, nil
}

type session struct {
	svc *service
	id  string
}

func (se *session) ID() string { return se.id }

func (se *session) WriteFile(ctx context.Context, path string, data []byte) error {
	endpoint := fmt.Sprintf("/v1/sandboxes/%s/files?path=%s", se.id, url.QueryEscape(path))
	if err := se.svc.doRaw(ctx, http.MethodPut, endpoint, data, nil); err != nil {
		return fmt.Errorf("sandbox %s: write %s: %w", se.id, path, err)
	}
	return nil
}

func (se *session) ReadFile(ctx context.Context, path string) ([]byte, error) {
	endpoint := fmt.Sprintf("/v1/sandboxes/%s/files?path=%s", se.id, url.QueryEscape(path))
	var out []byte
	if err := se.svc.doRaw(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, fmt.Errorf("sandbox %s: read %s: %w", se.id, path, err)
	}
	return out, nil
}

func (se *session) RunCommand(ctx context.Context, cmd string, timeout time.Duration) (*CommandResult, error) {
	body := map[string]any{
		"cmd":             cmd,
		"timeout_seconds": int(timeout.Seconds()),
	}
	var out CommandResult
	endpoint := fmt.Sprintf("/v1/sandboxes/%s/commands", se.id)
	if err := se.svc.doJSON(ctx, http.MethodPost, endpoint, body, &out); err != nil {
		return nil, fmt.Errorf("sandbox %s: run command: %w", se.id, err)
	}
	return &out, nil
}

func (se *session) Kill(ctx context.Context) error {
	endpoint := fmt.Sprintf("/v1/sandboxes/%s", se.id)
	if err := se.svc.doRaw(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
		return fmt.Errorf("sandbox %s: kill: %w", se.id, err)
	}
	return nil
}

func (s *service) doJSON(ctx context.Context, method, endpoint string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.cfg.BaseURL+endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: status %d: %s", method, endpoint, resp.StatusCode, truncate(string(raw), 300))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (s *service) doRaw(ctx context.Context, method, endpoint string, body []byte, out *[]byte) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.cfg.BaseURL+endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	s.authorize(req)

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: status %d: %s", method, endpoint, resp.StatusCode, truncate(string(raw), 300))
	}
	if out != nil {
		*out = raw
	}
	return nil
}

func (s *service) authorize(req *http.Request) {
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
