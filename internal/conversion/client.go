package conversion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/constructai-backend/pkg/config"
)

const (
	remoteModelName      = "hunyuan3d-2"
	responseBodyLimit    = 1 << 20
	errorBodyPreviewSize = 512
)

var errBaseURLRequired = errors.New("inference base url is required")

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// Usable reports whether the service is up with the model in memory.
func (h HealthStatus) Usable() bool {
	return strings.EqualFold(h.Status, "healthy") && h.ModelLoaded
}

// JobStatus is the body of GET /status/{job_id}.
type JobStatus struct {
	Status   string        `json:"status"`
	Progress float64       `json:"progress"`
	Message  string        `json:"message"`
	Result   *RemoteOutput `json:"result"`
	Error    string        `json:"error"`
}

type RemoteOutput struct {
	ModelURL   string     `json:"model_url"`
	ObjURL     string     `json:"obj_url"`
	ImageURL   string     `json:"image_url"`
	TextureURL string     `json:"texture_url"`
	MeshStats  *MeshStats `json:"mesh_stats"`
}

type MeshStats struct {
	Vertices    int          `json:"vertices"`
	Faces       int          `json:"faces"`
	Materials   int          `json:"materials"`
	HasTexture  bool         `json:"has_texture"`
	BoundingBox *BoundingBox `json:"bounding_box"`
}

type BoundingBox struct {
	Min []float64 `json:"min"`
	Max []float64 `json:"max"`
}

type startResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// Source is the uploaded image handed to the remote service.
type Source struct {
	FileName string
	MimeType string
	Body     io.Reader
}

// Client speaks the remote inference HTTP contract.
type Client struct {
	httpClient    *http.Client
	baseURL       *url.URL
	healthTimeout time.Duration
	startTimeout  time.Duration
	statusTimeout time.Duration
}

// ClientOption configures optional client behavior.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds a client for cfg.BaseURL.
func NewClient(cfg config.InferenceConfig, opts ...ClientOption) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errBaseURLRequired
	}
	base, err := url.Parse(strings.TrimRight(raw, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse inference base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("inference base url must be http(s), got %q", raw)
	}

	c := &Client{
		httpClient:    &http.Client{},
		baseURL:       base,
		healthTimeout: orDefault(cfg.HealthTimeout, 5*time.Second),
		startTimeout:  orDefault(cfg.StartTimeout, 120*time.Second),
		statusTimeout: orDefault(cfg.StatusTimeout, 10*time.Second),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Endpoint returns the configured base URL without the trailing slash.
func (c *Client) Endpoint() string {
	return strings.TrimRight(c.baseURL.String(), "/")
}

// Health probes GET /health within the health timeout.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("health"), nil)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("build health request: %w", err)
	}
	var out HealthStatus
	if err := c.do(req, &out); err != nil {
		return HealthStatus{}, fmt.Errorf("health probe: %w", err)
	}
	return out, nil
}

// Start submits the image and settings to POST /generate3d and returns the
// remote job id.
func (c *Client) Start(ctx context.Context, src Source, settings Settings) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.startTimeout)
	defer cancel()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeGenerateForm(mw, src, settings))
	}()
	defer pr.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("generate3d"), pr)
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out startResponse
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("start job: %w", err)
	}
	if !out.Success || strings.TrimSpace(out.JobID) == "" {
		msg := out.Message
		if msg == "" {
			msg = out.Detail
		}
		return "", fmt.Errorf("%w: start rejected: %s", ErrRemoteFailed, msg)
	}
	return out.JobID, nil
}

// Status reads GET /status/{jobID} within the status timeout.
func (c *Client) Status(ctx context.Context, jobID string) (JobStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("status/"+url.PathEscape(jobID)), nil)
	if err != nil {
		return JobStatus{}, fmt.Errorf("build status request: %w", err)
	}
	var out JobStatus
	if err := c.do(req, &out); err != nil {
		return JobStatus{}, fmt.Errorf("job status: %w", err)
	}
	return out, nil
}

// ResolveURL turns a server relative reference such as /download/x/model_glb
// into an absolute URL. Absolute references are returned unchanged.
func (c *Client) ResolveURL(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if parsed.IsAbs() {
		return ref
	}
	// Keep any path prefix on the base when the reference is root relative.
	parsed.Path = strings.TrimLeft(parsed.Path, "/")
	return c.baseURL.ResolveReference(parsed).String()
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.ResolveReference(&url.URL{Path: path}).String()
}

func (c *Client) do(req *http.Request, dest any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		preview := string(body)
		if len(preview) > errorBodyPreviewSize {
			preview = preview[:errorBodyPreviewSize]
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(preview))
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func writeGenerateForm(mw *multipart.Writer, src Source, s Settings) error {
	fields := [][2]string{
		{"prompt", s.Prompt},
		{"style", s.Style.String()},
		{"quality", s.Quality.String()},
		{"model", remoteModelName},
		{"include_textures", strconv.FormatBool(s.IncludeTextures)},
		{"octree_resolution", strconv.Itoa(s.OctreeResolution)},
		{"num_inference_steps", strconv.Itoa(s.NumInferenceSteps)},
		{"guidance_scale", strconv.FormatFloat(s.GuidanceScale, 'f', -1, 64)},
		{"max_face_count", strconv.Itoa(s.MaxFaceCount)},
		{"seed", strconv.FormatInt(s.Seed, 10)},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, src.FileName))
	header.Set("Content-Type", src.MimeType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src.Body); err != nil {
		return fmt.Errorf("copy image: %w", err)
	}
	return mw.Close()
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
