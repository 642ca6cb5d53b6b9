package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"mediascribe/internal/services"
)

const defaultHTTPTimeout = 30 * time.Second

// Config captures the runtime settings required to talk to the vision API.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
}

// Detection is one recognized text region in an image.
type Detection struct {
	Text       string
	Confidence float64
}

// TextResult is the outcome of text detection on a single image: the full
// concatenated text plus the individual regions.
type TextResult struct {
	FullText   string
	Detections []Detection
}

// Object is one localized object in an image.
type Object struct {
	Name       string
	Confidence float64
}

// Label is one image-level classification label.
type Label struct {
	Description string
	Confidence  float64
}

// Annotator is the subset of the vision back-end the pipeline depends on.
type Annotator interface {
	TextDetection(ctx context.Context, imagePath string) (TextResult, error)
	ObjectLocalization(ctx context.Context, imagePath string) ([]Object, error)
	LabelDetection(ctx context.Context, imagePath string) ([]Label, error)
}

// Client wraps the vision annotation REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a vision client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:  strings.TrimSpace(cfg.APIKey),
			BaseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://vision.googleapis.com/v1"
	}
	return client
}

type wireImage struct {
	Content string `json:"content"`
}

type wireFeature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults,omitempty"`
}

type wireAnnotateRequest struct {
	Image    wireImage     `json:"image"`
	Features []wireFeature `json:"features"`
}

type annotateRequest struct {
	Requests []wireAnnotateRequest `json:"requests"`
}

type wireTextAnnotation struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

type wireObjectAnnotation struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type wireLabelAnnotation struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

type wireStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type wireAnnotateResponse struct {
	TextAnnotations            []wireTextAnnotation   `json:"textAnnotations"`
	LocalizedObjectAnnotations []wireObjectAnnotation `json:"localizedObjectAnnotations"`
	LabelAnnotations           []wireLabelAnnotation  `json:"labelAnnotations"`
	Error                      *wireStatus            `json:"error"`
}

type annotateResponse struct {
	Responses []wireAnnotateResponse `json:"responses"`
}

// TextDetection runs OCR on the image. The first annotation the API returns
// spans the whole image; subsequent annotations are individual regions.
func (c *Client) TextDetection(ctx context.Context, imagePath string) (TextResult, error) {
	resp, err := c.annotate(ctx, imagePath, "TEXT_DETECTION")
	if err != nil {
		return TextResult{}, err
	}

	var result TextResult
	for i, annotation := range resp.TextAnnotations {
		if i == 0 {
			result.FullText = strings.TrimSpace(annotation.Description)
			continue
		}
		result.Detections = append(result.Detections, Detection{
			Text:       annotation.Description,
			Confidence: annotation.Score,
		})
	}
	return result, nil
}

// ObjectLocalization finds distinct objects in the image.
func (c *Client) ObjectLocalization(ctx context.Context, imagePath string) ([]Object, error) {
	resp, err := c.annotate(ctx, imagePath, "OBJECT_LOCALIZATION")
	if err != nil {
		return nil, err
	}
	objects := make([]Object, 0, len(resp.LocalizedObjectAnnotations))
	for _, annotation := range resp.LocalizedObjectAnnotations {
		objects = append(objects, Object{Name: annotation.Name, Confidence: annotation.Score})
	}
	return objects, nil
}

// LabelDetection classifies the image into descriptive labels.
func (c *Client) LabelDetection(ctx context.Context, imagePath string) ([]Label, error) {
	resp, err := c.annotate(ctx, imagePath, "LABEL_DETECTION")
	if err != nil {
		return nil, err
	}
	labels := make([]Label, 0, len(resp.LabelAnnotations))
	for _, annotation := range resp.LabelAnnotations {
		labels = append(labels, Label{Description: annotation.Description, Confidence: annotation.Score})
	}
	return labels, nil
}

func (c *Client) annotate(ctx context.Context, imagePath, feature string) (wireAnnotateResponse, error) {
	var empty wireAnnotateResponse
	if c.cfg.APIKey == "" {
		return empty, services.Wrap(services.ErrConfiguration, "vision", "annotate", "missing VISION_API_KEY", nil)
	}

	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return empty, services.Wrap(services.ErrUnsupportedInput, "vision", "read image", imagePath, err)
	}

	request := annotateRequest{
		Requests: []wireAnnotateRequest{{
			Image:    wireImage{Content: base64.StdEncoding.EncodeToString(imageData)},
			Features: []wireFeature{{Type: feature, MaxResults: 50}},
		}},
	}
	body, err := json.Marshal(request)
	if err != nil {
		return empty, fmt.Errorf("vision: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/images:annotate?key="+c.cfg.APIKey, bytes.NewReader(body))
	if err != nil {
		return empty, fmt.Errorf("vision: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, services.Wrap(services.ErrTransient, "vision", "annotate", feature, err)
	}
	defer httpResp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(httpResp.Body, 16<<20))
	if err != nil {
		return empty, services.Wrap(services.ErrTransient, "vision", "read response", feature, err)
	}
	if httpResp.StatusCode != http.StatusOK {
		marker := services.ErrTransient
		if httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden {
			marker = services.ErrConfiguration
		}
		return empty, services.Wrap(marker, "vision", "http "+strconv.Itoa(httpResp.StatusCode), strings.TrimSpace(string(payload)), nil)
	}

	var decoded annotateResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return empty, fmt.Errorf("vision: decode response: %w", err)
	}
	if len(decoded.Responses) == 0 {
		return empty, nil
	}
	single := decoded.Responses[0]
	if single.Error != nil {
		return empty, services.Wrap(services.ErrTransient, "vision", feature, single.Error.Message, nil)
	}
	return single, nil
}
