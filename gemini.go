package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// The Gemini SDK does not expose image output, so the service is called over
// its REST API directly.
const (
	geminiBaseURL      = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel = "gemini-2.5-flash-image"
)

// EnhancementSettings steer the remote enhancement pass.
type EnhancementSettings struct {
	Prompt   string `json:"prompt"`
	Strength string `json:"strength"`
}

// RemoteImageService is the generative image collaborator. Every call either
// returns a full replacement image or an error; the core never retries.
type RemoteImageService interface {
	RemoveBackground(ctx context.Context, img Image) (Image, error)
	Generate(ctx context.Context, subject Image, scene, style, aspectRatio string, background *Image) (Image, error)
	Enhance(ctx context.Context, img Image, settings EnhancementSettings) (Image, error)
}

// GeminiClient calls the Gemini image model over REST.
type GeminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func NewGeminiClient(apiKey, model string) *GeminiClient {
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: geminiBaseURL,
		httpClient: &http.Client{
			// Image generation can take tens of seconds; per-call deadlines
			// come from the caller's context.
			Timeout: 120 * time.Second,
		},
	}
}

var _ RemoteImageService = (*GeminiClient)(nil)

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *geminiBlobData `json:"inlineData,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiBlobData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	Error      *geminiAPIError   `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// RemoveBackground asks the model for the subject isolated on a transparent
// background, returned as PNG.
func (c *GeminiClient) RemoveBackground(ctx context.Context, img Image) (Image, error) {
	prompt := "Remove the background from this image completely. " +
		"Keep only the main subject, perfectly cut out, on a fully transparent background. " +
		"Return the result as a PNG with transparency."
	return c.edit(ctx, "remove_background", prompt, img)
}

// Generate composes the subject into a new scene. An optional background
// reference image is passed alongside the subject.
func (c *GeminiClient) Generate(ctx context.Context, subject Image, scene, style, aspectRatio string, background *Image) (Image, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Place the subject from the first image into the following scene: %s.", scene)
	if style != "" {
		fmt.Fprintf(&sb, " Render the result in a %s style.", style)
	}
	if aspectRatio != "" {
		fmt.Fprintf(&sb, " Compose the output with a %s aspect ratio.", aspectRatio)
	}
	if background != nil {
		sb.WriteString(" Use the second image as the background reference.")
		return c.edit(ctx, "generate", sb.String(), subject, *background)
	}
	return c.edit(ctx, "generate", sb.String(), subject)
}

// Enhance runs a quality-improvement pass over the image.
func (c *GeminiClient) Enhance(ctx context.Context, img Image, settings EnhancementSettings) (Image, error) {
	prompt := settings.Prompt
	if prompt == "" {
		prompt = "Enhance this photo: improve sharpness, lighting and overall quality " +
			"without changing the composition or the subject."
	}
	if settings.Strength != "" {
		prompt += fmt.Sprintf(" Apply %s adjustments.", settings.Strength)
	}
	return c.edit(ctx, "enhance", prompt, img)
}

// edit sends one or more images plus an instruction and returns the first
// image in the response.
func (c *GeminiClient) edit(ctx context.Context, operation, instruction string, images ...Image) (Image, error) {
	startTime := time.Now()
	log.Ctx(ctx).Info().
		Str("model", c.model).
		Str("operation", operation).
		Int("images", len(images)).
		Msg("Calling image service")

	parts := make([]geminiPart, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, geminiPart{
			InlineData: &geminiBlobData{
				MIMEType: img.MIME,
				Data:     base64.StdEncoding.EncodeToString(img.Data),
			},
		})
	}
	parts = append(parts, geminiPart{Text: instruction})

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	})
	if err != nil {
		return Image{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Image{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Image{}, &RemoteError{Category: RemoteErrTimeout, Message: operation + " timed out"}
		}
		return Image{}, categorizeRemoteError(0, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Image{}, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed geminiResponse
	if jsonErr := json.Unmarshal(respBody, &parsed); jsonErr != nil {
		if resp.StatusCode != http.StatusOK {
			return Image{}, categorizeRemoteError(resp.StatusCode, truncateString(string(respBody), 200))
		}
		return Image{}, fmt.Errorf("failed to parse response: %w", jsonErr)
	}
	if parsed.Error != nil {
		return Image{}, categorizeRemoteError(parsed.Error.Code, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		log.Ctx(ctx).Error().
			Int("status", resp.StatusCode).
			Str("body", truncateString(string(respBody), 500)).
			Msg("Image service returned error")
		return Image{}, categorizeRemoteError(resp.StatusCode, truncateString(string(respBody), 200))
	}

	for _, candidate := range parsed.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil {
				continue
			}
			decoded, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return Image{}, fmt.Errorf("failed to decode image data: %w", err)
			}
			log.Ctx(ctx).Info().
				Str("operation", operation).
				Int("output_bytes", len(decoded)).
				Dur("duration", time.Since(startTime)).
				Msg("Image service call complete")
			return Image{Data: decoded, MIME: part.InlineData.MIMEType}, nil
		}
	}

	return Image{}, &RemoteError{Category: RemoteErrUnknown, Message: "no image returned in response"}
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
