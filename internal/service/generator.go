package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"app/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Generator renders one product mockup for an artwork and returns the stored
// image URL. One call corresponds to one credit.
type Generator interface {
	RenderMockup(ctx context.Context, artworkURL, category string) (string, error)
}

// categoryPrompts maps a product category to the render prompt sent to the
// image model.
var categoryPrompts = map[string]string{
	"wall_art":   "A framed print of the artwork hanging on a bright living room wall, photorealistic",
	"apparel":    "A person wearing a t-shirt printed with the artwork, studio photo",
	"mug":        "A ceramic mug printed with the artwork on a wooden table, soft daylight",
	"poster":     "A large poster of the artwork on a concrete gallery wall",
	"canvas":     "The artwork as a stretched canvas print in a minimalist interior",
	"phone_case": "A phone case printed with the artwork, product photo on white",
	"tote_bag":   "A cotton tote bag printed with the artwork, lifestyle photo",
	"pillow":     "A throw pillow printed with the artwork on a sofa, interior photo",
}

// KnownCategory reports whether a mockup category is supported.
func KnownCategory(category string) bool {
	_, ok := categoryPrompts[category]
	return ok
}

// renderClient calls the external image-generation API and stores the result
// in S3.
type renderClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	s3Client   *s3.Client
	bucket     string
	publicBase string
	logger     zerolog.Logger
}

// NewGenerator builds the production Generator.
func NewGenerator(cfg *config.Config, s3Client *s3.Client, logger zerolog.Logger) Generator {
	return &renderClient{
		baseURL:    strings.TrimRight(cfg.RenderAPIBaseURL, "/"),
		apiKey:     cfg.RenderAPIKey,
		httpClient: &http.Client{Timeout: time.Duration(cfg.RenderRequestTimeoutSec) * time.Second},
		s3Client:   s3Client,
		bucket:     cfg.S3Bucket,
		publicBase: strings.TrimRight(cfg.S3PublicBaseURL, "/"),
		logger:     logger.With().Str("service", "Generator").Logger(),
	}
}

func (c *renderClient) RenderMockup(ctx context.Context, artworkURL, category string) (string, error) {
	prompt, ok := categoryPrompts[category]
	if !ok {
		return "", fmt.Errorf("unknown mockup category: %s", category)
	}

	start := time.Now()
	data, err := c.render(ctx, artworkURL, prompt)
	if err != nil {
		return "", err
	}
	c.logger.Info().
		Str("category", category).
		Str("duration", time.Since(start).String()).
		Msg("Render call succeeded")

	key := fmt.Sprintf("mockups/%s.png", uuid.NewString())
	if _, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/png"),
	}); err != nil {
		return "", fmt.Errorf("store rendered mockup: %w", err)
	}

	return c.publicBase + "/" + key, nil
}

// render calls the generation endpoint and returns the raw image bytes,
// following either a base64 payload or a hosted result URL.
func (c *renderClient) render(ctx context.Context, artworkURL, prompt string) ([]byte, error) {
	requestBody := map[string]interface{}{
		"image_url": artworkURL,
		"prompt":    prompt,
		"size":      "1024x1024",
	}
	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/images/generations", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("render API status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var response struct {
		Data []struct {
			URL     string `json:"url"`
			B64JSON string `json:"b64_json"`
		} `json:"data"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("decode render response: %w", err)
	}
	if response.Error != nil {
		return nil, fmt.Errorf("render API error: %s", response.Error.Message)
	}
	if len(response.Data) == 0 {
		return nil, fmt.Errorf("render API returned no images")
	}

	if b64 := response.Data[0].B64JSON; b64 != "" {
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("decode rendered image: %w", err)
		}
		return data, nil
	}
	return c.download(ctx, response.Data[0].URL)
}

func (c *renderClient) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download rendered image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download rendered image: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
