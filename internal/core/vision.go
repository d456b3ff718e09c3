package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"gwi.com/traegpt/internal/store"
	"gwi.com/traegpt/internal/utils"
)

// VisionEndpoint names one hosted image model.
type VisionEndpoint string

const (
	EndpointCaption  VisionEndpoint = "caption"
	EndpointClassify VisionEndpoint = "classify"
	EndpointDetect   VisionEndpoint = "detect"
	EndpointOCR      VisionEndpoint = "ocr"
	EndpointDescribe VisionEndpoint = "describe"
	EndpointGemini   VisionEndpoint = "gemini"
)

const maxImageFindings = 5

var huggingFaceModels = map[VisionEndpoint]string{
	EndpointCaption:  "nlpconnect/vit-gpt2-image-captioning",
	EndpointClassify: "google/vit-base-patch16-224",
	EndpointDetect:   "facebook/detr-resnet-50",
	EndpointOCR:      "microsoft/trocr-base-printed",
	EndpointDescribe: "google/vit-base-patch16-224",
}

// Image is an uploaded picture held in memory.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// Format returns the image subtype ("png", "jpeg") for multimodal providers.
func (i Image) Format() string {
	ct := i.ContentType
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(i.Data)
	}
	ct, _, _ = strings.Cut(ct, ";")
	if sub, ok := strings.CutPrefix(ct, "image/"); ok {
		return sub
	}
	return "jpeg"
}

// ImageDescriber produces prose for an image (the Gemini endpoint).
type ImageDescriber interface {
	DescribeImage(ctx context.Context, img Image) (string, error)
}

type VisionService struct {
	apiKey     string
	baseURL    string
	endpoints  []VisionEndpoint
	timeout    time.Duration
	describer  ImageDescriber
	httpClient *http.Client
}

func NewVisionService(apiKey, baseURL string, endpoints []string, timeout time.Duration, describer ImageDescriber) (*VisionService, error) {
	s := &VisionService{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		describer:  describer,
		httpClient: &http.Client{},
	}
	for _, name := range endpoints {
		ep := VisionEndpoint(strings.TrimSpace(strings.ToLower(name)))
		if ep == "" {
			continue
		}
		if _, ok := huggingFaceModels[ep]; !ok && ep != EndpointGemini {
			return nil, fmt.Errorf("unknown vision endpoint %q", name)
		}
		s.endpoints = append(s.endpoints, ep)
	}
	if len(s.endpoints) == 0 {
		return nil, errors.New("no vision endpoints configured")
	}
	return s, nil
}

// Query posts the image to the model behind endpoint and returns the provider JSON untouched.
func (s *VisionService) Query(ctx context.Context, endpoint VisionEndpoint, img Image) ([]byte, error) {
	model, ok := huggingFaceModels[endpoint]
	if !ok {
		return nil, fmt.Errorf("unknown vision endpoint %q", endpoint)
	}
	if s.apiKey == "" {
		return nil, fmt.Errorf("HuggingFace API key: %w", ErrNotConfigured)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/"+model, bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, classifyTimeout(ctx, fmt.Errorf("%s request: %w", endpoint, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTimeout(ctx, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Op: "Image " + string(endpoint), Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// Describe runs the classification model and renders its top labels as a sentence.
func (s *VisionService) Describe(ctx context.Context, img Image) (string, error) {
	body, err := s.Query(ctx, EndpointDescribe, img)
	if err != nil {
		return "", err
	}
	labels, err := parseLabels(body)
	if err != nil {
		return "", err
	}
	return describeLabels(labels), nil
}

// Analyze calls every configured endpoint concurrently, each under its own timeout.
// A failing endpoint leaves its field empty; only a total failure is an error.
func (s *VisionService) Analyze(ctx context.Context, img Image) (*store.ImageResult, error) {
	start := time.Now()
	partials := make([]store.ImageResult, len(s.endpoints))
	errs := make([]error, len(s.endpoints))

	var g errgroup.Group
	for i, ep := range s.endpoints {
		g.Go(func() error {
			partials[i], errs[i] = s.runEndpoint(ctx, ep, img)
			if errs[i] != nil {
				slog.Warn("vision endpoint failed", "endpoint", ep, "error", errs[i])
			}
			return nil
		})
	}
	g.Wait()

	result := &store.ImageResult{}
	failures, timeouts := 0, 0
	for i := range s.endpoints {
		if errs[i] != nil {
			failures++
			if errors.Is(errs[i], ErrTimeout) {
				timeouts++
			}
			continue
		}
		mergeImageResult(result, partials[i])
	}

	if result.IsEmpty() {
		switch {
		case failures == 0:
			return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, ErrEmptyResponse)
		case timeouts == failures:
			return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, ErrTimeout)
		}
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, errors.Join(errs...))
	}
	result.AnalysisTime = roundSeconds(time.Since(start))
	return result, nil
}

func (s *VisionService) runEndpoint(ctx context.Context, ep VisionEndpoint, img Image) (store.ImageResult, error) {
	var r store.ImageResult
	switch ep {
	case EndpointGemini:
		if s.describer == nil {
			return r, fmt.Errorf("gemini describer: %w", ErrNotConfigured)
		}
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		text, err := s.describer.DescribeImage(ctx, img)
		if err != nil {
			return r, classifyTimeout(ctx, err)
		}
		r.Description = text
		return r, nil
	case EndpointDescribe:
		text, err := s.Describe(ctx, img)
		r.Description = text
		return r, err
	}

	body, err := s.Query(ctx, ep, img)
	if err != nil {
		return r, err
	}
	switch ep {
	case EndpointCaption:
		texts, err := parseGeneratedText(body)
		if err != nil {
			return r, err
		}
		r.Caption = texts[0]
	case EndpointOCR:
		texts, err := parseGeneratedText(body)
		if err != nil {
			return r, err
		}
		for _, t := range texts {
			r.TextExtraction = append(r.TextExtraction, store.TextSpan{Text: t})
		}
	case EndpointClassify:
		r.Classification, err = parseLabels(body)
	case EndpointDetect:
		r.ObjectDetection, err = parseLabels(body)
	}
	return r, err
}

func mergeImageResult(dst *store.ImageResult, src store.ImageResult) {
	if src.Caption != "" {
		dst.Caption = src.Caption
	}
	if src.Description != "" {
		dst.Description = src.Description
	}
	if len(src.Classification) > 0 {
		dst.Classification = src.Classification
	}
	if len(src.ObjectDetection) > 0 {
		dst.ObjectDetection = src.ObjectDetection
	}
	if len(src.TextExtraction) > 0 {
		dst.TextExtraction = src.TextExtraction
	}
}

// parseGeneratedText reads image-to-text output: [{"generated_text": "..."}].
func parseGeneratedText(body []byte) ([]string, error) {
	var raw []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse generated text: %w", err)
	}
	var texts []string
	for _, r := range raw {
		if t := strings.TrimSpace(r.GeneratedText); t != "" {
			texts = append(texts, t)
		}
	}
	if len(texts) == 0 {
		return nil, ErrEmptyResponse
	}
	return texts, nil
}

// parseLabels reads classification and detection output: [{"label", "score", "box"?}].
func parseLabels(body []byte) ([]store.Label, error) {
	var raw []struct {
		Label string     `json:"label"`
		Score float64    `json:"score"`
		Box   *store.Box `json:"box"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse labels: %w", err)
	}
	labels := make([]store.Label, 0, len(raw))
	for _, r := range raw {
		if r.Label == "" {
			r.Label = "object"
		}
		labels = append(labels, store.Label{Label: r.Label, Confidence: clampFraction(r.Score), Box: r.Box})
	}
	if len(labels) == 0 {
		return nil, ErrEmptyResponse
	}
	return utils.TopN(labels, maxImageFindings, func(l store.Label) float64 { return l.Confidence }), nil
}

func describeLabels(labels []store.Label) string {
	if len(labels) == 0 {
		return "I can see in this image: various objects and elements."
	}
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, fmt.Sprintf("%s (%s confidence)", l.Label, formatPercent(l.Confidence)))
	}
	return "I can see in this image: " + strings.Join(parts, ", ") + "."
}

// Summarize renders an ImageResult as the text appended to the user turn sent to the model.
func Summarize(r *store.ImageResult) string {
	if r.IsEmpty() {
		return ""
	}
	var lines []string
	if r.Caption != "" {
		lines = append(lines, "Caption: "+r.Caption)
	}
	if r.Description != "" {
		lines = append(lines, "Description: "+r.Description)
	}
	if len(r.Classification) > 0 {
		lines = append(lines, "Classification: "+joinLabels(r.Classification))
	}
	if len(r.ObjectDetection) > 0 {
		lines = append(lines, "Detected objects: "+joinLabels(r.ObjectDetection))
	}
	if len(r.TextExtraction) > 0 {
		texts := make([]string, 0, len(r.TextExtraction))
		for _, t := range r.TextExtraction {
			texts = append(texts, t.Text)
		}
		lines = append(lines, "Text in image: "+strings.Join(texts, " "))
	}
	return "Image analysis:\n" + strings.Join(lines, "\n")
}

func joinLabels(labels []store.Label) string {
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, fmt.Sprintf("%s (%s)", l.Label, formatPercent(l.Confidence)))
	}
	return strings.Join(parts, ", ")
}

// formatPercent renders a [0,1] fraction as "87.3%".
func formatPercent(fraction float64) string {
	return decimal.NewFromFloat(fraction).Shift(2).StringFixed(1) + "%"
}

func roundSeconds(d time.Duration) float64 {
	return decimal.NewFromFloat(d.Seconds()).Round(3).InexactFloat64()
}

func clampFraction(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
