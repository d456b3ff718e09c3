package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"gwi.com/traegpt/internal/core"
)

type CompletionProxyRequest struct {
	Messages []core.ChatMessage `json:"messages"`
}

// CompletionProxyHandler forwards {messages} to the completion provider and relays its JSON.
func (h *APIHandler) CompletionProxyHandler(w http.ResponseWriter, r *http.Request) {
	var req CompletionProxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "Messages array is required")
		return
	}

	body, err := h.completions.Raw(r.Context(), req.Messages)
	if err != nil {
		writeProxyError(w, r, "TogetherAI", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

type SearchProxyRequest struct {
	Query      string `json:"query"`
	NumResults int    `json:"numResults"`
}

func (h *APIHandler) SearchProxyHandler(w http.ResponseWriter, r *http.Request) {
	var req SearchProxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, "Query is required")
		return
	}
	if req.NumResults <= 0 {
		req.NumResults = h.searchResults
	}

	result, err := h.search.Search(r.Context(), query, req.NumResults)
	if err != nil {
		writeProxyError(w, r, "Web search", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type DescribeResponse struct {
	Description  string  `json:"description"`
	AnalysisTime float64 `json:"analysis_time"`
}

// ImageProxyHandler relays one vision model. "analyze" renders classification labels as prose.
func (h *APIHandler) ImageProxyHandler(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	var endpoint core.VisionEndpoint
	switch kind {
	case "caption":
		endpoint = core.EndpointCaption
	case "classify":
		endpoint = core.EndpointClassify
	case "detect":
		endpoint = core.EndpointDetect
	case "ocr":
		endpoint = core.EndpointOCR
	case "analyze":
		endpoint = core.EndpointDescribe
	default:
		writeError(w, http.StatusNotFound, "Unknown image endpoint")
		return
	}

	img, ok := h.uploadedImage(w, r)
	if !ok {
		return
	}

	op := "Image " + kind
	if endpoint == core.EndpointDescribe {
		start := time.Now()
		description, err := h.vision.Describe(r.Context(), img)
		if err != nil {
			writeProxyError(w, r, op, err)
			return
		}
		elapsed := decimal.NewFromFloat(time.Since(start).Seconds()).Round(3).InexactFloat64()
		writeJSON(w, http.StatusOK, DescribeResponse{Description: description, AnalysisTime: elapsed})
		return
	}

	body, err := h.vision.Query(r.Context(), endpoint, img)
	if err != nil {
		writeProxyError(w, r, op, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// ImageAnalysisHandler runs every configured endpoint and returns the merged result.
func (h *APIHandler) ImageAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	img, ok := h.uploadedImage(w, r)
	if !ok {
		return
	}
	result, err := h.vision.Analyze(r.Context(), img)
	if err != nil {
		writeProxyError(w, r, "Image analysis", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type UploadResponse struct {
	URL string `json:"url"`
}

func (h *APIHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	img, ok := h.uploadedImage(w, r)
	if !ok {
		return
	}
	url, err := h.files.Upload(r.Context(), UserID(r.Context()), img.Name, img.ContentType, img.Data)
	if err != nil {
		writeProxyError(w, r, "Upload", err)
		return
	}
	writeJSON(w, http.StatusCreated, UploadResponse{URL: url})
}

// uploadedImage parses the multipart "file" field, writing a 400 when it is missing or too large.
func (h *APIHandler) uploadedImage(w http.ResponseWriter, r *http.Request) (core.Image, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form: "+err.Error())
		return core.Image{}, false
	}
	img, err := h.readImage(r, "file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			writeError(w, http.StatusBadRequest, "No file provided")
		} else {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return core.Image{}, false
	}
	return img, true
}
