package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gwi.com/traegpt/internal/store"
)

var (
	ErrNotConfigured  = errors.New("not configured on the server")
	ErrTimeout        = errors.New("request timed out")
	ErrUploadFailed   = errors.New("upload failed")
	ErrAnalysisFailed = errors.New("image analysis failed or timed out")
	ErrEmptyResponse  = errors.New("empty response from model")
)

// UpstreamError is a non-2xx answer from an external API. Status and Body are kept verbatim.
type UpstreamError struct {
	Op     string
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream returned %d: %s", e.Op, e.Status, truncate(e.Body, 200))
}

// StatusText renders "429 Too Many Requests".
func (e *UpstreamError) StatusText() string {
	if text := http.StatusText(e.Status); text != "" {
		return fmt.Sprintf("%d %s", e.Status, text)
	}
	return fmt.Sprintf("%d", e.Status)
}

// OpError tags an error with the user-facing name of the failing operation.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *OpError) Unwrap() error { return e.Err }

func opError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}

// classifyTimeout maps an expired deadline onto ErrTimeout while keeping the cause.
func classifyTimeout(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// UserMessage renders err as the single-line text shown in the error area.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	op := "Request"
	var opErr *OpError
	if errors.As(err, &opErr) {
		op = opErr.Op
	}

	var upstream *UpstreamError
	var validation *store.ValidationError
	switch {
	case errors.Is(err, ErrTimeout):
		return op + " timed out, please retry"
	case errors.Is(err, ErrNotConfigured):
		return op + " is not configured on the server"
	case errors.As(err, &upstream):
		return fmt.Sprintf("%s failed: %s", op, upstream.StatusText())
	case errors.As(err, &validation):
		return fmt.Sprintf("%s failed: invalid %s", op, validation.Field)
	case errors.Is(err, ErrAnalysisFailed):
		return "Image analysis failed or timed out"
	case errors.Is(err, ErrUploadFailed):
		return "Upload failed"
	default:
		return op + " failed"
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
