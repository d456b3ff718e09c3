package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("document not found")
	ErrValidation = errors.New("validation failed")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

func ValidateMessage(m Message) error {
	if !m.Role.Valid() {
		return invalid("role", "message must have a valid role")
	}
	if m.Content == "" {
		return invalid("content", "message must have content")
	}
	if m.Role != RoleUser && (m.ImageURL != "" || m.ImageResult != nil || m.FileURL != "") {
		return invalid("role", "only user messages carry attachments")
	}
	return nil
}

func ValidateSession(s ChatSession) error {
	if s.ID == "" {
		return invalid("id", "session must have an ID")
	}
	if s.Title == "" {
		return invalid("title", "session must have a title")
	}
	for i, m := range s.Messages {
		if err := ValidateMessage(m); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				return invalid(fmt.Sprintf("messages[%d].%s", i, ve.Field), ve.Message)
			}
			return err
		}
	}
	if s.CreatedAt.IsZero() {
		return invalid("createdAt", "session must have a valid creation date")
	}
	if s.UpdatedAt.IsZero() {
		return invalid("updatedAt", "session must have a valid update date")
	}
	return nil
}

func ValidatePreferences(p UserPreferences) error {
	if p.AnswerStyle != nil && *p.AnswerStyle != "" && !p.AnswerStyle.Valid() {
		return invalid("answerStyle", "answer style must be one of friendly, formal, concise, detailed")
	}
	return nil
}
