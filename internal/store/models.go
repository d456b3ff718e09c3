package store

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is one transcript entry. Image and file fields are only set on user turns.
type Message struct {
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	ImageURL    string       `json:"imageUrl,omitempty"`
	ImageResult *ImageResult `json:"imageResult,omitempty"`
	FileURL     string       `json:"fileUrl,omitempty"`
	FileName    string       `json:"fileName,omitempty"`
	FileType    string       `json:"fileType,omitempty"`
}

// Label is a scored finding. Confidence is a fraction in [0,1].
type Label struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        *Box    `json:"box,omitempty"`
}

type Box struct {
	XMin int `json:"xmin"`
	YMin int `json:"ymin"`
	XMax int `json:"xmax"`
	YMax int `json:"ymax"`
}

type TextSpan struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
}

// ImageResult is the normalized output of every vision endpoint. All fields are optional.
type ImageResult struct {
	Caption         string     `json:"caption,omitempty"`
	Description     string     `json:"description,omitempty"`
	Classification  []Label    `json:"classification,omitempty"`
	ObjectDetection []Label    `json:"object_detection,omitempty"`
	TextExtraction  []TextSpan `json:"text_extraction,omitempty"`
	AnalysisTime    float64    `json:"analysis_time,omitempty"` // seconds
}

// IsEmpty reports whether the result carries no findings.
func (r *ImageResult) IsEmpty() bool {
	return r == nil || (r.Caption == "" && r.Description == "" &&
		len(r.Classification) == 0 && len(r.ObjectDetection) == 0 && len(r.TextExtraction) == 0)
}

type ChatSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type AnswerStyle string

const (
	AnswerFriendly AnswerStyle = "friendly"
	AnswerFormal   AnswerStyle = "formal"
	AnswerConcise  AnswerStyle = "concise"
	AnswerDetailed AnswerStyle = "detailed"
)

func (s AnswerStyle) Valid() bool {
	switch s {
	case AnswerFriendly, AnswerFormal, AnswerConcise, AnswerDetailed:
		return true
	}
	return false
}

// UserPreferences uses pointer fields so a partial update can tell "absent" from "empty".
type UserPreferences struct {
	UserName          *string      `json:"userName,omitempty"`
	UserInterests     *string      `json:"userInterests,omitempty"`
	AnswerStyle       *AnswerStyle `json:"answerStyle,omitempty"`
	CustomPersonality *string      `json:"customPersonality,omitempty"`
}

func (p UserPreferences) Name() string { return deref(p.UserName) }
func (p UserPreferences) Interests() string { return deref(p.UserInterests) }
func (p UserPreferences) Personality() string { return deref(p.CustomPersonality) }
func (p UserPreferences) Style() AnswerStyle {
	if p.AnswerStyle == nil {
		return ""
	}
	return *p.AnswerStyle
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Object is a stored blob.
type Object struct {
	Path        string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}
