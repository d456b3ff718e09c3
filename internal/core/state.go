package core

import (
	"slices"
	"time"

	"gwi.com/traegpt/internal/store"
)

// State is one user's conversation as the chat view sees it.
type State struct {
	Messages     []store.Message `json:"messages"`
	SessionID    string          `json:"currentSessionId,omitempty"`
	Title        string          `json:"title"`
	CreatedAt    time.Time       `json:"createdAt,omitzero"`
	UpdatedAt    time.Time       `json:"updatedAt,omitzero"`
	Loading      bool            `json:"loading"`
	Searching    bool            `json:"searching"`
	Error        string          `json:"error,omitempty"`
	ResponseTime float64         `json:"responseTime,omitempty"` // seconds
	PromptTokens int             `json:"promptTokens,omitempty"`
}

func NewState() State {
	return State{Messages: []store.Message{}, Title: store.DefaultTitle}
}

// Session returns the persistable view of the state, or false before a session exists.
func (s State) Session() (store.ChatSession, bool) {
	if s.SessionID == "" {
		return store.ChatSession{}, false
	}
	return store.ChatSession{
		ID:        s.SessionID,
		Title:     s.Title,
		Messages:  slices.Clone(s.Messages),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}, true
}

// Event is a state transition input.
type Event interface{ event() }

type (
	MessageAppended struct{ Message store.Message }
	// ImageAttached sets the analysis of the image turn at Index.
	ImageAttached struct {
		Index  int
		Result *store.ImageResult
	}
	SessionStarted struct {
		ID string
		At time.Time
	}
	SessionLoaded     struct{ Session store.ChatSession }
	SessionTouched    struct{ At time.Time }
	ConversationReset struct{}
	LoadingSet        struct{ On bool }
	SearchingSet      struct{ On bool }
	ErrorSet          struct{ Text string }
	ResponseTimeSet   struct{ Seconds float64 }
	PromptTokensSet   struct{ Tokens int }
)

func (MessageAppended) event()   {}
func (ImageAttached) event()     {}
func (SessionStarted) event()    {}
func (SessionLoaded) event()     {}
func (SessionTouched) event()    {}
func (ConversationReset) event() {}
func (LoadingSet) event()        {}
func (SearchingSet) event()      {}
func (ErrorSet) event()          {}
func (ResponseTimeSet) event()   {}
func (PromptTokensSet) event()   {}

// Reduce returns the state after ev. It never mutates s; the title is rederived
// whenever the message list changes.
func Reduce(s State, ev Event) State {
	switch e := ev.(type) {
	case MessageAppended:
		s.Messages = append(slices.Clip(s.Messages), e.Message)
		s.Title = store.DeriveTitle(s.Messages)
	case ImageAttached:
		if e.Index < 0 || e.Index >= len(s.Messages) || s.Messages[e.Index].Role != store.RoleUser {
			return s
		}
		s.Messages = slices.Clone(s.Messages)
		s.Messages[e.Index].ImageResult = e.Result
		s.Title = store.DeriveTitle(s.Messages)
	case SessionStarted:
		s.SessionID = e.ID
		s.CreatedAt = e.At
		s.UpdatedAt = e.At
	case SessionLoaded:
		s = NewState()
		s.SessionID = e.Session.ID
		s.Messages = slices.Clone(e.Session.Messages)
		if s.Messages == nil {
			s.Messages = []store.Message{}
		}
		s.Title = store.DeriveTitle(s.Messages)
		s.CreatedAt = e.Session.CreatedAt
		s.UpdatedAt = e.Session.UpdatedAt
	case SessionTouched:
		s.UpdatedAt = e.At
	case ConversationReset:
		return NewState()
	case LoadingSet:
		s.Loading = e.On
	case SearchingSet:
		s.Searching = e.On
	case ErrorSet:
		s.Error = e.Text
	case ResponseTimeSet:
		s.ResponseTime = e.Seconds
	case PromptTokensSet:
		s.PromptTokens = e.Tokens
	}
	return s
}
