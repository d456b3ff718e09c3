package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gwi.com/traegpt/internal/store"
)

const fallbackReply = "Sorry, I encountered an error."

type Uploader interface {
	Upload(ctx context.Context, userID, filename, contentType string, data []byte) (string, error)
}

type ImageAnalyzer interface {
	Analyze(ctx context.Context, img Image) (*store.ImageResult, error)
}

type SessionRepository interface {
	Save(ctx context.Context, userID string, session store.ChatSession) error
	Load(ctx context.Context, userID string) ([]store.ChatSession, error)
	Get(ctx context.Context, userID, sessionID string) (store.ChatSession, error)
	Delete(ctx context.Context, userID, sessionID string) error
}

type PreferenceLoader interface {
	Load(ctx context.Context, userID string) store.UserPreferences
}

// Deps wires a ChatService. Zero Now, NewID, SaveDebounce and ResponseTimeDisplay get defaults.
// A zero SendTimeout leaves a send bounded only by its per-call timeouts; a zero IdleTimeout
// keeps conversations in memory until Close.
type Deps struct {
	Completer   Completer
	Searcher    Searcher
	Uploader    Uploader
	Analyzer    ImageAnalyzer
	Sessions    SessionRepository
	Preferences PreferenceLoader
	Tokens      *TokenCounter

	SearchResults       int
	SaveDebounce        time.Duration
	ResponseTimeDisplay time.Duration
	SendTimeout         time.Duration
	IdleTimeout         time.Duration

	Now   func() time.Time
	NewID func() (string, error)
}

// ChatService holds one Conversation per user.
type ChatService struct {
	deps Deps

	mu            sync.Mutex
	conversations map[string]*Conversation

	done      chan struct{}
	closeOnce sync.Once
}

func NewChatService(deps Deps) *ChatService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = newSessionID
	}
	if deps.SaveDebounce <= 0 {
		deps.SaveDebounce = time.Second
	}
	if deps.ResponseTimeDisplay <= 0 {
		deps.ResponseTimeDisplay = 3 * time.Second
	}
	if deps.SearchResults <= 0 {
		deps.SearchResults = 5
	}
	s := &ChatService{
		deps:          deps,
		conversations: make(map[string]*Conversation),
		done:          make(chan struct{}),
	}
	if deps.IdleTimeout > 0 {
		go s.evictLoop(deps.IdleTimeout)
	}
	return s
}

// newSessionID returns a UUIDv7 so ids sort by creation time.
func newSessionID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Conversation returns the user's active conversation, creating an empty one on first use.
func (s *ChatService) Conversation(userID string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[userID]
	if !ok {
		c = newConversation(userID, &s.deps)
		s.conversations[userID] = c
	}
	c.lastUsed = s.deps.Now()
	return c
}

func (s *ChatService) evictLoop(idle time.Duration) {
	ticker := time.NewTicker(max(idle/2, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if n := s.EvictIdle(idle); n > 0 {
				slog.Info("evicted idle conversations", "count", n)
			}
		}
	}
}

// EvictIdle drops conversations unused for longer than idle, writing out their pending
// saves first. Conversations with an operation in flight are kept.
func (s *ChatService) EvictIdle(idle time.Duration) int {
	cutoff := s.deps.Now().Add(-idle)

	s.mu.Lock()
	var evicted []*Conversation
	for userID, c := range s.conversations {
		if c.lastUsed.After(cutoff) || !c.opMu.TryLock() {
			continue
		}
		delete(s.conversations, userID)
		evicted = append(evicted, c)
	}
	s.mu.Unlock()

	for _, c := range evicted {
		c.Close()
		c.opMu.Unlock()
	}
	return len(evicted)
}

// Sessions lists the user's stored sessions after writing out any pending or running autosave.
func (s *ChatService) Sessions(ctx context.Context, userID string) ([]store.ChatSession, error) {
	s.Conversation(userID).autosave.Flush()
	return s.deps.Sessions.Load(ctx, userID)
}

// Close stops eviction and flushes every pending autosave.
func (s *ChatService) Close() {
	s.closeOnce.Do(func() { close(s.done) })

	s.mu.Lock()
	conversations := make([]*Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		conversations = append(conversations, c)
	}
	s.mu.Unlock()

	for _, c := range conversations {
		c.Close()
	}
	slog.Info("chat service closed", "conversations", len(conversations))
}

// Conversation is one user's current chat. Operations run one at a time.
type Conversation struct {
	userID   string
	deps     *Deps
	lastUsed time.Time // guarded by ChatService.mu

	opMu sync.Mutex // one send/open/reset at a time

	mu         sync.RWMutex
	state      State
	clearTimer *time.Timer

	saveMu   sync.Mutex // store writes in causal order
	autosave *Debouncer
}

func newConversation(userID string, deps *Deps) *Conversation {
	c := &Conversation{userID: userID, deps: deps, state: NewState()}
	c.autosave = NewDebouncer(deps.SaveDebounce, c.saveLatest)
	return c
}

func (c *Conversation) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Conversation) dispatch(ev Event) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Reduce(c.state, ev)
	return c.state
}

// SendInput is one user turn: text, an image, or both.
type SendInput struct {
	Text  string
	Image *Image
}

// Send runs one turn: append user input, upload and analyze the image, ask the model,
// follow a web-search request once, then persist. Upload, analysis and completion
// failures abort the turn and are returned; a failed search keeps the first answer
// and is only reported through State.Error. The returned state is never loading.
func (c *Conversation) Send(ctx context.Context, in SendInput) (State, error) {
	text := strings.TrimSpace(in.Text)
	if c.userID == "" || (text == "" && in.Image == nil) {
		return c.Snapshot(), nil
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.deps.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.deps.SendTimeout)
		defer cancel()
	}

	c.dispatch(ErrorSet{})
	c.dispatch(ResponseTimeSet{})
	c.dispatch(LoadingSet{On: true})

	err := c.runTurn(ctx, text, in.Image)
	if err != nil {
		c.dispatch(ErrorSet{Text: UserMessage(err)})
		slog.Error("send failed", "userId", c.userID, "error", err)
	}
	c.finish()
	return c.Snapshot(), err
}

func (c *Conversation) runTurn(ctx context.Context, text string, img *Image) error {
	if text != "" {
		c.dispatch(MessageAppended{Message: store.Message{Role: store.RoleUser, Content: text}})
	}
	if img != nil {
		if err := c.attachImage(ctx, *img); err != nil {
			return err
		}
	}

	prefs := c.deps.Preferences.Load(ctx, c.userID)
	reply, err := c.complete(ctx, prefs, true)
	if err != nil {
		return err
	}

	query, triggered := ParseSearchTrigger(reply)
	c.dispatch(MessageAppended{Message: store.Message{Role: store.RoleAssistant, Content: reply}})

	if triggered {
		searched, err := c.search(ctx, query)
		if err != nil {
			c.dispatch(ErrorSet{Text: UserMessage(err)})
			slog.Warn("web search failed, keeping first answer", "userId", c.userID, "query", query, "error", err)
		} else {
			c.dispatch(MessageAppended{Message: store.Message{Role: store.RoleSystem, Content: searched.Results}})
			final, err := c.complete(ctx, prefs, false)
			if err != nil {
				return err
			}
			c.dispatch(MessageAppended{Message: store.Message{Role: store.RoleAssistant, Content: final}})
		}
	}

	c.persist()
	return nil
}

func (c *Conversation) attachImage(ctx context.Context, img Image) error {
	url, err := c.deps.Uploader.Upload(ctx, c.userID, img.Name, img.ContentType, img.Data)
	if err != nil {
		return opError("Upload", fmt.Errorf("%w: %w", ErrUploadFailed, err))
	}

	state := c.dispatch(MessageAppended{Message: store.Message{
		Role:     store.RoleUser,
		Content:  imagePlaceholder(img.Name),
		ImageURL: url,
		FileName: img.Name,
		FileType: img.ContentType,
	}})
	index := len(state.Messages) - 1

	result, err := c.deps.Analyzer.Analyze(ctx, img)
	if err != nil {
		return opError("Image analysis", err)
	}
	c.dispatch(ImageAttached{Index: index, Result: result})
	return nil
}

func imagePlaceholder(name string) string {
	if name == "" {
		return "[Image]"
	}
	return "[Image: " + name + "]"
}

// complete sends the transcript to the model. An empty reply becomes the fallback text.
func (c *Conversation) complete(ctx context.Context, prefs store.UserPreferences, timed bool) (string, error) {
	messages := completionMessages(BuildSystemPrompt(prefs), c.Snapshot().Messages)
	if c.deps.Tokens != nil {
		c.dispatch(PromptTokensSet{Tokens: c.deps.Tokens.Count(messages)})
	}

	start := time.Now()
	reply, err := c.deps.Completer.Complete(ctx, messages)
	if timed {
		c.dispatch(ResponseTimeSet{Seconds: roundSeconds(time.Since(start))})
	}
	if errors.Is(err, ErrEmptyResponse) || (err == nil && strings.TrimSpace(reply) == "") {
		return fallbackReply, nil
	}
	if err != nil {
		return "", opError("Chat", err)
	}
	return reply, nil
}

func (c *Conversation) search(ctx context.Context, query string) (*SearchResult, error) {
	c.dispatch(SearchingSet{On: true})
	defer c.dispatch(SearchingSet{On: false})

	result, err := c.deps.Searcher.Search(ctx, query, c.deps.SearchResults)
	if err != nil {
		return nil, opError("Web search", err)
	}
	return result, nil
}

// completionMessages prefixes the system prompt and folds image analysis into the image turn.
func completionMessages(systemPrompt string, transcript []store.Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(transcript)+1)
	out = append(out, ChatMessage{Role: string(store.RoleSystem), Content: systemPrompt})
	for _, m := range transcript {
		content := m.Content
		if summary := Summarize(m.ImageResult); summary != "" {
			content += "\n\n" + summary
		}
		out = append(out, ChatMessage{Role: string(m.Role), Content: content})
	}
	return out
}

// finish clears the busy flags and schedules the response time to disappear.
func (c *Conversation) finish() {
	c.dispatch(LoadingSet{On: false})
	c.dispatch(SearchingSet{On: false})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clearTimer != nil {
		c.clearTimer.Stop()
	}
	c.clearTimer = time.AfterFunc(c.deps.ResponseTimeDisplay, func() {
		c.dispatch(ResponseTimeSet{})
	})
}

// persist saves a brand new session immediately and debounces writes to an existing one.
func (c *Conversation) persist() {
	now := c.deps.Now()
	if c.Snapshot().SessionID == "" {
		id, err := c.deps.NewID()
		if err != nil {
			slog.Error("failed to create session id", "userId", c.userID, "error", err)
			return
		}
		c.dispatch(SessionStarted{ID: id, At: now})
		c.saveLatest()
		return
	}
	c.dispatch(SessionTouched{At: now})
	c.autosave.Schedule()
}

// saveLatest writes the state as it is now. Errors are logged, never surfaced.
func (c *Conversation) saveLatest() {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	session, ok := c.Snapshot().Session()
	if !ok {
		return
	}
	if err := c.deps.Sessions.Save(context.Background(), c.userID, session); err != nil {
		slog.Error("background session save failed", "userId", c.userID, "sessionId", session.ID, "error", err)
		return
	}
	slog.Debug("session saved", "userId", c.userID, "sessionId", session.ID, "messages", len(session.Messages))
}

// Reset starts a new chat after writing out any pending save.
func (c *Conversation) Reset() State {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.autosave.Flush()
	return c.dispatch(ConversationReset{})
}

// Open makes a stored session the current one.
func (c *Conversation) Open(ctx context.Context, sessionID string) (State, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.autosave.Flush()
	session, err := c.deps.Sessions.Get(ctx, c.userID, sessionID)
	if err != nil {
		return c.Snapshot(), err
	}
	return c.dispatch(SessionLoaded{Session: session}), nil
}

// DeleteSession removes a stored session. Deleting the current one also resets the chat.
func (c *Conversation) DeleteSession(ctx context.Context, sessionID string) (State, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.Snapshot().SessionID == sessionID {
		c.autosave.Stop()
		c.dispatch(ConversationReset{})
	}

	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	if err := c.deps.Sessions.Delete(ctx, c.userID, sessionID); err != nil {
		return c.Snapshot(), err
	}
	return c.Snapshot(), nil
}

// Close writes out a pending save and stops timers.
func (c *Conversation) Close() {
	c.autosave.Flush()
	c.mu.Lock()
	if c.clearTimer != nil {
		c.clearTimer.Stop()
	}
	c.mu.Unlock()
}
