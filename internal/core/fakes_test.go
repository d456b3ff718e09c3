package core

import (
	"context"
	"errors"
	"sync"

	"gwi.com/traegpt/internal/store"
)

// callLog records adapter calls in order across fakes.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeCompleter struct {
	log      *callLog
	replies  []string
	errs     []error
	requests [][]ChatMessage
}

func (f *fakeCompleter) Complete(_ context.Context, messages []ChatMessage) (string, error) {
	i := len(f.requests)
	f.requests = append(f.requests, messages)
	if f.log != nil {
		f.log.add("complete")
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return "ok", nil
}

type fakeSearcher struct {
	log     *callLog
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, numResults int) (*SearchResult, error) {
	f.queries = append(f.queries, query)
	if f.log != nil {
		f.log.add("search")
	}
	if f.err != nil {
		return nil, f.err
	}
	hits := []SearchHit{{Title: "Paris", URL: "https://en.wikipedia.org/wiki/Paris", Snippet: "Paris is the capital of France."}}
	return &SearchResult{Results: FormatSearchResults(query, hits), Query: query, NumResults: len(hits)}, nil
}

type fakeUploader struct {
	log   *callLog
	err   error
	names []string
}

func (f *fakeUploader) Upload(_ context.Context, userID, filename, contentType string, data []byte) (string, error) {
	f.names = append(f.names, filename)
	if f.log != nil {
		f.log.add("upload")
	}
	if f.err != nil {
		return "", f.err
	}
	return "http://localhost:8080/api/files/images/" + userID + "/1_" + filename, nil
}

type fakeAnalyzer struct {
	log    *callLog
	result *store.ImageResult
	err    error
}

func (f *fakeAnalyzer) Analyze(context.Context, Image) (*store.ImageResult, error) {
	if f.log != nil {
		f.log.add("analyze")
	}
	return f.result, f.err
}

// memorySessions is an in-memory SessionRepository that counts writes.
type memorySessions struct {
	mu      sync.Mutex
	saved   map[string]store.ChatSession
	writes  []store.ChatSession
	saveErr error
	deleted []string
}

func newMemorySessions() *memorySessions {
	return &memorySessions{saved: make(map[string]store.ChatSession)}
}

func (m *memorySessions) Save(_ context.Context, _ string, s store.ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, s)
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved[s.ID] = s
	return nil
}

func (m *memorySessions) Load(context.Context, string) ([]store.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.ChatSession, 0, len(m.saved))
	for _, s := range m.saved {
		out = append(out, s)
	}
	return out, nil
}

func (m *memorySessions) Get(_ context.Context, _ string, id string) (store.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.saved[id]
	if !ok {
		return store.ChatSession{}, store.ErrNotFound
	}
	return s, nil
}

func (m *memorySessions) Delete(_ context.Context, _ string, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memorySessions) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

func (m *memorySessions) lastWrite() store.ChatSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[len(m.writes)-1]
}

type staticPreferences struct{ prefs store.UserPreferences }

func (s staticPreferences) Load(context.Context, string) store.UserPreferences { return s.prefs }

var errBoom = errors.New("boom")
