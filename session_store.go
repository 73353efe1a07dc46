package auth

import (
	"context"
	"encoding/json"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	// StorageKeyToken holds the opaque bearer token
	StorageKeyToken = "token"
	// StorageKeyUser holds the serialized identity snapshot
	StorageKeyUser = "user"
)

var _ SessionService = &SessionStore{}

// SessionStore is the single source of truth for who is logged in. It
// starts in the loading state and leaves it on the first Set or Clear.
type SessionStore struct {
	mu        sync.RWMutex
	storage   Storage
	state     SessionState
	listeners map[string]SessionListener
	logger    Logger
	provider  LoggerProvider
}

// NewSessionStore creates a store backed by storage.
func NewSessionStore(storage Storage) *SessionStore {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	provider, logger := ResolveLogger("auth.session_store", nil, nil)
	return &SessionStore{
		storage:   storage,
		state:     SessionState{Status: SessionLoading},
		listeners: map[string]SessionListener{},
		logger:    logger,
		provider:  provider,
	}
}

func (s *SessionStore) WithLogger(l Logger) *SessionStore {
	s.provider, s.logger = ResolveLogger("auth.session_store", s.provider, l)
	return s
}

// WithLoggerProvider overrides the logger provider used by the store.
func (s *SessionStore) WithLoggerProvider(provider LoggerProvider) *SessionStore {
	s.provider, s.logger = ResolveLogger("auth.session_store", provider, s.logger)
	return s
}

// Get never blocks on the network.
func (s *SessionStore) Get() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyState(s.state)
}

// Load reads the persisted session without changing the in-memory state.
// A record with only one of token/identity is reported as absent.
func (s *SessionStore) Load(ctx context.Context) (*Session, error) {
	items, err := s.storage.GetItems(ctx, StorageKeyToken, StorageKeyUser)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read persisted session")
	}

	token := items[StorageKeyToken]
	raw := items[StorageKeyUser]
	if token == "" || raw == "" {
		if token != "" || raw != "" {
			s.logger.Warn("persisted session is partial, ignoring it")
		}
		return nil, nil
	}

	var identity Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		s.logger.Warn("persisted identity is unreadable: %v", err)
		return nil, nil
	}

	return &Session{Token: token, Identity: identity}, nil
}

// Set persists token and identity as one unit and publishes the new state.
func (s *SessionStore) Set(ctx context.Context, token string, identity Identity) error {
	if token == "" {
		return NewValidationError("session token is required", map[string]string{"token": "required"})
	}
	if !identity.Role.IsValid() {
		return NewValidationError("session identity has an invalid role", map[string]string{"role": string(identity.Role)})
	}

	raw, err := json.Marshal(identity)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode identity")
	}

	s.mu.Lock()
	if err := s.storage.SetItems(ctx, map[string]string{
		StorageKeyToken: token,
		StorageKeyUser:  string(raw),
	}); err != nil {
		s.mu.Unlock()
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist session")
	}
	s.state = SessionState{
		Status:  SessionPresent,
		Session: &Session{Token: token, Identity: identity},
	}
	state := copyState(s.state)
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	notify(listeners, state)
	return nil
}

// Update merges identity fields into the present session, keeping the token.
func (s *SessionStore) Update(ctx context.Context, patch IdentityPatch) (*Session, error) {
	s.mu.Lock()
	if !s.state.IsAuthenticated() {
		s.mu.Unlock()
		return nil, cloneWith(ErrUnauthenticated, map[string]any{"operation": "session.update"})
	}

	current := *s.state.Session
	if patch.IsEmpty() {
		s.mu.Unlock()
		return &current, nil
	}

	updated := Session{Token: current.Token, Identity: patch.Apply(current.Identity)}
	raw, err := json.Marshal(updated.Identity)
	if err != nil {
		s.mu.Unlock()
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode identity")
	}

	if err := s.storage.SetItems(ctx, map[string]string{
		StorageKeyToken: updated.Token,
		StorageKeyUser:  string(raw),
	}); err != nil {
		s.mu.Unlock()
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist session")
	}

	s.state = SessionState{Status: SessionPresent, Session: &updated}
	state := copyState(s.state)
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	notify(listeners, state)
	out := updated
	return &out, nil
}

// Clear removes token and identity together. The in-memory state becomes
// absent even when the storage removal fails, so a failed clear never
// leaves the UI authenticated.
func (s *SessionStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	err := s.storage.RemoveItems(ctx, StorageKeyToken, StorageKeyUser)
	s.state = SessionState{Status: SessionAbsent}
	state := copyState(s.state)
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	notify(listeners, state)

	if err != nil {
		s.logger.Error("failed to clear persisted session: %v", err)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear persisted session")
	}
	return nil
}

// Subscribe registers listener for state changes.
func (s *SessionStore) Subscribe(listener SessionListener) func() {
	if listener == nil {
		return func() {}
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.listeners[id] = listener
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *SessionStore) snapshotListeners() []SessionListener {
	out := make([]SessionListener, 0, len(s.listeners))
	for _, l := range s.listeners {
		out = append(out, l)
	}
	return out
}

func notify(listeners []SessionListener, state SessionState) {
	for _, l := range listeners {
		l(state)
	}
}

func copyState(state SessionState) SessionState {
	if state.Session == nil {
		return SessionState{Status: state.Status}
	}
	session := *state.Session
	return SessionState{Status: state.Status, Session: &session}
}

// MemoryStorage is a process-local Storage, used in tests and as a default.
type MemoryStorage struct {
	mu    sync.Mutex
	items map[string]string
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: map[string]string{}}
}

func (m *MemoryStorage) GetItems(_ context.Context, keys ...string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m.items[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MemoryStorage) SetItems(_ context.Context, items map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range items {
		m.items[k] = v
	}
	return nil
}

func (m *MemoryStorage) RemoveItems(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}
