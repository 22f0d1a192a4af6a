package profileapp

import (
	"context"
	"io"
	"sync"
	"time"

	"vestigia/internal/core/changefeed"
	profileEntity "vestigia/internal/core/profile"
	cachePort "vestigia/internal/ports/cache"
	profilePort "vestigia/internal/ports/profile"
)

// memProfiles is an in-memory ProfileRepository. findByIDFunc overrides
// FindByID when set.
type memProfiles struct {
	mu           sync.Mutex
	rows         map[string]*profileEntity.Profile
	findByIDFunc func(ctx context.Context, id string) (*profileEntity.Profile, error)
}

func newMemProfiles() *memProfiles {
	return &memProfiles{rows: map[string]*profileEntity.Profile{}}
}

func (m *memProfiles) Create(_ context.Context, p *profileEntity.Profile) (*profileEntity.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.CreatedAt = time.Now()
	cp := *p
	m.rows[p.ID.String()] = &cp
	return p, nil
}

func (m *memProfiles) FindByID(ctx context.Context, id string) (*profileEntity.Profile, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, profilePort.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProfiles) FindByIdentity(_ context.Context, provider, subject string) (*profileEntity.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.Provider == provider && p.Subject == subject {
			cp := *p
			return &cp, nil
		}
	}
	return nil, profilePort.ErrNotFound
}

func (m *memProfiles) Update(_ context.Context, p *profileEntity.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[p.ID.String()]; !ok {
		return profilePort.ErrNotFound
	}
	cp := *p
	m.rows[p.ID.String()] = &cp
	return nil
}

func (m *memProfiles) List(context.Context, int, int) ([]*profileEntity.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*profileEntity.Profile, 0, len(m.rows))
	for _, p := range m.rows {
		out = append(out, p)
	}
	return out, nil
}

type memSessions struct {
	revoked map[string]time.Duration
	states  map[string]bool
}

func newMemSessions() *memSessions {
	return &memSessions{revoked: map[string]time.Duration{}, states: map[string]bool{}}
}

func (m *memSessions) Revoke(_ context.Context, id string, ttl time.Duration) error {
	m.revoked[id] = ttl
	return nil
}

func (m *memSessions) IsRevoked(_ context.Context, id string) (bool, error) {
	_, ok := m.revoked[id]
	return ok, nil
}

func (m *memSessions) SaveState(_ context.Context, state string, _ time.Duration) error {
	m.states[state] = true
	return nil
}

func (m *memSessions) ConsumeState(_ context.Context, state string) (bool, error) {
	ok := m.states[state]
	delete(m.states, state)
	return ok, nil
}

type mockStorage struct {
	uploadFunc func(ctx context.Context, key string, r io.Reader) (string, error)
}

func (m *mockStorage) Upload(ctx context.Context, key string, r io.Reader) (string, error) {
	return m.uploadFunc(ctx, key, r)
}

type mockPublisher struct {
	events []changefeed.Event
}

func (m *mockPublisher) Publish(_ context.Context, ev changefeed.Event) error {
	m.events = append(m.events, ev)
	return nil
}

type memSnapshots struct {
	entries map[string][2]string
}

func (m *memSnapshots) Save(_ context.Context, userID, view, date string, payload []byte) error {
	m.entries[userID+"/"+view] = [2]string{date, string(payload)}
	return nil
}

func (m *memSnapshots) Load(_ context.Context, userID, view string) (string, []byte, error) {
	e, ok := m.entries[userID+"/"+view]
	if !ok {
		return "", nil, cachePort.ErrMiss
	}
	return e[0], []byte(e[1]), nil
}

func (m *memSnapshots) Invalidate(_ context.Context, userID, date string) (int, error) {
	n := 0
	for k, e := range m.entries {
		if e[0] != date {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}
