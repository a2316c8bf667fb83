package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"ai-thumbnail-pro/internal/wizard"
)

// Session is one user's wizard. The machine pointer is shared by every copy.
type Session struct {
	ID           string
	Wizard       *wizard.Machine
	CreatedAt    time.Time
	LastActivity time.Time
}

type Options struct {
	NewWizard func() *wizard.Machine
	TTL       time.Duration
	Now       func() time.Time
}

type Store struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	newWizard func() *wizard.Machine
	ttl       time.Duration
	now       func() time.Time
}

func NewStore(opts Options) *Store {
	newWizard := opts.NewWizard
	if newWizard == nil {
		newWizard = func() *wizard.Machine { return wizard.New(wizard.Options{}) }
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Store{
		sessions:  make(map[string]*Session),
		newWizard: newWizard,
		ttl:       ttl,
		now:       now,
	}
}

// Create starts a session under a fresh random ID.
func (s *Store) Create() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return *s.createLocked(uuid.NewString())
}

func (s *Store) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	sess.LastActivity = s.now()
	return *sess, true
}

// GetOrCreate returns the session stored under key, creating it if needed.
func (s *Store) GetOrCreate(key string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[key]; ok {
		sess.LastActivity = s.now()
		return *sess
	}
	return *s.createLocked(key)
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		sess.Wizard.Restart()
		delete(s.sessions, id)
	}
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than the TTL and reports how many
// were removed. Sessions with a step in progress are kept.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, sess := range s.sessions {
		if sess.LastActivity.After(cutoff) || sess.Wizard.State().Loading() {
			continue
		}
		sess.Wizard.Restart()
		delete(s.sessions, id)
		removed++
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}

func (s *Store) createLocked(id string) *Session {
	now := s.now()
	sess := &Session{
		ID:           id,
		Wizard:       s.newWizard(),
		CreatedAt:    now,
		LastActivity: now,
	}
	s.sessions[id] = sess
	return sess
}
