package handlers

import (
	"sync"
	"time"
)

// chatUI is the per-user draft kept next to the wizard: choices made with
// inline buttons before they are submitted, and the message those buttons
// live on.
type chatUI struct {
	TitleIdx     int
	CatchIdx     int
	CandidateIdx int
	MessageID    int
	UpdatedAt    time.Time
}

func defaultUI() chatUI {
	return chatUI{TitleIdx: -1, CatchIdx: -1, CandidateIdx: -1}
}

type uiKey struct {
	ChatID int64
	UserID int64
}

type uiStore struct {
	mu sync.Mutex
	m  map[uiKey]*chatUI
}

func newUIStore() *uiStore {
	return &uiStore{m: make(map[uiKey]*chatUI)}
}

func (s *uiStore) Get(chatID, userID int64) chatUI {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.getOrCreateLocked(chatID, userID)
}

func (s *uiStore) Update(chatID, userID int64, fn func(*chatUI)) chatUI {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.getOrCreateLocked(chatID, userID)
	if fn != nil {
		fn(st)
	}
	st.UpdatedAt = time.Now()
	return *st
}

func (s *uiStore) Reset(chatID, userID int64) chatUI {
	return s.Update(chatID, userID, func(st *chatUI) { *st = defaultUI() })
}

func (s *uiStore) Delete(chatID, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, uiKey{ChatID: chatID, UserID: userID})
}

func (s *uiStore) getOrCreateLocked(chatID, userID int64) *chatUI {
	key := uiKey{ChatID: chatID, UserID: userID}
	if st, ok := s.m[key]; ok {
		return st
	}
	st := defaultUI()
	s.m[key] = &st
	return s.m[key]
}
