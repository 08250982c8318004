// Package session keeps the in-memory batch sessions and runs their files in
// the background.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"invoicer/internal/domain"
	"invoicer/internal/logger"
)

// DefaultRetention is how long a finished session stays queryable.
const DefaultRetention = time.Hour

// ErrSessionExists is returned by Create for a duplicate id.
var ErrSessionExists = errors.New("session already exists")

// Store holds sessions in memory. Readers always get copies; mutations go
// through Update so that the worker of a session is its only writer.
type Store struct {
	mu        sync.RWMutex
	sessions  map[string]*domain.Session
	retention time.Duration
	now       func() time.Time
	onReap    func(*domain.Session)
	log       zerolog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithReapHook registers fn to run for every reaped session after its files
// were removed.
func WithReapHook(fn func(*domain.Session)) StoreOption {
	return func(s *Store) { s.onReap = fn }
}

// NewStore creates an empty Store. A non-positive retention selects
// DefaultRetention.
func NewStore(retention time.Duration, opts ...StoreOption) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	s := &Store{
		sessions:  make(map[string]*domain.Session),
		retention: retention,
		now:       time.Now,
		log:       *logger.Named("session.Store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// NewID returns an id of the form session-<unix-ms> that is unused at the
// time of the call.
func (s *Store) NewID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uniqueIDLocked(s.baseID(""))
}

// NewRetryID returns an unused id for a retry of parentID.
func (s *Store) NewRetryID(parentID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uniqueIDLocked(s.baseID(parentID))
}

func (s *Store) baseID(parentID string) string {
	ms := s.now().UnixMilli()
	if parentID != "" {
		return fmt.Sprintf("%s-retry-%d", parentID, ms)
	}
	return fmt.Sprintf("session-%d", ms)
}

func (s *Store) uniqueIDLocked(base string) string {
	id := base
	for i := 1; ; i++ {
		if _, taken := s.sessions[id]; !taken {
			return id
		}
		id = fmt.Sprintf("%s-%d", base, i)
	}
}

// Create stores sess. A missing id is generated under the store lock,
// as a retry id when ParentID is set. Missing status and creation time are
// filled in.
func (s *Store) Create(sess *domain.Session) (*domain.Session, error) {
	if sess.Status == "" {
		sess.Status = domain.SessionStatusUploading
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.ID == "" {
		sess.ID = s.uniqueIDLocked(s.baseID(sess.ParentID))
	}
	if _, ok := s.sessions[sess.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, sess.ID)
	}
	s.sessions[sess.ID] = sess.Clone()
	return sess.Clone(), nil
}

// Get returns a snapshot of the session.
func (s *Store) Get(id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// List returns snapshots of all sessions, oldest first.
func (s *Store) List() []*domain.Session {
	s.mu.RLock()
	out := make([]*domain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Update applies fn to the stored session under the write lock and returns
// the resulting snapshot.
func (s *Store) Update(id string, fn func(*domain.Session)) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	fn(sess)
	return sess.Clone(), nil
}

// RequestCancel marks the session cancelled. The worker notices the flag
// before its next file; the file in flight still finishes.
func (s *Store) RequestCancel(id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if sess.Cancelled || sess.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: status %s", domain.ErrSessionTerminal, sess.Status)
	}
	sess.Cancelled = true
	sess.Status = domain.SessionStatusCancelled
	return sess.Clone(), nil
}

// Delete removes the session without touching its files.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Reap removes every session that finished at least one retention period
// before now, together with its work directory and upload. It returns the
// number of sessions removed.
func (s *Store) Reap(now time.Time) int {
	var expired []*domain.Session
	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.FinishedAt == nil || sess.FinishedAt.Add(s.retention).After(now) {
			continue
		}
		expired = append(expired, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, sess := range expired {
		if sess.WorkDir != "" {
			if err := os.RemoveAll(sess.WorkDir); err != nil {
				s.log.Warn().Err(err).Str("session_id", sess.ID).Msg("session.Store: removing work dir")
			}
		}
		if sess.UploadPath != "" {
			if err := os.Remove(sess.UploadPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				s.log.Warn().Err(err).Str("session_id", sess.ID).Msg("session.Store: removing upload")
			}
		}
		if s.onReap != nil {
			s.onReap(sess)
		}
		s.log.Debug().Str("session_id", sess.ID).Msg("session.Store: reaped")
	}
	return len(expired)
}

// StartReaper reaps expired sessions every interval until ctx is done.
// It blocks; run it in its own goroutine.
func (s *Store) StartReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", interval).Dur("retention", s.retention).Msg("session.Store: reaper started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("session.Store: reaper stopped")
			return
		case <-ticker.C:
			if n := s.Reap(s.now()); n > 0 {
				s.log.Info().Int("reaped", n).Msg("session.Store: reaped expired sessions")
			}
		}
	}
}
