// Package state holds the application state shared by the front end and the actions that change it.
package state

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"novelassist/internal/api"
	"novelassist/internal/logging"
	"novelassist/internal/models"
	"novelassist/internal/scheduler"
	"novelassist/internal/services/novel"
	"novelassist/internal/session"
)

// DefaultPollInterval is the status polling period after an upload
const DefaultPollInterval = 2 * time.Second

// NovelAPI is the subset of the novel service the store drives
type NovelAPI interface {
	List(ctx context.Context) ([]models.NovelRecord, error)
	Detail(ctx context.Context, id string) (models.NovelRecord, error)
	Status(ctx context.Context, id string) (*models.StatusReport, error)
	Upload(ctx context.Context, req novel.UploadRequest) (*models.UploadResult, error)
}

// AuthAPI is the subset of the auth service the store drives
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (*session.Session, error)
	Logout(ctx context.Context) error
	Register(ctx context.Context, username, email, password string) (any, error)
	RefreshToken(ctx context.Context) (*session.Session, error)
	CurrentUser(ctx context.Context) (*session.Session, error)
}

// JobRecorder persists upload job transitions
type JobRecorder interface {
	Start(ctx context.Context, title, source string) (string, error)
	Attach(ctx context.Context, jobID, novelID string) error
	Transition(ctx context.Context, jobID string, status models.ProcessingStatus, message string) error
}

// State is a snapshot of the application state
type State struct {
	Novels           []models.NovelRecord
	CurrentNovel     models.NovelRecord
	ProcessingStatus models.ProcessingStatus
	Loading          bool
	Error            string
	LoggedIn         bool
	User             *session.Session
}

// Options wires a Store
type Options struct {
	Novels       NovelAPI
	Auth         AuthAPI
	Jobs         JobRecorder
	Scheduler    scheduler.Scheduler
	PollInterval time.Duration
	Logger       *zap.Logger
}

// Store owns the application state. Reads return snapshots; every change notifies subscribers.
type Store struct {
	novels   NovelAPI
	auth     AuthAPI
	jobs     JobRecorder
	sched    scheduler.Scheduler
	interval time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	state   State
	subs    map[int]func(State)
	nextSub int
	poll    *poll
}

// NewStore creates a store. The initial sign-in state comes from the stored session, read
// with ctx.
func NewStore(ctx context.Context, opts Options) *Store {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	s := &Store{
		novels:   opts.Novels,
		auth:     opts.Auth,
		jobs:     opts.Jobs,
		sched:    opts.Scheduler,
		interval: opts.PollInterval,
		log:      logging.OrNop(opts.Logger),
		subs:     make(map[int]func(State)),
	}

	if s.auth != nil {
		user, err := s.auth.CurrentUser(ctx)
		if err != nil {
			s.log.Warn("Failed to read stored session", zap.Error(err))
		}
		if user != nil {
			s.state.LoggedIn = true
			s.state.User = user
		}
	}
	return s
}

// State returns a snapshot of the current state
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn to receive a snapshot after every change. The returned function
// unsubscribes.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// update applies a mutation and notifies subscribers outside the lock
func (s *Store) update(mutate func(st *State)) {
	s.commit(mutate, nil)
}

// commit is update with a hook that runs after the lock is released and before any
// subscriber sees the change
func (s *Store) commit(mutate func(st *State), applied func()) {
	s.mu.Lock()
	mutate(&s.state)
	snapshot := s.state
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	if applied != nil {
		applied()
	}
	for _, fn := range subs {
		fn(snapshot)
	}
}

// ProcessingPercentage maps the processing status to a progress value
func (s *Store) ProcessingPercentage() int {
	return s.State().ProcessingStatus.Progress()
}

// NovelByID finds a loaded novel
func (s *Store) NovelByID(id string) (models.NovelRecord, bool) {
	for _, n := range s.State().Novels {
		if n.ID() == id {
			return n, true
		}
	}
	return nil, false
}

// IsLoggedIn reports whether a user is signed in
func (s *Store) IsLoggedIn() bool {
	return s.State().LoggedIn
}

// CurrentUser returns the signed-in user's session, nil when signed out
func (s *Store) CurrentUser() *session.Session {
	return s.State().User
}

// FetchNovels loads the novel list
func (s *Store) FetchNovels(ctx context.Context) error {
	s.update(func(st *State) {
		st.Loading = true
		st.Error = ""
	})

	novels, err := s.novels.List(ctx)
	s.update(func(st *State) {
		st.Loading = false
		if err != nil {
			st.Error = api.UserMessage(err)
			return
		}
		st.Novels = novels
	})
	return err
}

// FetchNovelDetail loads one novel into CurrentNovel
func (s *Store) FetchNovelDetail(ctx context.Context, id string) (models.NovelRecord, error) {
	s.update(func(st *State) {
		st.Loading = true
		st.Error = ""
	})

	n, err := s.novels.Detail(ctx, id)
	s.update(func(st *State) {
		st.Loading = false
		if err != nil {
			st.Error = api.UserMessage(err)
			return
		}
		st.CurrentNovel = n
		for i, existing := range st.Novels {
			if existing.ID() == n.ID() {
				novels := make([]models.NovelRecord, len(st.Novels))
				copy(novels, st.Novels)
				novels[i] = n
				st.Novels = novels
				break
			}
		}
	})
	return n, err
}

// Login signs in and records the user
func (s *Store) Login(ctx context.Context, username, password string) (*session.Session, error) {
	user, err := s.auth.Login(ctx, username, password)
	s.update(func(st *State) {
		if err != nil {
			st.LoggedIn = false
			st.User = nil
			return
		}
		st.LoggedIn = true
		st.User = user
	})
	return user, err
}

// Logout clears the session and the signed-in user
func (s *Store) Logout(ctx context.Context) error {
	err := s.auth.Logout(ctx)
	s.update(func(st *State) {
		st.LoggedIn = false
		st.User = nil
	})
	return err
}

// Register creates an account. Registering never leaves the user signed in.
func (s *Store) Register(ctx context.Context, username, email, password string) (any, error) {
	resp, err := s.auth.Register(ctx, username, email, password)
	s.update(func(st *State) {
		st.LoggedIn = false
	})
	return resp, err
}

// RefreshToken renews the access token of the signed-in user
func (s *Store) RefreshToken(ctx context.Context) error {
	user, err := s.auth.RefreshToken(ctx)
	if err != nil {
		return err
	}
	s.update(func(st *State) {
		st.LoggedIn = true
		st.User = user
	})
	return nil
}

// Close stops any running poll
func (s *Store) Close() {
	s.mu.Lock()
	p := s.poll
	s.poll = nil
	s.mu.Unlock()

	if p != nil {
		p.abandon()
	}
}
