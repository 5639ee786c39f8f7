package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotLoggedIn       = fmt.Errorf("no profile: log in first")
	ErrNoChapterSelected = fmt.Errorf("no chapter selected")
	ErrInstallInProgress = fmt.Errorf("an installation is already running")
)

// Session is the per-user context object the UI layer owns. It holds the
// login result and the selected chapter; the mutex guards only state
// transitions, never the long-running work itself.
type Session struct {
	login     LoginProvider
	chapters  ChapterSource
	installer ContentInstaller
	repo      Repository

	mu         sync.Mutex
	loggingIn  bool
	installing bool
	result     *LoginResult
	manifest   *AltarikManifest
	selected   *Chapter
}

func NewSession(login LoginProvider, chapters ChapterSource, installer ContentInstaller, repo Repository) *Session {
	return &Session{
		login:     login,
		chapters:  chapters,
		installer: installer,
		repo:      repo,
	}
}

// Login runs the identity chain and commits the result. A second call
// while one attempt is in flight is rejected rather than queued.
func (s *Session) Login(ctx context.Context, prompt Prompt) (*GameProfile, error) {
	s.mu.Lock()
	if s.loggingIn {
		s.mu.Unlock()
		return nil, ErrLoginInProgress
	}
	s.loggingIn = true
	s.mu.Unlock()

	result, err := s.login.Login(ctx, prompt)

	s.mu.Lock()
	s.loggingIn = false
	if err == nil {
		s.result = result
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	profile := result.Profile
	return &profile, nil
}

// Profile returns a copy of the logged-in profile, or nil before login.
func (s *Session) Profile() *GameProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return nil
	}
	profile := s.result.Profile
	return &profile
}

// TokenExpiresAt reports when the game access token expires. Zero
// before login.
func (s *Session) TokenExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return time.Time{}
	}
	return s.result.ExpiresAt
}

// LoadChapters fetches the chapter catalogue and caches it for
// SelectChapter.
func (s *Session) LoadChapters(ctx context.Context) ([]Chapter, error) {
	manifest, err := s.chapters.FetchAltarikManifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chapter manifest: %w", err)
	}

	s.mu.Lock()
	s.manifest = manifest
	s.selected = nil
	s.mu.Unlock()

	return manifest.Chapters, nil
}

// SelectChapter picks a chapter by index into the last loaded catalogue.
func (s *Session) SelectChapter(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manifest == nil || index < 0 || index >= len(s.manifest.Chapters) {
		return fmt.Errorf("no chapter at index %d", index)
	}
	chapter := s.manifest.Chapters[index]
	s.selected = &chapter
	return nil
}

// SelectedChapter returns a copy of the current selection, or nil.
func (s *Session) SelectedChapter() *Chapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return nil
	}
	chapter := *s.selected
	return &chapter
}

// Install runs the acquisition pipeline for the selected chapter and
// records the run in the ledger. Runs against one installation root
// must not overlap; a concurrent call is rejected. The sink is closed
// when the run ends, so the consumer's range terminates.
func (s *Session) Install(ctx context.Context, sink *ProgressSink) error {
	defer sink.Close()

	s.mu.Lock()
	if s.installing {
		s.mu.Unlock()
		return ErrInstallInProgress
	}
	if s.selected == nil {
		s.mu.Unlock()
		return ErrNoChapterSelected
	}
	chapter := *s.selected
	s.installing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.installing = false
		s.mu.Unlock()
	}()

	started := time.Now()
	stats, err := s.installer.Install(ctx, chapter, sink)
	if err != nil {
		return err
	}

	run := &InstallRun{
		ID:               uuid.New(),
		ChapterTitle:     chapter.Title,
		MinecraftVersion: chapter.MinecraftVersion,
		Libraries:        stats.Libraries,
		Assets:           stats.Assets,
		Mods:             stats.Mods,
		StartedAt:        started,
		CompletedAt:      time.Now(),
	}
	if err := s.repo.RecordRun(ctx, run); err != nil {
		return fmt.Errorf("failed to record install run: %w", err)
	}
	return nil
}
