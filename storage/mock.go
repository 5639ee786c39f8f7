package storage

import (
	"context"
	"sync"
	"time"

	"altarik/core"

	"github.com/google/uuid"
)

// Predefined ledger fixtures for tests.
var (
	Run1 = &core.InstallRun{
		ID:               uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		ChapterTitle:     "Chapitre 1",
		MinecraftVersion: "1.19.4",
		Libraries:        12,
		Assets:           2048,
		Mods:             3,
		StartedAt:        time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
		CompletedAt:      time.Date(2026, 1, 1, 10, 5, 0, 0, time.UTC),
	}

	Run2 = &core.InstallRun{
		ID:               uuid.MustParse("22222222-2222-2222-2222-222222222222"),
		ChapterTitle:     "Chapitre 2",
		MinecraftVersion: "1.20.1",
		Libraries:        14,
		Assets:           2231,
		Mods:             5,
		StartedAt:        time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC),
		CompletedAt:      time.Date(2026, 1, 2, 10, 7, 0, 0, time.UTC),
	}
)

// MockRepository is an in-memory ledger for tests.
type MockRepository struct {
	mu   sync.Mutex
	runs []core.InstallRun
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		runs: []core.InstallRun{*Run1, *Run2},
	}
}

// NewEmptyMockRepository returns a ledger with no seeded runs.
func NewEmptyMockRepository() *MockRepository {
	return &MockRepository{}
}

func (r *MockRepository) RecordRun(ctx context.Context, run *core.InstallRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, *run)
	return nil
}

func (r *MockRepository) ListRuns(ctx context.Context) ([]core.InstallRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	runs := make([]core.InstallRun, len(r.runs))
	copy(runs, r.runs)

	// Newest first, matching the sqlite ordering.
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	return runs, nil
}

func (r *MockRepository) LastRunForChapter(ctx context.Context, chapterTitle string) (*core.InstallRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.runs) - 1; i >= 0; i-- {
		if r.runs[i].ChapterTitle == chapterTitle {
			run := r.runs[i]
			return &run, nil
		}
	}
	return nil, core.ErrNotFound
}
