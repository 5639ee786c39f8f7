package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("not found")
)

// InstallRun records one completed acquisition run in the local ledger.
type InstallRun struct {
	ID               uuid.UUID
	ChapterTitle     string
	MinecraftVersion string
	Libraries        int
	Assets           int
	Mods             int
	StartedAt        time.Time
	CompletedAt      time.Time
}

type Repository interface {
	RecordRun(ctx context.Context, run *InstallRun) error

	ListRuns(ctx context.Context) ([]InstallRun, error)

	LastRunForChapter(ctx context.Context, chapterTitle string) (*InstallRun, error)
}
