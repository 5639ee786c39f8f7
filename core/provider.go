package core

import (
	"context"
	"time"
)

// LoginResult is what a completed identity chain hands back. The access
// token stays in memory for the lifetime of the session and is never
// written to disk.
type LoginResult struct {
	Profile     GameProfile
	AccessToken string
	ExpiresAt   time.Time
}

// LoginProvider drives one complete interactive sign-in.
type LoginProvider interface {
	Login(ctx context.Context, prompt Prompt) (*LoginResult, error)
}

// ChapterSource fetches the remote chapter catalogue.
type ChapterSource interface {
	FetchAltarikManifest(ctx context.Context) (*AltarikManifest, error)
}

// InstallStats counts the artifacts an acquisition run processed, for
// the ledger.
type InstallStats struct {
	Libraries int
	Assets    int
	Mods      int
}

// ContentInstaller materializes a chapter into the installation root,
// reporting progress on sink.
type ContentInstaller interface {
	Install(ctx context.Context, chapter Chapter, sink *ProgressSink) (*InstallStats, error)
}
