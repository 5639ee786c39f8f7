package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"altarik/core"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema/sqlite/schema.sql
var sqliteSchema string

// SQLiteRepository is the on-disk install ledger.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	repo := &SQLiteRepository{db: db}

	if err := repo.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) initSchema() error {
	_, err := r.db.Exec(sqliteSchema)
	return err
}

func (r *SQLiteRepository) RecordRun(ctx context.Context, run *core.InstallRun) error {
	query := `
		INSERT INTO install_runs (id, chapter_title, minecraft_version, libraries, assets, mods, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		run.ID.String(),
		run.ChapterTitle,
		run.MinecraftVersion,
		run.Libraries,
		run.Assets,
		run.Mods,
		run.StartedAt.Unix(),
		run.CompletedAt.Unix(),
	)
	return err
}

func (r *SQLiteRepository) ListRuns(ctx context.Context) ([]core.InstallRun, error) {
	query := `
		SELECT id, chapter_title, minecraft_version, libraries, assets, mods, started_at, completed_at
		FROM install_runs
		ORDER BY completed_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []core.InstallRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func (r *SQLiteRepository) LastRunForChapter(ctx context.Context, chapterTitle string) (*core.InstallRun, error) {
	query := `
		SELECT id, chapter_title, minecraft_version, libraries, assets, mods, started_at, completed_at
		FROM install_runs
		WHERE chapter_title = ?
		ORDER BY completed_at DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, query, chapterTitle)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*core.InstallRun, error) {
	var run core.InstallRun
	var idStr string
	var startedAt, completedAt int64

	err := s.Scan(
		&idStr,
		&run.ChapterTitle,
		&run.MinecraftVersion,
		&run.Libraries,
		&run.Assets,
		&run.Mods,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	run.ID = uuid.MustParse(idStr)
	run.StartedAt = time.Unix(startedAt, 0)
	run.CompletedAt = time.Unix(completedAt, 0)
	return &run, nil
}
