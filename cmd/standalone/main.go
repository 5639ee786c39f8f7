package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"altarik/core"
	"altarik/core/launcher"
	"altarik/core/msauth"
	"altarik/storage"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Auth     *msauth.Config   `yaml:"auth"`
	Launcher *launcher.Config `yaml:"launcher"`

	DB      DBConfig `yaml:"db"`
	Chapter int      `yaml:"chapter"`
}

type DBConfig struct {
	Type       string `yaml:"type"`
	SQLitePath string `yaml:"sqlite_path"`
}

// envOverrides are the settings worth flipping without editing the
// config file.
type envOverrides struct {
	ConfigPath  string `env:"CONFIG_PATH" envDefault:"config.yaml"`
	RootPath    string `env:"ALTARIK_ROOT"`
	ManifestURL string `env:"ALTARIK_MANIFEST_URL"`
	ClientID    string `env:"ALTARIK_CLIENT_ID"`
}

// consoleBrowser satisfies msauth.BrowserOpener without a desktop
// shell: it prints the link and lets the user open it themselves.
type consoleBrowser struct{}

func (consoleBrowser) Open(url string) error {
	fmt.Printf("Open this link in your browser to sign in:\n\n  %s\n\n", url)
	return nil
}

func (consoleBrowser) Close() {}

func main() {
	overrides, err := env.ParseAs[envOverrides]()
	if err != nil {
		log.Fatalf("Failed to parse environment: %v", err)
	}

	appConfig := loadConfig(overrides)

	repo := initRepository(appConfig.DB)

	authenticator := msauth.NewAuthenticator(appConfig.Auth, consoleBrowser{})
	client := launcher.NewClient(appConfig.Launcher)
	installer := launcher.NewInstaller(appConfig.Launcher)

	session := core.NewSession(authenticator, client, installer, repo)
	ctx := context.Background()

	profile, err := session.Login(ctx, core.PromptSelectAccount)
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}
	log.Printf("Logged in as %s (%s), token valid until %s", profile.Name, profile.ID, session.TokenExpiresAt())

	chapters, err := session.LoadChapters(ctx)
	if err != nil {
		log.Fatalf("Failed to load chapters: %v", err)
	}
	for i, chapter := range chapters {
		log.Printf("  [%d] %s (%s) — %s", i, chapter.Title, chapter.MinecraftVersion, chapter.Description)
	}

	if err := session.SelectChapter(appConfig.Chapter); err != nil {
		log.Fatalf("Failed to select chapter: %v", err)
	}

	sink, events := core.NewProgressSink(16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			log.Printf("[%s] %d/%d", ev.Stage, ev.Current, ev.Total)
		}
	}()

	if err := session.Install(ctx, sink); err != nil {
		log.Fatalf("Installation failed: %v", err)
	}
	<-done

	log.Printf("Installation of %q complete under %s", session.SelectedChapter().Title, appConfig.Launcher.RootPath)
}

func loadConfig(overrides envOverrides) *AppConfig {
	var config AppConfig
	data, err := os.ReadFile(overrides.ConfigPath)
	switch {
	case os.IsNotExist(err):
		// Every setting has a default; the config file is optional.
	case err != nil:
		log.Fatalf("Failed to read config file %s: %v", overrides.ConfigPath, err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			log.Fatalf("Failed to parse config file: %v", err)
		}
	}

	if config.Auth == nil {
		config.Auth = msauth.DefaultConfig()
	}
	if config.Launcher == nil {
		config.Launcher = launcher.DefaultConfig()
	}

	if overrides.RootPath != "" {
		config.Launcher.RootPath = overrides.RootPath
	}
	if overrides.ManifestURL != "" {
		config.Launcher.AltarikManifestURL = overrides.ManifestURL
	}
	if overrides.ClientID != "" {
		config.Auth.ClientID = overrides.ClientID
	}

	if config.Launcher.RootPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to locate home directory: %v", err)
		}
		config.Launcher.RootPath = filepath.Join(home, ".altarik")
	}

	return &config
}

func initRepository(dbConfig DBConfig) core.Repository {
	switch dbConfig.Type {
	case "", "sqlite":
		path := dbConfig.SQLitePath
		if path == "" {
			path = "altarik.db"
		}
		repo, err := storage.NewSQLiteRepository(path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite ledger: %v", err)
		}
		log.Printf("Using SQLite ledger: %s", path)
		return repo

	case "mock":
		log.Println("Using mock ledger (in-memory)")
		return storage.NewEmptyMockRepository()

	default:
		log.Fatalf("Unsupported DB type: %s (supported: sqlite, mock)", dbConfig.Type)
		return nil
	}
}
