package launcher

import (
	"bufio"
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"altarik/core"
)

// currentOS maps the running platform onto the manifest's os names.
func currentOS() core.OSName {
	switch runtime.GOOS {
	case "windows":
		return core.OSWindows
	case "darwin":
		return core.OSMacOS
	default:
		return core.OSLinux
	}
}

// Installer is the content-acquisition pipeline: it resolves the
// manifests for a chapter, decides per artifact whether the local copy
// is already valid, downloads and verifies what is not, and unpacks the
// runtime and mod archives. It implements core.ContentInstaller.
type Installer struct {
	config     *Config
	client     *Client
	httpClient *http.Client
	osName     core.OSName
}

func NewInstaller(config *Config) *Installer {
	config.applyDefaults()
	return &Installer{
		config:     config,
		client:     NewClient(config),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		osName:     currentOS(),
	}
}

// Install runs one full acquisition for chapter, emitting one progress
// event per artifact on sink. Any failure aborts the run: a partial
// installation is unsafe to launch, so nothing is skipped over.
func (i *Installer) Install(ctx context.Context, chapter core.Chapter, sink *core.ProgressSink) (*core.InstallStats, error) {
	if len(chapter.ModsPack.Mods) != len(chapter.ModsPack.Sha1Sum) {
		return nil, &core.ProtocolError{
			Service: "altarik manifest",
			Detail:  fmt.Sprintf("chapter %q: mods and sha1sum lengths differ", chapter.Title),
		}
	}

	manifest, err := i.client.FetchVersionManifest(ctx)
	if err != nil {
		return nil, err
	}
	entry, err := FindVersion(manifest, chapter.MinecraftVersion, chapter.Type)
	if err != nil {
		return nil, err
	}
	detail, rawDetail, err := i.client.FetchVersionDetail(ctx, entry)
	if err != nil {
		return nil, err
	}
	index, rawIndex, err := i.client.FetchAssetIndex(ctx, detail.AssetIndex)
	if err != nil {
		return nil, err
	}
	libraries := filterLibraries(detail.Libraries, i.osName)

	java, err := javaForPlatform(chapter.Java, i.osName)
	if err != nil {
		return nil, err
	}

	if err := i.prepareTree(chapter.Title); err != nil {
		return nil, err
	}
	if err := i.persistDocuments(detail, rawDetail, rawIndex); err != nil {
		return nil, err
	}

	if err := i.downloadLibraries(ctx, libraries, sink); err != nil {
		return nil, err
	}
	if err := i.downloadAssets(ctx, index, sink); err != nil {
		return nil, err
	}
	modPacks, err := i.downloadMods(ctx, chapter, sink)
	if err != nil {
		return nil, err
	}
	javaArchive, err := i.downloadJava(ctx, java, sink)
	if err != nil {
		return nil, err
	}
	if err := i.extractArchives(ctx, javaArchive, modPacks, sink); err != nil {
		return nil, err
	}

	if err := sink.Emit(ctx, core.ProgressEvent{Stage: core.StageCompleted, Current: 1, Total: 1}); err != nil {
		return nil, err
	}

	return &core.InstallStats{
		Libraries: len(libraries),
		Assets:    len(index.Objects),
		Mods:      len(chapter.ModsPack.Mods),
	}, nil
}

// prepareTree creates the directory layout idempotently. mods and
// versions are volatile: they are wiped so nothing from a previous
// chapter survives.
func (i *Installer) prepareTree(chapterTitle string) error {
	root := i.config.RootPath

	for _, volatile := range []string{"mods", "versions"} {
		dir := filepath.Join(root, volatile)
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to clear %s: %w", volatile, err)
		}
	}

	subdirs := []string{
		"libraries",
		filepath.Join("assets", "objects"),
		filepath.Join("assets", "indexes"),
		filepath.Join("runtime", "download"),
		"mods",
		"versions",
		filepath.Join("modpack", chapterTitle),
	}
	for _, sub := range subdirs {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", sub, err)
		}
	}
	return nil
}

// persistDocuments writes the version detail and asset index documents
// where the game expects them.
func (i *Installer) persistDocuments(detail *VersionDetail, rawDetail, rawIndex []byte) error {
	versionDir := filepath.Join(i.config.RootPath, "versions", detail.ID)
	if err := os.MkdirAll(versionDir, 0o755); err != nil {
		return fmt.Errorf("failed to create version directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(versionDir, detail.ID+".json"), rawDetail, 0o644); err != nil {
		return fmt.Errorf("failed to write version detail: %w", err)
	}

	indexPath := filepath.Join(i.config.RootPath, "assets", "indexes", detail.AssetIndex.ID+".json")
	if err := os.WriteFile(indexPath, rawIndex, 0o644); err != nil {
		return fmt.Errorf("failed to write asset index: %w", err)
	}
	return nil
}

// downloadLibraries fetches every applicable library. Local validity is
// a size check; before trusting freshly downloaded bytes the companion
// .sha1 published next to the artifact, when present, must agree with
// the manifest.
func (i *Installer) downloadLibraries(ctx context.Context, libraries []Library, sink *core.ProgressSink) error {
	total := len(libraries)
	for idx, lib := range libraries {
		artifact := lib.Downloads.Artifact
		dest := filepath.Join(i.config.RootPath, "libraries", filepath.FromSlash(artifact.Path))

		// The companion .sha1 must agree with the manifest whether or
		// not the local copy looks valid; a disagreement means the
		// manifest and the host are out of sync.
		if err := i.verifyCompanionSha1(ctx, artifact); err != nil {
			return err
		}

		if !fileHasSize(dest, artifact.Size) {
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return fmt.Errorf("failed to create library directory: %w", err)
			}
			if err := i.downloadFile(ctx, artifact.URL, dest); err != nil {
				return err
			}
			sum, err := fileDigest(dest, sha1.New())
			if err != nil {
				return err
			}
			if sum != artifact.Sha1 {
				return &core.IntegrityViolation{Artifact: artifact.Path, Expected: artifact.Sha1, Actual: sum}
			}
		}

		if err := sink.Emit(ctx, core.ProgressEvent{Stage: core.StageLibraries, Current: idx + 1, Total: total}); err != nil {
			return err
		}
	}
	return nil
}

// verifyCompanionSha1 fetches <artifact url>.sha1 when the host serves
// one and compares it against the manifest's declared sha1. The two
// disagreeing means the manifest and the host are out of sync, which is
// indistinguishable from tampering, so it is fatal.
func (i *Installer) verifyCompanionSha1(ctx context.Context, artifact *LibraryArtifact) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artifact.URL+".sha1", nil)
	if err != nil {
		return fmt.Errorf("failed to build sha1 request: %w", err)
	}
	resp, err := i.httpClient.Do(req)
	if err != nil {
		// The companion file is optional; unreachable host failures
		// surface on the artifact download itself.
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	line, err := bufio.NewReader(io.LimitReader(resp.Body, 1024)).ReadString('\n')
	if err != nil && err != io.EOF {
		return nil
	}
	remote := strings.Fields(line)
	if len(remote) == 0 {
		return nil
	}
	if remote[0] != artifact.Sha1 {
		return &core.IntegrityViolation{Artifact: artifact.Path, Expected: artifact.Sha1, Actual: remote[0]}
	}
	return nil
}

// downloadAssets fetches missing asset objects into content-addressed
// storage. Names are walked in sorted order so progress is
// deterministic.
func (i *Installer) downloadAssets(ctx context.Context, index *AssetIndex, sink *core.ProgressSink) error {
	names := make([]string, 0, len(index.Objects))
	for name := range index.Objects {
		names = append(names, name)
	}
	sort.Strings(names)

	total := len(names)
	for idx, name := range names {
		object := index.Objects[name]
		if len(object.Hash) < 2 {
			return &core.ProtocolError{Service: "asset index", Detail: fmt.Sprintf("object %q has malformed hash %q", name, object.Hash)}
		}
		prefix := object.Hash[:2]
		dest := filepath.Join(i.config.RootPath, "assets", "objects", prefix, object.Hash)

		if !fileHasSize(dest, object.Size) {
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return fmt.Errorf("failed to create asset directory: %w", err)
			}
			url := fmt.Sprintf("%s/%s/%s", i.config.ResourcesBaseURL, prefix, object.Hash)
			if err := i.downloadFile(ctx, url, dest); err != nil {
				return err
			}
		}

		if err := sink.Emit(ctx, core.ProgressEvent{Stage: core.StageAssets, Current: idx + 1, Total: total}); err != nil {
			return err
		}
	}
	return nil
}

// downloadMods fetches the chapter's mod packs. Mods are few and high
// risk, so validity is a full SHA-1 of the local content; a stale file
// is deleted and fetched again rather than kept. Returns the pack
// archive paths for extraction.
func (i *Installer) downloadMods(ctx context.Context, chapter core.Chapter, sink *core.ProgressSink) ([]string, error) {
	packDir := filepath.Join(i.config.RootPath, "modpack", chapter.Title)
	total := len(chapter.ModsPack.Mods)

	paths := make([]string, 0, total)
	for idx, modURL := range chapter.ModsPack.Mods {
		expected := chapter.ModsPack.Sha1Sum[idx]
		dest := filepath.Join(packDir, fmt.Sprintf("modpack%d.zip", idx))

		valid, err := fileMatchesDigest(dest, sha1.New(), expected)
		if err != nil {
			return nil, err
		}
		if !valid {
			if err := os.RemoveAll(dest); err != nil {
				return nil, fmt.Errorf("failed to remove stale mod pack: %w", err)
			}
			if err := i.downloadFile(ctx, modURL, dest); err != nil {
				return nil, err
			}
			sum, err := fileDigest(dest, sha1.New())
			if err != nil {
				return nil, err
			}
			if sum != expected {
				return nil, &core.IntegrityViolation{Artifact: filepath.Base(dest), Expected: expected, Actual: sum}
			}
		}
		paths = append(paths, dest)

		if err := sink.Emit(ctx, core.ProgressEvent{Stage: core.StageMods, Current: idx + 1, Total: total}); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// javaForPlatform picks the runtime archive entry for the current
// platform from the chapter.
func javaForPlatform(java core.Java, osName core.OSName) (*core.JavaDetails, error) {
	var arch *core.JavaPlatformArch
	switch osName {
	case core.OSWindows:
		arch = java.Platform.Win32
	case core.OSLinux:
		arch = java.Platform.Linux
	}
	if arch == nil {
		return nil, fmt.Errorf("chapter provides no java runtime for %s", osName)
	}
	details := arch.X64
	return &details, nil
}

// downloadJava ensures the runtime archive is present and intact.
// Like mods it is verified by full content hash, SHA-256 here since
// that is what the runtime publisher declares.
func (i *Installer) downloadJava(ctx context.Context, java *core.JavaDetails, sink *core.ProgressSink) (string, error) {
	dest := filepath.Join(i.config.RootPath, "runtime", "download", java.Name)

	valid, err := fileMatchesDigest(dest, sha256.New(), java.Sha256Sum)
	if err != nil {
		return "", err
	}
	if !valid {
		if err := os.RemoveAll(dest); err != nil {
			return "", fmt.Errorf("failed to remove stale runtime archive: %w", err)
		}
		if err := i.downloadFile(ctx, java.Link, dest); err != nil {
			return "", err
		}
		sum, err := fileDigest(dest, sha256.New())
		if err != nil {
			return "", err
		}
		if sum != java.Sha256Sum {
			return "", &core.IntegrityViolation{Artifact: java.Name, Expected: java.Sha256Sum, Actual: sum}
		}
	}

	if err := sink.Emit(ctx, core.ProgressEvent{Stage: core.StageJava, Current: 1, Total: 1}); err != nil {
		return "", err
	}
	return dest, nil
}

// extractArchives unpacks the runtime archive into runtime/ and every
// mod pack into mods/.
func (i *Installer) extractArchives(ctx context.Context, javaArchive string, modPacks []string, sink *core.ProgressSink) error {
	total := 1 + len(modPacks)

	runtimeDir := filepath.Join(i.config.RootPath, "runtime")
	if err := ExtractArchive(javaArchive, runtimeDir); err != nil {
		return err
	}
	if err := sink.Emit(ctx, core.ProgressEvent{Stage: core.StageExtract, Current: 1, Total: total}); err != nil {
		return err
	}

	modsDir := filepath.Join(i.config.RootPath, "mods")
	for idx, pack := range modPacks {
		if err := ExtractArchive(pack, modsDir); err != nil {
			return err
		}
		if err := sink.Emit(ctx, core.ProgressEvent{Stage: core.StageExtract, Current: idx + 2, Total: total}); err != nil {
			return err
		}
	}
	return nil
}

// downloadFile streams url into dest, truncating any prior content.
func (i *Installer) downloadFile(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("%w: %s", core.ErrNetworkTimeout, url)
		}
		return fmt.Errorf("download of %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &core.ProtocolError{Service: "download", Detail: fmt.Sprintf("status %d from %s", resp.StatusCode, url)}
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return nil
}

// fileHasSize is the cheap validity check for bulk artifacts.
func fileHasSize(path string, size int64) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() == size
}

// fileDigest hashes the whole file with h and returns the hex sum.
func fileDigest(path string, h hash.Hash) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// fileMatchesDigest reports whether path exists and hashes to expected.
// A missing file is simply not a match.
func fileMatchesDigest(path string, h hash.Hash, expected string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		return false, nil
	}
	sum, err := fileDigest(path, h)
	if err != nil {
		return false, err
	}
	return sum == expected, nil
}
