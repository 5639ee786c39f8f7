package launcher

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ExtractArchive unpacks a zip or tar.gz archive into destination.
// Directory entries are cleared and recreated so files from a previous
// incompatible version cannot linger; file entries replace whatever is
// at their path. Entry paths resolving outside destination are
// rejected.
func ExtractArchive(archivePath, destination string) error {
	switch {
	case strings.HasSuffix(archivePath, ".zip"):
		return extractZip(archivePath, destination)
	case strings.HasSuffix(archivePath, ".tar.gz"), strings.HasSuffix(archivePath, ".tgz"):
		return extractTarGz(archivePath, destination)
	default:
		return fmt.Errorf("unsupported archive format: %s", filepath.Base(archivePath))
	}
}

// securePath joins an archive entry name under destination and rejects
// any entry that would escape it.
func securePath(destination, name string) (string, error) {
	joined := filepath.Join(destination, filepath.FromSlash(name))
	if !strings.HasPrefix(joined, filepath.Clean(destination)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes the destination", name)
	}
	return joined, nil
}

func extractZip(archivePath, destination string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		// ErrInsecurePath still yields a usable reader; securePath
		// rejects the offending entries below.
		return fmt.Errorf("failed to open archive %s: %w", filepath.Base(archivePath), err)
	}
	defer reader.Close()

	for _, entry := range reader.File {
		target, err := securePath(destination, entry.Name)
		if err != nil {
			return err
		}

		if entry.FileInfo().IsDir() {
			if err := recreateDir(target); err != nil {
				return err
			}
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			return fmt.Errorf("failed to open entry %s: %w", entry.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("failed to read entry %s: %w", entry.Name, err)
		}

		if err := writeEntry(target, content, entry.Mode()); err != nil {
			return err
		}
	}
	return nil
}

func extractTarGz(archivePath, destination string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", filepath.Base(archivePath), err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to read archive %s: %w", filepath.Base(archivePath), err)
	}
	defer gz.Close()

	reader := tar.NewReader(gz)
	for {
		header, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read archive %s: %w", filepath.Base(archivePath), err)
		}

		target, err := securePath(destination, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := recreateDir(target); err != nil {
				return err
			}
		case tar.TypeReg:
			content, err := io.ReadAll(reader)
			if err != nil {
				return fmt.Errorf("failed to read entry %s: %w", header.Name, err)
			}
			if err := writeEntry(target, content, os.FileMode(header.Mode)); err != nil {
				return err
			}
		default:
			// Symlinks and special files are not part of the runtime
			// archives we consume; skipping them keeps the tree plain.
		}
	}
}

// recreateDir clears a directory entry before recreating it, so a
// re-extraction over an older tree leaves no leftover files.
func recreateDir(target string) error {
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("failed to clear directory %s: %w", target, err)
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", target, err)
	}
	return nil
}

func writeEntry(target string, content []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", target, err)
	}
	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	if err := os.WriteFile(target, content, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return nil
}
