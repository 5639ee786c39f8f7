package launcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"altarik/core"
)

// VersionManifest is the index of every published game version.
type VersionManifest struct {
	Latest   LatestVersions `json:"latest"`
	Versions []VersionEntry `json:"versions"`
}

type LatestVersions struct {
	Release  string `json:"release"`
	Snapshot string `json:"snapshot"`
}

// VersionEntry points at one version's detail document.
type VersionEntry struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	URL  string `json:"url"`
	Sha1 string `json:"sha1"`
}

// VersionDetail is the per-version document listing libraries and the
// asset index reference.
type VersionDetail struct {
	ID          string        `json:"id"`
	Type        string        `json:"type"`
	MainClass   string        `json:"mainClass"`
	Assets      string        `json:"assets"`
	AssetIndex  AssetIndexRef `json:"assetIndex"`
	Libraries   []Library     `json:"libraries"`
	JavaVersion struct {
		Component    string `json:"component"`
		MajorVersion int    `json:"majorVersion"`
	} `json:"javaVersion"`
}

type AssetIndexRef struct {
	ID        string `json:"id"`
	Sha1      string `json:"sha1"`
	Size      int64  `json:"size"`
	TotalSize int64  `json:"totalSize"`
	URL       string `json:"url"`
}

type Library struct {
	Name      string           `json:"name"`
	Downloads LibraryDownloads `json:"downloads"`
	Rules     []LibraryRule    `json:"rules,omitempty"`
}

type LibraryDownloads struct {
	Artifact *LibraryArtifact `json:"artifact,omitempty"`
}

type LibraryArtifact struct {
	Path string `json:"path"`
	Sha1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

type LibraryRule struct {
	Action string         `json:"action"`
	OS     *LibraryOSRule `json:"os,omitempty"`
}

type LibraryOSRule struct {
	Name core.OSName `json:"name"`
}

// AssetIndex maps logical asset names to content-addressed objects.
type AssetIndex struct {
	Objects map[string]AssetObject `json:"objects"`
}

type AssetObject struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// FindVersion returns the entry whose (id, type) pair matches exactly.
// A version present under a different type is not a match.
func FindVersion(manifest *VersionManifest, versionID, versionType string) (*VersionEntry, error) {
	for i := range manifest.Versions {
		entry := &manifest.Versions[i]
		if entry.ID == versionID && entry.Type == versionType {
			return entry, nil
		}
	}
	return nil, fmt.Errorf("%w: %s (%s)", core.ErrVersionNotFound, versionID, versionType)
}

// shouldUseLibrary decides applicability for one platform. No rules
// means always included. With rules, the last rule matching the
// platform decides; a rule without an os clause matches every platform.
// When no rule matches, the library is excluded.
func shouldUseLibrary(lib *Library, osName core.OSName) bool {
	if len(lib.Rules) == 0 {
		return true
	}
	include := false
	matched := false
	for _, rule := range lib.Rules {
		if rule.OS != nil && rule.OS.Name != osName {
			continue
		}
		matched = true
		include = rule.Action == "allow"
	}
	return matched && include
}

// filterLibraries keeps the libraries applicable to osName that carry a
// downloadable artifact.
func filterLibraries(libs []Library, osName core.OSName) []Library {
	kept := make([]Library, 0, len(libs))
	for _, lib := range libs {
		if lib.Downloads.Artifact == nil {
			continue
		}
		if shouldUseLibrary(&lib, osName) {
			kept = append(kept, lib)
		}
	}
	return kept
}

// Client fetches the remote manifest documents. It implements
// core.ChapterSource.
type Client struct {
	config     *Config
	httpClient *http.Client
}

func NewClient(config *Config) *Client {
	config.applyDefaults()
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchAltarikManifest downloads the chapter catalogue and validates
// the mod/sha1 parallel-array contract up front.
func (c *Client) FetchAltarikManifest(ctx context.Context) (*core.AltarikManifest, error) {
	var manifest core.AltarikManifest
	if _, err := c.fetchJSON(ctx, "altarik manifest", c.config.AltarikManifestURL, &manifest); err != nil {
		return nil, err
	}
	for _, chapter := range manifest.Chapters {
		if len(chapter.ModsPack.Mods) != len(chapter.ModsPack.Sha1Sum) {
			return nil, &core.ProtocolError{
				Service: "altarik manifest",
				Detail:  fmt.Sprintf("chapter %q: %d mods but %d sha1 sums", chapter.Title, len(chapter.ModsPack.Mods), len(chapter.ModsPack.Sha1Sum)),
			}
		}
	}
	return &manifest, nil
}

func (c *Client) FetchVersionManifest(ctx context.Context) (*VersionManifest, error) {
	var manifest VersionManifest
	if _, err := c.fetchJSON(ctx, "version manifest", c.config.VersionManifestURL, &manifest); err != nil {
		return nil, err
	}
	return &manifest, nil
}

// FetchVersionDetail also returns the raw document so the pipeline can
// persist it verbatim under versions/.
func (c *Client) FetchVersionDetail(ctx context.Context, entry *VersionEntry) (*VersionDetail, []byte, error) {
	var detail VersionDetail
	raw, err := c.fetchJSON(ctx, "version detail", entry.URL, &detail)
	if err != nil {
		return nil, nil, err
	}
	return &detail, raw, nil
}

// FetchAssetIndex also returns the raw document so the pipeline can
// persist it under assets/indexes/.
func (c *Client) FetchAssetIndex(ctx context.Context, ref AssetIndexRef) (*AssetIndex, []byte, error) {
	var index AssetIndex
	raw, err := c.fetchJSON(ctx, "asset index", ref.URL, &index)
	if err != nil {
		return nil, nil, err
	}
	return &index, raw, nil
}

func (c *Client) fetchJSON(ctx context.Context, service, rawURL string, result any) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", service, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w: %s", core.ErrNetworkTimeout, service)
		}
		return nil, fmt.Errorf("%s request failed: %w", service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &core.ProtocolError{Service: service, Detail: fmt.Sprintf("status %d from %s", resp.StatusCode, rawURL)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s read failed: %w", service, err)
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return nil, &core.ProtocolError{Service: service, Detail: err.Error()}
	}
	return raw, nil
}
