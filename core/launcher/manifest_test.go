package launcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"altarik/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindVersion(t *testing.T) {
	manifest := &VersionManifest{Versions: []VersionEntry{
		{ID: "1.19.4", Type: "snapshot", URL: "https://example.invalid/snap.json"},
		{ID: "1.19.4", Type: "release", URL: "https://example.invalid/rel.json"},
		{ID: "1.20.1", Type: "release", URL: "https://example.invalid/120.json"},
	}}

	entry, err := FindVersion(manifest, "1.19.4", "release")
	require.NoError(t, err)
	assert.Equal(t, "https://example.invalid/rel.json", entry.URL)

	// The (id, type) pair must match exactly: a snapshot is not an
	// acceptable substitute for a release of the same id.
	_, err = FindVersion(manifest, "1.18", "release")
	assert.ErrorIs(t, err, core.ErrVersionNotFound)

	only := &VersionManifest{Versions: []VersionEntry{
		{ID: "1.19.4", Type: "snapshot"},
	}}
	_, err = FindVersion(only, "1.19.4", "release")
	assert.ErrorIs(t, err, core.ErrVersionNotFound)
}

func TestShouldUseLibrary(t *testing.T) {
	allowLinux := LibraryRule{Action: "allow", OS: &LibraryOSRule{Name: core.OSLinux}}
	allowAll := LibraryRule{Action: "allow"}
	disallowLinux := LibraryRule{Action: "disallow", OS: &LibraryOSRule{Name: core.OSLinux}}

	cases := []struct {
		name  string
		rules []LibraryRule
		os    core.OSName
		want  bool
	}{
		{"no rules always included", nil, core.OSWindows, true},
		{"allow linux on linux", []LibraryRule{allowLinux}, core.OSLinux, true},
		{"allow linux on windows", []LibraryRule{allowLinux}, core.OSWindows, false},
		{"allow linux on macos", []LibraryRule{allowLinux}, core.OSMacOS, false},
		{"osless rule matches everything", []LibraryRule{allowAll}, core.OSWindows, true},
		{"last matching rule wins", []LibraryRule{allowAll, disallowLinux}, core.OSLinux, false},
		{"later non-matching rule does not override", []LibraryRule{allowAll, disallowLinux}, core.OSWindows, true},
		{"no matching rule excludes", []LibraryRule{disallowLinux}, core.OSWindows, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lib := &Library{Name: "org.test:lib:1.0", Rules: tc.rules}
			assert.Equal(t, tc.want, shouldUseLibrary(lib, tc.os))
		})
	}
}

func TestFilterLibraries(t *testing.T) {
	artifact := &LibraryArtifact{Path: "a/b.jar"}
	libs := []Library{
		{Name: "always", Downloads: LibraryDownloads{Artifact: artifact}},
		{Name: "linux-only", Downloads: LibraryDownloads{Artifact: artifact}, Rules: []LibraryRule{
			{Action: "allow", OS: &LibraryOSRule{Name: core.OSLinux}},
		}},
		{Name: "no-artifact"},
	}

	kept := filterLibraries(libs, core.OSLinux)
	require.Len(t, kept, 2)
	assert.Equal(t, "always", kept[0].Name)
	assert.Equal(t, "linux-only", kept[1].Name)

	kept = filterLibraries(libs, core.OSWindows)
	require.Len(t, kept, 1)
	assert.Equal(t, "always", kept[0].Name)
}

func TestFetchAltarikManifest_ParallelArrayViolation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(core.AltarikManifest{Chapters: []core.Chapter{
			{
				Title: "Broken",
				ModsPack: core.ModsPack{
					Mods:    []string{"https://example.invalid/a.zip", "https://example.invalid/b.zip"},
					Sha1Sum: []string{"only-one"},
				},
			},
		}})
	}))
	defer server.Close()

	client := NewClient(&Config{AltarikManifestURL: server.URL})
	_, err := client.FetchAltarikManifest(context.Background())

	var protocolErr *core.ProtocolError
	require.ErrorAs(t, err, &protocolErr)
	assert.Contains(t, protocolErr.Detail, "Broken")
}

func TestFetchAltarikManifest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(core.AltarikManifest{Chapters: []core.Chapter{
			{
				Title:            "Chapitre 1",
				MinecraftVersion: "1.19.4",
				Type:             "release",
				ModsPack: core.ModsPack{
					Mods:    []string{"https://example.invalid/a.zip"},
					Sha1Sum: []string{"da39a3ee5e6b4b0d3255bfef95601890afd80709"},
				},
			},
		}})
	}))
	defer server.Close()

	client := NewClient(&Config{AltarikManifestURL: server.URL})
	manifest, err := client.FetchAltarikManifest(context.Background())
	require.NoError(t, err)
	require.Len(t, manifest.Chapters, 1)
	assert.Equal(t, "Chapitre 1", manifest.Chapters[0].Title)
}
