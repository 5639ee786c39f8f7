package integration_test

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"

	"altarik/core"
	"altarik/core/launcher"
	"altarik/core/msauth"
)

// MockIdentityServer mocks every upstream of the identity chain on one
// httptest server: the Microsoft token endpoint, Xbox user
// authentication, XSTS authorization and the Minecraft services API.
type MockIdentityServer struct {
	server *httptest.Server
}

func NewMockIdentityServer() *MockIdentityServer {
	m := &MockIdentityServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth20_token.srf", m.handleToken)
	mux.HandleFunc("/user/authenticate", m.handleXboxAuth)
	mux.HandleFunc("/xsts/authorize", m.handleXsts)
	mux.HandleFunc("/authentication/login_with_xbox", m.handleMinecraftLogin)
	mux.HandleFunc("/entitlements/store", m.handleEntitlements)
	mux.HandleFunc("/minecraft/profile", m.handleProfile)

	m.server = httptest.NewServer(mux)
	return m
}

func (m *MockIdentityServer) Close() {
	m.server.Close()
}

// AuthConfig points an Authenticator at this mock chain.
func (m *MockIdentityServer) AuthConfig() *msauth.Config {
	return &msauth.Config{
		ClientID:               "integration-client",
		OAuthBaseURL:           m.server.URL,
		XboxUserAuthURL:        m.server.URL + "/user/authenticate",
		XstsAuthURL:            m.server.URL + "/xsts/authorize",
		MinecraftServicesURL:   m.server.URL,
		RedirectTimeoutSeconds: 5,
	}
}

func (m *MockIdentityServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("code") != "integration-code" {
		http.Error(w, "unknown code", http.StatusBadRequest)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"access_token":  "ms-access",
		"refresh_token": "ms-refresh",
		"expires_in":    3600,
	})
}

func (m *MockIdentityServer) handleXboxAuth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]any{
		"Token": "xbl-token",
		"DisplayClaims": map[string]any{
			"xui": []map[string]string{{"uhs": "integration-hash"}},
		},
	})
}

func (m *MockIdentityServer) handleXsts(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{"Token": "xsts-token"})
}

func (m *MockIdentityServer) handleMinecraftLogin(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]any{
		"access_token": "mc-access",
		"expires_in":   86400,
	})
}

func (m *MockIdentityServer) handleEntitlements(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]any{
		"items": []map[string]string{{"name": "game_minecraft"}},
	})
}

func (m *MockIdentityServer) handleProfile(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(core.GameProfile{
		ID:    "069a79f444e94726a5befca90e38aaf5",
		Name:  "IntegrationPlayer",
		Skins: []core.Skin{{ID: "skin-1", State: "ACTIVE", Variant: "CLASSIC"}},
	})
}

// autoLoginBrowser plays the part of the embedded browser view: it
// parses the authorization URL and immediately fires the redirect a
// real sign-in would produce.
type autoLoginBrowser struct {
	opened bool
	closed bool
}

func (b *autoLoginBrowser) Open(authURL string) error {
	b.opened = true
	parsed, err := url.Parse(authURL)
	if err != nil {
		return err
	}
	query := parsed.Query()
	redirect := fmt.Sprintf("%s?code=integration-code&state=%s",
		query.Get("redirect_uri"), url.QueryEscape(query.Get("state")))

	go func() {
		resp, err := http.Get(redirect)
		if err == nil {
			resp.Body.Close()
		}
	}()
	return nil
}

func (b *autoLoginBrowser) Close() {
	b.closed = true
}

// MockContentServer hosts the chapter catalogue, the version manifest
// documents and every artifact a chapter installation needs.
type MockContentServer struct {
	server *httptest.Server
	files  map[string][]byte
}

func NewMockContentServer() (*MockContentServer, error) {
	m := &MockContentServer{files: make(map[string][]byte)}
	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content, ok := m.files[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(content)
	}))
	if err := m.populate(); err != nil {
		m.server.Close()
		return nil, err
	}
	return m, nil
}

func (m *MockContentServer) Close() {
	m.server.Close()
}

// LauncherConfig points a launcher Client and Installer at this host.
func (m *MockContentServer) LauncherConfig(rootPath string) *launcher.Config {
	return &launcher.Config{
		RootPath:           rootPath,
		AltarikManifestURL: m.server.URL + "/launcher/launcher.json",
		VersionManifestURL: m.server.URL + "/mc/version_manifest_v2.json",
		ResourcesBaseURL:   m.server.URL + "/objects",
	}
}

func (m *MockContentServer) url(path string) string {
	return m.server.URL + path
}

// populate builds a one-chapter content universe: one library, two
// assets, one mod pack and a java runtime archive.
func (m *MockContentServer) populate() error {
	libContent := []byte("integration library bytes")
	libPath := "org/example/core/1.0/core-1.0.jar"
	libSha1 := sha1Hex(libContent)
	m.files["/libraries/"+libPath] = libContent
	m.files["/libraries/"+libPath+".sha1"] = []byte(libSha1 + "  core-1.0.jar\n")

	objects := make(map[string]launcher.AssetObject)
	for _, name := range []string{"icons/icon_16x16.png", "lang/fr_fr.json"} {
		content := []byte("asset " + name)
		hash := sha1Hex(content)
		m.files["/objects/"+hash[:2]+"/"+hash] = content
		objects[name] = launcher.AssetObject{Hash: hash, Size: int64(len(content))}
	}
	rawIndex, err := json.Marshal(launcher.AssetIndex{Objects: objects})
	if err != nil {
		return err
	}
	m.files["/indexes/integration.json"] = rawIndex

	rawDetail, err := json.Marshal(launcher.VersionDetail{
		ID:   "1.19.4",
		Type: "release",
		AssetIndex: launcher.AssetIndexRef{
			ID:  "integration",
			URL: m.url("/indexes/integration.json"),
		},
		Libraries: []launcher.Library{{
			Name: "core-1.0.jar",
			Downloads: launcher.LibraryDownloads{Artifact: &launcher.LibraryArtifact{
				Path: libPath,
				Sha1: libSha1,
				Size: int64(len(libContent)),
				URL:  m.url("/libraries/" + libPath),
			}},
		}},
	})
	if err != nil {
		return err
	}
	m.files["/v/1.19.4.json"] = rawDetail

	rawManifest, err := json.Marshal(launcher.VersionManifest{
		Latest: launcher.LatestVersions{Release: "1.19.4"},
		Versions: []launcher.VersionEntry{
			{ID: "1.19.4", Type: "release", URL: m.url("/v/1.19.4.json")},
		},
	})
	if err != nil {
		return err
	}
	m.files["/mc/version_manifest_v2.json"] = rawManifest

	pack, err := buildModPack(map[string]string{"integration-mod.jar": "mod bytes"})
	if err != nil {
		return err
	}
	m.files["/mods/pack0.zip"] = pack

	runtime, err := buildRuntimeArchive()
	if err != nil {
		return err
	}
	m.files["/java/jre-17.tar.gz"] = runtime

	java := core.JavaPlatformArch{X64: core.JavaDetails{
		Name:      "jre-17.tar.gz",
		Link:      m.url("/java/jre-17.tar.gz"),
		Sha256Sum: sha256Hex(runtime),
	}}
	rawCatalogue, err := json.Marshal(core.AltarikManifest{Chapters: []core.Chapter{
		{
			Title:            "Chapitre 1",
			Description:      "Le commencement",
			MinecraftVersion: "1.19.4",
			Type:             "release",
			ModsPack: core.ModsPack{
				Mods:    []string{m.url("/mods/pack0.zip")},
				Sha1Sum: []string{sha1Hex(pack)},
			},
			Java: core.Java{Platform: core.JavaPlatform{Win32: &java, Linux: &java}},
		},
		{
			Title:            "Chapitre 2",
			Description:      "La suite",
			MinecraftVersion: "1.19.4",
			Type:             "release",
			Java:             core.Java{Platform: core.JavaPlatform{Win32: &java, Linux: &java}},
		},
	}})
	if err != nil {
		return err
	}
	m.files["/launcher/launcher.json"] = rawCatalogue
	return nil
}

func sha1Hex(content []byte) string {
	sum := sha1.Sum(content)
	return hex.EncodeToString(sum[:])
}

func sha256Hex(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func buildModPack(entries map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for name, content := range entries {
		entry, err := writer.Create(name)
		if err != nil {
			return nil, err
		}
		if _, err := entry.Write([]byte(content)); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildRuntimeArchive() ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	writer := tar.NewWriter(gz)

	if err := writer.WriteHeader(&tar.Header{Name: "jre-17/", Typeflag: tar.TypeDir, Mode: 0o755}); err != nil {
		return nil, err
	}
	if err := writer.WriteHeader(&tar.Header{Name: "jre-17/bin/", Typeflag: tar.TypeDir, Mode: 0o755}); err != nil {
		return nil, err
	}
	launcherStub := []byte("#!ELF java launcher")
	if err := writer.WriteHeader(&tar.Header{
		Name:     "jre-17/bin/java",
		Typeflag: tar.TypeReg,
		Mode:     0o755,
		Size:     int64(len(launcherStub)),
	}); err != nil {
		return nil, err
	}
	if _, err := writer.Write(launcherStub); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
