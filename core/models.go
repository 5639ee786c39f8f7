package core

// Prompt selects how the Microsoft login page behaves when the browser
// view opens.
type Prompt string

const (
	PromptLogin         Prompt = "login"
	PromptNone          Prompt = "none"
	PromptConsent       Prompt = "consent"
	PromptSelectAccount Prompt = "select_account"
)

// OSName identifies a platform in library rules and java runtime entries.
type OSName string

const (
	OSWindows OSName = "windows"
	OSLinux   OSName = "linux"
	OSMacOS   OSName = "osx"
)

// Skin is a skin entry from the Minecraft services profile document.
type Skin struct {
	ID         string `json:"id"`
	State      string `json:"state"`
	URL        string `json:"url"`
	TextureKey string `json:"textureKey"`
	Variant    string `json:"variant"`
}

// Cape is a cape entry from the Minecraft services profile document.
type Cape struct {
	ID    string `json:"id"`
	State string `json:"state"`
	URL   string `json:"url"`
	Alias string `json:"alias"`
}

// GameProfile is the durable output of a successful login.
type GameProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Skins []Skin `json:"skins"`
	Capes []Cape `json:"capes"`
}

// AltarikManifest is the remote chapter catalogue.
type AltarikManifest struct {
	Chapters []Chapter `json:"chapters"`
}

// Chapter is a named, versioned bundle the user can install: a game
// version plus a mod set and the java runtime it requires.
type Chapter struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	MinecraftVersion string   `json:"minecraftVersion"`
	Type             string   `json:"type"`
	CustomVersion    string   `json:"customVersion"`
	ModsPack         ModsPack `json:"modspack"`
	Java             Java     `json:"java"`
}

// ModsPack lists mod download URLs and their SHA-1 sums. Mods[i] pairs
// with Sha1Sum[i].
type ModsPack struct {
	Mods    []string `json:"mods"`
	Sha1Sum []string `json:"sha1sum"`
}

// Java describes the runtime a chapter needs, per platform.
type Java struct {
	Platform JavaPlatform `json:"platform"`
}

type JavaPlatform struct {
	Win32 *JavaPlatformArch `json:"win32,omitempty"`
	Linux *JavaPlatformArch `json:"linux,omitempty"`
}

type JavaPlatformArch struct {
	X64 JavaDetails `json:"x64"`
}

// JavaDetails locates one runtime archive. Sha256Sum covers the whole
// archive, not its entries.
type JavaDetails struct {
	Name      string `json:"name"`
	Link      string `json:"link"`
	Sha256Sum string `json:"sha256sum"`
}
