package launcher

// Config locates the installation root and the remote manifest hosts.
// URLs default to the production services and are overridable so tests
// can point at local servers.
type Config struct {
	// RootPath is the installation directory this launcher owns. At
	// most one acquisition run may mutate it at a time.
	RootPath string `yaml:"root_path"`

	AltarikManifestURL string `yaml:"altarik_manifest_url"`
	VersionManifestURL string `yaml:"version_manifest_url"`
	ResourcesBaseURL   string `yaml:"resources_base_url"`
}

func DefaultConfig() *Config {
	return &Config{
		AltarikManifestURL: "https://launcher.altarik.fr",
		VersionManifestURL: "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json",
		ResourcesBaseURL:   "https://resources.download.minecraft.net",
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.AltarikManifestURL == "" {
		c.AltarikManifestURL = def.AltarikManifestURL
	}
	if c.VersionManifestURL == "" {
		c.VersionManifestURL = def.VersionManifestURL
	}
	if c.ResourcesBaseURL == "" {
		c.ResourcesBaseURL = def.ResourcesBaseURL
	}
}
