package msauth

// Config holds the identity chain endpoints. Base URLs default to the
// production services and are overridable so tests can point at local
// servers.
type Config struct {
	ClientID             string `yaml:"client_id"`
	OAuthBaseURL         string `yaml:"oauth_base_url"`
	XboxUserAuthURL      string `yaml:"xbox_user_auth_url"`
	XstsAuthURL          string `yaml:"xsts_auth_url"`
	MinecraftServicesURL string `yaml:"minecraft_services_url"`

	// Local port range probed for the redirect receiver.
	PortRangeStart int `yaml:"port_range_start"`
	PortRangeEnd   int `yaml:"port_range_end"`

	// How long to wait for the browser redirect before aborting.
	RedirectTimeoutSeconds int `yaml:"redirect_timeout_seconds"`
}

func DefaultConfig() *Config {
	return &Config{
		ClientID:               "00000000402b5328",
		OAuthBaseURL:           "https://login.live.com",
		XboxUserAuthURL:        "https://user.auth.xboxlive.com/user/authenticate",
		XstsAuthURL:            "https://xsts.auth.xboxlive.com/xsts/authorize",
		MinecraftServicesURL:   "https://api.minecraftservices.com",
		PortRangeStart:         7878,
		PortRangeEnd:           65535,
		RedirectTimeoutSeconds: 120,
	}
}

// applyDefaults fills any zero field from DefaultConfig, so a partial
// YAML section still yields a usable config.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.ClientID == "" {
		c.ClientID = def.ClientID
	}
	if c.OAuthBaseURL == "" {
		c.OAuthBaseURL = def.OAuthBaseURL
	}
	if c.XboxUserAuthURL == "" {
		c.XboxUserAuthURL = def.XboxUserAuthURL
	}
	if c.XstsAuthURL == "" {
		c.XstsAuthURL = def.XstsAuthURL
	}
	if c.MinecraftServicesURL == "" {
		c.MinecraftServicesURL = def.MinecraftServicesURL
	}
	if c.PortRangeStart == 0 {
		c.PortRangeStart = def.PortRangeStart
	}
	if c.PortRangeEnd == 0 {
		c.PortRangeEnd = def.PortRangeEnd
	}
	if c.RedirectTimeoutSeconds == 0 {
		c.RedirectTimeoutSeconds = def.RedirectTimeoutSeconds
	}
}
