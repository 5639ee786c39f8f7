package msauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"altarik/core"

	"github.com/google/uuid"
)

// BrowserOpener is the external component that can display a browser
// view at a URL and close it again. The desktop shell implements it.
type BrowserOpener interface {
	Open(url string) error
	Close()
}

// Authenticator runs the Microsoft account → Xbox Live → XSTS →
// Minecraft services identity chain. One Authenticator serves many
// login attempts; each attempt gets its own receiver, port and CSRF
// state.
type Authenticator struct {
	config     *Config
	httpClient *http.Client
	browser    BrowserOpener
}

func NewAuthenticator(config *Config, browser BrowserOpener) *Authenticator {
	config.applyDefaults()
	return &Authenticator{
		config:     config,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		browser:    browser,
	}
}

// Login performs one interactive sign-in. Every stage failure is
// terminal; nothing is retried and no token outlives the call except
// inside the returned result.
func (a *Authenticator) Login(ctx context.Context, prompt core.Prompt) (*core.LoginResult, error) {
	// 1. CSRF state and an ephemeral local port for the redirect.
	state := uuid.NewString()

	listener, port, err := bindPort(a.config)
	if err != nil {
		return nil, err
	}

	recv := newReceiver(listener)
	recv.start()
	defer recv.shutdown()

	// 2. Hand the authorization URL to the browser view.
	redirectURI := fmt.Sprintf("http://localhost:%d/api/auth/redirect", port)
	if err := a.browser.Open(a.authorizeURL(redirectURI, prompt, state)); err != nil {
		return nil, fmt.Errorf("failed to open browser view: %w", err)
	}

	// 3. Race the redirect against receiver failure and the timeout.
	received, err := recv.await(ctx, time.Duration(a.config.RedirectTimeoutSeconds)*time.Second)
	a.browser.Close()
	if err != nil {
		return nil, err
	}

	// 4. The echoed state must prove the redirect answers our request.
	if received.State != state {
		return nil, core.ErrCsrfMismatch
	}

	// 5-8. Sequential token exchanges.
	tokens, err := a.exchangeCode(ctx, received.Code, redirectURI)
	if err != nil {
		return nil, err
	}

	xblToken, userHash, err := a.xboxUserAuth(ctx, tokens.AccessToken)
	if err != nil {
		return nil, err
	}

	xstsToken, err := a.xstsAuthorize(ctx, xblToken)
	if err != nil {
		return nil, err
	}

	login, err := a.loginWithXbox(ctx, userHash, xstsToken)
	if err != nil {
		return nil, err
	}

	// 9. Ownership check and profile fetch run concurrently; both
	// complete before the acceptance policy combines them.
	profile, err := a.resolveProfile(ctx, login.AccessToken)
	if err != nil {
		return nil, err
	}

	expiresAt, err := tokenExpiry(login.AccessToken)
	if err != nil {
		expiresAt = time.Now().Add(time.Duration(login.ExpiresIn) * time.Second)
	}

	return &core.LoginResult{
		Profile:     *profile,
		AccessToken: login.AccessToken,
		ExpiresAt:   expiresAt,
	}, nil
}

// AuthorizeURL exposes the link built for a given attempt; the harness
// prints it when no embedded browser is available.
func (a *Authenticator) authorizeURL(redirectURI string, prompt core.Prompt, state string) string {
	params := url.Values{}
	params.Set("client_id", a.config.ClientID)
	params.Set("response_type", "code")
	params.Set("redirect_uri", redirectURI)
	params.Set("scope", "XboxLive.signin offline_access")
	params.Set("prompt", string(prompt))
	params.Set("state", state)
	return a.config.OAuthBaseURL + "/oauth20_authorize.srf?" + params.Encode()
}

// resolveProfile applies the ownership policy: the profile is accepted
// when the store lists the game or when a profile exists anyway, which
// covers accounts with access but no direct purchase record.
func (a *Authenticator) resolveProfile(ctx context.Context, accessToken string) (*core.GameProfile, error) {
	type ownership struct {
		owned bool
		err   error
	}
	type profileResult struct {
		profile *core.GameProfile
		err     error
	}

	ownCh := make(chan ownership, 1)
	profCh := make(chan profileResult, 1)

	go func() {
		owned, err := a.checkEntitlement(ctx, accessToken)
		ownCh <- ownership{owned: owned, err: err}
	}()
	go func() {
		profile, err := a.fetchProfile(ctx, accessToken)
		profCh <- profileResult{profile: profile, err: err}
	}()

	own := <-ownCh
	prof := <-profCh

	if own.err != nil {
		return nil, own.err
	}
	if prof.profile != nil {
		return prof.profile, nil
	}
	if !own.owned {
		return nil, core.ErrNotEntitled
	}
	if prof.err != nil {
		return nil, prof.err
	}
	return nil, &core.ProtocolError{Service: "profile", Detail: "account owns the game but has no profile"}
}
