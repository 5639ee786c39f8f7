package msauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"altarik/core"
)

type oauthTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

type xboxAuthRequest struct {
	Properties   xboxAuthProperties `json:"Properties"`
	RelyingParty string             `json:"RelyingParty"`
	TokenType    string             `json:"TokenType"`
}

type xboxAuthProperties struct {
	AuthMethod string `json:"AuthMethod"`
	SiteName   string `json:"SiteName"`
	RpsTicket  string `json:"RpsTicket"`
}

type xboxAuthResponse struct {
	Token         string `json:"Token"`
	DisplayClaims struct {
		Xui []struct {
			Uhs string `json:"uhs"`
		} `json:"xui"`
	} `json:"DisplayClaims"`
}

type xstsAuthRequest struct {
	Properties   xstsAuthProperties `json:"Properties"`
	RelyingParty string             `json:"RelyingParty"`
	TokenType    string             `json:"TokenType"`
}

type xstsAuthProperties struct {
	SandboxID  string   `json:"SandboxId"`
	UserTokens []string `json:"UserTokens"`
}

type xstsErrorResponse struct {
	XErr    int64  `json:"XErr"`
	Message string `json:"Message"`
}

type minecraftLoginRequest struct {
	IdentityToken string `json:"identityToken"`
}

type minecraftLoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type entitlementsResponse struct {
	Items []struct {
		Name string `json:"name"`
	} `json:"items"`
}

// xstsRestrictions maps the XErr codes the XSTS service returns on 401
// to user-meaningful failure kinds.
var xstsRestrictions = map[int64]core.XboxRestrictionReason{
	2148916233: core.RestrictionSignUpRequired,
	2148916235: core.RestrictionRegionBlocked,
	2148916236: core.RestrictionAgeVerification,
	2148916237: core.RestrictionAgeVerification,
	2148916238: core.RestrictionChildAccount,
}

func xstsRestriction(code int64) *core.XboxRestriction {
	reason, ok := xstsRestrictions[code]
	if !ok {
		reason = core.RestrictionUnknown
	}
	return &core.XboxRestriction{Code: code, Reason: reason}
}

// classifyTransport folds transport failures into the error taxonomy,
// surfacing timeouts as a distinct kind.
func classifyTransport(service string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s", core.ErrNetworkTimeout, service)
	}
	return fmt.Errorf("%s request failed: %w", service, err)
}

// exchangeCode trades the authorization code for the OAuth token pair.
func (a *Authenticator) exchangeCode(ctx context.Context, code, redirectURI string) (*oauthTokenResponse, error) {
	data := url.Values{}
	data.Set("client_id", a.config.ClientID)
	data.Set("code", code)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", redirectURI)

	tokenURL := a.config.OAuthBaseURL + "/oauth20_token.srf"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport("oauth token", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &core.ProtocolError{Service: "oauth token", Detail: fmt.Sprintf("status %d: %s", resp.StatusCode, body)}
	}

	var tokens oauthTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, &core.ProtocolError{Service: "oauth token", Detail: err.Error()}
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return nil, &core.ProtocolError{Service: "oauth token", Detail: "response missing access_token or refresh_token"}
	}
	return &tokens, nil
}

// xboxUserAuth trades the OAuth access token for an Xbox Live user
// token and the user hash.
func (a *Authenticator) xboxUserAuth(ctx context.Context, accessToken string) (xblToken, userHash string, err error) {
	body := xboxAuthRequest{
		Properties: xboxAuthProperties{
			AuthMethod: "RPS",
			SiteName:   "user.auth.xboxlive.com",
			RpsTicket:  "d=" + accessToken,
		},
		RelyingParty: "http://auth.xboxlive.com",
		TokenType:    "JWT",
	}

	var result xboxAuthResponse
	if err := a.postJSON(ctx, "xbox live auth", a.config.XboxUserAuthURL, body, &result); err != nil {
		return "", "", err
	}
	if result.Token == "" || len(result.DisplayClaims.Xui) == 0 {
		return "", "", &core.ProtocolError{Service: "xbox live auth", Detail: "response missing Token or DisplayClaims.xui"}
	}
	return result.Token, result.DisplayClaims.Xui[0].Uhs, nil
}

// xstsAuthorize trades the Xbox Live token for an XSTS token scoped to
// the Minecraft services relying party. A 401 carries an XErr code that
// is mapped to a distinct restriction kind.
func (a *Authenticator) xstsAuthorize(ctx context.Context, xblToken string) (string, error) {
	body := xstsAuthRequest{
		Properties: xstsAuthProperties{
			SandboxID:  "RETAIL",
			UserTokens: []string{xblToken},
		},
		RelyingParty: "rp://api.minecraftservices.com/",
		TokenType:    "JWT",
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to encode xsts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.XstsAuthURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build xsts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", classifyTransport("xsts", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		var denial xstsErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&denial); err != nil {
			return "", &core.ProtocolError{Service: "xsts", Detail: "401 without a readable XErr"}
		}
		return "", xstsRestriction(denial.XErr)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", &core.ProtocolError{Service: "xsts", Detail: fmt.Sprintf("status %d: %s", resp.StatusCode, respBody)}
	}

	var result struct {
		Token string `json:"Token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &core.ProtocolError{Service: "xsts", Detail: err.Error()}
	}
	if result.Token == "" {
		return "", &core.ProtocolError{Service: "xsts", Detail: "response missing Token"}
	}
	return result.Token, nil
}

// loginWithXbox trades the XSTS token for the game-service access token.
func (a *Authenticator) loginWithXbox(ctx context.Context, userHash, xstsToken string) (*minecraftLoginResponse, error) {
	body := minecraftLoginRequest{
		IdentityToken: fmt.Sprintf("XBL3.0 x=%s;%s", userHash, xstsToken),
	}

	var result minecraftLoginResponse
	loginURL := a.config.MinecraftServicesURL + "/authentication/login_with_xbox"
	if err := a.postJSON(ctx, "minecraft login", loginURL, body, &result); err != nil {
		return nil, err
	}
	if result.AccessToken == "" {
		return nil, &core.ProtocolError{Service: "minecraft login", Detail: "response missing access_token"}
	}
	return &result, nil
}

// checkEntitlement reports whether the store lists any game items for
// the account.
func (a *Authenticator) checkEntitlement(ctx context.Context, accessToken string) (bool, error) {
	var result entitlementsResponse
	storeURL := a.config.MinecraftServicesURL + "/entitlements/store"
	if err := a.getJSON(ctx, "entitlements", storeURL, accessToken, &result); err != nil {
		return false, err
	}
	return len(result.Items) > 0, nil
}

// fetchProfile returns the game profile, or (nil, nil) when the service
// reports the account has none.
func (a *Authenticator) fetchProfile(ctx context.Context, accessToken string) (*core.GameProfile, error) {
	profileURL := a.config.MinecraftServicesURL + "/minecraft/profile"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, profileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport("profile", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &core.ProtocolError{Service: "profile", Detail: fmt.Sprintf("status %d: %s", resp.StatusCode, body)}
	}

	var profile core.GameProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, &core.ProtocolError{Service: "profile", Detail: err.Error()}
	}
	return &profile, nil
}

func (a *Authenticator) postJSON(ctx context.Context, service, rawURL string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", service, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", service, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return classifyTransport(service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return &core.ProtocolError{Service: service, Detail: fmt.Sprintf("status %d: %s", resp.StatusCode, respBody)}
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &core.ProtocolError{Service: service, Detail: err.Error()}
	}
	return nil
}

func (a *Authenticator) getJSON(ctx context.Context, service, rawURL, bearer string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", service, err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return classifyTransport(service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return &core.ProtocolError{Service: service, Detail: fmt.Sprintf("status %d: %s", resp.StatusCode, respBody)}
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &core.ProtocolError{Service: service, Detail: err.Error()}
	}
	return nil
}
