package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultGoogleTokenURL     = "https://oauth2.googleapis.com/token"
	defaultGoogleTokenInfoURL = "https://www.googleapis.com/oauth2/v1/tokeninfo"
	defaultGoogleUserInfoURL  = "https://www.googleapis.com/oauth2/v1/userinfo"
	defaultGoogleRevokeURL    = "https://accounts.google.com/o/oauth2/revoke"
)

// GoogleOAuthConfig はGoogle OAuthプロバイダーの設定。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	Timeout      time.Duration

	// テスト用にオーバーライド可能なURL
	TokenURL     string
	TokenInfoURL string
	UserInfoURL  string
	RevokeURL    string
}

// GoogleOAuthProvider はGoogle OAuth 2.0による認証を提供する。
// 外部呼び出しはすべて同期・タイムアウト付きで、リトライは行わない。
type GoogleOAuthProvider struct {
	config GoogleOAuthConfig
	client *http.Client
}

// NewGoogleOAuthProvider はGoogleOAuthProviderを生成する。
func NewGoogleOAuthProvider(config GoogleOAuthConfig) *GoogleOAuthProvider {
	if config.TokenURL == "" {
		config.TokenURL = defaultGoogleTokenURL
	}
	if config.TokenInfoURL == "" {
		config.TokenInfoURL = defaultGoogleTokenInfoURL
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultGoogleUserInfoURL
	}
	if config.RevokeURL == "" {
		config.RevokeURL = defaultGoogleRevokeURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &GoogleOAuthProvider{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// Credentials は認可コード交換で得られたトークンとIDクレームを表す。
type Credentials struct {
	AccessToken string
	// Subject はIDトークンに埋め込まれたユーザー識別子（subクレーム）。
	Subject string
}

// TokenMetadata はtokeninfoエンドポイントで得られるトークンのメタデータ。
type TokenMetadata struct {
	// UserID はトークンが発行されたユーザーの識別子。
	UserID string
	// IssuedTo はトークンの発行先（このアプリケーションのクライアントID）。
	IssuedTo string
}

// Profile はuserinfoエンドポイントで得られるユーザープロフィール。
type Profile struct {
	GoogleID string
	Name     string
	Email    string
	Picture  string
}

// Provider は外部IDプロバイダーとの4つの交換プロトコルを抽象化する。
type Provider interface {
	// ExchangeCode は認可コードをアクセストークンとIDクレームに交換する。
	ExchangeCode(ctx context.Context, code string) (*Credentials, error)
	// TokenInfo はアクセストークンのメタデータ（subject、audience）を取得する。
	TokenInfo(ctx context.Context, accessToken string) (*TokenMetadata, error)
	// UserInfo はアクセストークンでユーザープロフィールを取得する。
	UserInfo(ctx context.Context, accessToken string) (*Profile, error)
	// RevokeToken はアクセストークンを失効させる。
	RevokeToken(ctx context.Context, accessToken string) error
}

// googleTokenResponse はGoogleのトークンエンドポイントのレスポンス。
type googleTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	IDToken     string `json:"id_token"`
}

// googleTokenInfo はGoogleのtokeninfoエンドポイントのレスポンス。
type googleTokenInfo struct {
	UserID   string `json:"user_id"`
	IssuedTo string `json:"issued_to"`
	Error    string `json:"error"`
}

// googleUserInfo はGoogleのユーザー情報エンドポイントのレスポンス。
type googleUserInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

// ExchangeCode は認可コードをアクセストークンとIDクレームに交換する。
// redirect_uriにはpostmessageを指定する（ブラウザのサインインボタンからの
// コード受け渡しフロー）。
func (p *GoogleOAuthProvider) ExchangeCode(ctx context.Context, code string) (*Credentials, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {"postmessage"},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := p.do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	var tokenResp googleTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	subject, err := idTokenSubject(tokenResp.IDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to extract id token subject: %w", err)
	}

	return &Credentials{
		AccessToken: tokenResp.AccessToken,
		Subject:     subject,
	}, nil
}

// TokenInfo はアクセストークンのメタデータ（subject、audience）を取得する。
func (p *GoogleOAuthProvider) TokenInfo(ctx context.Context, accessToken string) (*TokenMetadata, error) {
	reqURL := p.config.TokenInfoURL + "?access_token=" + url.QueryEscape(accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokeninfo request: %w", err)
	}

	body, err := p.do(req)
	if err != nil {
		return nil, fmt.Errorf("tokeninfo fetch failed: %w", err)
	}

	var info googleTokenInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse tokeninfo response: %w", err)
	}

	if info.Error != "" {
		return nil, fmt.Errorf("tokeninfo returned error: %s", info.Error)
	}

	return &TokenMetadata{
		UserID:   info.UserID,
		IssuedTo: info.IssuedTo,
	}, nil
}

// UserInfo はアクセストークンでユーザープロフィールを取得する。
func (p *GoogleOAuthProvider) UserInfo(ctx context.Context, accessToken string) (*Profile, error) {
	reqURL := p.config.UserInfoURL + "?alt=json&access_token=" + url.QueryEscape(accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo request: %w", err)
	}

	body, err := p.do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo fetch failed: %w", err)
	}

	var userInfo googleUserInfo
	if err := json.Unmarshal(body, &userInfo); err != nil {
		return nil, fmt.Errorf("failed to parse userinfo response: %w", err)
	}

	if userInfo.ID == "" {
		return nil, fmt.Errorf("empty id in userinfo response")
	}

	return &Profile{
		GoogleID: userInfo.ID,
		Name:     userInfo.Name,
		Email:    userInfo.Email,
		Picture:  userInfo.Picture,
	}, nil
}

// RevokeToken はアクセストークンを失効させる。
func (p *GoogleOAuthProvider) RevokeToken(ctx context.Context, accessToken string) error {
	reqURL := p.config.RevokeURL + "?token=" + url.QueryEscape(accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create revoke request: %w", err)
	}

	if _, err := p.do(req); err != nil {
		return fmt.Errorf("token revocation failed: %w", err)
	}

	return nil
}

// do はリクエストを実行し、2xx以外のステータスをエラーとしてボディを返す。
func (p *GoogleOAuthProvider) do(req *http.Request) ([]byte, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// idTokenSubject はIDトークン（JWT）のペイロードからsubクレームを取り出す。
// 署名検証はしない。subjectはtokeninfoの結果との突き合わせにのみ使用され、
// トークン自体の有効性の判断はtokeninfo側に委ねられる。
func idTokenSubject(idToken string) (string, error) {
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("malformed id token")
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("failed to decode id token payload: %w", err)
	}

	var claims struct {
		Sub string `json:"sub"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", fmt.Errorf("failed to parse id token claims: %w", err)
	}

	if claims.Sub == "" {
		return "", fmt.Errorf("empty sub in id token")
	}

	return claims.Sub, nil
}

// compile-time interface check
var _ Provider = (*GoogleOAuthProvider)(nil)
