package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GoTrueProvider implements Provider against a GoTrue-compatible password
// grant endpoint. The issued access token is persisted under the workspace so
// a later process start can restore the session.
type GoTrueProvider struct {
	URL        string
	AnonKey    string
	Workspace  string
	HTTPClient *http.Client

	mu   sync.Mutex
	subs []func(string)
}

func (p *GoTrueProvider) tokenPath() string {
	ws := p.Workspace
	if ws == "" {
		ws = "."
	}
	return filepath.Join(ws, ".stockline", "session.json")
}

type storedSession struct {
	AccessToken string `json:"access_token"`
}

// FetchSession restores a previously persisted token. An expired token is
// treated as no session.
func (p *GoTrueProvider) FetchSession(ctx context.Context) (string, error) {
	data, err := os.ReadFile(p.tokenPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	var s storedSession
	if err := json.Unmarshal(data, &s); err != nil {
		return "", nil
	}
	if tokenExpired(s.AccessToken) {
		return "", nil
	}
	return s.AccessToken, nil
}

// OnChange registers a listener for sign-in/sign-out notifications.
func (p *GoTrueProvider) OnChange(fn func(token string)) func() {
	p.mu.Lock()
	p.subs = append(p.subs, fn)
	idx := len(p.subs) - 1
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		p.subs[idx] = nil
		p.mu.Unlock()
	}
}

// SignIn exchanges email/password for an access token and persists it.
func (p *GoTrueProvider) SignIn(ctx context.Context, email, password string) error {
	if p.URL == "" {
		return fmt.Errorf("auth url not configured")
	}
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	url := p.URL + "/auth/v1/token?grant_type=password"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.AnonKey != "" {
		req.Header.Set("apikey", p.AnonKey)
	}
	resp, err := p.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sign-in failed (%d): %s", resp.StatusCode, string(raw))
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("sign-in response: %w", err)
	}
	if out.AccessToken == "" {
		return fmt.Errorf("sign-in response missing access_token")
	}
	if err := p.persist(out.AccessToken); err != nil {
		return err
	}
	p.emit(out.AccessToken)
	return nil
}

// SignOut drops the persisted token and notifies listeners.
func (p *GoTrueProvider) SignOut(ctx context.Context) error {
	if err := os.Remove(p.tokenPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	p.emit("")
	return nil
}

func (p *GoTrueProvider) persist(token string) error {
	path := p.tokenPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := json.Marshal(storedSession{AccessToken: token})
	return os.WriteFile(path, data, 0o600)
}

func (p *GoTrueProvider) emit(token string) {
	p.mu.Lock()
	subs := make([]func(string), len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()
	for _, fn := range subs {
		if fn != nil {
			fn(token)
		}
	}
}

func (p *GoTrueProvider) httpClient() *http.Client {
	if p.HTTPClient != nil {
		return p.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// tokenExpired inspects the token's exp claim without verifying the
// signature; verification is the backend's job, expiry is just a local
// freshness check.
func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		// Opaque tokens pass through; the backend decides.
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
