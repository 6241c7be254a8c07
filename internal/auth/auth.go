// Package auth signs visitors in through OIDC and remembers them in an
// encrypted cookie session. Browsing never requires a login.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	baseliboidc "github.com/aggregat4/go-baselib-services/v4/oidc"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gorilla/sessions"
)

type contextKey string

const (
	userIDContextKey contextKey = "auth.user_id"
	sessionUserIDKey            = "user_id"
)

type Config struct {
	IssuerURL      string
	ClientID       string
	ClientSecret   string
	RedirectURL    string
	SessionKey     string
	SessionTTL     time.Duration
	CookieSecure   bool
	CookieSameSite http.SameSite
	CookieDomain   string
	// FallbackURL is where a completed login lands when no original target is known.
	FallbackURL string
}

type Manager struct {
	oidcConfig    *baseliboidc.OidcConfiguration
	sessionStore  *sessions.CookieStore
	cookieOptions *sessions.Options
	fallbackURL   string
	redirectURL   string
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.IssuerURL == "" || cfg.ClientID == "" || cfg.RedirectURL == "" {
		return nil, errors.New("oidc issuer, client id, and redirect url are required")
	}
	masterKey, err := parseSessionKey(cfg.SessionKey)
	if err != nil {
		return nil, err
	}
	store := sessions.NewCookieStore(deriveCookieKeys(masterKey))
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 30 * 24 * time.Hour
	}
	if cfg.CookieSameSite == 0 {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}
	if cfg.FallbackURL == "" {
		cfg.FallbackURL = "/"
	}
	options := &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: cfg.CookieSameSite,
		Domain:   cfg.CookieDomain,
	}
	store.Options = options
	store.MaxAge(options.MaxAge)

	return &Manager{
		oidcConfig:    baseliboidc.CreateOidcConfiguration(cfg.IssuerURL, cfg.ClientID, cfg.ClientSecret, cfg.RedirectURL),
		sessionStore:  store,
		cookieOptions: options,
		fallbackURL:   cfg.FallbackURL,
		redirectURL:   cfg.RedirectURL,
	}, nil
}

// RegisterRoutes mounts /login, /logout and the OIDC callback at the path of
// the configured redirect URL. Only /login forces authentication.
func (m *Manager) RegisterRoutes(mux *http.ServeMux) error {
	path, err := callbackPath(m.redirectURL)
	if err != nil {
		return err
	}
	requireLogin := m.oidcConfig.CreateOidcAuthenticationMiddleware(m.IsAuthenticated, func(*http.Request) bool { return false })
	mux.Handle("/login", requireLogin(m.LoginHandler()))
	mux.Handle("/logout", m.LogoutHandler())
	mux.Handle(path, m.CallbackHandler())
	return nil
}

func callbackPath(redirectURL string) (string, error) {
	parsed, err := url.Parse(redirectURL)
	if err != nil {
		return "", fmt.Errorf("parse redirect url: %w", err)
	}
	switch parsed.Path {
	case "", "/", "/login", "/logout":
		return "", fmt.Errorf("redirect url %q needs a dedicated callback path", redirectURL)
	}
	return parsed.Path, nil
}

func (m *Manager) CallbackHandler() http.Handler {
	delegate := baseliboidc.CreateSTDSessionBasedOidcDelegate(m.handleIDToken, m.fallbackURL)
	return m.oidcConfig.CreateOidcCallbackHandler(delegate)
}

// LoginHandler is reached only once the visitor is authenticated.
func (m *Manager) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		http.Redirect(w, r, m.fallbackURL, http.StatusFound)
	}
}

func (m *Manager) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		session, err := m.sessionStore.Get(r, baseliboidc.STDSessionCookieName)
		if err == nil {
			session.Options = cloneOptions(m.cookieOptions)
			session.Options.MaxAge = -1
			_ = session.Save(r, w)
		}
		http.Redirect(w, r, m.fallbackURL, http.StatusFound)
	}
}

// WithUser stores the session's user id in the request context. Requests
// without a session pass through unchanged.
func (m *Manager) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID, ok := m.userIDFromSession(r); ok {
			r = r.WithContext(ContextWithUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Manager) IsAuthenticated(r *http.Request) bool {
	_, ok := m.userIDFromSession(r)
	return ok
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	value := ctx.Value(userIDContextKey)
	userID, ok := value.(string)
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// ContextSessions reads the user placed in the request context by WithUser
// or DevUserMiddleware.
type ContextSessions struct{}

func (ContextSessions) UserID(r *http.Request) (string, bool) {
	return UserIDFromContext(r.Context())
}

// DevUserMiddleware signs every request in as userID. For local development only.
func DevUserMiddleware(userID string) func(http.Handler) http.Handler {
	if userID == "" {
		userID = "dev-user"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}

func (m *Manager) handleIDToken(w http.ResponseWriter, r *http.Request, idToken *oidc.IDToken) error {
	var claims struct {
		Subject string `json:"sub"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return err
	}
	if claims.Subject == "" {
		return errors.New("id token missing sub claim")
	}
	return m.saveUserID(w, r, claims.Subject)
}

func (m *Manager) saveUserID(w http.ResponseWriter, r *http.Request, userID string) error {
	session, err := m.sessionStore.Get(r, baseliboidc.STDSessionCookieName)
	if err != nil {
		return err
	}
	session.Options = cloneOptions(m.cookieOptions)
	session.Values[sessionUserIDKey] = userID
	return session.Save(r, w)
}

func (m *Manager) userIDFromSession(r *http.Request) (string, bool) {
	session, err := m.sessionStore.Get(r, baseliboidc.STDSessionCookieName)
	if err != nil {
		return "", false
	}
	userID, ok := session.Values[sessionUserIDKey].(string)
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}

func parseSessionKey(raw string) ([]byte, error) {
	if raw == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		return key, nil
	}
	trimmed := strings.TrimSpace(raw)
	if decoded, err := base64.StdEncoding.DecodeString(trimmed); err == nil {
		if len(decoded) < 32 {
			return nil, errors.New("session key must decode to at least 32 bytes")
		}
		return decoded, nil
	}
	if len(trimmed) < 32 {
		return nil, errors.New("session key must be at least 32 characters or base64")
	}
	return []byte(trimmed), nil
}

func deriveCookieKeys(masterKey []byte) ([]byte, []byte) {
	return hmacSHA256(masterKey, []byte("auth")), hmacSHA256(masterKey, []byte("enc"))
}

func hmacSHA256(key []byte, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func cloneOptions(opts *sessions.Options) *sessions.Options {
	if opts == nil {
		return &sessions.Options{}
	}
	copy := *opts
	return &copy
}
