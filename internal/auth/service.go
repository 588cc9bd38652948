package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/lifeops-dev/lifeops/internal/lifeops"
	"github.com/lifeops-dev/lifeops/internal/remote"
)

const (
	defaultIssuerURL = "https://accounts.google.com"
	stateLifetime    = 10 * time.Minute
)

var defaultScopes = []string{
	oidc.ScopeOpenID,
	"email",
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/calendar.events",
	"https://www.googleapis.com/auth/drive",
}

type ServiceOptions struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	IssuerURL    string
	Scopes       []string
	Cache        lifeops.Cache
	Sessions     *SessionManager
	Logger       lifeops.Logger
	HTTPClient   *http.Client
}

// Service runs the OAuth/OIDC flow against the remote suite's identity
// provider and hands live access tokens to the remote client.
type Service struct {
	oauth      *oauth2.Config
	issuerURL  string
	cache      lifeops.Cache
	sessions   *SessionManager
	log        lifeops.Logger
	httpClient *http.Client
	now        func() time.Time

	mu            sync.Mutex
	verifier      *oidc.IDTokenVerifier
	pendingStates map[string]time.Time
	token         *oauth2.Token
	source        oauth2.TokenSource
}

func NewService(opts ServiceOptions) *Service {
	issuer := opts.IssuerURL
	if issuer == "" {
		issuer = defaultIssuerURL
	}
	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Service{
		oauth: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
			},
		},
		issuerURL:     issuer,
		cache:         opts.Cache,
		sessions:      opts.Sessions,
		log:           logger,
		httpClient:    opts.HTTPClient,
		now:           time.Now,
		pendingStates: map[string]time.Time{},
	}
}

type noopLogger struct{}

func (noopLogger) Printf(string, ...any) {}

// BeginLogin redirects to the authorization endpoint with a one-time state
// nonce. Offline access is requested so a refresh token comes back.
func (s *Service) BeginLogin(w http.ResponseWriter, r *http.Request) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		http.Error(w, "state generation failed", http.StatusInternalServerError)
		return
	}
	state := hex.EncodeToString(buf)

	s.mu.Lock()
	for pending, issued := range s.pendingStates {
		if s.now().Sub(issued) > stateLifetime {
			delete(s.pendingStates, pending)
		}
	}
	s.pendingStates[state] = s.now()
	s.mu.Unlock()

	authURL := s.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback exchanges the authorization code, verifies the ID token, stores
// the OAuth token in the cache and opens a session.
func (s *Service) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		http.Error(w, "missing state or code", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	issued, known := s.pendingStates[state]
	delete(s.pendingStates, state)
	s.mu.Unlock()
	if !known || s.now().Sub(issued) > stateLifetime {
		http.Error(w, "unknown or expired state", http.StatusBadRequest)
		return
	}

	ctx := s.requestContext(r.Context())
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.log.Printf("auth: code exchange failed: %v", err)
		http.Error(w, "code exchange failed", http.StatusBadGateway)
		return
	}

	if rawIDToken, ok := token.Extra("id_token").(string); ok && rawIDToken != "" {
		verifier, verr := s.idTokenVerifier(ctx)
		if verr != nil {
			s.log.Printf("auth: verifier init failed: %v", verr)
			http.Error(w, "identity verification unavailable", http.StatusBadGateway)
			return
		}
		if _, verr := verifier.Verify(ctx, rawIDToken); verr != nil {
			s.log.Printf("auth: id token rejected: %v", verr)
			http.Error(w, "identity verification failed", http.StatusUnauthorized)
			return
		}
	}

	if err := s.storeToken(token); err != nil {
		s.log.Printf("auth: token persist failed: %v", err)
		http.Error(w, "token persist failed", http.StatusInternalServerError)
		return
	}
	if err := s.sessions.Issue(w); err != nil {
		http.Error(w, "session open failed", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// TokenProvider adapts the stored token, with automatic refresh, to the
// remote client's token-provider contract. Refreshed tokens are written
// back to the cache so restarts keep the refresh token chain.
func (s *Service) TokenProvider() remote.TokenProvider {
	return func(ctx context.Context) (string, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.token == nil {
			token, err := s.loadToken()
			if err != nil {
				return "", err
			}
			if token == nil {
				return "", remote.ErrUnauthorized
			}
			s.token = token
			s.source = nil
		}
		if s.source == nil {
			s.source = s.oauth.TokenSource(s.requestContext(context.Background()), s.token)
		}
		fresh, err := s.source.Token()
		if err != nil {
			return "", fmt.Errorf("%w: token refresh failed: %v", remote.ErrUnauthorized, err)
		}
		if fresh.AccessToken != s.token.AccessToken {
			s.token = fresh
			if err := s.persistToken(fresh); err != nil {
				s.log.Printf("auth: refreshed token persist failed: %v", err)
			}
		}
		return fresh.AccessToken, nil
	}
}

// IsSignedIn reports whether a stored token exists.
func (s *Service) IsSignedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != nil {
		return true
	}
	token, err := s.loadToken()
	return err == nil && token != nil
}

// SignOut drops the stored token and revokes every session. Called on
// explicit logout and whenever an unauthorized remote response surfaces.
func (s *Service) SignOut() {
	s.mu.Lock()
	s.token = nil
	s.source = nil
	s.mu.Unlock()
	if err := s.cache.Delete(lifeops.KeyAuthToken); err != nil {
		s.log.Printf("auth: token delete failed: %v", err)
	}
	s.sessions.RevokeAll()
}

// RequireSession gates authenticated routes on a live session cookie.
func (s *Service) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.sessions.Valid(r) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Service) Sessions() *SessionManager {
	return s.sessions
}

// idTokenVerifier initializes the OIDC verifier lazily; discovery needs the
// network and must not run at construction time. Callers hold no lock.
func (s *Service) idTokenVerifier(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.verifier != nil {
		return s.verifier, nil
	}
	provider, err := oidc.NewProvider(ctx, s.issuerURL)
	if err != nil {
		return nil, err
	}
	s.verifier = provider.Verifier(&oidc.Config{ClientID: s.oauth.ClientID})
	return s.verifier, nil
}

func (s *Service) storeToken(token *oauth2.Token) error {
	s.mu.Lock()
	s.token = token
	s.source = nil
	s.mu.Unlock()
	return s.persistToken(token)
}

func (s *Service) persistToken(token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return s.cache.Put(lifeops.KeyAuthToken, string(data))
}

// loadToken reads the cached token; callers hold the mutex.
func (s *Service) loadToken() (*oauth2.Token, error) {
	raw, ok, err := s.cache.Get(lifeops.KeyAuthToken)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var token oauth2.Token
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		return nil, err
	}
	return &token, nil
}

func (s *Service) requestContext(ctx context.Context) context.Context {
	if s.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}
	return ctx
}
