package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/sociallink-core/internal/core/domain"
	"github.com/custodia-labs/sociallink-core/internal/core/ports/driven"
	"github.com/custodia-labs/sociallink-core/internal/core/ports/driving"
)

// Ensure oauthService implements OAuthService
var _ driving.OAuthService = (*oauthService)(nil)

// stateTTL is the lifetime of a pending authorization attempt. The
// in-process cache channel enforces its own shorter TTL on top.
const stateTTL = 20 * time.Minute

// OAuthServiceConfig holds configuration for the OAuth service.
type OAuthServiceConfig struct {
	// Providers resolves clients and app credentials per platform.
	Providers driven.ProviderRegistry

	// Cookies builds the signed-cookie state channel per request.
	Cookies driven.CookieStateChannels

	// StateCache is the in-process state channel.
	StateCache driven.StateChannel

	// StateStore is the persistent fallback channel.
	StateStore driven.OAuthStateStore

	// AccountStore persists connected accounts.
	AccountStore driven.AccountStore

	// BaseURL is the application base URL for OAuth callbacks.
	// Example: "https://app.example.com" or "http://localhost:3000"
	BaseURL string

	Logger *slog.Logger
}

// oauthService implements the OAuthService interface.
type oauthService struct {
	providers    driven.ProviderRegistry
	cookies      driven.CookieStateChannels
	stateCache   driven.StateChannel
	stateStore   driven.OAuthStateStore
	accountStore driven.AccountStore
	baseURL      string
	logger       *slog.Logger
}

// NewOAuthService creates a new OAuth service.
func NewOAuthService(cfg OAuthServiceConfig) driving.OAuthService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &oauthService{
		providers:    cfg.Providers,
		cookies:      cfg.Cookies,
		stateCache:   cfg.StateCache,
		stateStore:   cfg.StateStore,
		accountStore: cfg.AccountStore,
		baseURL:      cfg.BaseURL,
		logger:       logger,
	}
}

// channels returns the state channels in lookup priority order: signed
// cookie first, then in-process cache, then the persistent row.
func (s *oauthService) channels(carrier driven.CookieCarrier) []driven.StateChannel {
	chs := make([]driven.StateChannel, 0, 3)
	if s.cookies != nil && carrier != nil {
		chs = append(chs, s.cookies.Channel(carrier))
	}
	if s.stateCache != nil {
		chs = append(chs, s.stateCache)
	}
	if s.stateStore != nil {
		chs = append(chs, s.stateStore)
	}
	return chs
}

// Authorize starts an OAuth authorization flow.
// It generates PKCE credentials, stores the pending state across every
// channel, and returns the authorization URL.
func (s *oauthService) Authorize(ctx context.Context, carrier driven.CookieCarrier, req driving.AuthorizeRequest) (*driving.AuthorizeResponse, error) {
	if !req.Platform.Valid() {
		return nil, domain.ErrInvalidInput
	}

	client := s.providers.Client(req.Platform)
	if client == nil {
		return nil, domain.ErrPlatformNotSupported
	}
	cfg := s.providers.Config(req.Platform)
	if !cfg.IsConfigured() {
		return nil, domain.ErrProviderNotConfigured
	}

	creds, err := GeneratePKCE()
	if err != nil {
		return nil, err
	}

	redirectURI := s.baseURL + "/api/v1/connect/callback"

	now := time.Now()
	oauthState := &driven.OAuthState{
		State:        creds.State,
		Platform:     string(req.Platform),
		UserID:       req.UserID,
		CodeVerifier: creds.CodeVerifier,
		RedirectURI:  redirectURI,
		CreatedAt:    now,
		ExpiresAt:    now.Add(stateTTL),
	}

	// Fan the payload out to every channel. Cookie and cache failures
	// only cost resilience; a persistent-store failure abandons the
	// attempt and the volatile channels are cleared.
	channels := s.channels(carrier)
	for _, ch := range channels {
		if ch == nil || ch == driven.StateChannel(s.stateStore) {
			continue
		}
		if err := ch.Save(ctx, oauthState); err != nil {
			s.logger.Warn("state channel save failed",
				"platform", req.Platform, "error", err)
		}
	}
	if s.stateStore != nil {
		if err := s.stateStore.Save(ctx, oauthState); err != nil {
			s.clearState(ctx, channels, creds.State)
			return nil, fmt.Errorf("save oauth state: %w", err)
		}
	}

	authURL := client.BuildAuthURL(
		cfg.ClientID,
		redirectURI,
		creds.State,
		creds.CodeChallenge,
		cfg.Scopes,
	)

	return &driving.AuthorizeResponse{
		AuthorizationURL: authURL,
		State:            creds.State,
		ExpiresAt:        oauthState.ExpiresAt.Format(time.RFC3339),
	}, nil
}

// Callback handles the OAuth callback from the provider.
// It validates and consumes the state, exchanges the code for tokens,
// and persists the connected account.
func (s *oauthService) Callback(ctx context.Context, carrier driven.CookieCarrier, req driving.CallbackRequest) (*driving.CallbackResponse, error) {
	if req.Error != "" {
		return nil, &driving.OAuthError{
			Code:        req.Error,
			Description: req.ErrorDescription,
		}
	}

	if req.Code == "" || req.State == "" {
		return nil, &driving.OAuthError{
			Code:        "invalid_request",
			Description: "missing code or state parameter",
		}
	}

	oauthState := s.consumeState(ctx, carrier, req.State)
	if oauthState == nil {
		// Potential CSRF or replay: either the state was never issued,
		// already consumed, or timed out.
		s.logger.Warn("oauth state rejected", "received_state", req.State)
		return nil, driving.ErrOAuthInvalidState
	}

	platform := domain.Platform(oauthState.Platform)
	client := s.providers.Client(platform)
	if client == nil {
		return nil, domain.ErrPlatformNotSupported
	}

	// Codes are single-use; a failed exchange is never retried.
	token, err := client.ExchangeCode(ctx, req.Code, oauthState.CodeVerifier, oauthState.RedirectURI)
	if err != nil {
		return nil, &driving.OAuthError{
			Code:        "exchange_failed",
			Description: err.Error(),
		}
	}

	providerUser, err := client.GetUserInfo(ctx, token.AccessToken)
	if err != nil {
		return nil, &driving.OAuthError{
			Code:        "user_info_failed",
			Description: err.Error(),
		}
	}

	var expiry *time.Time
	if token.ExpiresIn > 0 {
		t := time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
		expiry = &t
	}

	account := &domain.SocialAccount{
		UserID:            oauthState.UserID,
		Platform:          platform,
		ProviderAccountID: providerUser.ID,
		ProviderUsername:  providerUser.Username,
		AccessToken:       token.AccessToken,
		RefreshToken:      token.RefreshToken,
		TokenExpiresAt:    expiry,
		Scope:             token.Scope,
		IsActive:          true,
	}

	saved, err := s.accountStore.Upsert(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("save account: %w", err)
	}

	display := providerUser.Username
	if display == "" {
		display = providerUser.ID
	}

	return &driving.CallbackResponse{
		Account: saved.ToSummary(),
		Message: fmt.Sprintf("Connected %s as @%s", platform.DisplayName(), display),
	}, nil
}

// consumeState walks the channels in priority order and returns the
// first non-expired payload whose embedded state matches the lookup
// key. Every channel is cleared for that state afterwards so the
// payload cannot be replayed through a lower-priority channel.
func (s *oauthService) consumeState(ctx context.Context, carrier driven.CookieCarrier, state string) *driven.OAuthState {
	if state == "" {
		return nil
	}

	channels := s.channels(carrier)

	var found *driven.OAuthState
	for _, ch := range channels {
		payload, err := ch.GetAndDelete(ctx, state)
		if err != nil {
			// A broken channel must not mask the fallbacks.
			s.logger.Warn("state channel lookup failed", "error", err)
			continue
		}
		if payload == nil {
			continue
		}
		if payload.State != state {
			// Cross-wired or tampered payload, same as not found.
			s.logger.Warn("state payload mismatch", "received_state", state)
			continue
		}
		if payload.Expired() {
			continue
		}
		found = payload
		break
	}

	s.clearState(ctx, channels, state)
	return found
}

// clearState best-effort deletes the state from every channel.
func (s *oauthService) clearState(ctx context.Context, channels []driven.StateChannel, state string) {
	for _, ch := range channels {
		if err := ch.Delete(ctx, state); err != nil {
			s.logger.Warn("state channel clear failed", "error", err)
		}
	}
}
