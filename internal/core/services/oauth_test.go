package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/custodia-labs/sociallink-core/internal/core/domain"
	"github.com/custodia-labs/sociallink-core/internal/core/ports/driven"
	"github.com/custodia-labs/sociallink-core/internal/core/ports/driving"
)

// mockStateChannel implements driven.StateChannel for testing
type mockStateChannel struct {
	states  map[string]*driven.OAuthState
	saveErr error
	getErr  error
	deletes int
}

func newMockStateChannel() *mockStateChannel {
	return &mockStateChannel{states: make(map[string]*driven.OAuthState)}
}

func (m *mockStateChannel) Save(ctx context.Context, state *driven.OAuthState) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	copied := *state
	m.states[state.State] = &copied
	return nil
}

func (m *mockStateChannel) GetAndDelete(ctx context.Context, state string) (*driven.OAuthState, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	s, ok := m.states[state]
	if !ok {
		return nil, nil
	}
	delete(m.states, state)
	if time.Now().After(s.ExpiresAt) {
		return nil, nil
	}
	return s, nil
}

func (m *mockStateChannel) Delete(ctx context.Context, state string) error {
	m.deletes++
	delete(m.states, state)
	return nil
}

// mockStateStore adds the persistent-store surface
type mockStateStore struct {
	mockStateChannel
}

func newMockStateStore() *mockStateStore {
	return &mockStateStore{mockStateChannel{states: make(map[string]*driven.OAuthState)}}
}

func (m *mockStateStore) Cleanup(ctx context.Context) (int, error) {
	removed := 0
	now := time.Now()
	for k, v := range m.states {
		if now.After(v.ExpiresAt) {
			delete(m.states, k)
			removed++
		}
	}
	return removed, nil
}

// mockCookieChannels returns the same channel regardless of carrier
type mockCookieChannels struct {
	channel *mockStateChannel
}

func (m *mockCookieChannels) Channel(carrier driven.CookieCarrier) driven.StateChannel {
	return m.channel
}

// fakeCarrier implements driven.CookieCarrier over a map
type fakeCarrier struct {
	cookies map[string]string
}

func newFakeCarrier() *fakeCarrier {
	return &fakeCarrier{cookies: make(map[string]string)}
}

func (c *fakeCarrier) Get(name string) (string, bool) {
	v, ok := c.cookies[name]
	return v, ok
}

func (c *fakeCarrier) Set(name, value string, maxAge time.Duration) {
	c.cookies[name] = value
}

func (c *fakeCarrier) Clear(name string) {
	delete(c.cookies, name)
}

// mockProviderClient implements driven.ProviderClient for testing
type mockProviderClient struct {
	exchangeToken *driven.OAuthToken
	exchangeErr   error
	exchangeCalls int
	lastVerifier  string

	refreshToken *driven.OAuthToken
	refreshErrs  []error // consumed per call; nil entry means success
	refreshCalls int

	user        *driven.ProviderUser
	userInfoErr error

	postResult *domain.PostResult
	postErr    error
	metrics    []*domain.PostMetrics
}

func (m *mockProviderClient) BuildAuthURL(clientID, redirectURI, state, codeChallenge string, scopes []string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", clientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	q.Set("code_challenge", codeChallenge)
	q.Set("code_challenge_method", "S256")
	q.Set("scope", strings.Join(scopes, " "))
	return "https://provider.example/authorize?" + q.Encode()
}

func (m *mockProviderClient) ExchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) (*driven.OAuthToken, error) {
	m.exchangeCalls++
	m.lastVerifier = codeVerifier
	if m.exchangeErr != nil {
		return nil, m.exchangeErr
	}
	return m.exchangeToken, nil
}

func (m *mockProviderClient) RefreshToken(ctx context.Context, refreshToken string) (*driven.OAuthToken, error) {
	call := m.refreshCalls
	m.refreshCalls++
	if call < len(m.refreshErrs) && m.refreshErrs[call] != nil {
		return nil, m.refreshErrs[call]
	}
	return m.refreshToken, nil
}

func (m *mockProviderClient) GetUserInfo(ctx context.Context, accessToken string) (*driven.ProviderUser, error) {
	if m.userInfoErr != nil {
		return nil, m.userInfoErr
	}
	return m.user, nil
}

func (m *mockProviderClient) CreatePost(ctx context.Context, accessToken, text string) (*domain.PostResult, error) {
	if m.postErr != nil {
		return nil, m.postErr
	}
	return m.postResult, nil
}

func (m *mockProviderClient) GetPostMetrics(ctx context.Context, accessToken string, ids []string) ([]*domain.PostMetrics, error) {
	return m.metrics, nil
}

// mockRegistry implements driven.ProviderRegistry for testing
type mockRegistry struct {
	clients map[domain.Platform]driven.ProviderClient
	configs map[domain.Platform]driven.ProviderConfig
}

func newMockRegistry(platform domain.Platform, client driven.ProviderClient) *mockRegistry {
	return &mockRegistry{
		clients: map[domain.Platform]driven.ProviderClient{platform: client},
		configs: map[domain.Platform]driven.ProviderConfig{platform: {
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			Scopes:       []string{"tweet.read", "tweet.write", "users.read", "offline.access"},
		}},
	}
}

func (m *mockRegistry) Client(platform domain.Platform) driven.ProviderClient {
	return m.clients[platform]
}

func (m *mockRegistry) Config(platform domain.Platform) *driven.ProviderConfig {
	cfg, ok := m.configs[platform]
	if !ok {
		return nil
	}
	return &cfg
}

// mockAccountStore implements driven.AccountStore for testing
type mockAccountStore struct {
	accounts    map[string]*domain.SocialAccount // userID:platform
	byID        map[string]*domain.SocialAccount
	nextID      int
	updateCalls []driven.TokenUpdate
	deactivated []string
	updateErr   error
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{
		accounts: make(map[string]*domain.SocialAccount),
		byID:     make(map[string]*domain.SocialAccount),
	}
}

func accountKey(userID string, platform domain.Platform) string {
	return userID + ":" + string(platform)
}

func (m *mockAccountStore) put(account *domain.SocialAccount) {
	m.accounts[accountKey(account.UserID, account.Platform)] = account
	m.byID[account.ID] = account
}

func (m *mockAccountStore) Get(ctx context.Context, userID string, platform domain.Platform) (*domain.SocialAccount, error) {
	account, ok := m.accounts[accountKey(userID, platform)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (m *mockAccountStore) Upsert(ctx context.Context, account *domain.SocialAccount) (*domain.SocialAccount, error) {
	if existing, ok := m.accounts[accountKey(account.UserID, account.Platform)]; ok {
		account.ID = existing.ID
		account.CreatedAt = existing.CreatedAt
	} else {
		m.nextID++
		account.ID = fmt.Sprintf("sa_%d", m.nextID)
		account.CreatedAt = time.Now()
	}
	account.UpdatedAt = time.Now()
	copied := *account
	m.put(&copied)
	return account, nil
}

func (m *mockAccountStore) UpdateTokens(ctx context.Context, id string, update driven.TokenUpdate) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	account, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.updateCalls = append(m.updateCalls, update)
	account.AccessToken = update.AccessToken
	account.RefreshToken = update.RefreshToken
	account.TokenExpiresAt = update.TokenExpiresAt
	account.Scope = update.Scope
	account.IsActive = true
	return nil
}

func (m *mockAccountStore) Deactivate(ctx context.Context, id string) error {
	account, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.deactivated = append(m.deactivated, id)
	account.IsActive = false
	return nil
}

func (m *mockAccountStore) ListByUser(ctx context.Context, userID string) ([]*domain.SocialAccount, error) {
	var out []*domain.SocialAccount
	for _, a := range m.accounts {
		if a.UserID == userID {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockAccountStore) ListRefreshable(ctx context.Context) ([]*domain.SocialAccount, error) {
	var out []*domain.SocialAccount
	for _, a := range m.accounts {
		if a.IsActive && a.RefreshToken != "" && a.TokenExpiresAt != nil {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

// Test fixtures

type oauthFixture struct {
	service  driving.OAuthService
	client   *mockProviderClient
	cookie   *mockStateChannel
	cache    *mockStateChannel
	store    *mockStateStore
	accounts *mockAccountStore
	carrier  *fakeCarrier
}

func newOAuthFixture() *oauthFixture {
	client := &mockProviderClient{
		exchangeToken: &driven.OAuthToken{
			AccessToken:  "AT1",
			RefreshToken: "RT1",
			TokenType:    "bearer",
			Scope:        "tweet.read tweet.write users.read offline.access",
			ExpiresIn:    7200,
		},
		user: &driven.ProviderUser{ID: "12345", Username: "someone", Name: "Some One"},
	}

	cookie := newMockStateChannel()
	cache := newMockStateChannel()
	store := newMockStateStore()
	accounts := newMockAccountStore()

	service := NewOAuthService(OAuthServiceConfig{
		Providers:    newMockRegistry(domain.PlatformX, client),
		Cookies:      &mockCookieChannels{channel: cookie},
		StateCache:   cache,
		StateStore:   store,
		AccountStore: accounts,
		BaseURL:      "http://localhost:8080",
	})

	return &oauthFixture{
		service:  service,
		client:   client,
		cookie:   cookie,
		cache:    cache,
		store:    store,
		accounts: accounts,
		carrier:  newFakeCarrier(),
	}
}

func (f *oauthFixture) authorize(t *testing.T) *driving.AuthorizeResponse {
	t.Helper()
	resp, err := f.service.Authorize(context.Background(), f.carrier, driving.AuthorizeRequest{
		UserID:   "user-1",
		Platform: domain.PlatformX,
	})
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	return resp
}

// Tests

func TestAuthorizeBuildsURLAndStoresState(t *testing.T) {
	f := newOAuthFixture()
	resp := f.authorize(t)

	u, err := url.Parse(resp.AuthorizationURL)
	if err != nil {
		t.Fatalf("invalid authorization URL: %v", err)
	}
	q := u.Query()

	if q.Get("response_type") != "code" {
		t.Errorf("response_type = %q, want code", q.Get("response_type"))
	}
	if q.Get("client_id") != "client-id" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("redirect_uri") != "http://localhost:8080/api/v1/connect/callback" {
		t.Errorf("redirect_uri = %q", q.Get("redirect_uri"))
	}
	if q.Get("state") != resp.State {
		t.Errorf("state param %q does not match response state %q", q.Get("state"), resp.State)
	}
	if q.Get("code_challenge_method") != "S256" {
		t.Errorf("code_challenge_method = %q, want S256", q.Get("code_challenge_method"))
	}

	// Every channel holds the same payload under the state key
	for name, ch := range map[string]*mockStateChannel{
		"cookie": f.cookie,
		"cache":  f.cache,
		"store":  &f.store.mockStateChannel,
	} {
		payload, ok := ch.states[resp.State]
		if !ok {
			t.Fatalf("%s channel missing state", name)
		}
		if payload.UserID != "user-1" || payload.CodeVerifier == "" {
			t.Errorf("%s channel payload incomplete: %+v", name, payload)
		}
		if CodeChallenge(payload.CodeVerifier) != q.Get("code_challenge") {
			t.Errorf("%s channel verifier does not match challenge in URL", name)
		}
	}
}

func TestAuthorizeUnsupportedPlatform(t *testing.T) {
	f := newOAuthFixture()

	_, err := f.service.Authorize(context.Background(), f.carrier, driving.AuthorizeRequest{
		UserID:   "user-1",
		Platform: domain.PlatformFacebook,
	})
	if !errors.Is(err, domain.ErrPlatformNotSupported) {
		t.Errorf("expected ErrPlatformNotSupported, got %v", err)
	}

	_, err = f.service.Authorize(context.Background(), f.carrier, driving.AuthorizeRequest{
		UserID:   "user-1",
		Platform: domain.Platform("myspace"),
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAuthorizePersistFailureAbandonsFlow(t *testing.T) {
	f := newOAuthFixture()
	f.store.saveErr = errors.New("connection refused")

	_, err := f.service.Authorize(context.Background(), f.carrier, driving.AuthorizeRequest{
		UserID:   "user-1",
		Platform: domain.PlatformX,
	})
	if err == nil {
		t.Fatal("expected error when persistent store save fails")
	}

	// Volatile channels were cleared so no half-written flow remains
	if len(f.cookie.states) != 0 || len(f.cache.states) != 0 {
		t.Error("volatile channels still hold state after abandoned flow")
	}
}

func TestAuthorizeVolatileChannelFailureIsTolerated(t *testing.T) {
	f := newOAuthFixture()
	f.cookie.saveErr = errors.New("cookie too large")
	f.cache.saveErr = errors.New("cache closed")

	resp := f.authorize(t)
	if _, ok := f.store.states[resp.State]; !ok {
		t.Error("persistent store missing state after volatile failures")
	}
}

func TestCallbackHappyPath(t *testing.T) {
	f := newOAuthFixture()
	resp := f.authorize(t)

	verifier := f.store.states[resp.State].CodeVerifier

	start := time.Now()
	result, err := f.service.Callback(context.Background(), f.carrier, driving.CallbackRequest{
		Code:  "auth-code",
		State: resp.State,
	})
	if err != nil {
		t.Fatalf("Callback failed: %v", err)
	}

	if f.client.exchangeCalls != 1 {
		t.Errorf("exchange called %d times, want 1", f.client.exchangeCalls)
	}
	if f.client.lastVerifier != verifier {
		t.Error("exchange did not receive the stored code verifier")
	}

	account, err := f.accounts.Get(context.Background(), "user-1", domain.PlatformX)
	if err != nil {
		t.Fatalf("account not stored: %v", err)
	}
	if account.AccessToken != "AT1" || account.RefreshToken != "RT1" {
		t.Errorf("stored tokens = (%q, %q), want (AT1, RT1)", account.AccessToken, account.RefreshToken)
	}
	if !account.IsActive {
		t.Error("new account must be active")
	}
	if account.ProviderAccountID != "12345" || account.ProviderUsername != "someone" {
		t.Errorf("provider identity = (%q, %q)", account.ProviderAccountID, account.ProviderUsername)
	}
	if account.TokenExpiresAt == nil {
		t.Fatal("expected token expiry")
	}
	wantExpiry := start.Add(7200 * time.Second)
	if account.TokenExpiresAt.Before(wantExpiry.Add(-5*time.Second)) ||
		account.TokenExpiresAt.After(wantExpiry.Add(5*time.Second)) {
		t.Errorf("expiry %v not near now+7200s", account.TokenExpiresAt)
	}

	if result.Account == nil || result.Account.ProviderUsername != "someone" {
		t.Errorf("unexpected summary: %+v", result.Account)
	}
	if !strings.Contains(result.Message, "@someone") {
		t.Errorf("message %q missing username", result.Message)
	}
}

func TestCallbackInvalidState(t *testing.T) {
	f := newOAuthFixture()

	_, err := f.service.Callback(context.Background(), f.carrier, driving.CallbackRequest{
		Code:  "auth-code",
		State: "never-issued",
	})

	var oauthErr *driving.OAuthError
	if !errors.As(err, &oauthErr) || oauthErr.Code != "invalid_state" {
		t.Errorf("expected invalid_state error, got %v", err)
	}
	if f.client.exchangeCalls != 0 {
		t.Error("exchange must not run without a valid state")
	}
}

func TestCallbackStateSingleUse(t *testing.T) {
	f := newOAuthFixture()
	resp := f.authorize(t)

	req := driving.CallbackRequest{Code: "auth-code", State: resp.State}
	if _, err := f.service.Callback(context.Background(), f.carrier, req); err != nil {
		t.Fatalf("first callback failed: %v", err)
	}

	_, err := f.service.Callback(context.Background(), f.carrier, req)
	var oauthErr *driving.OAuthError
	if !errors.As(err, &oauthErr) || oauthErr.Code != "invalid_state" {
		t.Errorf("replayed state must be rejected, got %v", err)
	}

	// All channels are empty: consumption clears everywhere
	if len(f.cookie.states)+len(f.cache.states)+len(f.store.states) != 0 {
		t.Error("state still present in a channel after consumption")
	}
}

func TestCallbackFallsBackToPersistentChannel(t *testing.T) {
	f := newOAuthFixture()
	resp := f.authorize(t)

	// Cookie lost (other browser), cache lost (process restart)
	f.cookie.states = map[string]*driven.OAuthState{}
	f.cache.states = map[string]*driven.OAuthState{}

	result, err := f.service.Callback(context.Background(), f.carrier, driving.CallbackRequest{
		Code:  "auth-code",
		State: resp.State,
	})
	if err != nil {
		t.Fatalf("Callback failed with only persistent channel: %v", err)
	}
	if result.Account == nil {
		t.Fatal("expected connected account")
	}
}

func TestCallbackBrokenChannelDoesNotMaskFallback(t *testing.T) {
	f := newOAuthFixture()
	resp := f.authorize(t)

	f.cookie.getErr = errors.New("signature parse failed")
	f.cache.getErr = errors.New("cache closed")

	if _, err := f.service.Callback(context.Background(), f.carrier, driving.CallbackRequest{
		Code:  "auth-code",
		State: resp.State,
	}); err != nil {
		t.Fatalf("Callback failed despite working persistent channel: %v", err)
	}
}

func TestCallbackExpiredState(t *testing.T) {
	f := newOAuthFixture()
	resp := f.authorize(t)

	for _, ch := range []*mockStateChannel{f.cookie, f.cache, &f.store.mockStateChannel} {
		if s, ok := ch.states[resp.State]; ok {
			s.ExpiresAt = time.Now().Add(-time.Minute)
		}
	}

	_, err := f.service.Callback(context.Background(), f.carrier, driving.CallbackRequest{
		Code:  "auth-code",
		State: resp.State,
	})
	var oauthErr *driving.OAuthError
	if !errors.As(err, &oauthErr) || oauthErr.Code != "invalid_state" {
		t.Errorf("expired state must be rejected, got %v", err)
	}
}

func TestCallbackStatePayloadMismatch(t *testing.T) {
	f := newOAuthFixture()
	resp := f.authorize(t)

	// A payload found under the right key whose embedded state differs
	// (cross-wired channel, tampered row) must be treated as not found.
	for _, ch := range []*mockStateChannel{f.cookie, f.cache, &f.store.mockStateChannel} {
		if s, ok := ch.states[resp.State]; ok {
			s.State = "different-state"
		}
	}

	_, err := f.service.Callback(context.Background(), f.carrier, driving.CallbackRequest{
		Code:  "auth-code",
		State: resp.State,
	})

	var oauthErr *driving.OAuthError
	if !errors.As(err, &oauthErr) || oauthErr.Code != "invalid_state" {
		t.Errorf("mismatched payload must be rejected, got %v", err)
	}
	if f.client.exchangeCalls != 0 {
		t.Error("exchange must not run on a mismatched payload")
	}
}

func TestCallbackProviderDenied(t *testing.T) {
	f := newOAuthFixture()

	_, err := f.service.Callback(context.Background(), f.carrier, driving.CallbackRequest{
		Error:            "access_denied",
		ErrorDescription: "The user denied the request",
	})

	var oauthErr *driving.OAuthError
	if !errors.As(err, &oauthErr) || oauthErr.Code != "access_denied" {
		t.Errorf("expected access_denied passthrough, got %v", err)
	}
}

func TestCallbackMissingParameters(t *testing.T) {
	f := newOAuthFixture()
	resp := f.authorize(t)

	for _, req := range []driving.CallbackRequest{
		{State: resp.State},
		{Code: "auth-code"},
	} {
		_, err := f.service.Callback(context.Background(), f.carrier, req)
		var oauthErr *driving.OAuthError
		if !errors.As(err, &oauthErr) || oauthErr.Code != "invalid_request" {
			t.Errorf("expected invalid_request for %+v, got %v", req, err)
		}
	}

	// The guard fires before state consumption, so the flow is still live
	if _, err := f.service.Callback(context.Background(), f.carrier, driving.CallbackRequest{
		Code:  "auth-code",
		State: resp.State,
	}); err != nil {
		t.Errorf("state must survive a malformed callback: %v", err)
	}
}

func TestCallbackExchangeFailureNotRetried(t *testing.T) {
	f := newOAuthFixture()
	resp := f.authorize(t)

	f.client.exchangeErr = &driven.TokenEndpointError{StatusCode: 400, Code: "invalid_grant"}

	_, err := f.service.Callback(context.Background(), f.carrier, driving.CallbackRequest{
		Code:  "auth-code",
		State: resp.State,
	})

	var oauthErr *driving.OAuthError
	if !errors.As(err, &oauthErr) || oauthErr.Code != "exchange_failed" {
		t.Errorf("expected exchange_failed, got %v", err)
	}
	if f.client.exchangeCalls != 1 {
		t.Errorf("exchange called %d times; codes are single-use and must not be retried", f.client.exchangeCalls)
	}
}

func TestCallbackUserInfoFailure(t *testing.T) {
	f := newOAuthFixture()
	resp := f.authorize(t)

	f.client.userInfoErr = errors.New("503 service unavailable")

	_, err := f.service.Callback(context.Background(), f.carrier, driving.CallbackRequest{
		Code:  "auth-code",
		State: resp.State,
	})

	var oauthErr *driving.OAuthError
	if !errors.As(err, &oauthErr) || oauthErr.Code != "user_info_failed" {
		t.Errorf("expected user_info_failed, got %v", err)
	}

	// No account may be stored without a resolved identity
	if _, err := f.accounts.Get(context.Background(), "user-1", domain.PlatformX); !errors.Is(err, domain.ErrNotFound) {
		t.Error("account stored despite user info failure")
	}
}

func TestCallbackReconnectReplacesAccount(t *testing.T) {
	f := newOAuthFixture()

	// Existing, deactivated connection for the same platform
	old := &domain.SocialAccount{
		ID:       "sa_old",
		UserID:   "user-1",
		Platform: domain.PlatformX,
		IsActive: false,
	}
	f.accounts.put(old)

	resp := f.authorize(t)
	if _, err := f.service.Callback(context.Background(), f.carrier, driving.CallbackRequest{
		Code:  "auth-code",
		State: resp.State,
	}); err != nil {
		t.Fatalf("Callback failed: %v", err)
	}

	account, err := f.accounts.Get(context.Background(), "user-1", domain.PlatformX)
	if err != nil {
		t.Fatalf("account missing after reconnect: %v", err)
	}
	if account.ID != "sa_old" {
		t.Errorf("reconnect created new row %q instead of replacing sa_old", account.ID)
	}
	if !account.IsActive {
		t.Error("reconnected account must be active again")
	}
	if account.AccessToken != "AT1" {
		t.Error("reconnected account missing fresh tokens")
	}
}
