package http

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/sociallink-core/internal/core/domain"
	"github.com/custodia-labs/sociallink-core/internal/core/ports/driving"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// CallbackDebug carries diagnostic context for a rejected callback.
// @Description Diagnostic context for a rejected OAuth callback
type CallbackDebug struct {
	ReceivedState string `json:"received_state"`
	Timestamp     string `json:"timestamp"`
	Message       string `json:"message"`
}

// CallbackErrorResponse is the body returned for a failed OAuth callback.
// @Description Failed OAuth callback
type CallbackErrorResponse struct {
	Error            string         `json:"error"`
	ErrorDescription string         `json:"error_description,omitempty"`
	Debug            *CallbackDebug `json:"debug,omitempty"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Returns the readiness status of the API (checks database and cache connections)
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse  "A backend is unreachable"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "redis unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Auth endpoints

// handleLogin godoc
// @Summary      User login
// @Description  Authenticate with email and password to receive a JWT token
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      domain.LoginRequest  true  "Login credentials"
// @Success      200      {object}  domain.LoginResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Invalid credentials or account disabled"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Router       /auth/login [post]
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.authService.Authenticate(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, domain.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, "account disabled")
		default:
			writeError(w, http.StatusInternalServerError, "authentication failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Connection flow endpoints

// handleConnectStart godoc
// @Summary      Start a platform connection
// @Description  Begins the OAuth flow for a platform and redirects the browser to the provider's consent page
// @Tags         Connections
// @Param        platform  path  string  true  "Platform (x)"
// @Success      302  "Redirect to the provider authorization URL"
// @Failure      400  {object}  ErrorResponse  "Unsupported platform"
// @Failure      500  {object}  ErrorResponse  "Platform credentials not configured"
// @Security     BearerAuth
// @Router       /connect/{platform}/start [get]
func (s *Server) handleConnectStart(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	platform := domain.Platform(r.PathValue("platform"))
	carrier := newCookieCarrier(w, r, s.secureCookies)

	resp, err := s.oauthService.Authorize(r.Context(), carrier, driving.AuthorizeRequest{
		UserID:   authCtx.UserID,
		Platform: platform,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPlatformNotSupported):
			writeError(w, http.StatusBadRequest, "unsupported platform")
		case errors.Is(err, domain.ErrProviderNotConfigured):
			writeError(w, http.StatusInternalServerError, "platform credentials not configured")
		default:
			writeError(w, http.StatusInternalServerError, "failed to start connection")
		}
		return
	}

	http.Redirect(w, r, resp.AuthorizationURL, http.StatusFound)
}

// handleConnectCallback godoc
// @Summary      OAuth callback
// @Description  Receives the provider redirect, validates the pending state, exchanges the code, and stores the connected account
// @Tags         Connections
// @Produce      html
// @Param        code   query  string  false  "Authorization code"
// @Param        state  query  string  false  "CSRF state token"
// @Param        error  query  string  false  "Provider error code"
// @Success      200  "HTML success page"
// @Failure      400  {object}  CallbackErrorResponse  "Invalid state or provider error"
// @Failure      500  {object}  CallbackErrorResponse  "Token exchange or profile fetch failed"
// @Router       /connect/callback [get]
func (s *Server) handleConnectCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := driving.CallbackRequest{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}

	carrier := newCookieCarrier(w, r, s.secureCookies)
	resp, err := s.oauthService.Callback(r.Context(), carrier, req)
	if err != nil {
		s.writeCallbackError(w, req.State, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = callbackSuccessTemplate.Execute(w, map[string]string{"Message": resp.Message})
}

// writeCallbackError maps an OAuth flow error to a JSON response. The
// debug block helps operators correlate rejected callbacks with logs
// without exposing any stored state.
func (s *Server) writeCallbackError(w http.ResponseWriter, receivedState string, err error) {
	var oauthErr *driving.OAuthError
	if !errors.As(err, &oauthErr) {
		writeError(w, http.StatusInternalServerError, "callback failed")
		return
	}

	status := http.StatusBadRequest
	switch oauthErr.Code {
	case driving.ErrOAuthExchangeFailed.Code, driving.ErrOAuthUserInfoFailed.Code:
		status = http.StatusInternalServerError
	}

	body := CallbackErrorResponse{
		Error:            oauthErr.Code,
		ErrorDescription: oauthErr.Description,
	}
	if oauthErr.Code == driving.ErrOAuthInvalidState.Code {
		body.Debug = &CallbackDebug{
			ReceivedState: receivedState,
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
			Message:       "state not found in any channel, already used, or expired",
		}
	}

	writeJSON(w, status, body)
}

var callbackSuccessTemplate = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head><title>Account connected</title></head>
<body>
<h1>{{.Message}}</h1>
<p>You can close this window.</p>
</body>
</html>
`))

// Account endpoints

// handleListAccounts godoc
// @Summary      List connected accounts
// @Description  Returns credential-free summaries of the caller's connected accounts
// @Tags         Accounts
// @Produce      json
// @Success      200  {array}   domain.AccountSummary
// @Failure      500  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /accounts [get]
func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	accounts, err := s.accountService.ListAccounts(r.Context(), authCtx.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}

	writeJSON(w, http.StatusOK, accounts)
}

// handleGetAccount godoc
// @Summary      Get a connected account
// @Description  Returns the summary for one platform connection
// @Tags         Accounts
// @Produce      json
// @Param        platform  path  string  true  "Platform (x)"
// @Success      200  {object}  domain.AccountSummary
// @Failure      400  {object}  ErrorResponse  "Unsupported platform"
// @Failure      404  {object}  ErrorResponse  "Platform not connected"
// @Security     BearerAuth
// @Router       /accounts/{platform} [get]
func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	platform := domain.Platform(r.PathValue("platform"))
	account, err := s.accountService.GetAccount(r.Context(), authCtx.UserID, platform)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPlatformNotSupported):
			writeError(w, http.StatusBadRequest, "unsupported platform")
		case errors.Is(err, domain.ErrAccountNotConnected):
			writeError(w, http.StatusNotFound, "platform not connected")
		default:
			writeError(w, http.StatusInternalServerError, "failed to get account")
		}
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// handleDisconnectAccount godoc
// @Summary      Disconnect a platform
// @Description  Deactivates the caller's connection to a platform
// @Tags         Accounts
// @Produce      json
// @Param        platform  path  string  true  "Platform (x)"
// @Success      200  {object}  StatusResponse
// @Failure      400  {object}  ErrorResponse  "Unsupported platform"
// @Failure      404  {object}  ErrorResponse  "Platform not connected"
// @Security     BearerAuth
// @Router       /accounts/{platform} [delete]
func (s *Server) handleDisconnectAccount(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	platform := domain.Platform(r.PathValue("platform"))
	err := s.accountService.Disconnect(r.Context(), authCtx.UserID, platform)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPlatformNotSupported):
			writeError(w, http.StatusBadRequest, "unsupported platform")
		case errors.Is(err, domain.ErrAccountNotConnected):
			writeError(w, http.StatusNotFound, "platform not connected")
		default:
			writeError(w, http.StatusInternalServerError, "failed to disconnect account")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

// Publishing endpoints

// handleCreatePost godoc
// @Summary      Create a post
// @Description  Publishes a post through the caller's connected account
// @Tags         Posts
// @Accept       json
// @Produce      json
// @Param        request  body      domain.PostRequest  true  "Post content"
// @Success      201      {object}  domain.PostResult
// @Failure      400      {object}  ErrorResponse  "Invalid input"
// @Failure      404      {object}  ErrorResponse  "Platform not connected"
// @Failure      409      {object}  ErrorResponse  "Account must be reconnected"
// @Security     BearerAuth
// @Router       /posts [post]
func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req domain.PostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.publishService.CreatePost(r.Context(), authCtx.UserID, req)
	if err != nil {
		s.writePublishError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// handleGetPostMetrics godoc
// @Summary      Get post metrics
// @Description  Fetches public engagement metrics for posts by ID
// @Tags         Posts
// @Produce      json
// @Param        platform  query  string  true  "Platform (x)"
// @Param        ids       query  string  true  "Comma-separated post IDs"
// @Success      200  {array}   domain.PostMetrics
// @Failure      400  {object}  ErrorResponse  "Invalid input"
// @Failure      404  {object}  ErrorResponse  "Platform not connected"
// @Failure      409  {object}  ErrorResponse  "Account must be reconnected"
// @Security     BearerAuth
// @Router       /posts/metrics [get]
func (s *Server) handleGetPostMetrics(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	platform := domain.Platform(r.URL.Query().Get("platform"))
	var ids []string
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	metrics, err := s.publishService.GetPostMetrics(r.Context(), authCtx.UserID, platform, ids)
	if err != nil {
		s.writePublishError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) writePublishError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrPlatformNotSupported):
		writeError(w, http.StatusBadRequest, "invalid input")
	case errors.Is(err, domain.ErrAccountNotConnected):
		writeError(w, http.StatusNotFound, "platform not connected")
	case errors.Is(err, domain.ErrReauthRequired), errors.Is(err, domain.ErrAccountInactive):
		writeError(w, http.StatusConflict, "account must be reconnected")
	default:
		writeError(w, http.StatusInternalServerError, "request failed")
	}
}

// Admin endpoints

// handleRefreshSweep godoc
// @Summary      Refresh expiring tokens
// @Description  Runs one pass over all active accounts and refreshes tokens near expiry
// @Tags         Admin
// @Produce      json
// @Success      200  {object}  driving.SweepReport
// @Failure      500  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /admin/tokens/refresh [post]
func (s *Server) handleRefreshSweep(w http.ResponseWriter, r *http.Request) {
	report, err := s.tokenService.RefreshAllExpiringTokens(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "refresh sweep failed")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
