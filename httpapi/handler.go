package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/passkeyrp/webauthn-rp/internal/token"
	"github.com/passkeyrp/webauthn-rp/webauthn"
)

// sessionCookie is the name of the cookie carrying the opaque session key a
// pending ceremony's options are stored under, per the collaborator's
// session-bound options repository pattern.
const sessionCookie = "webauthn_session"

// Handler implements the four ceremony endpoints of §6 plus the operational
// GET /healthz endpoint. It holds no ceremony state itself: everything mutable
// lives behind the injected stores.
type Handler struct {
	RP      *webauthn.RelyingParty
	Options *webauthn.OptionsGenerator

	Challenges  webauthn.ChallengeStore
	Credentials webauthn.CredentialStore
	Users       webauthn.UserStore

	// Tokens issues the principal token returned by FinishLogin. If nil,
	// no principal token is issued.
	Tokens *token.Issuer

	Logger *slog.Logger

	// LoginRedirectURL and LoginErrorURL are returned by /login/webauthn on
	// success/failure respectively.
	LoginRedirectURL string
	LoginErrorURL    string

	// SessionTTL bounds how long a pending ceremony's cookie is valid. Zero
	// means five minutes.
	SessionTTL time.Duration
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger().Error("httpapi: encoding response failed", "err", err)
	}
}

// writeError renders a generic failure body. Per §7's propagation policy it
// never echoes the verification Kind to the client; the kind is only
// logged, with the operation, error and request path. The credential ID
// and the session key are not logged.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := http.StatusBadRequest
	kind, ok := webauthn.KindOf(err)
	if ok {
		status = kind.HTTPStatus()
	}
	h.logger().Warn("httpapi: request failed", "op", op, "kind", string(kind), "err", err, "path", r.URL.Path)
	h.writeJSON(w, status, errorResponse{Error: "request could not be completed"})
}

func (h *Handler) newSessionKey() string {
	return uuid.NewString()
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, r *http.Request, key string) {
	ttl := h.SessionTTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    key,
		Path:     "/",
		Secure:   r.TLS != nil,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(ttl),
	})
}

func (h *Handler) sessionKey(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// BeginRegistration handles POST /webauthn/register/options.
func (h *Handler) BeginRegistration(w http.ResponseWriter, r *http.Request) {
	const op = "BeginRegistration"
	ctx := r.Context()

	var req registerOptionsRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, r, op, err)
			return
		}
	}

	user, existing, err := h.resolveOrCreateUser(ctx, req.Username)
	if err != nil {
		h.writeError(w, r, op, err)
		return
	}

	options, err := h.Options.NewCreationOptions(ctx, user, existing, nil)
	if err != nil {
		h.writeError(w, r, op, err)
		return
	}

	key := h.newSessionKey()
	if err := h.Challenges.SaveCreationOptions(ctx, key, options); err != nil {
		h.writeError(w, r, op, err)
		return
	}
	h.setSessionCookie(w, r, key)
	h.writeJSON(w, http.StatusOK, creationOptionsToJSON(options))
}

func (h *Handler) resolveOrCreateUser(ctx context.Context, username string) (webauthn.UserEntity, []*webauthn.CredentialRecord, error) {
	if username == "" {
		// Anonymous registration start: a fresh user handle whose base64url
		// form serves as name and display name; FinishRegistration saves the
		// user under that name.
		id, err := newUserHandle()
		if err != nil {
			return webauthn.UserEntity{}, nil, err
		}
		return webauthn.UserEntity{ID: id, Name: id.String(), DisplayName: id.String()}, nil, nil
	}

	record, found, err := h.Users.FindByUsername(ctx, username)
	if err != nil {
		return webauthn.UserEntity{}, nil, err
	}
	if !found {
		id, err := newUserHandle()
		if err != nil {
			return webauthn.UserEntity{}, nil, err
		}
		return webauthn.UserEntity{ID: id, Name: username, DisplayName: username}, nil, nil
	}

	existing, err := h.Credentials.FindByUser(ctx, record.UserID)
	if err != nil {
		return webauthn.UserEntity{}, nil, err
	}
	return webauthn.UserEntity{ID: record.UserID, Name: record.Username, DisplayName: record.DisplayName}, existing, nil
}

// FinishRegistration handles POST /webauthn/register.
func (h *Handler) FinishRegistration(w http.ResponseWriter, r *http.Request) {
	const op = "FinishRegistration"
	ctx := r.Context()

	key, ok := h.sessionKey(r)
	if !ok {
		h.writeError(w, r, op, webauthn.ErrSessionExpired)
		return
	}
	options, found, err := h.Challenges.LoadAndConsumeCreationOptions(ctx, key)
	if err != nil {
		h.writeError(w, r, op, err)
		return
	}
	if !found {
		h.writeError(w, r, op, webauthn.ErrSessionExpired)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, op, err)
		return
	}
	resp, err := req.PublicKey.Credential.toDomain()
	if err != nil {
		h.writeError(w, r, op, err)
		return
	}

	credentialExists := func(id webauthn.Bytes) (bool, error) {
		_, found, err := h.Credentials.FindByID(ctx, id)
		return found, err
	}

	record, err := h.RP.VerifyRegistration(options, resp, credentialExists)
	if err != nil {
		h.writeJSON(w, http.StatusOK, registerResponse{Verified: false})
		h.logger().Warn("registration verification failed", "op", op, "err", err)
		return
	}
	record.Label = req.PublicKey.Label

	if err := h.Users.Save(ctx, &webauthn.UserRecord{
		UserID:      options.User.ID,
		Username:    options.User.Name,
		DisplayName: options.User.DisplayName,
		Created:     record.Created,
	}); err != nil {
		h.writeError(w, r, op, err)
		return
	}
	if err := h.Credentials.Save(ctx, record); err != nil {
		h.writeError(w, r, op, err)
		return
	}

	h.writeJSON(w, http.StatusOK, registerResponse{Verified: true})
}

// BeginAuthentication handles POST /webauthn/authenticate/options.
func (h *Handler) BeginAuthentication(w http.ResponseWriter, r *http.Request) {
	const op = "BeginAuthentication"
	ctx := r.Context()

	var req struct {
		Username string `json:"username,omitempty"`
	}
	if r.ContentLength != 0 {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	var allow []*webauthn.CredentialRecord
	if req.Username != "" {
		user, found, err := h.Users.FindByUsername(ctx, req.Username)
		if err != nil {
			h.writeError(w, r, op, err)
			return
		}
		if found {
			allow, err = h.Credentials.FindByUser(ctx, user.UserID)
			if err != nil {
				h.writeError(w, r, op, err)
				return
			}
		}
	}

	options, err := h.Options.NewRequestOptions(ctx, allow)
	if err != nil {
		h.writeError(w, r, op, err)
		return
	}

	key := h.newSessionKey()
	if err := h.Challenges.SaveRequestOptions(ctx, key, options); err != nil {
		h.writeError(w, r, op, err)
		return
	}
	h.setSessionCookie(w, r, key)
	h.writeJSON(w, http.StatusOK, requestOptionsToJSON(options))
}

// FinishLogin handles POST /login/webauthn.
func (h *Handler) FinishLogin(w http.ResponseWriter, r *http.Request) {
	const op = "FinishLogin"
	ctx := r.Context()

	key, ok := h.sessionKey(r)
	if !ok {
		h.writeJSON(w, http.StatusOK, loginResponse{ErrorURL: h.LoginErrorURL})
		return
	}
	options, found, err := h.Challenges.LoadAndConsumeRequestOptions(ctx, key)
	if err != nil || !found {
		h.writeJSON(w, http.StatusOK, loginResponse{ErrorURL: h.LoginErrorURL})
		return
	}

	var req assertionResponseJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusOK, loginResponse{ErrorURL: h.LoginErrorURL})
		return
	}
	resp, err := req.toDomain()
	if err != nil {
		h.writeJSON(w, http.StatusOK, loginResponse{ErrorURL: h.LoginErrorURL})
		return
	}

	lookup := func(id webauthn.Bytes) (*webauthn.CredentialRecord, bool, error) {
		return h.Credentials.FindByID(ctx, id)
	}

	principal, record, err := h.RP.VerifyAuthentication(options, resp, lookup)
	if err != nil {
		h.logger().Warn("authentication verification failed", "op", op, "err", err)
		h.writeJSON(w, http.StatusOK, loginResponse{ErrorURL: h.LoginErrorURL})
		return
	}

	if err := h.Credentials.Save(ctx, record); err != nil {
		h.writeError(w, r, op, err)
		return
	}

	if h.Tokens != nil {
		if tok, err := h.Tokens.Generate(principal); err == nil {
			http.SetCookie(w, &http.Cookie{
				Name:     "principal_token",
				Value:    tok,
				Path:     "/",
				Secure:   r.TLS != nil,
				HttpOnly: true,
				SameSite: http.SameSiteStrictMode,
				Expires:  time.Now().Add(24 * time.Hour),
			})
		} else {
			h.logger().Error("issuing principal token failed", "err", err)
		}
	}

	h.writeJSON(w, http.StatusOK, loginResponse{Authenticated: true, RedirectURL: h.LoginRedirectURL})
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func newUserHandle() (webauthn.Bytes, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	return webauthn.Bytes(id[:]), nil
}
