package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"net/url"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/gate"
	"github.com/MrEthical07/goSession/session"
	"github.com/go-chi/chi/v5"
)

// Error codes shown on the sign-in page.
const (
	errCredentialsSignin = "CredentialsSignin"
	errOAuthSignin       = "OAuthSignin"
	errOAuthCallback     = "OAuthCallback"
)

const credentialsAction = "/api/auth/callback/credentials"

// maxBodyBytes caps sign-in request bodies.
const maxBodyBytes = 1 << 16

type handlers struct {
	engine *goSession.Engine
	logger *slog.Logger
	ready  func(ctx context.Context) error
}

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	CallbackURL string `json:"callbackUrl"`
}

type urlResponse struct {
	URL string `json:"url"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ok": false})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GET /login
func (h *handlers) loginPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	callback := q.Get("callbackUrl")

	data := gate.LoginFormData{
		Action:      credentialsAction,
		CallbackURL: callback,
		Error:       q.Get("error"),
	}
	for _, name := range h.engine.Providers() {
		link := "/api/auth/signin/" + url.PathEscape(name)
		if callback != "" {
			link += "?callbackUrl=" + url.QueryEscape(callback)
		}
		data.Providers = append(data.Providers, gate.ProviderLink{Name: name, URL: link})
	}

	w.Header().Set("Cache-Control", "no-store")
	gate.Page(gate.LoginForm(data)).ServeHTTP(w, r)
}

func (h *handlers) protectedPage() http.Handler {
	return gate.Handler(func(r *http.Request) string {
		return h.engine.SignInURL(r.URL.RequestURI(), "")
	})
}

// POST /api/auth/callback/credentials
func (h *handlers) credentials(w http.ResponseWriter, r *http.Request) {
	asJSON := isJSON(r)
	req, err := decodeCredentials(w, r, asJSON)
	if err != nil {
		if asJSON {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
			return
		}
		http.Redirect(w, r, h.engine.SignInURL("", errCredentialsSignin), http.StatusSeeOther)
		return
	}

	result, err := h.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logFailure(r.Context(), "credentials sign-in rejected", err)
		if asJSON {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": errCredentialsSignin})
			return
		}
		http.Redirect(w, r, h.engine.SignInURL(req.CallbackURL, errCredentialsSignin), http.StatusSeeOther)
		return
	}

	http.SetCookie(w, h.engine.SessionCookie(result))
	target := h.engine.ResolveRedirect(r.Context(), req.CallbackURL)
	if asJSON {
		writeJSON(w, http.StatusOK, urlResponse{URL: target})
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// GET /api/auth/signin/{provider}
func (h *handlers) oauthSignIn(w http.ResponseWriter, r *http.Request) {
	callback := r.URL.Query().Get("callbackUrl")
	start, err := h.engine.BeginOAuth(r.Context(), chi.URLParam(r, "provider"), callback)
	if err != nil {
		h.logFailure(r.Context(), "oauth sign-in not started", err)
		http.Redirect(w, r, h.engine.SignInURL(callback, errOAuthSignin), http.StatusFound)
		return
	}
	http.Redirect(w, r, start.URL, http.StatusFound)
}

// GET /api/auth/callback/{provider}?code=&state=
func (h *handlers) oauthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if providerErr := q.Get("error"); providerErr != "" {
		h.logger.InfoContext(r.Context(), "oauth provider returned an error", "error", providerErr)
		http.Redirect(w, r, h.engine.SignInURL("", errOAuthCallback), http.StatusFound)
		return
	}

	result, err := h.engine.CompleteOAuth(r.Context(), chi.URLParam(r, "provider"), q.Get("state"), q.Get("code"))
	if err != nil {
		h.logFailure(r.Context(), "oauth callback rejected", err)
		http.Redirect(w, r, h.engine.SignInURL("", errOAuthCallback), http.StatusFound)
		return
	}

	http.SetCookie(w, h.engine.SessionCookie(&result.LoginResult))
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

// GET /api/auth/session
func (h *handlers) session(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	s, ok := session.FromContext(r.Context())
	if !ok || !s.Authenticated() {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// GET /api/auth/providers
func (h *handlers) providers(w http.ResponseWriter, _ *http.Request) {
	type provider struct {
		ID        string `json:"id"`
		SignInURL string `json:"signinUrl"`
	}
	out := map[string]provider{}
	for _, name := range h.engine.Providers() {
		out[name] = provider{ID: name, SignInURL: "/api/auth/signin/" + url.PathEscape(name)}
	}
	writeJSON(w, http.StatusOK, out)
}

// POST /api/auth/signout
func (h *handlers) signOut(w http.ResponseWriter, r *http.Request) {
	asJSON := isJSON(r)
	var callback string
	if asJSON {
		var body struct {
			CallbackURL string `json:"callbackUrl"`
		}
		_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body)
		callback = body.CallbackURL
	} else if err := r.ParseForm(); err == nil {
		callback = r.PostForm.Get("callbackUrl")
	}

	if token, ok := h.engine.SessionToken(r); ok {
		h.engine.SignOut(r.Context(), token)
	}
	http.SetCookie(w, h.engine.ClearSessionCookie())

	if callback == "" {
		callback = h.engine.SignInURL("", "")
	}
	target := h.engine.ResolveRedirect(r.Context(), callback)
	if asJSON {
		writeJSON(w, http.StatusOK, urlResponse{URL: target})
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func decodeCredentials(w http.ResponseWriter, r *http.Request, asJSON bool) (credentialsRequest, error) {
	var req credentialsRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if asJSON {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, err
		}
		return req, nil
	}
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Email = r.PostForm.Get("email")
	req.Password = r.PostForm.Get("password")
	req.CallbackURL = r.PostForm.Get("callbackUrl")
	return req, nil
}

// logFailure keeps backend trouble at warn level; plain rejections are info.
func (h *handlers) logFailure(ctx context.Context, msg string, err error) {
	if errors.Is(err, goSession.ErrUserStoreUnavailable) ||
		errors.Is(err, goSession.ErrSessionIssueFailed) ||
		errors.Is(err, goSession.ErrEngineNotReady) {
		h.logger.WarnContext(ctx, msg, "error", err)
		return
	}
	h.logger.InfoContext(ctx, msg, "error", err)
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
