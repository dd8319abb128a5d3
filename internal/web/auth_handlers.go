package web

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/hpungsan/readlater/internal/auth"
	"github.com/hpungsan/readlater/internal/errors"
)

type credentialsRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Next     string `json:"next"`
}

func (h *Handlers) readCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, error) {
	var req credentialsRequest
	if isJSONBody(r) {
		err := decodeJSON(w, r, &req)
		return req, err
	}
	if err := parseForm(w, r); err != nil {
		return req, err
	}
	req.Name = r.FormValue("name")
	req.Email = r.FormValue("email")
	req.Password = r.FormValue("password")
	req.Next = r.FormValue("next")
	return req, nil
}

// HandleLoginPage handles GET /login.
func (h *Handlers) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := identityFrom(r.Context()); ok {
		http.Redirect(w, r, "/items", http.StatusFound)
		return
	}
	h.renderer.renderPage(w, r, "login", AuthPageData{
		PageData: h.page(r, "Sign in", ""),
		Next:     safeNext(r.URL.Query().Get("next")),
	})
}

// HandleLogin handles POST /login.
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	req, err := h.readCredentials(w, r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	session, err := auth.Login(r.Context(), h.env.DB, h.cfg.SessionTTL(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.authFailed(w, r, "login", req, err)
		return
	}
	h.signedIn(w, r, session, req.Next, http.StatusOK)
}

// HandleRegisterPage handles GET /register.
func (h *Handlers) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := identityFrom(r.Context()); ok {
		http.Redirect(w, r, "/items", http.StatusFound)
		return
	}
	h.renderer.renderPage(w, r, "register", AuthPageData{
		PageData: h.page(r, "Create account", ""),
	})
}

// HandleRegister handles POST /register. A new account is signed in
// immediately.
func (h *Handlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	req, err := h.readCredentials(w, r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	session, err := auth.Register(r.Context(), h.env.DB, h.cfg.SessionTTL(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.authFailed(w, r, "register", req, err)
		return
	}
	h.logger.Info("user registered", "user_id", session.Identity.UserID)
	h.signedIn(w, r, session, req.Next, http.StatusCreated)
}

// HandleLogout handles POST /logout.
func (h *Handlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if err := auth.Logout(r.Context(), h.env.DB, cookie.Value); err != nil {
			h.logger.Error("logout failed", "error", err)
		}
	}
	h.clearSessionCookie(w)

	switch {
	case wantsJSON(r):
		w.WriteHeader(http.StatusNoContent)
	case isHTMX(r):
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusOK)
	default:
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}

func (h *Handlers) signedIn(w http.ResponseWriter, r *http.Request, session *auth.Session, next string, jsonStatus int) {
	h.setSessionCookie(w, session.Token, session.ExpiresAt)

	if wantsJSON(r) {
		renderJSON(w, jsonStatus, map[string]any{
			"user":       session.Identity,
			"expires_at": session.ExpiresAt,
		})
		return
	}

	target := safeNext(next)
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// authFailed re-renders the form with the error for page requests.
func (h *Handlers) authFailed(w http.ResponseWriter, r *http.Request, page string, req credentialsRequest, err error) {
	var appErr *errors.AppError
	if wantsJSON(r) || isHTMX(r) || !stderrors.As(err, &appErr) || appErr.Code == errors.ErrInternal {
		h.renderer.renderError(w, r, err)
		return
	}

	title := "Sign in"
	if page == "register" {
		title = "Create account"
	}
	h.renderer.renderPageStatus(w, r, appErr.Status, page, AuthPageData{
		PageData: h.page(r, title, ""),
		Name:     req.Name,
		Email:    req.Email,
		Next:     safeNext(req.Next),
		Error:    appErr.Message,
	})
}

// safeNext limits post-login redirects to local paths.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/items"
	}
	return next
}
