package http

import (
	"errors"
	"net/http"

	"budget/internal/auth"
	applog "budget/internal/log"
)

type authForm struct {
	Username string
	Token    string
	Invalid  bool
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.resolveSession(r); ok {
		SeeOther(s.url("/")).Write(w)
		return
	}
	s.render(w, r, http.StatusOK, "login.html", page{Title: "Log ind", Data: authForm{}})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	username := sanitizeInput(r.PostForm.Get("username"))
	token, user, err := s.auth.Login(r.Context(), username, r.PostForm.Get("password"))
	if err != nil {
		status := http.StatusUnauthorized
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			status = http.StatusInternalServerError
			s.logAuthError(r, applog.OpLogin, err)
		}
		s.render(w, r, status, "login.html", page{Title: "Log ind", Error: authMessage(err), Data: authForm{Username: username}})
		return
	}

	applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).InfoContext(r.Context(), "User logged in",
		applog.FieldUserID, user.ID)
	NewResponse().
		Cookie(s.newSessionCookie(token, s.auth.SessionTTL())).
		Cookie(s.expiredCookie(demoLevelCookie)).
		Redirect(s.url("/")).
		Write(w)
}

func (s *Server) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.resolveSession(r); ok {
		SeeOther(s.url("/")).Write(w)
		return
	}
	s.render(w, r, http.StatusOK, "register.html", page{Title: "Opret konto", Data: authForm{}})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	username := sanitizeInput(r.PostForm.Get("username"))
	token, user, err := s.auth.Register(r.Context(), username,
		r.PostForm.Get("password"), r.PostForm.Get("password_confirm"))
	if err != nil {
		status := http.StatusBadRequest
		if !isAuthValidation(err) {
			status = http.StatusInternalServerError
			s.logAuthError(r, applog.OpRegister, err)
		}
		s.render(w, r, status, "register.html", page{Title: "Opret konto", Error: authMessage(err), Data: authForm{Username: username}})
		return
	}

	applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).InfoContext(r.Context(), "User registered",
		applog.FieldUserID, user.ID)
	NewResponse().
		Cookie(s.newSessionCookie(token, s.auth.SessionTTL())).
		Cookie(s.expiredCookie(demoLevelCookie)).
		Redirect(s.url("/")).
		Write(w)
}

func isAuthValidation(err error) bool {
	return errors.Is(err, auth.ErrUsernameTooShort) ||
		errors.Is(err, auth.ErrPasswordTooShort) ||
		errors.Is(err, auth.ErrPasswordMismatch) ||
		errors.Is(err, auth.ErrUsernameTaken)
}

// handleDemo starts a read-only demo session on the simple data set.
func (s *Server) handleDemo(w http.ResponseWriter, r *http.Request) {
	NewResponse().
		Cookie(s.newSessionCookie(auth.DemoToken, s.cfg.DemoSessionTTL)).
		Cookie(s.newDemoLevelCookie(demoSimple)).
		Redirect(s.url("/")).
		Write(w)
}

// handleDemoToggle switches a demo session between the simple and advanced
// data sets.
func (s *Server) handleDemoToggle(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value != auth.DemoToken {
		SeeOther(s.url("/login")).Write(w)
		return
	}
	level := demoAdvanced
	if demoLevel(r) == demoAdvanced {
		level = demoSimple
	}
	NewResponse().
		Cookie(s.newDemoLevelCookie(level)).
		Redirect(safeNext(r.URL.Query().Get("next"), s.cfg.BasePath, s.url("/"))).
		Write(w)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if err := s.auth.Logout(r.Context(), c.Value); err != nil {
			s.logAuthError(r, "logout", err)
		}
	}
	NewResponse().
		Cookie(s.expiredCookie(sessionCookie)).
		Cookie(s.expiredCookie(demoLevelCookie)).
		Redirect(s.url("/login")).
		Write(w)
}

func (s *Server) handleForgotForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "forgot_password.html", page{Title: "Glemt adgangskode"})
}

// handleForgot answers the same way whether or not the address is known.
func (s *Server) handleForgot(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	if _, err := s.auth.RequestPasswordReset(r.Context(), r.PostForm.Get("email")); err != nil {
		s.logAuthError(r, applog.OpReset, err)
	}
	s.render(w, r, http.StatusOK, "forgot_password.html", page{
		Title:   "Glemt adgangskode",
		Message: "Hvis e-mailen er registreret, er der sendt et link til at nulstille adgangskoden.",
	})
}

func (s *Server) handleResetForm(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if _, err := s.auth.CheckResetToken(r.Context(), token); err != nil {
		if !errors.Is(err, auth.ErrInvalidResetToken) {
			s.logAuthError(r, applog.OpReset, err)
		}
		s.render(w, r, http.StatusBadRequest, "reset_password.html", page{
			Title: "Nulstil adgangskode",
			Error: authMessage(auth.ErrInvalidResetToken),
			Data:  authForm{Invalid: true},
		})
		return
	}
	s.render(w, r, http.StatusOK, "reset_password.html", page{Title: "Nulstil adgangskode", Data: authForm{Token: token}})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	token := r.PathValue("token")
	err := s.auth.ResetPassword(r.Context(), token, r.PostForm.Get("password"), r.PostForm.Get("password_confirm"))
	switch {
	case err == nil:
		s.render(w, r, http.StatusOK, "login.html", page{
			Title:   "Log ind",
			Message: "Din adgangskode er nulstillet. Log ind med den nye adgangskode.",
			Data:    authForm{},
		})
	case errors.Is(err, auth.ErrInvalidResetToken):
		s.render(w, r, http.StatusBadRequest, "reset_password.html", page{
			Title: "Nulstil adgangskode",
			Error: authMessage(err),
			Data:  authForm{Invalid: true},
		})
	case errors.Is(err, auth.ErrPasswordTooShort), errors.Is(err, auth.ErrPasswordMismatch):
		s.render(w, r, http.StatusBadRequest, "reset_password.html", page{
			Title: "Nulstil adgangskode",
			Error: authMessage(err),
			Data:  authForm{Token: token},
		})
	default:
		s.logAuthError(r, applog.OpReset, err)
		InternalServerError("Der opstod en fejl ved nulstilling af adgangskoden").Write(w)
	}
}

func (s *Server) logAuthError(r *http.Request, op string, err error) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).ErrorContext(r.Context(), "Authentication request failed",
		applog.FieldOperation, op,
		applog.FieldError, err)
}
