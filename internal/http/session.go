package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"budget/internal/auth"
	applog "budget/internal/log"
	"budget/internal/services"
)

const (
	sessionCookie   = "budget_session"
	demoLevelCookie = "demo_level"

	demoSimple   = "simple"
	demoAdvanced = "advanced"
)

type viewerKey struct{}

// session is the resolved identity behind a request.
type session struct {
	viewer   services.Viewer
	username string
}

func viewerFrom(ctx context.Context) session {
	s, _ := ctx.Value(viewerKey{}).(session)
	return s
}

// resolveSession reads the session cookie. The demo token needs no lookup;
// any other token must match a live session.
func (s *Server) resolveSession(r *http.Request) (session, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return session{}, false
	}
	if c.Value == auth.DemoToken {
		return session{viewer: services.DemoViewer(demoLevel(r) == demoAdvanced), username: "Demo"}, true
	}

	userID, err := s.auth.UserFromToken(r.Context(), c.Value)
	if err != nil {
		if !errors.Is(err, auth.ErrNoSession) {
			applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).WarnContext(r.Context(),
				"Session lookup failed", applog.FieldError, err)
		}
		return session{}, false
	}
	sess := session{viewer: services.UserViewer(userID)}
	if u, err := s.auth.User(r.Context(), userID); err == nil {
		sess.username = u.Username
	}
	return sess, true
}

func demoLevel(r *http.Request) string {
	if c, err := r.Cookie(demoLevelCookie); err == nil && c.Value == demoAdvanced {
		return demoAdvanced
	}
	return demoSimple
}

// requireViewer redirects anonymous page requests to the login form.
func (s *Server) requireViewer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.resolveSession(r)
		if !ok {
			SeeOther(s.url("/login")).Write(w)
			return
		}
		next(w, s.withSession(r, sess))
	}
}

// requireAPIViewer answers anonymous JSON requests with 401.
func (s *Server) requireAPIViewer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.resolveSession(r)
		if !ok {
			JSONError(http.StatusUnauthorized, "Ikke logget ind").Write(w)
			return
		}
		next(w, s.withSession(r, sess))
	}
}

func (s *Server) withSession(r *http.Request, sess session) *http.Request {
	ctx := context.WithValue(r.Context(), viewerKey{}, sess)
	logger := applog.FromContext(ctx).With(applog.FieldUserID, sess.viewer.UserID, applog.FieldDemo, sess.viewer.Demo)
	return r.WithContext(applog.NewContext(ctx, logger))
}

// pageFor fills the identity part of the template data.
func pageFor(r *http.Request, title, active string) page {
	sess := viewerFrom(r.Context())
	return page{
		Title:    title,
		Active:   active,
		Username: sess.username,
		Demo:     sess.viewer.Demo,
		Advanced: sess.viewer.Advanced,
		LoggedIn: sess.username != "" || sess.viewer.UserID > 0,
	}
}

func (s *Server) newSessionCookie(token string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     s.cookiePath(),
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Server) newDemoLevelCookie(level string) *http.Cookie {
	return &http.Cookie{
		Name:     demoLevelCookie,
		Value:    level,
		Path:     s.cookiePath(),
		MaxAge:   int(s.cfg.DemoSessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Server) expiredCookie(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     s.cookiePath(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Server) cookiePath() string {
	if s.cfg.BasePath == "" {
		return "/"
	}
	return s.cfg.BasePath
}
