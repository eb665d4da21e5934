package http

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	applog "budget/internal/log"
	"budget/internal/services"
	appweb "budget/web"
)

type settingsData struct {
	HasEmail bool
	Email    string
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	p := pageFor(r, "Indstillinger", "settings")
	data, err := s.settingsData(r)
	if err != nil {
		s.readError(w, r, err, "Der opstod en fejl ved indlæsning af indstillinger")
		return
	}
	p.Data = data
	s.render(w, r, http.StatusOK, "settings.html", p)
}

func (s *Server) settingsData(r *http.Request) (settingsData, error) {
	v := viewerFrom(r.Context()).viewer
	if v.Demo {
		return settingsData{}, nil
	}
	u, err := s.auth.User(r.Context(), v.UserID)
	if err != nil {
		return settingsData{}, err
	}
	return settingsData{HasEmail: u.HasEmail()}, nil
}

// handleSettingsSave stores or clears the recovery email. Only its hash is
// kept, so the page can say whether one is set but never show it.
func (s *Server) handleSettingsSave(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	v := viewerFrom(r.Context()).viewer
	if v.Demo {
		SeeOther(s.url("/settings")).Write(w)
		return
	}

	p := pageFor(r, "Indstillinger", "settings")
	email := strings.TrimSpace(r.PostForm.Get("email"))
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
			p.Error = "Ugyldig e-mailadresse"
			p.Data = settingsData{Email: email}
			s.render(w, r, http.StatusBadRequest, "settings.html", p)
			return
		}
	}
	if err := s.auth.SetEmail(r.Context(), v.UserID, email); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Saving recovery email failed", applog.FieldError, err)
		InternalServerError("Der opstod en fejl ved opdatering af indstillinger").Write(w)
		return
	}

	p.Message = "E-mail til nulstilling af adgangskode er gemt"
	if email == "" {
		p.Message = "E-mail til nulstilling af adgangskode er fjernet"
	}
	p.Data = settingsData{HasEmail: email != ""}
	s.render(w, r, http.StatusOK, "settings.html", p)
}

// handleSettingsExport queues a fresh export of the yearly overview.
func (s *Server) handleSettingsExport(w http.ResponseWriter, r *http.Request) {
	v := viewerFrom(r.Context()).viewer
	if v.Demo {
		SeeOther(s.url("/settings")).Write(w)
		return
	}
	data, err := s.settingsData(r)
	if err != nil {
		s.readError(w, r, err, "Der opstod en fejl ved indlæsning af indstillinger")
		return
	}

	p := pageFor(r, "Indstillinger", "settings")
	p.Data = data
	status := http.StatusOK
	switch err := s.budget.RequestExport(r.Context(), v); {
	case err == nil:
		p.Message = "Eksport af årsoversigten er bestilt"
	case errors.Is(err, services.ErrEventsDisabled):
		p.Message = "Årsoversigten eksporteres automatisk en gang i timen"
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Export request failed", applog.FieldError, err)
		p.Error = "Eksporten kunne ikke bestilles. Prøv igen senere"
		status = http.StatusServiceUnavailable
	}
	s.render(w, r, status, "settings.html", p)
}

func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.url("/om"), http.StatusMovedPermanently)
}

// publicPage renders pages that work with or without a session.
func (s *Server) publicPage(w http.ResponseWriter, r *http.Request, name, title, active string) {
	if sess, ok := s.resolveSession(r); ok {
		r = s.withSession(r, sess)
	}
	s.render(w, r, http.StatusOK, name, pageFor(r, title, active))
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	s.publicPage(w, r, "om.html", "Om Budget", "om")
}

func (s *Server) handlePrivacy(w http.ResponseWriter, r *http.Request) {
	s.publicPage(w, r, "privacy.html", "Privatlivspolitik", "privacy")
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	data, err := appweb.StaticFS.ReadFile("static/manifest.json")
	if err != nil {
		NotFoundError("Ikke fundet").Write(w)
		return
	}
	NewResponse().
		Header("Content-Type", "application/json").
		Header("Cache-Control", "public, max-age=3600").
		Body(data).
		Write(w)
}
