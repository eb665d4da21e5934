package http

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"budget/internal/auth"
	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/services"
	"budget/internal/storage"
	appweb "budget/web"
)

// page is what every template receives. Data carries the page specific
// values.
type page struct {
	Title    string
	Active   string
	Base     string
	Username string
	Demo     bool
	Advanced bool
	LoggedIn bool
	Error    string
	Message  string
	Version  string
	Data     any
}

func templateFuncs(base string) template.FuncMap {
	return template.FuncMap{
		"path":        func(p string) string { return base + p },
		"kr":          core.FormatWholeKroner,
		"amount":      core.FormatAmount,
		"input":       core.FormatInput,
		"monthName":   func(m int) string { return core.MonthNames[m-1] },
		"months":      func() []int { return []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12} },
		"frequencies": func() []core.Frequency { return core.Frequencies },
		"percent":     func(f float64) string { return fmt.Sprintf("%.0f%%", f) },
		"hasMonth": func(e core.Expense, m int) bool {
			for _, x := range e.Months {
				if x == m {
					return true
				}
			}
			return false
		},
		"negative": func(m core.Money) bool { return m.Cents < 0 },
	}
}

func parseTemplates(base string) (*template.Template, error) {
	return template.New("").Funcs(templateFuncs(base)).ParseFS(appweb.TemplatesFS, "templates/*.html")
}

// render executes name into a buffer first so a template error never leaves
// a half written page behind.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	if s.templates == nil {
		InternalServerError("Skabeloner er ikke indlæst").Write(w)
		return
	}
	p.Base = s.cfg.BasePath
	p.Version = s.cfg.Version

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, p); err != nil {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentTemplate).ErrorContext(r.Context(),
			"Template execution failed",
			"template", name,
			applog.FieldError, err)
		InternalServerError("Der opstod en fejl ved visning af siden").Write(w)
		return
	}
	NewResponse().Status(status).Header("Content-Type", "text/html; charset=utf-8").Body(buf.Bytes()).Write(w)
}

// validationMessage maps domain validation errors to the Danish text shown
// to users. ok is false for anything that is not a validation error.
func validationMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		return "Ugyldigt beløb", true
	case errors.Is(err, core.ErrInvalidFrequency):
		return "Ugyldig frekvens", true
	case errors.Is(err, core.ErrInvalidMonths):
		return "Ugyldige måneder for den valgte frekvens", true
	case errors.Is(err, core.ErrEmptyName):
		return "Navn skal udfyldes", true
	case errors.Is(err, core.ErrNameTooLong):
		return "Navnet er for langt (maks 200 tegn)", true
	case errors.Is(err, core.ErrEmptyCategory):
		return "Kategori skal udfyldes", true
	case errors.Is(err, storage.ErrDuplicate):
		return "Navnet findes allerede", true
	}
	return "", false
}

// authMessage is the Danish text for registration and reset failures.
func authMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Forkert brugernavn eller adgangskode"
	case errors.Is(err, auth.ErrUsernameTooShort):
		return fmt.Sprintf("Brugernavn skal være mindst %d tegn", core.MinUsernameLength)
	case errors.Is(err, auth.ErrPasswordTooShort):
		return fmt.Sprintf("Adgangskode skal være mindst %d tegn", core.MinPasswordLength)
	case errors.Is(err, auth.ErrPasswordMismatch):
		return "Adgangskoderne matcher ikke"
	case errors.Is(err, auth.ErrUsernameTaken):
		return "Brugernavnet er allerede taget"
	case errors.Is(err, auth.ErrInvalidResetToken):
		return "Linket er ugyldigt eller udløbet"
	}
	return "Der opstod en fejl. Prøv igen."
}

// writeError maps a failed write to a response. Demo writes bounce back to
// back, validation errors are 400, missing rows 404, anything else a 500
// carrying failMsg.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, back, inUseMsg, failMsg string) {
	if errors.Is(err, services.ErrReadOnly) {
		SeeOther(back).Write(w)
		return
	}
	if msg, ok := validationMessage(err); ok {
		BadRequestError(msg).Write(w)
		return
	}
	switch {
	case errors.Is(err, storage.ErrInUse):
		BadRequestError(inUseMsg).Write(w)
	case errors.Is(err, storage.ErrNotFound):
		NotFoundError("Ikke fundet").Write(w)
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
		InternalServerError(failMsg).Write(w)
	}
}
