package http

import (
	"errors"
	"net/http"

	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/services"
)

const (
	categoryInUseMessage = "Kategorien kan ikke slettes - den er stadig i brug"
	accountInUseMessage  = "Kontoen kan ikke slettes - den er stadig i brug"
)

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	v := viewerFrom(r.Context()).viewer
	stats, err := s.budget.CategoryStats(r.Context(), v)
	if err != nil {
		s.readError(w, r, err, "Der opstod en fejl ved indlæsning af kategorier")
		return
	}
	p := pageFor(r, "Kategorier", "categories")
	p.Data = stats
	s.render(w, r, http.StatusOK, "categories.html", p)
}

func (s *Server) handleCategoryAdd(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	back := s.url("/categories")
	c := core.Category{Name: sanitizeInput(r.PostForm.Get("name")), Icon: sanitizeInput(r.PostForm.Get("icon"))}
	if _, err := s.budget.AddCategory(r.Context(), viewerFrom(r.Context()).viewer, c); err != nil {
		s.writeError(w, r, err, back, categoryInUseMessage, "Der opstod en fejl ved oprettelse af kategorien")
		return
	}
	SeeOther(back).Write(w)
}

// handleCategoryEdit renames a category. The expenses page posts a next
// field so the user lands where they started.
func (s *Server) handleCategoryEdit(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	back := safeNext(r.PostForm.Get("next"), s.cfg.BasePath, s.url("/categories"))
	id, ok := pathID(r, "id")
	if !ok {
		NotFoundError("Ikke fundet").Write(w)
		return
	}
	c := core.Category{ID: id, Name: sanitizeInput(r.PostForm.Get("name")), Icon: sanitizeInput(r.PostForm.Get("icon"))}
	renamed, err := s.budget.UpdateCategory(r.Context(), viewerFrom(r.Context()).viewer, c)
	if err != nil {
		s.writeError(w, r, err, back, categoryInUseMessage, "Der opstod en fejl ved opdatering af kategorien")
		return
	}
	if renamed > 0 {
		applog.FromContext(r.Context()).DebugContext(r.Context(), "Category renamed on expenses",
			applog.FieldEntityID, id, "expenses", renamed)
	}
	SeeOther(back).Write(w)
}

func (s *Server) handleCategoryDelete(w http.ResponseWriter, r *http.Request) {
	back := s.url("/categories")
	id, ok := pathID(r, "id")
	if !ok {
		NotFoundError("Ikke fundet").Write(w)
		return
	}
	if err := s.budget.DeleteCategory(r.Context(), viewerFrom(r.Context()).viewer, id); err != nil {
		s.writeError(w, r, err, back, categoryInUseMessage, "Der opstod en fejl ved sletning af kategorien")
		return
	}
	SeeOther(back).Write(w)
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	v := viewerFrom(r.Context()).viewer
	stats, err := s.budget.AccountStats(r.Context(), v)
	if err != nil {
		s.readError(w, r, err, "Der opstod en fejl ved indlæsning af konti")
		return
	}
	p := pageFor(r, "Konti", "accounts")
	p.Data = stats
	s.render(w, r, http.StatusOK, "accounts.html", p)
}

func (s *Server) handleAccountAdd(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	back := safeNext(r.PostForm.Get("next"), s.cfg.BasePath, s.url("/accounts"))
	a := core.Account{Name: sanitizeInput(r.PostForm.Get("name"))}
	if _, err := s.budget.AddAccount(r.Context(), viewerFrom(r.Context()).viewer, a); err != nil {
		s.writeError(w, r, err, back, accountInUseMessage, "Der opstod en fejl ved oprettelse af kontoen")
		return
	}
	SeeOther(back).Write(w)
}

// handleAccountAddJSON creates an account from the expense modal without a
// page reload. It accepts JSON or form bodies.
func (s *Server) handleAccountAddJSON(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		JSONError(http.StatusBadRequest, "Ugyldig forespørgsel").Write(w)
		return
	}
	name := parser.Get("name")
	_, err := s.budget.AddAccount(r.Context(), viewerFrom(r.Context()).viewer, core.Account{Name: name})
	if err != nil {
		if errors.Is(err, services.ErrReadOnly) {
			JSONError(http.StatusForbidden, "Demo-tilstand kan ikke gemme ændringer").Write(w)
			return
		}
		if msg, ok := validationMessage(err); ok {
			JSONError(http.StatusBadRequest, msg).Write(w)
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Account create failed", applog.FieldError, err)
		JSONError(http.StatusInternalServerError, "Der opstod en fejl ved oprettelse af kontoen").Write(w)
		return
	}
	NewResponse().BodyJSON(map[string]any{"success": true, "name": name}).Write(w)
}

func (s *Server) handleAccountEdit(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	back := s.url("/accounts")
	id, ok := pathID(r, "id")
	if !ok {
		NotFoundError("Ikke fundet").Write(w)
		return
	}
	a := core.Account{ID: id, Name: sanitizeInput(r.PostForm.Get("name"))}
	if _, err := s.budget.UpdateAccount(r.Context(), viewerFrom(r.Context()).viewer, a); err != nil {
		s.writeError(w, r, err, back, accountInUseMessage, "Der opstod en fejl ved opdatering af kontoen")
		return
	}
	SeeOther(back).Write(w)
}

func (s *Server) handleAccountDelete(w http.ResponseWriter, r *http.Request) {
	back := s.url("/accounts")
	id, ok := pathID(r, "id")
	if !ok {
		NotFoundError("Ikke fundet").Write(w)
		return
	}
	if err := s.budget.DeleteAccount(r.Context(), viewerFrom(r.Context()).viewer, id); err != nil {
		s.writeError(w, r, err, back, accountInUseMessage, "Der opstod en fejl ved sletning af kontoen")
		return
	}
	SeeOther(back).Write(w)
}
