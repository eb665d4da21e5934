package http

import (
	"net/http"
	"strconv"
	"time"

	"budget/internal/core"
	applog "budget/internal/log"
)

type incomeShare struct {
	core.Income
	Monthly core.Money
	Percent float64
}

type dashboardData struct {
	Summary     core.Summary
	IncomeShare []incomeShare
	TopExpenses []core.RankedExpense
	HasExpenses bool
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	v := viewerFrom(r.Context()).viewer
	summary, err := s.budget.Summary(r.Context(), v)
	if err != nil {
		s.readError(w, r, err, "Der opstod en fejl ved indlæsning af budgettet")
		return
	}

	data := dashboardData{
		Summary:     summary,
		TopExpenses: core.TopNByMonthlyAmount(summary.Expenses, core.ChartTopExpenses),
		HasExpenses: len(summary.Expenses) > 0,
	}
	for _, inc := range summary.Incomes {
		share := incomeShare{Income: inc, Monthly: inc.MonthlyAmount()}
		if summary.TotalIncome.Cents > 0 {
			share.Percent = float64(share.Monthly.Cents) / float64(summary.TotalIncome.Cents) * 100
		}
		data.IncomeShare = append(data.IncomeShare, share)
	}

	p := pageFor(r, "Oversigt", "dashboard")
	p.Data = data
	s.render(w, r, http.StatusOK, "dashboard.html", p)
}

// handleChartData serves the dashboard chart payload.
func (s *Server) handleChartData(w http.ResponseWriter, r *http.Request) {
	v := viewerFrom(r.Context()).viewer
	data, err := s.budget.ChartData(r.Context(), v)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Chart data failed", applog.FieldError, err)
		JSONError(http.StatusInternalServerError, "Der opstod en fejl ved indlæsning af grafdata").Write(w)
		return
	}
	NewResponse().Header("Cache-Control", "no-store").BodyJSON(data).Write(w)
}

type incomeRow struct {
	Index     int
	Person    string
	Amount    string
	Frequency core.Frequency
}

func (s *Server) handleIncomeForm(w http.ResponseWriter, r *http.Request) {
	v := viewerFrom(r.Context()).viewer
	incomes, err := s.budget.Incomes(r.Context(), v)
	if err != nil {
		s.readError(w, r, err, "Der opstod en fejl ved indlæsning af indkomst")
		return
	}

	rows := make([]incomeRow, 0, len(incomes)+1)
	for i, inc := range incomes {
		rows = append(rows, incomeRow{Index: i, Person: inc.Person, Amount: core.FormatInput(inc.Amount), Frequency: inc.Frequency})
	}
	// Offer two named rows to a new user, and always one blank row.
	for len(rows) < 2 {
		rows = append(rows, incomeRow{Index: len(rows), Person: "Person " + strconv.Itoa(len(rows)+1), Frequency: core.Monthly})
	}
	rows = append(rows, incomeRow{Index: len(rows), Frequency: core.Monthly})

	p := pageFor(r, "Indkomst", "income")
	p.Data = rows
	s.render(w, r, http.StatusOK, "income.html", p)
}

func (s *Server) handleIncomeSave(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	v := viewerFrom(r.Context()).viewer
	if v.Demo {
		SeeOther(s.url("/")).Write(w)
		return
	}
	incomes, err := parseIncomeRows(r.PostForm)
	if err == nil {
		err = s.budget.ReplaceIncome(r.Context(), v, incomes)
	}
	if err != nil {
		s.writeError(w, r, err, s.url("/"), "", "Der opstod en fejl ved opdatering af indkomst")
		return
	}
	SeeOther(s.url("/")).Write(w)
}

type expensesData struct {
	Summary    core.Summary
	Categories []core.Category
	Accounts   []core.Account
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v := viewerFrom(ctx).viewer
	summary, err := s.budget.Summary(ctx, v)
	if err != nil {
		s.readError(w, r, err, "Der opstod en fejl ved indlæsning af udgifter")
		return
	}
	cats, err := s.budget.Categories(ctx, v)
	if err != nil {
		s.readError(w, r, err, "Der opstod en fejl ved indlæsning af kategorier")
		return
	}
	accounts, err := s.budget.Accounts(ctx, v)
	if err != nil {
		s.readError(w, r, err, "Der opstod en fejl ved indlæsning af konti")
		return
	}

	p := pageFor(r, "Udgifter", "expenses")
	p.Data = expensesData{Summary: summary, Categories: cats, Accounts: accounts}
	s.render(w, r, http.StatusOK, "expenses.html", p)
}

func (s *Server) handleExpenseAdd(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	back := s.url("/expenses")
	v := viewerFrom(r.Context()).viewer
	if v.Demo {
		SeeOther(back).Write(w)
		return
	}
	e, err := parseExpenseForm(r.PostForm)
	if err == nil {
		_, err = s.budget.AddExpense(r.Context(), v, e)
	}
	if err != nil {
		s.writeError(w, r, err, back, "", "Der opstod en fejl ved tilføjelse af udgiften")
		return
	}
	SeeOther(back).Write(w)
}

func (s *Server) handleExpenseEdit(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	back := s.url("/expenses")
	v := viewerFrom(r.Context()).viewer
	if v.Demo {
		SeeOther(back).Write(w)
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		NotFoundError("Ikke fundet").Write(w)
		return
	}
	e, err := parseExpenseForm(r.PostForm)
	if err == nil {
		e.ID = id
		err = s.budget.UpdateExpense(r.Context(), v, e)
	}
	if err != nil {
		s.writeError(w, r, err, back, "", "Der opstod en fejl ved opdatering af udgiften")
		return
	}
	SeeOther(back).Write(w)
}

func (s *Server) handleExpenseDelete(w http.ResponseWriter, r *http.Request) {
	back := s.url("/expenses")
	v := viewerFrom(r.Context()).viewer
	id, ok := pathID(r, "id")
	if !ok {
		NotFoundError("Ikke fundet").Write(w)
		return
	}
	if err := s.budget.DeleteExpense(r.Context(), v, id); err != nil {
		s.writeError(w, r, err, back, "", "Der opstod en fejl ved sletning af udgiften")
		return
	}
	SeeOther(back).Write(w)
}

type yearlyData struct {
	Year     int
	Overview core.YearlyOverview
}

func (s *Server) handleYearly(w http.ResponseWriter, r *http.Request) {
	v := viewerFrom(r.Context()).viewer
	yo, err := s.budget.YearlyOverview(r.Context(), v)
	if err != nil {
		s.readError(w, r, err, "Der opstod en fejl ved indlæsning af årsoversigten")
		return
	}
	p := pageFor(r, "Årsoversigt", "yearly")
	p.Data = yearlyData{Year: time.Now().Year(), Overview: yo}
	s.render(w, r, http.StatusOK, "yearly.html", p)
}

func (s *Server) readError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	applog.FromContext(r.Context()).ErrorContext(r.Context(), "Read failed",
		applog.FieldPath, r.URL.Path,
		applog.FieldError, err)
	InternalServerError(msg).Write(w)
}
