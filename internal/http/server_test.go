package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"budget/internal/auth"
	applog "budget/internal/log"
	"budget/internal/services"
	"budget/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testBase = "/budget"

type testServer struct {
	*Server
	repo *storage.SQLiteRepository
	svc  *services.BudgetService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "budget.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	logger := applog.New(applog.Config{Output: io.Discard})
	authn := auth.NewAuthenticator(repo, auth.NewSQLiteSessionStore(repo), nil, auth.Config{BcryptCost: bcrypt.MinCost})
	svc := services.NewBudgetService(repo, nil, logger, services.Config{})

	s := NewServer(Config{
		BasePath:         testBase,
		DemoSessionTTL:   time.Hour,
		LoginMaxAttempts: 5,
		LoginWindow:      5 * time.Minute,
		Version:          "test",
	}, Deps{Auth: authn, Budget: svc, DB: repo, Logger: logger})
	t.Cleanup(func() { s.Shutdown(context.Background()) })

	require.NotNil(t, s.templates, "templates must parse")
	return &testServer{Server: s, repo: repo, svc: svc}
}

func (ts *testServer) do(method, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rec, req)
	return rec
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (ts *testServer) register(t *testing.T, username string) *http.Cookie {
	t.Helper()
	rec := ts.do(http.MethodPost, testBase+"/register", url.Values{
		"username":         {username},
		"password":         {"hemmelig"},
		"password_confirm": {"hemmelig"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	c := cookieNamed(rec, sessionCookie)
	require.NotNil(t, c)
	return c
}

func (ts *testServer) demo(t *testing.T) []*http.Cookie {
	t.Helper()
	rec := ts.do(http.MethodGet, testBase+"/demo", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	return rec.Result().Cookies()
}

func TestProtectedPagesRedirectToLogin(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/", "/income", "/expenses", "/categories", "/accounts", "/yearly", "/settings"} {
		rec := ts.do(http.MethodGet, testBase+path, nil)
		assert.Equal(t, http.StatusSeeOther, rec.Code, path)
		assert.Equal(t, testBase+"/login", rec.Header().Get("Location"), path)
	}
}

func TestChartDataRequiresSession(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, testBase+"/api/chart-data", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestRegisterAndUseBudget(t *testing.T) {
	ts := newTestServer(t)
	session := ts.register(t, "familien")

	assert.Equal(t, testBase, session.Path)
	assert.True(t, session.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, session.SameSite)

	rec := ts.do(http.MethodGet, testBase+"/", nil, session)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Til fri brug")
	assert.Contains(t, body, "Ingen data")

	rec = ts.do(http.MethodPost, testBase+"/income", url.Values{
		"income_name_0":      {"Løn"},
		"income_amount_0":    {"30000"},
		"income_frequency_0": {"monthly"},
		"income_name_1":      {"Bonus"},
		"income_amount_1":    {"12000"},
		"income_frequency_1": {"yearly"},
	}, session)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, testBase+"/", rec.Header().Get("Location"))

	rec = ts.do(http.MethodPost, testBase+"/expenses/add", url.Values{
		"name":      {"Husleje"},
		"category":  {"Bolig"},
		"amount":    {"9000"},
		"frequency": {"monthly"},
	}, session)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, testBase+"/", nil, session)
	require.Equal(t, http.StatusOK, rec.Code)
	body = rec.Body.String()
	assert.Contains(t, body, "31.000 kr")
	assert.Contains(t, body, "22.000 kr")
	assert.Contains(t, body, `id="chart-categories"`)

	rec = ts.do(http.MethodGet, testBase+"/api/chart-data", nil, session)
	require.Equal(t, http.StatusOK, rec.Code)
	var chart struct {
		CategoryTotals map[string]float64 `json:"category_totals"`
		TotalIncome    float64            `json:"total_income"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chart))
	assert.Equal(t, 9000.0, chart.CategoryTotals["Bolig"])
	assert.Equal(t, 31000.0, chart.TotalIncome)

	rec = ts.do(http.MethodGet, testBase+"/expenses", nil, session)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Husleje")
	assert.Contains(t, rec.Body.String(), `data-lucide="pencil"`)

	rec = ts.do(http.MethodGet, testBase+"/yearly", nil, session)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "108.000 kr")
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name    string
		form    url.Values
		message string
	}{
		{"short username", url.Values{"username": {"ab"}, "password": {"hemmelig"}, "password_confirm": {"hemmelig"}}, "Brugernavn skal være mindst 3 tegn"},
		{"short password", url.Values{"username": {"abc"}, "password": {"123"}, "password_confirm": {"123"}}, "Adgangskode skal være mindst 6 tegn"},
		{"mismatch", url.Values{"username": {"abc"}, "password": {"hemmelig"}, "password_confirm": {"andet123"}}, "Adgangskoderne matcher ikke"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, testBase+"/register", tt.form)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)
		})
	}

	ts.register(t, "optaget")
	rec := ts.do(http.MethodPost, testBase+"/register", url.Values{"username": {"optaget"}, "password": {"hemmelig"}, "password_confirm": {"hemmelig"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Brugernavnet er allerede taget")
}

func TestLoginAndLogout(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "familien")

	rec := ts.do(http.MethodPost, testBase+"/login", url.Values{"username": {"familien"}, "password": {"forkert"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Forkert brugernavn eller adgangskode")

	rec = ts.do(http.MethodPost, testBase+"/login", url.Values{"username": {"familien"}, "password": {"hemmelig"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	session := cookieNamed(rec, sessionCookie)
	require.NotNil(t, session)

	rec = ts.do(http.MethodGet, testBase+"/login", nil, session)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = ts.do(http.MethodGet, testBase+"/logout", nil, session)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, testBase+"/login", rec.Header().Get("Location"))
	cleared := cookieNamed(rec, sessionCookie)
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)

	rec = ts.do(http.MethodGet, testBase+"/", nil, session)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestLoginRateLimit(t *testing.T) {
	ts := newTestServer(t)

	form := url.Values{"username": {"ukendt"}, "password": {"forkert"}}
	for i := 0; i < 5; i++ {
		rec := ts.do(http.MethodPost, testBase+"/login", form)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
	}
	rec := ts.do(http.MethodPost, testBase+"/login", form)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "For mange login forsøg")
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// The login form itself is not limited.
	rec = ts.do(http.MethodGet, testBase+"/login", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDemoSession(t *testing.T) {
	ts := newTestServer(t)
	cookies := ts.demo(t)

	rec := ts.do(http.MethodGet, testBase+"/", nil, cookies...)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Demo-tilstand")
	assert.Contains(t, body, "Person 1")
	assert.Contains(t, body, "Person 2")
	assert.Contains(t, body, "Bolig")
	assert.Contains(t, body, "55.000 kr")

	rec = ts.do(http.MethodPost, testBase+"/expenses/add", url.Values{
		"name": {"Forsøg"}, "category": {"Bolig"}, "amount": {"100"}, "frequency": {"monthly"},
	}, cookies...)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, testBase+"/expenses", rec.Header().Get("Location"))

	rec = ts.do(http.MethodPost, testBase+"/accounts/add-json", url.Values{"name": {"Ny"}}, cookies...)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodGet, testBase+"/expenses", nil, cookies...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Forsøg")
}

func TestDemoToggle(t *testing.T) {
	ts := newTestServer(t)
	cookies := ts.demo(t)

	rec := ts.do(http.MethodGet, testBase+"/demo/toggle?next="+url.QueryEscape(testBase+"/accounts"), nil, cookies...)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, testBase+"/accounts", rec.Header().Get("Location"))
	level := cookieNamed(rec, demoLevelCookie)
	require.NotNil(t, level)
	assert.Equal(t, demoAdvanced, level.Value)

	var session *http.Cookie
	for _, c := range cookies {
		if c.Name == sessionCookie {
			session = c
		}
	}
	require.NotNil(t, session)
	rec = ts.do(http.MethodGet, testBase+"/accounts", nil, session, level)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Budgetkonto")

	rec = ts.do(http.MethodGet, testBase+"/demo/toggle?next=https://evil.example", nil, cookies...)
	assert.Equal(t, testBase+"/", rec.Header().Get("Location"))

	rec = ts.do(http.MethodGet, testBase+"/demo/toggle", nil)
	assert.Equal(t, testBase+"/login", rec.Header().Get("Location"))
}

func TestExpenseValidation(t *testing.T) {
	ts := newTestServer(t)
	session := ts.register(t, "familien")

	tests := []struct {
		name    string
		form    url.Values
		message string
	}{
		{"bad amount", url.Values{"name": {"X"}, "category": {"Bolig"}, "amount": {"abc"}, "frequency": {"monthly"}}, "Ugyldigt beløb"},
		{"bad frequency", url.Values{"name": {"X"}, "category": {"Bolig"}, "amount": {"10"}, "frequency": {"weekly"}}, "Ugyldig frekvens"},
		{"too many months", url.Values{"name": {"X"}, "category": {"Bolig"}, "amount": {"10"}, "frequency": {"yearly"}, "months": {"1", "2"}}, "Ugyldige måneder"},
		{"missing name", url.Values{"category": {"Bolig"}, "amount": {"10"}, "frequency": {"monthly"}}, "Navn skal udfyldes"},
		{"missing frequency", url.Values{"name": {"Netflix"}, "category": {"Abonnementer"}, "amount": {"129"}}, "Ugyldig frekvens"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, testBase+"/expenses/add", tt.form, session)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)
		})
	}

	rec := ts.do(http.MethodPost, testBase+"/expenses/abc/edit", url.Values{"name": {"X"}}, session)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCategoryDeleteInUse(t *testing.T) {
	ts := newTestServer(t)
	session := ts.register(t, "familien")

	rec := ts.do(http.MethodPost, testBase+"/categories/add", url.Values{"name": {"Hobby"}, "icon": {"star"}}, session)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	rec = ts.do(http.MethodPost, testBase+"/expenses/add", url.Values{
		"name": {"Maling"}, "category": {"Hobby"}, "amount": {"250"}, "frequency": {"monthly"},
	}, session)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

	var hobbyID int64
	stats, err := ts.svc.CategoryStats(context.Background(), userViewer(t, ts, session))
	require.NoError(t, err)
	for _, c := range stats {
		if c.Name == "Hobby" {
			hobbyID = c.ID
			assert.Equal(t, 1, c.Usage)
		}
	}
	require.NotZero(t, hobbyID)

	path := testBase + "/categories/" + strconv.FormatInt(hobbyID, 10)
	rec = ts.do(http.MethodPost, path+"/delete", url.Values{}, session)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), categoryInUseMessage)

	rec = ts.do(http.MethodPost, path+"/edit", url.Values{"name": {"Fritid"}, "icon": {"star"}, "next": {testBase + "/expenses"}}, session)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, testBase+"/expenses", rec.Header().Get("Location"))

	rec = ts.do(http.MethodGet, testBase+"/expenses", nil, session)
	assert.Contains(t, rec.Body.String(), "Fritid")
}

func TestAccountAddJSON(t *testing.T) {
	ts := newTestServer(t)
	session := ts.register(t, "familien")

	req := httptest.NewRequest(http.MethodPost, testBase+"/accounts/add-json", strings.NewReader(`{"name":"Fælleskonto"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(session)
	rec := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "Fælleskonto", resp["name"])

	rec = ts.do(http.MethodPost, testBase+"/accounts/add-json", url.Values{"name": {""}}, session)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, testBase+"/accounts/add-json", url.Values{"name": {"X"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSettingsEmail(t *testing.T) {
	ts := newTestServer(t)
	session := ts.register(t, "familien")

	rec := ts.do(http.MethodPost, testBase+"/settings", url.Values{"email": {"ikke-en-mail"}}, session)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ugyldig e-mailadresse")

	rec = ts.do(http.MethodPost, testBase+"/settings", url.Values{"email": {"familien@example.com"}}, session)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Der er gemt en e-mail")
}

func TestSettingsExport(t *testing.T) {
	ts := newTestServer(t)
	session := ts.register(t, "familien")

	rec := ts.do(http.MethodGet, testBase+"/settings", nil, session)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="`+testBase+`/settings/export"`)

	// The test server has no broker, so the scheduled export is announced.
	rec = ts.do(http.MethodPost, testBase+"/settings/export", nil, session)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "eksporteres automatisk en gang i timen")

	rec = ts.do(http.MethodPost, testBase+"/settings/export", nil, ts.demo(t)...)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, testBase+"/settings", rec.Header().Get("Location"))

	rec = ts.do(http.MethodPost, testBase+"/settings/export", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestPasswordResetFlow(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, testBase+"/forgot-password", url.Values{"email": {"ukendt@example.com"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hvis e-mailen er registreret")

	rec = ts.do(http.MethodGet, testBase+"/reset-password/ugyldig", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Linket er ugyldigt")
}

func TestPublicPages(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, testBase+"/help", nil)
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, testBase+"/om", rec.Header().Get("Location"))

	for _, path := range []string{"/om", "/privacy", "/login", "/register", "/forgot-password"} {
		rec = ts.do(http.MethodGet, testBase+path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "script-src 'self'", path)
	}

	rec = ts.do(http.MethodGet, testBase+"/login", nil)
	assert.Contains(t, rec.Body.String(), "Prøv demo")

	rec = ts.do(http.MethodGet, testBase+"/static/manifest.json", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = ts.do(http.MethodGet, testBase+"/static/app.js", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/healthz", testBase + "/healthz"} {
		rec := ts.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), `"status":"ok"`, path)
	}

	rec := ts.do(http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"database":"ok"`)

	rec = ts.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "budget_http_requests_total")
}

func userViewer(t *testing.T, ts *testServer, session *http.Cookie) services.Viewer {
	t.Helper()
	uid, err := ts.auth.UserFromToken(context.Background(), session.Value)
	require.NoError(t, err)
	return services.UserViewer(uid)
}
