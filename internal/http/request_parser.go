// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// It turns form posts into domain values so handlers only deal with
// validated income rows, expenses and ids.

package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"budget/internal/core"
)

const incomeNamePrefix = "income_name_"

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, 1<<20))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *ResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *ResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *ResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Ugyldig formular")
	}
	return nil
}

// pathID reads a positive integer path value such as {id}.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parseIncomeRows collects the income_name_N, income_amount_N and
// income_frequency_N fields in index order. Rows with neither name nor
// amount are skipped; a missing frequency means monthly.
func parseIncomeRows(form url.Values) ([]core.Income, error) {
	var indexes []int
	for key := range form {
		if !strings.HasPrefix(key, incomeNamePrefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(key, incomeNamePrefix))
		if err != nil || n < 0 {
			continue
		}
		indexes = append(indexes, n)
	}
	sort.Ints(indexes)

	incomes := make([]core.Income, 0, len(indexes))
	for _, n := range indexes {
		idx := strconv.Itoa(n)
		name := sanitizeInput(form.Get(incomeNamePrefix + idx))
		rawAmount := strings.TrimSpace(form.Get("income_amount_" + idx))
		if name == "" && rawAmount == "" {
			continue
		}
		if name == "" {
			return nil, core.ErrEmptyName
		}

		amount := core.Money{}
		if rawAmount != "" {
			var err error
			if amount, err = core.ParseAmount(rawAmount); err != nil {
				return nil, err
			}
		}
		freq, err := parseFrequencyField(form.Get("income_frequency_" + idx))
		if err != nil {
			return nil, err
		}
		incomes = append(incomes, core.Income{Person: name, Amount: amount, Frequency: freq})
	}
	return incomes, nil
}

// parseExpenseForm reads name, category, amount, frequency, account and
// months. months may be posted once as "3,9" or as repeated checkbox values.
func parseExpenseForm(form url.Values) (core.Expense, error) {
	amount, err := core.ParseAmount(form.Get("amount"))
	if err != nil {
		return core.Expense{}, err
	}
	// Expenses carry no default frequency, unlike income rows.
	freq, err := core.ParseFrequency(form.Get("frequency"))
	if err != nil {
		return core.Expense{}, err
	}
	months, err := core.ParseMonths(strings.Join(form["months"], ","))
	if err != nil {
		return core.Expense{}, err
	}
	return core.Expense{
		Name:      sanitizeInput(form.Get("name")),
		Category:  sanitizeInput(form.Get("category")),
		Account:   sanitizeInput(form.Get("account")),
		Amount:    amount,
		Frequency: freq,
		Months:    months,
	}, nil
}

// parseFrequencyField reads an income row's frequency; blank means monthly.
func parseFrequencyField(s string) (core.Frequency, error) {
	if strings.TrimSpace(s) == "" {
		return core.Monthly, nil
	}
	return core.ParseFrequency(s)
}

// safeNext accepts only same-site paths below base, so a form cannot
// bounce the browser to another host.
func safeNext(next, base, fallback string) string {
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	if base != "" && u.Path != base && !strings.HasPrefix(u.Path, base+"/") {
		return fallback
	}
	return next
}
