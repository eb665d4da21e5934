// Package core holds the budget domain model: money, incomes, expenses,
// categories and accounts, plus the normalization engine that turns amounts
// of any frequency into monthly figures and summaries.
package core

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DemoUserID owns the shared default categories.
const DemoUserID int64 = 0

const (
	MinUsernameLength = 3
	MinPasswordLength = 6
	maxNameLength     = 200
)

type (
	Money struct {
		Cents int64
	}

	Income struct {
		ID        int64
		UserID    int64
		Person    string // free-text label, unique per user
		Amount    Money
		Frequency Frequency
	}

	Expense struct {
		ID        int64
		UserID    int64
		Name      string
		Category  string
		Amount    Money
		Frequency Frequency
		Account   string // empty when unassigned
		Months    []int  // nil when spread across the year
	}

	Category struct {
		ID     int64
		UserID int64
		Name   string
		Icon   string
	}

	Account struct {
		ID     int64
		UserID int64
		Name   string
	}

	User struct {
		ID           int64
		Username     string
		PasswordHash string
		EmailHash    string
		CreatedAt    time.Time
		LastLogin    time.Time
	}

	PasswordResetToken struct {
		ID        int64
		UserID    int64
		TokenHash string
		ExpiresAt time.Time
		Used      bool
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidMonths = errors.New("invalid months")
	ErrEmptyName     = errors.New("empty name")
	ErrNameTooLong   = errors.New("name too long (max 200 characters)")
	ErrEmptyCategory = errors.New("empty category")
)

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func validateName(s string) error {
	if strings.TrimSpace(s) == "" {
		return ErrEmptyName
	}
	if len(s) > maxNameLength {
		return ErrNameTooLong
	}
	return nil
}

// MonthlyAmount is the income's contribution per calendar month.
func (i Income) MonthlyAmount() Money {
	return MonthlyEquivalent(i.Amount, i.Frequency)
}

func (i Income) Validate() error {
	if err := validateName(i.Person); err != nil {
		return err
	}
	if err := i.Amount.Validate(); err != nil {
		return err
	}
	if !i.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	return nil
}

// MonthlyAmount is the expense's contribution per calendar month.
func (e Expense) MonthlyAmount() Money {
	return MonthlyEquivalent(e.Amount, e.Frequency)
}

// Distribution spreads the expense over the twelve calendar months.
func (e Expense) Distribution() MonthlyDistribution {
	return DistributeAcrossMonths(e.Amount, e.Frequency, e.Months)
}

// HasMonths reports whether the expense falls in specific months.
func (e Expense) HasMonths() bool {
	return e.Frequency != Monthly && len(e.Months) > 0
}

// MonthsString renders the months for a form field, e.g. "3,9".
func (e Expense) MonthsString() string {
	parts := make([]string, len(e.Months))
	for i, m := range e.Months {
		parts[i] = strconv.Itoa(m)
	}
	return strings.Join(parts, ",")
}

func (e Expense) Validate() error {
	if err := validateName(e.Name); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if len(e.Months) > 0 {
		return ValidateMonths(e.Frequency, e.Months)
	}
	return nil
}

// Normalize applies the storage rules: monthly expenses never keep months
// and explicit months are kept sorted.
func (e *Expense) Normalize() {
	e.Name = strings.TrimSpace(e.Name)
	e.Category = strings.TrimSpace(e.Category)
	e.Account = strings.TrimSpace(e.Account)
	if e.Frequency == Monthly || len(e.Months) == 0 {
		e.Months = nil
		return
	}
	sort.Ints(e.Months)
}

// ValidateMonths checks an explicit month set against a frequency: monthly
// forbids months, otherwise the count must match Occurrences and every
// month must be unique and within 1..12.
func ValidateMonths(f Frequency, months []int) error {
	if len(months) == 0 {
		return nil
	}
	if f == Monthly {
		return ErrInvalidMonths
	}
	if len(months) != f.Occurrences() {
		return ErrInvalidMonths
	}
	seen := make(map[int]bool, len(months))
	for _, m := range months {
		if m < 1 || m > 12 || seen[m] {
			return ErrInvalidMonths
		}
		seen[m] = true
	}
	return nil
}

// ParseMonths reads a comma separated list such as "3,9". An empty string
// yields nil.
func ParseMonths(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var months []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m, err := strconv.Atoi(part)
		if err != nil {
			return nil, ErrInvalidMonths
		}
		months = append(months, m)
	}
	return months, nil
}

func (c Category) Validate() error {
	return validateName(c.Name)
}

func (a Account) Validate() error {
	return validateName(a.Name)
}

// HasEmail reports whether the user can receive password reset links.
func (u User) HasEmail() bool {
	return u.EmailHash != ""
}

// Valid reports whether the token can still be redeemed at now.
func (t PasswordResetToken) Valid(now time.Time) bool {
	return !t.Used && now.Before(t.ExpiresAt)
}
