// Parsing of Danish formatted amounts and conversion between cents,
// decimals and display strings.

package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// MoneyFromDecimal rounds d half-up to whole cents.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Round(2).Mul(hundred).IntPart()}
}

// Kroner builds an amount from whole kroner.
func Kroner(k int64) Money {
	return Money{Cents: k * 100}
}

// Decimal returns the exact decimal value in kroner.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Float returns the kroner value as a float64 for display and JSON.
// Use cents for calculations.
func (m Money) Float() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) IsZero() bool      { return m.Cents == 0 }

// ParseAmount converts a Danish formatted amount to Money.
//
// "." separates thousands and "," separates decimals. Extra decimals are
// rounded half-up. Zero is accepted, negative values are not.
//
// Examples:
//
//	ParseAmount("1234")      -> 1234,00
//	ParseAmount("1.234,50")  -> 1234,50
//	ParseAmount("1234,5")    -> 1234,50
//	ParseAmount("12,34,56")  -> error
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, "kr"))
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	if strings.Count(s, ",") > 1 {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.Replace(s, ",", ".", 1)
	if s == "" || s == "." {
		return Money{}, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return Money{}, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	// Guard the int64 cents range.
	if d.GreaterThan(decimal.New(1, 15)) {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d), nil
}

// FormatKroner renders m the Danish way, e.g. "1.234,50 kr".
func FormatKroner(m Money) string {
	return FormatAmount(m) + " kr"
}

// FormatAmount renders m without the currency suffix, e.g. "1.234,50".
func FormatAmount(m Money) string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	frac := cents % 100

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	writeGrouped(&b, cents/100)
	b.WriteByte(',')
	b.WriteByte(byte('0' + frac/10))
	b.WriteByte(byte('0' + frac%10))
	return b.String()
}

// FormatWholeKroner rounds m half-up to whole kroner, e.g. "55.000 kr".
func FormatWholeKroner(m Money) string {
	whole := m.Decimal().Round(0).IntPart()
	var b strings.Builder
	if whole < 0 {
		b.WriteByte('-')
		whole = -whole
	}
	writeGrouped(&b, whole)
	b.WriteString(" kr")
	return b.String()
}

func writeGrouped(b *strings.Builder, whole int64) {
	digits := decimal.NewFromInt(whole).String()
	for i := 0; i < len(digits); i++ {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteByte(digits[i])
	}
}

// FormatInput renders m for an editable form field, e.g. "1234,50".
func FormatInput(m Money) string {
	return strings.ReplaceAll(FormatAmount(m), ".", "")
}
