package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// OtherCategoryLabel collects the categories folded away by GroupSmallCategories.
const OtherCategoryLabel = "Andet (samlet)"

// MonthlyDistribution holds one amount per calendar month, January first.
type MonthlyDistribution [12]Money

// Month returns the amount for month m (1..12).
func (d MonthlyDistribution) Month(m int) Money {
	if m < 1 || m > 12 {
		return Money{}
	}
	return d[m-1]
}

func (d MonthlyDistribution) Total() Money {
	var t Money
	for _, v := range d {
		t = t.Add(v)
	}
	return t
}

// RankedExpense is one row of TopNByMonthlyAmount.
type RankedExpense struct {
	Name     string
	Amount   Money // monthly equivalent
	Category string
}

// MonthlyEquivalent divides amount by the months one payment covers and
// rounds half-up to two decimals. Unknown frequencies use divisor 1.
func MonthlyEquivalent(amount Money, f Frequency) Money {
	if f.Divisor() == 1 {
		return amount
	}
	return divide(amount, f.Divisor())
}

func divide(amount Money, n int64) Money {
	return MoneyFromDecimal(amount.Decimal().Div(decimal.NewFromInt(n)))
}

// DistributeAcrossMonths assigns an amount to calendar months.
//
// Monthly amounts, or amounts without explicit months, put the monthly
// equivalent in every month. Otherwise amount/len(months) goes to each listed
// month and the rest are zero. months must already satisfy ValidateMonths;
// entries outside 1..12 are ignored.
func DistributeAcrossMonths(amount Money, f Frequency, months []int) MonthlyDistribution {
	var d MonthlyDistribution
	if f == Monthly || len(months) == 0 {
		per := MonthlyEquivalent(amount, f)
		for i := range d {
			d[i] = per
		}
		return d
	}
	per := divide(amount, int64(len(months)))
	for _, m := range months {
		if m >= 1 && m <= 12 {
			d[m-1] = per
		}
	}
	return d
}

// AggregateByCategory sums monthly equivalents per category label.
// Labels are used verbatim.
func AggregateByCategory(expenses []Expense) map[string]Money {
	totals := make(map[string]Money)
	for _, e := range expenses {
		totals[e.Category] = totals[e.Category].Add(e.MonthlyAmount())
	}
	return totals
}

// AggregateByAccount sums monthly equivalents per account, skipping
// expenses without one.
func AggregateByAccount(expenses []Expense) map[string]Money {
	totals := make(map[string]Money)
	for _, e := range expenses {
		if e.Account == "" {
			continue
		}
		totals[e.Account] = totals[e.Account].Add(e.MonthlyAmount())
	}
	return totals
}

// TopNByMonthlyAmount ranks expenses by monthly equivalent, largest first.
// Equal amounts keep their input order. n <= 0 yields an empty slice.
func TopNByMonthlyAmount(expenses []Expense, n int) []RankedExpense {
	if n <= 0 {
		return []RankedExpense{}
	}
	ranked := make([]RankedExpense, len(expenses))
	for i, e := range expenses {
		ranked[i] = RankedExpense{Name: e.Name, Amount: e.MonthlyAmount(), Category: e.Category}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Amount.Cents > ranked[j].Amount.Cents
	})
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

// GroupSmallCategories keeps the keepTop largest categories and folds the
// rest into otherLabel, which is only added when its sum is positive.
// Maps with keepTop or fewer entries come back as an unchanged copy.
// Equal totals are ordered by name so the result is deterministic.
func GroupSmallCategories(totals map[string]Money, keepTop int, otherLabel string) map[string]Money {
	if keepTop < 0 {
		keepTop = 0
	}
	out := make(map[string]Money, keepTop+1)
	if len(totals) <= keepTop {
		for k, v := range totals {
			out[k] = v
		}
		return out
	}

	sorted := SortedCategoryAmounts(totals)
	var rest Money
	for i, ca := range sorted {
		if i < keepTop {
			out[ca.Name] = ca.Amount
			continue
		}
		rest = rest.Add(ca.Amount)
	}
	if rest.Cents > 0 {
		out[otherLabel] = out[otherLabel].Add(rest)
	}
	return out
}

// SortedCategoryAmounts orders a totals map by amount descending, then name.
func SortedCategoryAmounts(totals map[string]Money) []CategoryAmount {
	list := make([]CategoryAmount, 0, len(totals))
	for name, amount := range totals {
		list = append(list, CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Amount.Cents != list[j].Amount.Cents {
			return list[i].Amount.Cents > list[j].Amount.Cents
		}
		return list[i].Name < list[j].Name
	})
	return list
}

// TotalMonthlyIncome sums the monthly equivalents of all incomes.
func TotalMonthlyIncome(incomes []Income) Money {
	var t Money
	for _, i := range incomes {
		t = t.Add(i.MonthlyAmount())
	}
	return t
}

// TotalMonthlyExpenses sums the monthly equivalents of all expenses.
func TotalMonthlyExpenses(expenses []Expense) Money {
	var t Money
	for _, e := range expenses {
		t = t.Add(e.MonthlyAmount())
	}
	return t
}
