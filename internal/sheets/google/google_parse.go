package google

import (
	"fmt"
	"strings"

	"budget/internal/core"
	ports "budget/internal/sheets"

	"github.com/shopspring/decimal"
)

// parseOverview converts a values matrix (as returned by Sheets API) back
// into a yearly overview. It expects the header written by ExportOverview;
// totals and balance are recomputed rather than trusted.
func parseOverview(values [][]interface{}) (core.YearlyOverview, error) {
	var yo core.YearlyOverview
	if len(values) == 0 {
		return yo, ports.ErrNoExport
	}

	headers := toStrings(values[0])
	colLabel := indexOf(headers, ports.LabelCategory)
	var monthCols [12]int
	var missing []string
	if colLabel == -1 {
		missing = append(missing, ports.LabelCategory)
	}
	for i, name := range core.MonthNames {
		monthCols[i] = indexOf(headers, name)
		if monthCols[i] == -1 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return yo, fmt.Errorf("unexpected overview header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}

	for i := 1; i < len(values); i++ {
		row := values[i]
		label := strings.TrimSpace(fmt.Sprint(safeGet(row, colLabel)))
		if label == "" || label == "<nil>" {
			continue
		}
		var months core.MonthlyDistribution
		for m, col := range monthCols {
			amount, ok := parseCell(safeGet(row, col))
			if !ok {
				return yo, fmt.Errorf("row %d (%s): invalid amount in %s", i+1, label, core.MonthNames[m])
			}
			months[m] = amount
		}

		switch label {
		case ports.LabelExpenses:
			yo.Expenses = months
		case ports.LabelIncome:
			yo.Income = months
		case ports.LabelBalance:
		default:
			yo.Rows = append(yo.Rows, core.YearlyRow{Category: label, Months: months, Total: months.Total()})
		}
	}

	for i := range yo.Balance {
		yo.Balance[i] = yo.Income[i].Sub(yo.Expenses[i])
	}
	yo.TotalIncome = yo.Income.Total()
	yo.TotalExpenses = yo.Expenses.Total()
	yo.TotalBalance = yo.Balance.Total()
	return yo, nil
}

// parseCell accepts numbers as returned with UNFORMATTED_VALUE and Danish
// formatted text typed in by hand. Empty cells are zero.
func parseCell(v interface{}) (core.Money, bool) {
	switch x := v.(type) {
	case nil:
		return core.Money{}, true
	case float64:
		return core.MoneyFromDecimal(decimal.NewFromFloat(x)), true
	case int:
		return core.Kroner(int64(x)), true
	case int64:
		return core.Kroner(x), true
	}

	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return core.Money{}, true
	}
	neg := strings.HasPrefix(s, "-")
	m, err := core.ParseAmount(strings.TrimPrefix(s, "-"))
	if err != nil {
		return core.Money{}, false
	}
	if neg {
		m.Cents = -m.Cents
	}
	return m, true
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []interface{}, idx int) interface{} {
	if idx < 0 || idx >= len(arr) {
		return nil
	}
	return arr[idx]
}
