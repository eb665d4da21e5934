package sheets

import "budget/internal/core"

// Row labels of the exported sheet. Category rows sit between the header
// and LabelExpenses.
const (
	LabelCategory = "Kategori"
	LabelTotal    = "I alt"
	LabelExpenses = "Udgifter i alt"
	LabelIncome   = "Indkomst"
	LabelBalance  = "Balance"
)

// Header returns the first row: the category column, the twelve months
// and the yearly total.
func Header() []string {
	h := make([]string, 0, 14)
	h = append(h, LabelCategory)
	h = append(h, core.MonthNames[:]...)
	return append(h, LabelTotal)
}

// Cell is one exported value. Text is set for the label column only.
type Cell struct {
	Text   string
	Amount core.Money
}

// Rows lays yo out as the grid written to a sheet.
func Rows(yo core.YearlyOverview) [][]Cell {
	rows := make([][]Cell, 0, len(yo.Rows)+4)

	header := make([]Cell, 0, 14)
	for _, h := range Header() {
		header = append(header, Cell{Text: h})
	}
	rows = append(rows, header)

	for _, r := range yo.Rows {
		rows = append(rows, amountRow(r.Category, r.Months, r.Total))
	}
	rows = append(rows,
		amountRow(LabelExpenses, yo.Expenses, yo.TotalExpenses),
		amountRow(LabelIncome, yo.Income, yo.TotalIncome),
		amountRow(LabelBalance, yo.Balance, yo.TotalBalance),
	)
	return rows
}

func amountRow(label string, months core.MonthlyDistribution, total core.Money) []Cell {
	row := make([]Cell, 0, 14)
	row = append(row, Cell{Text: label})
	for _, m := range months {
		row = append(row, Cell{Amount: m})
	}
	return append(row, Cell{Amount: total})
}
