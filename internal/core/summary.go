package core

import "sort"

const (
	// ChartCategoryLimit is how many categories the chart shows before grouping.
	ChartCategoryLimit = 6
	// ChartTopExpenses is the length of the largest-expenses list.
	ChartTopExpenses = 5
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// CategoryGroup is one category section on the dashboard and expenses pages.
type CategoryGroup struct {
	Name     string
	Total    Money
	Percent  float64 // share of total expenses, 0..100
	Expenses []Expense
}

// Summary is everything the dashboard renders for one budget.
type Summary struct {
	Incomes       []Income
	Expenses      []Expense
	TotalIncome   Money
	TotalExpenses Money
	Remaining     Money
	Categories    []CategoryGroup  // ordered by category name
	AccountTotals []CategoryAmount // ordered by amount, largest first
}

// BuildSummary computes monthly totals and per-category breakdowns.
func BuildSummary(incomes []Income, expenses []Expense) Summary {
	s := Summary{
		Incomes:       incomes,
		Expenses:      expenses,
		TotalIncome:   TotalMonthlyIncome(incomes),
		TotalExpenses: TotalMonthlyExpenses(expenses),
	}
	s.Remaining = s.TotalIncome.Sub(s.TotalExpenses)

	totals := AggregateByCategory(expenses)
	byName := make(map[string][]Expense, len(totals))
	for _, e := range expenses {
		byName[e.Category] = append(byName[e.Category], e)
	}
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		g := CategoryGroup{Name: name, Total: totals[name], Expenses: byName[name]}
		if s.TotalExpenses.Cents > 0 {
			g.Percent = float64(g.Total.Cents) / float64(s.TotalExpenses.Cents) * 100
		}
		s.Categories = append(s.Categories, g)
	}
	s.AccountTotals = SortedCategoryAmounts(AggregateByAccount(expenses))
	return s
}

// CategoryTotals returns the per-category totals as a map.
func (s Summary) CategoryTotals() map[string]Money {
	m := make(map[string]Money, len(s.Categories))
	for _, g := range s.Categories {
		m[g.Name] = g.Total
	}
	return m
}

// ChartExpense is one entry of ChartData.TopExpenses.
type ChartExpense struct {
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
}

// ChartData is the JSON payload behind the dashboard charts.
type ChartData struct {
	CategoryTotals map[string]float64 `json:"category_totals"`
	TotalIncome    float64            `json:"total_income"`
	TotalExpenses  float64            `json:"total_expenses"`
	TopExpenses    []ChartExpense     `json:"top_expenses"`
}

// BuildChartData groups small categories and ranks the largest expenses.
func BuildChartData(incomes []Income, expenses []Expense) ChartData {
	grouped := GroupSmallCategories(AggregateByCategory(expenses), ChartCategoryLimit, OtherCategoryLabel)
	cd := ChartData{
		CategoryTotals: make(map[string]float64, len(grouped)),
		TotalIncome:    TotalMonthlyIncome(incomes).Float(),
		TotalExpenses:  TotalMonthlyExpenses(expenses).Float(),
		TopExpenses:    []ChartExpense{},
	}
	for name, amount := range grouped {
		cd.CategoryTotals[name] = amount.Float()
	}
	for _, r := range TopNByMonthlyAmount(expenses, ChartTopExpenses) {
		cd.TopExpenses = append(cd.TopExpenses, ChartExpense{Name: r.Name, Amount: r.Amount.Float(), Category: r.Category})
	}
	return cd
}

// YearlyRow is one category line of the yearly overview.
type YearlyRow struct {
	Category string
	Months   MonthlyDistribution
	Total    Money
}

// YearlyOverview lays a budget out month by month.
type YearlyOverview struct {
	Rows          []YearlyRow
	Income        MonthlyDistribution
	Expenses      MonthlyDistribution
	Balance       MonthlyDistribution
	TotalIncome   Money
	TotalExpenses Money
	TotalBalance  Money
}

// MonthNames are the Danish abbreviations used as column headers.
var MonthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "Maj", "Jun", "Jul", "Aug", "Sep", "Okt", "Nov", "Dec"}

// BuildYearlyOverview sums expense distributions per category and month.
// Income has no month assignment and is spread evenly.
func BuildYearlyOverview(incomes []Income, expenses []Expense) YearlyOverview {
	var yo YearlyOverview

	perCategory := make(map[string]*YearlyRow)
	var order []string
	for _, e := range expenses {
		row, ok := perCategory[e.Category]
		if !ok {
			row = &YearlyRow{Category: e.Category}
			perCategory[e.Category] = row
			order = append(order, e.Category)
		}
		dist := e.Distribution()
		for i := range dist {
			row.Months[i] = row.Months[i].Add(dist[i])
			yo.Expenses[i] = yo.Expenses[i].Add(dist[i])
		}
	}
	sort.Strings(order)
	for _, name := range order {
		row := perCategory[name]
		row.Total = row.Months.Total()
		yo.Rows = append(yo.Rows, *row)
	}

	for _, inc := range incomes {
		dist := DistributeAcrossMonths(inc.Amount, inc.Frequency, nil)
		for i := range dist {
			yo.Income[i] = yo.Income[i].Add(dist[i])
		}
	}
	for i := range yo.Balance {
		yo.Balance[i] = yo.Income[i].Sub(yo.Expenses[i])
	}
	yo.TotalIncome = yo.Income.Total()
	yo.TotalExpenses = yo.Expenses.Total()
	yo.TotalBalance = yo.Balance.Total()
	return yo
}
