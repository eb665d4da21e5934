package core

// DefaultCategory is a category every new budget starts with.
type DefaultCategory struct {
	Name string
	Icon string
}

// DefaultCategories are seeded for the demo user and each new user.
var DefaultCategories = []DefaultCategory{
	{"Bolig", "house"},
	{"Forbrug", "zap"},
	{"Transport", "car"},
	{"Børn", "baby"},
	{"Mad", "utensils"},
	{"Forsikring", "shield"},
	{"Abonnementer", "tv"},
	{"Opsparing", "piggy-bank"},
	{"Andet", "more-horizontal"},
}

type demoIncome struct {
	person    string
	kroner    int64
	frequency Frequency
}

type demoExpense struct {
	name      string
	category  string
	kroner    int64
	frequency Frequency
	account   string
}

var demoIncomes = []demoIncome{
	{"Person 1", 28000, Monthly},
	{"Person 2", 22000, Monthly},
	{"Bonus", 30000, SemiAnnual},
}

var demoExtraIncome = demoIncome{"Børnepenge", 4800, Quarterly}

// A typical Danish household. Accounts are only shown in the advanced demo.
var demoExpenses = []demoExpense{
	{"Husleje/boliglån", "Bolig", 12000, Monthly, "Budgetkonto"},
	{"Ejendomsskat", "Bolig", 18000, Yearly, "Budgetkonto"},
	{"Varme", "Forbrug", 800, Monthly, "Budgetkonto"},
	{"El", "Forbrug", 600, Monthly, "Budgetkonto"},
	{"Vand", "Forbrug", 2400, Quarterly, "Budgetkonto"},
	{"Internet", "Forbrug", 299, Monthly, "Fælleskonto"},
	{"Bil - lån", "Transport", 2500, Monthly, "Budgetkonto"},
	{"Benzin", "Transport", 1500, Monthly, "Fælleskonto"},
	{"Vægtafgift", "Transport", 3600, Yearly, "Budgetkonto"},
	{"Bilforsikring", "Transport", 6000, Yearly, "Budgetkonto"},
	{"Bilservice", "Transport", 4500, SemiAnnual, "Budgetkonto"},
	{"Institution", "Børn", 3200, Monthly, "Budgetkonto"},
	{"Fritidsaktiviteter", "Børn", 400, Monthly, "Fælleskonto"},
	{"Dagligvarer", "Mad", 6000, Monthly, "Fælleskonto"},
	{"Indboforsikring", "Forsikring", 1800, Yearly, "Budgetkonto"},
	{"Ulykkesforsikring", "Forsikring", 1200, Yearly, "Budgetkonto"},
	{"Tandlægeforsikring", "Forsikring", 600, Quarterly, "Budgetkonto"},
	{"Netflix", "Abonnementer", 129, Monthly, "Fælleskonto"},
	{"Spotify", "Abonnementer", 99, Monthly, "Fælleskonto"},
	{"Fitness", "Abonnementer", 299, Monthly, "Fælleskonto"},
	{"Opsparing", "Opsparing", 3000, Monthly, "Opsparingskonto"},
	{"Telefon", "Andet", 199, Monthly, "Fælleskonto"},
}

// DemoIncome returns the read-only demo income. The advanced variant adds
// an extra income source.
func DemoIncome(advanced bool) []Income {
	src := demoIncomes
	if advanced {
		src = append(append([]demoIncome(nil), demoIncomes...), demoExtraIncome)
	}
	out := make([]Income, len(src))
	for i, d := range src {
		out[i] = Income{
			ID:        int64(i + 1),
			UserID:    DemoUserID,
			Person:    d.person,
			Amount:    Kroner(d.kroner),
			Frequency: d.frequency,
		}
	}
	return out
}

// DemoExpenses returns the read-only demo expenses. Only the advanced
// variant assigns accounts.
func DemoExpenses(advanced bool) []Expense {
	out := make([]Expense, len(demoExpenses))
	for i, d := range demoExpenses {
		e := Expense{
			ID:        int64(i + 1),
			UserID:    DemoUserID,
			Name:      d.name,
			Category:  d.category,
			Amount:    Kroner(d.kroner),
			Frequency: d.frequency,
		}
		if advanced {
			e.Account = d.account
		}
		out[i] = e
	}
	return out
}

// DemoAccounts lists the accounts used by the advanced demo.
func DemoAccounts(advanced bool) []Account {
	if !advanced {
		return nil
	}
	seen := map[string]bool{}
	var out []Account
	for _, d := range demoExpenses {
		if seen[d.account] {
			continue
		}
		seen[d.account] = true
		out = append(out, Account{ID: int64(len(out) + 1), UserID: DemoUserID, Name: d.account})
	}
	return out
}

// DemoCategories returns the default categories as owned by the demo user.
func DemoCategories() []Category {
	out := make([]Category, len(DefaultCategories))
	for i, c := range DefaultCategories {
		out[i] = Category{ID: int64(i + 1), UserID: DemoUserID, Name: c.Name, Icon: c.Icon}
	}
	return out
}
