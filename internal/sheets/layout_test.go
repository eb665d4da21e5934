package sheets

import (
	"testing"

	"budget/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowsLayout(t *testing.T) {
	yo := core.BuildYearlyOverview(
		[]core.Income{{Person: "A", Amount: core.Kroner(1000), Frequency: core.Monthly}},
		[]core.Expense{
			{Name: "Husleje", Category: "Bolig", Amount: core.Kroner(400), Frequency: core.Monthly},
			{Name: "Forsikring", Category: "Forsikring", Amount: core.Kroner(1200), Frequency: core.Yearly, Months: []int{3}},
		},
	)

	rows := Rows(yo)
	require.Len(t, rows, 1+2+3)

	assert.Equal(t, LabelCategory, rows[0][0].Text)
	assert.Equal(t, "Maj", rows[0][5].Text)
	assert.Equal(t, LabelTotal, rows[0][13].Text)

	assert.Equal(t, "Bolig", rows[1][0].Text)
	assert.Equal(t, "Forsikring", rows[2][0].Text)
	assert.Equal(t, core.Kroner(1200), rows[2][3].Amount)
	assert.True(t, rows[2][4].Amount.IsZero())

	balance := rows[len(rows)-1]
	assert.Equal(t, LabelBalance, balance[0].Text)
	assert.Equal(t, core.Kroner(600-1200), balance[3].Amount)
	assert.Equal(t, core.Kroner(12*1000-12*400-1200), balance[13].Amount)
	for _, r := range rows {
		assert.Len(t, r, 14)
	}
}
