// Package dictionary holds the curated default categories offered to new users.
package dictionary

import "github.com/finbook/finbook/internal/finance"

type CategoryDef struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

var curated = map[finance.TransactionType][]CategoryDef{
	finance.TypeIncome: {
		{Code: "salary", Label: "Salary"},
		{Code: "interest", Label: "Interest"},
		{Code: "refund", Label: "Refund"},
		{Code: "other_income", Label: "Other Income"},
	},
	finance.TypeExpense: {
		{Code: "groceries", Label: "Groceries"},
		{Code: "eating_out", Label: "Eating Out"},
		{Code: "rent", Label: "Rent"},
		{Code: "utilities", Label: "Utilities"},
		{Code: "transport", Label: "Transport"},
		{Code: "shopping", Label: "Shopping"},
		{Code: "entertainment", Label: "Entertainment"},
		{Code: "general", Label: "General"},
	},
	finance.TypeTransfer: {
		{Code: "transfer", Label: "Transfer"},
		{Code: "savings", Label: "Savings"},
	},
}

// CategoriesFor returns the curated defaults for a type, or for all types when nil.
func CategoriesFor(t *finance.TransactionType) []CategoryDef {
	if t == nil {
		out := make([]CategoryDef, 0)
		for _, typ := range finance.Types() {
			out = append(out, curated[typ]...)
		}
		return out
	}
	return curated[*t]
}
