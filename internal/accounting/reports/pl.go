package reports

import (
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// IncomeStatementRow is a revenue or expense account's month and year-to-date result.
type IncomeStatementRow struct {
	AccountID  uuid.UUID            `json:"accountId"`
	Code       string               `json:"code"`
	Name       string               `json:"name"`
	Type       accounts.AccountType `json:"type"`
	Current    int64                `json:"current"`
	YearToDate int64                `json:"yearToDate"`
}

// IncomeTotals summarises revenue against expense.
type IncomeTotals struct {
	Revenue   int64 `json:"revenue"`
	Expense   int64 `json:"expense"`
	NetIncome int64 `json:"netIncome"`
}

// IncomeStatement reports the month next to the fiscal year to date.
type IncomeStatement struct {
	Period     Period               `json:"period"`
	Rows       []IncomeStatementRow `json:"rows"`
	Totals     IncomeTotals         `json:"totals"`
	YearToDate IncomeTotals         `json:"yearToDate"`
}

// BuildIncomeStatement aggregates revenue and expense accounts; other types are ignored.
func BuildIncomeStatement(period Period, chart []accounts.Account, current, ytd map[uuid.UUID]Sums) IncomeStatement {
	ordered := append([]accounts.Account(nil), chart...)
	accounts.SortByTypeAndCode(ordered)

	is := IncomeStatement{Period: period, Rows: []IncomeStatementRow{}}
	for _, acc := range ordered {
		if acc.Type != accounts.AccountTypeRevenue && acc.Type != accounts.AccountTypeExpense {
			continue
		}
		month := current[acc.ID]
		year := ytd[acc.ID]
		row := IncomeStatementRow{
			AccountID:  acc.ID,
			Code:       acc.Code,
			Name:       acc.Name,
			Type:       acc.Type,
			Current:    accounts.NetByType(acc.Type, month.Debit, month.Credit),
			YearToDate: accounts.NetByType(acc.Type, year.Debit, year.Credit),
		}
		if acc.Type == accounts.AccountTypeRevenue {
			is.Totals.Revenue += row.Current
			is.YearToDate.Revenue += row.YearToDate
		} else {
			is.Totals.Expense += row.Current
			is.YearToDate.Expense += row.YearToDate
		}
		is.Rows = append(is.Rows, row)
	}
	is.Totals.NetIncome = is.Totals.Revenue - is.Totals.Expense
	is.YearToDate.NetIncome = is.YearToDate.Revenue - is.YearToDate.Expense
	return is
}
