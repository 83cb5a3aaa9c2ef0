package reports

import (
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// Sums holds raw debit and credit totals of an account over a range.
type Sums struct {
	Debit  int64 `json:"debit"`
	Credit int64 `json:"credit"`
}

// Totals are plain, unsigned sums of debits and credits.
type Totals struct {
	Debit  int64 `json:"debit"`
	Credit int64 `json:"credit"`
}

// TrialBalanceRow rolls an account forward through the month.
type TrialBalanceRow struct {
	AccountID      uuid.UUID            `json:"accountId"`
	Code           string               `json:"code"`
	Name           string               `json:"name"`
	Type           accounts.AccountType `json:"type"`
	OpeningBalance int64                `json:"openingBalance"`
	Debit          int64                `json:"debit"`
	Credit         int64                `json:"credit"`
	ClosingBalance int64                `json:"closingBalance"`
}

// TrialBalance is the per-account opening, movement and closing view of a month.
type TrialBalance struct {
	Period Period            `json:"period"`
	Rows   []TrialBalanceRow `json:"rows"`
	Totals Totals            `json:"totals"`
}

// BuildTrialBalance rolls every account forward. opening holds manual
// opening balances, before the fiscal-year movement prior to the month and
// current the movement inside it.
func BuildTrialBalance(period Period, chart []accounts.Account, opening map[uuid.UUID]int64, before, current map[uuid.UUID]Sums) TrialBalance {
	ordered := append([]accounts.Account(nil), chart...)
	accounts.SortByTypeAndCode(ordered)

	tb := TrialBalance{Period: period, Rows: make([]TrialBalanceRow, 0, len(ordered))}
	for _, acc := range ordered {
		prior := before[acc.ID]
		moved := current[acc.ID]
		row := TrialBalanceRow{
			AccountID:      acc.ID,
			Code:           acc.Code,
			Name:           acc.Name,
			Type:           acc.Type,
			OpeningBalance: opening[acc.ID] + accounts.NetByType(acc.Type, prior.Debit, prior.Credit),
			Debit:          moved.Debit,
			Credit:         moved.Credit,
		}
		row.ClosingBalance = row.OpeningBalance + accounts.NetByType(acc.Type, row.Debit, row.Credit)
		tb.Rows = append(tb.Rows, row)
		tb.Totals.Debit += row.Debit
		tb.Totals.Credit += row.Credit
	}
	return tb
}
