package reports

import (
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// BalanceSheetRow is an account's closing balance at month end.
type BalanceSheetRow struct {
	AccountID      uuid.UUID `json:"accountId"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	ClosingBalance int64     `json:"closingBalance"`
}

// BalanceSheetSection contains the accounts and total of one classification.
type BalanceSheetSection struct {
	Label string            `json:"label"`
	Rows  []BalanceSheetRow `json:"rows"`
	Total int64             `json:"total"`
}

// BalanceSheetTotals are the two sides of the sheet.
type BalanceSheetTotals struct {
	Assets               int64 `json:"assets"`
	LiabilitiesAndEquity int64 `json:"liabilitiesAndEquity"`
}

// BalanceSheet groups trial balance closing balances into sections.
// Current-year net income is not folded into equity, so the two totals
// differ by it until the year is closed into retained earnings.
type BalanceSheet struct {
	Period      Period              `json:"period"`
	Assets      BalanceSheetSection `json:"assets"`
	Liabilities BalanceSheetSection `json:"liabilities"`
	Equity      BalanceSheetSection `json:"equity"`
	Totals      BalanceSheetTotals  `json:"totals"`
}

// BuildBalanceSheet derives the balance sheet from a trial balance.
func BuildBalanceSheet(tb TrialBalance) BalanceSheet {
	assets := BalanceSheetSection{Label: "Assets", Rows: []BalanceSheetRow{}}
	liabilities := BalanceSheetSection{Label: "Liabilities", Rows: []BalanceSheetRow{}}
	equity := BalanceSheetSection{Label: "Equity", Rows: []BalanceSheetRow{}}

	for _, row := range tb.Rows {
		line := BalanceSheetRow{AccountID: row.AccountID, Code: row.Code, Name: row.Name, ClosingBalance: row.ClosingBalance}
		switch row.Type {
		case accounts.AccountTypeAsset:
			assets.Rows = append(assets.Rows, line)
			assets.Total += line.ClosingBalance
		case accounts.AccountTypeLiability:
			liabilities.Rows = append(liabilities.Rows, line)
			liabilities.Total += line.ClosingBalance
		case accounts.AccountTypeEquity:
			equity.Rows = append(equity.Rows, line)
			equity.Total += line.ClosingBalance
		}
	}

	return BalanceSheet{
		Period:      tb.Period,
		Assets:      assets,
		Liabilities: liabilities,
		Equity:      equity,
		Totals: BalanceSheetTotals{
			Assets:               assets.Total,
			LiabilitiesAndEquity: liabilities.Total + equity.Total,
		},
	}
}
