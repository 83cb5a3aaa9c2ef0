package accounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/tax"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Well-known codes used when a business has no VAT accounts configured.
const (
	VATReceivableCode = "108"
	VATPayableCode    = "205"
)

var typeRank = map[AccountType]int{
	AccountTypeAsset:     0,
	AccountTypeLiability: 1,
	AccountTypeEquity:    2,
	AccountTypeRevenue:   3,
	AccountTypeExpense:   4,
}

// Valid reports whether t is one of the five account types.
func (t AccountType) Valid() bool {
	_, ok := typeRank[t]
	return ok
}

// Rank orders types the way reports list them.
func (t AccountType) Rank() int {
	if r, ok := typeRank[t]; ok {
		return r
	}
	return len(typeRank)
}

// DebitNormal reports whether balances of this type grow with debits.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// NetByType signs a movement by the account's natural side.
func NetByType(t AccountType, debit, credit int64) int64 {
	if t.DebitNormal() {
		return debit - credit
	}
	return credit - debit
}

// Account models a chart of accounts node.
type Account struct {
	ID            uuid.UUID   `json:"id"`
	BusinessID    uuid.UUID   `json:"businessId"`
	Code          string      `json:"code"`
	Name          string      `json:"name"`
	Type          AccountType `json:"type"`
	TaxCategoryID *uuid.UUID  `json:"taxCategoryId,omitempty"`
	IsActive      bool        `json:"isActive"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// TaxCategory is a named tax rate.
type TaxCategory struct {
	ID   uuid.UUID       `json:"id"`
	Code string          `json:"code"`
	Name string          `json:"name"`
	Rate decimal.Decimal `json:"rate"`
}

// Business carries the per-business accounting settings.
type Business struct {
	ID                     uuid.UUID  `json:"id"`
	Name                   string     `json:"name"`
	AccountingMode         tax.Mode   `json:"accountingMode"`
	VATPayableAccountID    *uuid.UUID `json:"vatPayableAccountId,omitempty"`
	VATReceivableAccountID *uuid.UUID `json:"vatReceivableAccountId,omitempty"`
	FiscalYearStartMonth   int        `json:"fiscalYearStartMonth"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

// FiscalMonth returns the fiscal year start month, defaulting to January.
func (b Business) FiscalMonth() int {
	if b.FiscalYearStartMonth < 1 || b.FiscalYearStartMonth > 12 {
		return 1
	}
	return b.FiscalYearStartMonth
}

// AccountBalance is an opening balance already signed by the account's natural side.
type AccountBalance struct {
	BusinessID uuid.UUID `json:"businessId"`
	AccountID  uuid.UUID `json:"accountId"`
	Amount     int64     `json:"amount"`
}

// OpeningBalanceRow lists an active account with its opening balance.
type OpeningBalanceRow struct {
	AccountID   uuid.UUID   `json:"accountId"`
	AccountCode string      `json:"accountCode"`
	AccountName string      `json:"accountName"`
	AccountType AccountType `json:"accountType"`
	Amount      int64       `json:"amount"`
}
