package accountinghttp

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/tax"
)

type lineRequest struct {
	AccountID     string  `json:"accountId" validate:"required,uuid"`
	Debit         int64   `json:"debit" validate:"gte=0"`
	Credit        int64   `json:"credit" validate:"gte=0"`
	Memo          string  `json:"memo" validate:"max=500"`
	TaxCategoryID *string `json:"taxCategoryId" validate:"omitempty,uuid"`
}

type entryRequest struct {
	EntryDate   string        `json:"entryDate" validate:"required"`
	Description string        `json:"description" validate:"max=1000"`
	Lines       []lineRequest `json:"lines" validate:"required,min=2,dive"`
}

func (req entryRequest) toInput(businessID, actorID uuid.UUID) journals.EntryInput {
	lines := make([]journals.LineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, journals.LineInput{
			AccountID:     uuid.MustParse(l.AccountID),
			Debit:         l.Debit,
			Credit:        l.Credit,
			Memo:          strings.TrimSpace(l.Memo),
			TaxCategoryID: parseOptionalID(l.TaxCategoryID),
		})
	}
	return journals.EntryInput{
		BusinessID:  businessID,
		ActorID:     actorID,
		EntryDate:   strings.TrimSpace(req.EntryDate),
		Description: strings.TrimSpace(req.Description),
		Lines:       lines,
	}
}

type closeRequest struct {
	PeriodType string  `json:"periodType" validate:"required,oneof=monthly yearly"`
	StartDate  string  `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate    string  `json:"endDate" validate:"required,datetime=2006-01-02"`
	Notes      *string `json:"notes" validate:"omitempty,max=1000"`
}

func (req closeRequest) toInput(businessID, actorID uuid.UUID) periods.CloseInput {
	start, _ := time.Parse(time.DateOnly, req.StartDate)
	end, _ := time.Parse(time.DateOnly, req.EndDate)
	return periods.CloseInput{
		BusinessID: businessID,
		PeriodType: periods.PeriodType(req.PeriodType),
		StartDate:  start,
		EndDate:    end,
		ActorID:    actorID,
		Notes:      req.Notes,
	}
}

type reopenRequest struct {
	Notes *string `json:"notes" validate:"omitempty,max=1000"`
}

type settingsRequest struct {
	Name                   *string `json:"name" validate:"omitempty,min=1,max=200"`
	AccountingMode         *string `json:"accountingMode" validate:"omitempty,oneof=TAX_INCLUSIVE TAX_EXCLUSIVE"`
	VATPayableAccountID    *string `json:"vatPayableAccountId" validate:"omitempty,uuid"`
	VATReceivableAccountID *string `json:"vatReceivableAccountId" validate:"omitempty,uuid"`
	FiscalYearStartMonth   *int    `json:"fiscalYearStartMonth" validate:"omitempty,min=1,max=12"`
}

func (req settingsRequest) toInput(businessID, actorID uuid.UUID) accounts.SettingsInput {
	in := accounts.SettingsInput{
		BusinessID:             businessID,
		ActorID:                actorID,
		Name:                   req.Name,
		VATPayableAccountID:    parseOptionalID(req.VATPayableAccountID),
		VATReceivableAccountID: parseOptionalID(req.VATReceivableAccountID),
		FiscalYearStartMonth:   req.FiscalYearStartMonth,
	}
	if req.AccountingMode != nil {
		mode := tax.Mode(*req.AccountingMode)
		in.AccountingMode = &mode
	}
	return in
}

type balanceRequest struct {
	AccountID string `json:"accountId" validate:"required,uuid"`
	Amount    int64  `json:"amount"`
}

type balancesRequest struct {
	Balances []balanceRequest `json:"balances" validate:"dive"`
}

func (req balancesRequest) toInput(businessID, actorID uuid.UUID) accounts.ReplaceBalancesInput {
	in := accounts.ReplaceBalancesInput{BusinessID: businessID, ActorID: actorID}
	for _, b := range req.Balances {
		in.Balances = append(in.Balances, accounts.BalanceInput{AccountID: uuid.MustParse(b.AccountID), Amount: b.Amount})
	}
	return in
}

type createBusinessRequest struct {
	Name                 string `json:"name" validate:"required,max=200"`
	AccountingMode       string `json:"accountingMode" validate:"omitempty,oneof=TAX_INCLUSIVE TAX_EXCLUSIVE"`
	FiscalYearStartMonth int    `json:"fiscalYearStartMonth" validate:"omitempty,min=1,max=12"`
}

func (req createBusinessRequest) toInput(actorID uuid.UUID) accounts.CreateBusinessInput {
	return accounts.CreateBusinessInput{
		ActorID:              actorID,
		Name:                 strings.TrimSpace(req.Name),
		AccountingMode:       tax.Mode(req.AccountingMode),
		FiscalYearStartMonth: req.FiscalYearStartMonth,
	}
}

type createAccountRequest struct {
	Code          string `json:"code" validate:"max=20"`
	Name          string `json:"name" validate:"required,max=200"`
	Type          string `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	TaxCategoryID string `json:"taxCategoryId" validate:"required,uuid"`
}

func (req createAccountRequest) toInput(businessID, actorID uuid.UUID) accounts.CreateAccountInput {
	return accounts.CreateAccountInput{
		BusinessID:    businessID,
		ActorID:       actorID,
		Code:          strings.TrimSpace(req.Code),
		Name:          strings.TrimSpace(req.Name),
		Type:          accounts.AccountType(req.Type),
		TaxCategoryID: uuid.MustParse(req.TaxCategoryID),
	}
}

type updateAccountRequest struct {
	Code          *string `json:"code" validate:"omitempty,min=1,max=20"`
	Name          *string `json:"name" validate:"omitempty,min=1,max=200"`
	Type          *string `json:"type" validate:"omitempty,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	TaxCategoryID *string `json:"taxCategoryId" validate:"omitempty,uuid"`
}

func (req updateAccountRequest) toInput(businessID, accountID, actorID uuid.UUID) accounts.UpdateAccountInput {
	in := accounts.UpdateAccountInput{
		BusinessID:    businessID,
		AccountID:     accountID,
		ActorID:       actorID,
		Code:          req.Code,
		Name:          req.Name,
		TaxCategoryID: parseOptionalID(req.TaxCategoryID),
	}
	if req.Type != nil {
		t := accounts.AccountType(*req.Type)
		in.Type = &t
	}
	return in
}

type taxRateRequest struct {
	Rate *decimal.Decimal `json:"rate" validate:"required"`
}

func parseOptionalID(raw *string) *uuid.UUID {
	if raw == nil {
		return nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil
	}
	return &id
}

// validationError flattens validator failures into a malformed-input error.
func validationError(err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return shared.Malformed("%v", err)
	}
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return shared.Malformed("%s", strings.Join(parts, "; "))
}
