package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/tax"
	platformshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Default tax category codes.
const (
	TaxExempt     = "EXEMPT"
	TaxNonTaxable = "NON_TAXABLE"
	TaxOutOfScope = "OUT_OF_SCOPE"
	TaxSale10     = "SALE_10"
	TaxPurchase10 = "PURCHASE_10"
)

// DefaultTaxCategories returns the categories every installation starts with.
func DefaultTaxCategories() []TaxCategory {
	return []TaxCategory{
		{ID: uuid.New(), Code: TaxExempt, Name: "Exempt", Rate: decimal.Zero},
		{ID: uuid.New(), Code: TaxNonTaxable, Name: "Non-taxable", Rate: decimal.Zero},
		{ID: uuid.New(), Code: TaxOutOfScope, Name: "Out of scope", Rate: decimal.Zero},
		{ID: uuid.New(), Code: TaxSale10, Name: "Sales 10%", Rate: decimal.RequireFromString("0.1")},
		{ID: uuid.New(), Code: TaxPurchase10, Name: "Purchases 10%", Rate: decimal.RequireFromString("0.1")},
	}
}

// ChartTemplate is one account of the starter chart.
type ChartTemplate struct {
	Code            string
	Name            string
	Type            AccountType
	TaxCategoryCode string
}

// DefaultChart is created for a business whose chart is empty.
var DefaultChart = []ChartTemplate{
	{Code: "101", Name: "Cash", Type: AccountTypeAsset, TaxCategoryCode: TaxExempt},
	{Code: "102", Name: "Bank", Type: AccountTypeAsset, TaxCategoryCode: TaxExempt},
	{Code: VATReceivableCode, Name: "VAT receivable", Type: AccountTypeAsset, TaxCategoryCode: TaxPurchase10},
	{Code: VATPayableCode, Name: "VAT payable", Type: AccountTypeLiability, TaxCategoryCode: TaxSale10},
	{Code: "401", Name: "Sales", Type: AccountTypeRevenue, TaxCategoryCode: TaxSale10},
	{Code: "501", Name: "Purchases", Type: AccountTypeExpense, TaxCategoryCode: TaxPurchase10},
	{Code: "507", Name: "Communications", Type: AccountTypeExpense, TaxCategoryCode: TaxPurchase10},
}

// SeedResult summarises what Seed changed.
type SeedResult struct {
	Business        Business `json:"business"`
	AccountsCreated int      `json:"accountsCreated"`
}

// Seed makes sure the default tax categories exist, creates the starter chart
// when the business has no accounts and points unset VAT settings at 108/205.
// Running it again changes nothing.
func (s *Service) Seed(ctx context.Context, businessID, actorID uuid.UUID) (SeedResult, error) {
	var result SeedResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockBusiness(ctx, businessID); err != nil {
			return err
		}
		defaults := DefaultTaxCategories()
		if err := tx.InsertMissingTaxCategories(ctx, defaults); err != nil {
			return err
		}
		codes := make([]string, 0, len(defaults))
		for _, c := range defaults {
			codes = append(codes, c.Code)
		}
		categories, err := tx.FindTaxCategoriesByCode(ctx, codes)
		if err != nil {
			return err
		}
		byCode := make(map[string]uuid.UUID, len(categories))
		for _, c := range categories {
			byCode[c.Code] = c.ID
		}
		chart, err := tx.ListAccounts(ctx, businessID, false)
		if err != nil {
			return err
		}
		if len(chart) == 0 {
			for _, tmpl := range DefaultChart {
				categoryID, ok := byCode[tmpl.TaxCategoryCode]
				if !ok {
					return fmt.Errorf("tax category %s missing after seeding", tmpl.TaxCategoryCode)
				}
				if _, err := tx.InsertAccount(ctx, Account{
					ID:            uuid.New(),
					BusinessID:    businessID,
					Code:          tmpl.Code,
					Name:          tmpl.Name,
					Type:          tmpl.Type,
					TaxCategoryID: &categoryID,
					IsActive:      true,
				}); err != nil {
					return err
				}
				result.AccountsCreated++
			}
		}
		business, err := tx.GetBusiness(ctx, businessID)
		if err != nil {
			return err
		}
		if business.VATReceivableAccountID == nil || business.VATPayableAccountID == nil {
			vat, err := tx.FindAccountsByCode(ctx, businessID, []string{VATReceivableCode, VATPayableCode})
			if err != nil {
				return err
			}
			for _, a := range vat {
				id := a.ID
				switch {
				case a.Code == VATReceivableCode && business.VATReceivableAccountID == nil:
					business.VATReceivableAccountID = &id
				case a.Code == VATPayableCode && business.VATPayableAccountID == nil:
					business.VATPayableAccountID = &id
				}
			}
			if business, err = tx.UpdateBusinessSettings(ctx, business); err != nil {
				return err
			}
		}
		result.Business = business
		return nil
	})
	if err != nil {
		return SeedResult{}, shared.Internal("seed business", err)
	}
	if result.AccountsCreated > 0 {
		s.bump(ctx, businessID)
	}
	s.record(ctx, platformshared.AuditLog{
		BusinessID: businessID,
		ActorID:    actorID,
		Action:     "business.seed",
		Entity:     "business",
		EntityID:   businessID.String(),
		Meta:       map[string]any{"accounts_created": result.AccountsCreated},
	})
	return result, nil
}

// CreateBusinessInput describes a new business. Zero values fall back to
// tax-inclusive entry and a January fiscal year.
type CreateBusinessInput struct {
	ActorID              uuid.UUID
	Name                 string
	AccountingMode       tax.Mode
	FiscalYearStartMonth int
}

// CreateBusiness registers a business and seeds its starter chart.
func (s *Service) CreateBusiness(ctx context.Context, in CreateBusinessInput) (SeedResult, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return SeedResult{}, shared.Malformed("business name is required")
	}
	mode := in.AccountingMode
	if mode == "" {
		mode = tax.ModeInclusive
	}
	if !mode.Valid() {
		return SeedResult{}, shared.Malformed("unknown accounting mode %q", mode)
	}
	month := in.FiscalYearStartMonth
	if month == 0 {
		month = 1
	}
	if month < 1 || month > 12 {
		return SeedResult{}, shared.Malformed("fiscal year start month must be between 1 and 12")
	}
	business, err := s.repo.InsertBusiness(ctx, Business{
		ID:                   uuid.New(),
		Name:                 name,
		AccountingMode:       mode,
		FiscalYearStartMonth: month,
	})
	if err != nil {
		return SeedResult{}, shared.Internal("create business", err)
	}
	s.record(ctx, platformshared.AuditLog{
		BusinessID: business.ID,
		ActorID:    in.ActorID,
		Action:     "business.create",
		Entity:     "business",
		EntityID:   business.ID.String(),
		Meta:       map[string]any{"accounting_mode": string(mode)},
	})
	return s.Seed(ctx, business.ID, in.ActorID)
}

// ListTaxCategories returns every tax category ordered by code.
func (s *Service) ListTaxCategories(ctx context.Context) ([]TaxCategory, error) {
	categories, err := s.repo.ListTaxCategories(ctx)
	if err != nil {
		return nil, shared.Internal("list tax categories", err)
	}
	return categories, nil
}

// UpdateTaxCategoryRate changes the rate of a category. The rate applies to
// entries written afterwards; posted tax lines are not recomputed.
func (s *Service) UpdateTaxCategoryRate(ctx context.Context, id uuid.UUID, rate decimal.Decimal) (TaxCategory, error) {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return TaxCategory{}, shared.Malformed("tax rate must be between 0 and 1")
	}
	updated, err := s.repo.UpdateTaxCategoryRate(ctx, id, rate)
	if err != nil {
		return TaxCategory{}, shared.Internal("update tax category", err)
	}
	s.logger.Info("tax category rate updated",
		slog.String("tax_category_id", id.String()),
		slog.String("code", updated.Code),
		slog.String("rate", updated.Rate.String()))
	return updated, nil
}
