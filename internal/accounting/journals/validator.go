package journals

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/tax"
)

// ReferenceLookup resolves the accounts, categories and settings an entry refers to.
type ReferenceLookup interface {
	GetBusiness(ctx context.Context, id uuid.UUID) (accounts.Business, error)
	FindAccounts(ctx context.Context, businessID uuid.UUID, ids []uuid.UUID) ([]accounts.Account, error)
	FindAccountsByCode(ctx context.Context, businessID uuid.UUID, codes []string) ([]accounts.Account, error)
	FindTaxCategories(ctx context.Context, ids []uuid.UUID) ([]accounts.TaxCategory, error)
}

// PeriodGuard rejects dates inside closed periods.
type PeriodGuard interface {
	AssertUnlocked(ctx context.Context, businessID uuid.UUID, date time.Time) error
}

// Validator runs the submission pipeline: structure, balance, references,
// tax split, post-split balance, then the period lock.
type Validator struct {
	lookup ReferenceLookup
	guard  PeriodGuard
}

// NewValidator constructs a Validator.
func NewValidator(lookup ReferenceLookup, guard PeriodGuard) *Validator {
	return &Validator{lookup: lookup, guard: guard}
}

// Validate checks the input and returns the lines to persist.
func (v *Validator) Validate(ctx context.Context, in EntryInput) (Prepared, error) {
	date, err := checkStructure(in)
	if err != nil {
		return Prepared{}, err
	}
	lines := in.taxLines()
	debit, credit, err := tax.Totals(lines)
	if err != nil {
		return Prepared{}, shared.Malformed("line totals exceed the supported amount range")
	}
	if debit != credit {
		return Prepared{}, shared.Unbalanced(debit, credit)
	}

	business, err := v.lookup.GetBusiness(ctx, in.BusinessID)
	if err != nil {
		return Prepared{}, shared.Internal("load business", err)
	}
	cfg, err := v.taxConfig(ctx, business, lines)
	if err != nil {
		return Prepared{}, err
	}

	final, err := tax.Split(lines, cfg)
	if err != nil {
		return Prepared{}, shared.Malformed("tax totals exceed the supported amount range")
	}
	if debit, credit, err = tax.Totals(final); err != nil || debit != credit {
		return Prepared{}, shared.InternalImbalance(debit, credit)
	}

	if v.guard != nil {
		if err := v.guard.AssertUnlocked(ctx, in.BusinessID, date); err != nil {
			return Prepared{}, err
		}
	}
	return Prepared{Business: business, Date: date, Description: in.Description, Lines: final}, nil
}

func checkStructure(in EntryInput) (time.Time, error) {
	if in.BusinessID == uuid.Nil {
		return time.Time{}, shared.Malformed("business id required")
	}
	date, err := ParseEntryDate(in.EntryDate)
	if err != nil {
		return time.Time{}, err
	}
	if len(in.Lines) < 2 {
		return time.Time{}, shared.Malformed("journal requires at least two lines")
	}
	for idx, line := range in.Lines {
		if line.AccountID == uuid.Nil {
			return time.Time{}, shared.Malformed("line %d missing account", idx+1)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return time.Time{}, shared.Malformed("line %d has a negative amount", idx+1)
		}
	}
	return date, nil
}

// taxConfig resolves accounts, categories and VAT accounts for the splitter.
func (v *Validator) taxConfig(ctx context.Context, business accounts.Business, lines []tax.Line) (tax.Config, error) {
	accountIDs := uniqueIDs(lines, func(l tax.Line) *uuid.UUID { id := l.AccountID; return &id })
	found, err := v.lookup.FindAccounts(ctx, business.ID, accountIDs)
	if err != nil {
		return tax.Config{}, shared.Internal("find accounts", err)
	}
	byID := make(map[uuid.UUID]accounts.Account, len(found))
	for _, a := range found {
		if a.IsActive {
			byID[a.ID] = a
		}
	}
	if missing := missingIDs(accountIDs, func(id uuid.UUID) bool { _, ok := byID[id]; return ok }); len(missing) > 0 {
		return tax.Config{}, shared.UnknownReference("account", missing...)
	}

	explicit := uniqueIDs(lines, func(l tax.Line) *uuid.UUID { return l.TaxCategoryID })
	categoryIDs := append([]uuid.UUID(nil), explicit...)
	for _, a := range byID {
		if a.TaxCategoryID != nil {
			categoryIDs = append(categoryIDs, *a.TaxCategoryID)
		}
	}
	categories, err := v.lookup.FindTaxCategories(ctx, dedupe(categoryIDs))
	if err != nil {
		return tax.Config{}, shared.Internal("find tax categories", err)
	}
	rates := make(map[uuid.UUID]decimal.Decimal, len(categories))
	for _, c := range categories {
		rates[c.ID] = c.Rate
	}
	if missing := missingIDs(explicit, func(id uuid.UUID) bool { _, ok := rates[id]; return ok }); len(missing) > 0 {
		return tax.Config{}, shared.UnknownReference("tax category", missing...)
	}

	defaults := make(map[uuid.UUID]tax.AccountDefault)
	for _, a := range byID {
		if a.TaxCategoryID == nil {
			continue
		}
		defaults[a.ID] = tax.AccountDefault{TaxCategoryID: *a.TaxCategoryID, Rate: rates[*a.TaxCategoryID]}
	}

	cfg := tax.Config{Mode: business.AccountingMode, AccountDefaults: defaults, CategoryRates: rates}
	if business.AccountingMode == tax.ModeExclusive {
		input, output, err := v.vatAccounts(ctx, business)
		if err != nil {
			return tax.Config{}, err
		}
		cfg.InputVATAccountID = input
		cfg.OutputVATAccountID = output
	}
	return cfg, nil
}

// vatAccounts returns the configured VAT accounts, falling back to the
// well-known codes. A nil result degrades the split to passthrough.
func (v *Validator) vatAccounts(ctx context.Context, business accounts.Business) (input, output *uuid.UUID, err error) {
	var configured []uuid.UUID
	if business.VATReceivableAccountID != nil {
		configured = append(configured, *business.VATReceivableAccountID)
	}
	if business.VATPayableAccountID != nil {
		configured = append(configured, *business.VATPayableAccountID)
	}
	if len(configured) > 0 {
		found, err := v.lookup.FindAccounts(ctx, business.ID, configured)
		if err != nil {
			return nil, nil, shared.Internal("find vat accounts", err)
		}
		for _, a := range found {
			id := a.ID
			if business.VATReceivableAccountID != nil && id == *business.VATReceivableAccountID {
				input = &id
			}
			if business.VATPayableAccountID != nil && id == *business.VATPayableAccountID {
				output = &id
			}
		}
	}
	if input != nil && output != nil {
		return input, output, nil
	}
	byCode, err := v.lookup.FindAccountsByCode(ctx, business.ID, []string{accounts.VATReceivableCode, accounts.VATPayableCode})
	if err != nil {
		return nil, nil, shared.Internal("find vat accounts by code", err)
	}
	for _, a := range byCode {
		id := a.ID
		switch {
		case input == nil && a.Code == accounts.VATReceivableCode:
			input = &id
		case output == nil && a.Code == accounts.VATPayableCode:
			output = &id
		}
	}
	return input, output, nil
}

func uniqueIDs(lines []tax.Line, pick func(tax.Line) *uuid.UUID) []uuid.UUID {
	var ids []uuid.UUID
	for _, l := range lines {
		if id := pick(l); id != nil {
			ids = append(ids, *id)
		}
	}
	return dedupe(ids)
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func missingIDs(ids []uuid.UUID, known func(uuid.UUID) bool) []uuid.UUID {
	var missing []uuid.UUID
	for _, id := range ids {
		if !known(id) {
			missing = append(missing, id)
		}
	}
	return missing
}
