// Package tax splits tax-inclusive journal lines into principal and tax portions.
package tax

import (
	"errors"
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Mode selects how line amounts are interpreted.
type Mode string

const (
	// ModeInclusive posts gross amounts unchanged.
	ModeInclusive Mode = "TAX_INCLUSIVE"
	// ModeExclusive splits gross amounts into principal and VAT lines.
	ModeExclusive Mode = "TAX_EXCLUSIVE"
)

// Valid reports whether m is a known accounting mode.
func (m Mode) Valid() bool {
	return m == ModeInclusive || m == ModeExclusive
}

const (
	// InputVATMemo labels the synthesized debit-side VAT line.
	InputVATMemo = "Input VAT"
	// OutputVATMemo labels the synthesized credit-side VAT line.
	OutputVATMemo = "Output VAT"
)

// ErrAmountOverflow reports a total that does not fit in int64 minor units.
var ErrAmountOverflow = errors.New("tax: amount total overflows int64")

// Line is a journal line as seen by the splitter.
type Line struct {
	AccountID     uuid.UUID  `json:"accountId"`
	Debit         int64      `json:"debit"`
	Credit        int64      `json:"credit"`
	Memo          string     `json:"memo,omitempty"`
	TaxCategoryID *uuid.UUID `json:"taxCategoryId,omitempty"`
}

// AccountDefault is the tax category attached to an account.
type AccountDefault struct {
	TaxCategoryID uuid.UUID
	Rate          decimal.Decimal
}

// Source records where a line's effective category came from.
type Source int

const (
	// SourceNone means the line carries no tax.
	SourceNone Source = iota
	// SourceExplicit means the line named its own category.
	SourceExplicit
	// SourceAccountDefault means the category came from the account.
	SourceAccountDefault
)

// Resolution is the effective category and rate for a line.
type Resolution struct {
	CategoryID *uuid.UUID
	Rate       decimal.Decimal
	Source     Source
}

// Taxable reports whether the resolution carries a positive rate.
func (r Resolution) Taxable() bool {
	return r.CategoryID != nil && r.Rate.IsPositive()
}

// Config carries everything the splitter needs to process one entry.
type Config struct {
	Mode            Mode
	AccountDefaults map[uuid.UUID]AccountDefault
	CategoryRates   map[uuid.UUID]decimal.Decimal
	// InputVATAccountID receives the debit-side tax total. Nil degrades exclusive mode to passthrough.
	InputVATAccountID *uuid.UUID
	// OutputVATAccountID receives the credit-side tax total. Nil degrades exclusive mode to passthrough.
	OutputVATAccountID *uuid.UUID
}

// Resolve picks the effective category: explicit first, then the account default.
// Lines with neither resolve to an explicit no-tax marker.
func Resolve(line Line, defaults map[uuid.UUID]AccountDefault, rates map[uuid.UUID]decimal.Decimal) Resolution {
	if line.TaxCategoryID != nil {
		id := *line.TaxCategoryID
		return Resolution{CategoryID: &id, Rate: rates[id], Source: SourceExplicit}
	}
	if def, ok := defaults[line.AccountID]; ok {
		id := def.TaxCategoryID
		rate, known := rates[id]
		if !known {
			rate = def.Rate
		}
		return Resolution{CategoryID: &id, Rate: rate, Source: SourceAccountDefault}
	}
	return Resolution{Rate: decimal.Zero, Source: SourceNone}
}

// SplitGross returns principal = round(gross/(1+rate)) and tax = gross - principal.
// Rounding is half away from zero on the minor unit.
func SplitGross(gross int64, rate decimal.Decimal) (principal, tax int64) {
	if gross == 0 || !rate.IsPositive() {
		return gross, 0
	}
	divisor := decimal.NewFromInt(1).Add(rate)
	quotient, remainder := decimal.NewFromInt(gross).QuoRem(divisor, 0)
	principal = quotient.IntPart()
	if remainder.Abs().Mul(decimal.NewFromInt(2)).GreaterThanOrEqual(divisor) {
		if gross > 0 {
			principal++
		} else {
			principal--
		}
	}
	return principal, gross - principal
}

// Split applies the configured mode to the lines and returns a new slice.
// The input is never mutated.
func Split(lines []Line, cfg Config) ([]Line, error) {
	if cfg.Mode != ModeExclusive || cfg.InputVATAccountID == nil || cfg.OutputVATAccountID == nil {
		return passthrough(lines, cfg, cfg.Mode != ModeExclusive), nil
	}

	out := make([]Line, 0, len(lines)+2)
	var debitTax, creditTax int64
	for _, line := range lines {
		res := Resolve(line, cfg.AccountDefaults, cfg.CategoryRates)
		if !res.Taxable() {
			out = append(out, withCategory(line, res.CategoryID))
			continue
		}
		next := withCategory(line, res.CategoryID)
		var err error
		switch {
		case line.Debit > 0 && line.Credit == 0:
			principal, tax := SplitGross(line.Debit, res.Rate)
			next.Debit = principal
			debitTax, err = addAmount(debitTax, tax)
		case line.Credit > 0 && line.Debit == 0:
			principal, tax := SplitGross(line.Credit, res.Rate)
			next.Credit = principal
			creditTax, err = addAmount(creditTax, tax)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, next)
	}
	if debitTax > 0 {
		out = append(out, Line{AccountID: *cfg.InputVATAccountID, Debit: debitTax, Memo: InputVATMemo})
	}
	if creditTax > 0 {
		out = append(out, Line{AccountID: *cfg.OutputVATAccountID, Credit: creditTax, Memo: OutputVATMemo})
	}
	return out, nil
}

// passthrough copies lines. In inclusive mode the effective category is
// attached; when exclusive mode degrades the explicit category is kept as is.
func passthrough(lines []Line, cfg Config, attach bool) []Line {
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		if !attach {
			out = append(out, withCategory(line, line.TaxCategoryID))
			continue
		}
		res := Resolve(line, cfg.AccountDefaults, cfg.CategoryRates)
		out = append(out, withCategory(line, res.CategoryID))
	}
	return out
}

func withCategory(line Line, id *uuid.UUID) Line {
	next := line
	if id != nil {
		copied := *id
		next.TaxCategoryID = &copied
	} else {
		next.TaxCategoryID = nil
	}
	return next
}

// Totals sums debit and credit across lines. It fails with ErrAmountOverflow
// instead of wrapping when either sum leaves the int64 range.
func Totals(lines []Line) (debit, credit int64, err error) {
	for _, line := range lines {
		if debit, err = addAmount(debit, line.Debit); err != nil {
			return 0, 0, err
		}
		if credit, err = addAmount(credit, line.Credit); err != nil {
			return 0, 0, err
		}
	}
	return debit, credit, nil
}

func addAmount(sum, amount int64) (int64, error) {
	if (amount > 0 && sum > math.MaxInt64-amount) || (amount < 0 && sum < math.MinInt64-amount) {
		return 0, ErrAmountOverflow
	}
	return sum + amount, nil
}
