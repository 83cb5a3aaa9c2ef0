package tax

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	expense, cash, sales uuid.UUID
	inputVAT, outputVAT  uuid.UUID
	standard, zero       uuid.UUID
}

func newFixture() fixture {
	return fixture{
		expense:   uuid.New(),
		cash:      uuid.New(),
		sales:     uuid.New(),
		inputVAT:  uuid.New(),
		outputVAT: uuid.New(),
		standard:  uuid.New(),
		zero:      uuid.New(),
	}
}

func (f fixture) config(mode Mode) Config {
	return Config{
		Mode: mode,
		AccountDefaults: map[uuid.UUID]AccountDefault{
			f.expense: {TaxCategoryID: f.standard, Rate: decimal.RequireFromString("0.10")},
		},
		CategoryRates: map[uuid.UUID]decimal.Decimal{
			f.standard: decimal.RequireFromString("0.10"),
			f.zero:     decimal.Zero,
		},
		InputVATAccountID:  &f.inputVAT,
		OutputVATAccountID: &f.outputVAT,
	}
}

func TestSplitExclusiveExpense(t *testing.T) {
	f := newFixture()
	lines := []Line{
		{AccountID: f.expense, Debit: 11000},
		{AccountID: f.cash, Credit: 11000},
	}

	out, err := Split(lines, f.config(ModeExclusive))
	require.NoError(t, err)

	require.Len(t, out, 3)
	assert.Equal(t, f.expense, out[0].AccountID)
	assert.Equal(t, int64(10000), out[0].Debit)
	require.NotNil(t, out[0].TaxCategoryID)
	assert.Equal(t, f.standard, *out[0].TaxCategoryID)
	assert.Equal(t, int64(11000), out[1].Credit)
	assert.Equal(t, f.inputVAT, out[2].AccountID)
	assert.Equal(t, int64(1000), out[2].Debit)
	assert.Equal(t, InputVATMemo, out[2].Memo)

	debit, credit, err := Totals(out)
	require.NoError(t, err)
	assert.Equal(t, int64(11000), debit)
	assert.Equal(t, int64(11000), credit)
}

func TestSplitGrossRounding(t *testing.T) {
	cases := []struct {
		gross     int64
		rate      string
		principal int64
		tax       int64
	}{
		{gross: 11001, rate: "0.10", principal: 10001, tax: 1000},
		{gross: 11000, rate: "0.10", principal: 10000, tax: 1000},
		{gross: 1080, rate: "0.08", principal: 1000, tax: 80},
		{gross: 1, rate: "0.10", principal: 1, tax: 0},
		{gross: 105, rate: "0.05", principal: 100, tax: 5},
		{gross: 10000, rate: "0", principal: 10000, tax: 0},
		{gross: 4, rate: "0.6", principal: 3, tax: 1},
		{gross: 25, rate: "0.25", principal: 20, tax: 5},
		{gross: 5, rate: "1", principal: 3, tax: 2},
	}
	for _, tc := range cases {
		principal, tax := SplitGross(tc.gross, decimal.RequireFromString(tc.rate))
		assert.Equal(t, tc.principal, principal, "gross %d", tc.gross)
		assert.Equal(t, tc.tax, tax, "gross %d", tc.gross)
	}
}

func TestSplitZeroRateEmitsNoVATLine(t *testing.T) {
	f := newFixture()
	lines := []Line{
		{AccountID: f.cash, Debit: 10000, TaxCategoryID: &f.zero},
		{AccountID: f.sales, Credit: 10000},
	}

	out, err := Split(lines, f.config(ModeExclusive))
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, int64(10000), out[0].Debit)
	assert.Equal(t, int64(10000), out[1].Credit)
}

func TestSplitCreditSideGoesToOutputVAT(t *testing.T) {
	f := newFixture()
	lines := []Line{
		{AccountID: f.cash, Debit: 22000},
		{AccountID: f.sales, Credit: 22000, TaxCategoryID: &f.standard},
	}

	out, err := Split(lines, f.config(ModeExclusive))
	require.NoError(t, err)

	require.Len(t, out, 3)
	assert.Equal(t, int64(20000), out[1].Credit)
	assert.Equal(t, f.outputVAT, out[2].AccountID)
	assert.Equal(t, int64(2000), out[2].Credit)
	assert.Equal(t, OutputVATMemo, out[2].Memo)
}

func TestSplitPreservesBalance(t *testing.T) {
	f := newFixture()
	cfg := f.config(ModeExclusive)
	for gross := int64(1); gross < 3000; gross += 7 {
		lines := []Line{
			{AccountID: f.expense, Debit: gross},
			{AccountID: f.sales, Debit: gross + 3, TaxCategoryID: &f.standard},
			{AccountID: f.cash, Credit: gross*2 + 3},
		}
		out, err := Split(lines, cfg)
		require.NoError(t, err)
		debit, credit, err := Totals(out)
		require.NoError(t, err)
		require.Equal(t, gross*2+3, debit)
		require.Equal(t, debit, credit)
		for _, line := range out {
			require.GreaterOrEqual(t, line.Debit, int64(0))
			require.GreaterOrEqual(t, line.Credit, int64(0))
		}
	}
}

func TestSplitInclusiveAttachesCategoryAndIsIdempotent(t *testing.T) {
	f := newFixture()
	cfg := f.config(ModeInclusive)
	lines := []Line{
		{AccountID: f.expense, Debit: 11000, Memo: "supplies"},
		{AccountID: f.cash, Credit: 11000},
	}

	once, err := Split(lines, cfg)
	require.NoError(t, err)
	require.Len(t, once, 2)
	assert.Equal(t, int64(11000), once[0].Debit)
	require.NotNil(t, once[0].TaxCategoryID)
	assert.Equal(t, f.standard, *once[0].TaxCategoryID)
	assert.Nil(t, once[1].TaxCategoryID)

	twice, err := Split(once, cfg)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestSplitDegradesWithoutVATAccounts(t *testing.T) {
	f := newFixture()
	cfg := f.config(ModeExclusive)
	cfg.InputVATAccountID = nil
	lines := []Line{
		{AccountID: f.expense, Debit: 11000},
		{AccountID: f.cash, Credit: 11000},
	}

	out, err := Split(lines, cfg)
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, int64(11000), out[0].Debit)
	assert.Nil(t, out[0].TaxCategoryID)
}

func TestSplitLeavesBothSidedLinesUnchanged(t *testing.T) {
	f := newFixture()
	lines := []Line{
		{AccountID: f.expense, Debit: 1100, Credit: 1100},
		{AccountID: f.cash, Debit: 500},
		{AccountID: f.sales, Credit: 500},
	}

	out, err := Split(lines, f.config(ModeExclusive))
	require.NoError(t, err)

	require.Len(t, out, 3)
	assert.Equal(t, int64(1100), out[0].Debit)
	assert.Equal(t, int64(1100), out[0].Credit)
}

func TestSplitDoesNotMutateInput(t *testing.T) {
	f := newFixture()
	lines := []Line{
		{AccountID: f.expense, Debit: 11000},
		{AccountID: f.cash, Credit: 11000},
	}
	_, err := Split(lines, f.config(ModeExclusive))
	require.NoError(t, err)
	assert.Equal(t, int64(11000), lines[0].Debit)
	assert.Nil(t, lines[0].TaxCategoryID)
}

func TestResolvePrefersExplicitCategory(t *testing.T) {
	f := newFixture()
	cfg := f.config(ModeExclusive)

	res := Resolve(Line{AccountID: f.expense, TaxCategoryID: &f.zero}, cfg.AccountDefaults, cfg.CategoryRates)
	assert.Equal(t, SourceExplicit, res.Source)
	assert.False(t, res.Taxable())

	res = Resolve(Line{AccountID: f.expense}, cfg.AccountDefaults, cfg.CategoryRates)
	assert.Equal(t, SourceAccountDefault, res.Source)
	assert.True(t, res.Taxable())

	res = Resolve(Line{AccountID: f.cash}, cfg.AccountDefaults, cfg.CategoryRates)
	assert.Equal(t, SourceNone, res.Source)
	assert.Nil(t, res.CategoryID)
}

func TestTotalsRejectsOverflow(t *testing.T) {
	f := newFixture()
	lines := []Line{
		{AccountID: f.expense, Debit: math.MaxInt64},
		{AccountID: f.expense, Debit: math.MaxInt64},
		{AccountID: f.expense, Debit: 2},
		{AccountID: f.sales},
	}
	_, _, err := Totals(lines)
	require.ErrorIs(t, err, ErrAmountOverflow)

	debit, credit, err := Totals([]Line{{Debit: math.MaxInt64}, {Credit: math.MaxInt64}})
	require.NoError(t, err)
	assert.Equal(t, debit, credit)
}

func TestSplitRejectsTaxTotalOverflow(t *testing.T) {
	f := newFixture()
	lines := []Line{
		{AccountID: f.expense, Debit: math.MaxInt64},
		{AccountID: f.expense, Debit: math.MaxInt64},
		{AccountID: f.expense, Debit: math.MaxInt64},
		{AccountID: f.cash, Credit: 1},
	}
	cfg := f.config(ModeExclusive)
	cfg.CategoryRates[f.standard] = decimal.RequireFromString("1")

	_, err := Split(lines, cfg)
	require.ErrorIs(t, err, ErrAmountOverflow)
}
