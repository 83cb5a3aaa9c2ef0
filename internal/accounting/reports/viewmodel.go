package reports

import (
	"strings"

	money "github.com/Rhymond/go-money"
)

// DefaultCurrency is used when no valid currency code is configured.
const DefaultCurrency = "JPY"

// Formatter renders minor-unit amounts in a currency.
type Formatter struct {
	currency string
}

// NewFormatter returns a formatter for the ISO 4217 code, falling back to DefaultCurrency.
func NewFormatter(code string) Formatter {
	code = strings.ToUpper(strings.TrimSpace(code))
	if money.GetCurrency(code) == nil {
		code = DefaultCurrency
	}
	return Formatter{currency: code}
}

// Currency returns the ISO code in use.
func (f Formatter) Currency() string {
	if f.currency == "" {
		return DefaultCurrency
	}
	return f.currency
}

// Format displays a minor-unit amount, e.g. ¥11,000.
func (f Formatter) Format(amount int64) string {
	return money.New(amount, f.Currency()).Display()
}

// AmountView pairs a raw amount with its display string.
type AmountView struct {
	Amount  int64  `json:"amount"`
	Display string `json:"display"`
}

func (f Formatter) view(amount int64) AmountView {
	return AmountView{Amount: amount, Display: f.Format(amount)}
}

// TrialBalanceRowView is a formatted trial balance row.
type TrialBalanceRowView struct {
	Code    string     `json:"code"`
	Name    string     `json:"name"`
	Type    string     `json:"type"`
	Opening AmountView `json:"opening"`
	Debit   AmountView `json:"debit"`
	Credit  AmountView `json:"credit"`
	Closing AmountView `json:"closing"`
}

// TrialBalanceViewModel holds display data for the trial balance report.
type TrialBalanceViewModel struct {
	BusinessName string                `json:"businessName"`
	PeriodLabel  string                `json:"periodLabel"`
	Currency     string                `json:"currency"`
	Rows         []TrialBalanceRowView `json:"rows"`
	TotalDebit   AmountView            `json:"totalDebit"`
	TotalCredit  AmountView            `json:"totalCredit"`
	Report       TrialBalance          `json:"report"`
}

// NewTrialBalanceViewModel formats a trial balance.
func NewTrialBalanceViewModel(business string, tb TrialBalance, f Formatter) TrialBalanceViewModel {
	vm := TrialBalanceViewModel{
		BusinessName: business,
		PeriodLabel:  tb.Period.Label,
		Currency:     f.Currency(),
		Rows:         make([]TrialBalanceRowView, 0, len(tb.Rows)),
		TotalDebit:   f.view(tb.Totals.Debit),
		TotalCredit:  f.view(tb.Totals.Credit),
		Report:       tb,
	}
	for _, row := range tb.Rows {
		vm.Rows = append(vm.Rows, TrialBalanceRowView{
			Code:    row.Code,
			Name:    row.Name,
			Type:    string(row.Type),
			Opening: f.view(row.OpeningBalance),
			Debit:   f.view(row.Debit),
			Credit:  f.view(row.Credit),
			Closing: f.view(row.ClosingBalance),
		})
	}
	return vm
}

// BalanceSheetViewModel contains display data for the balance sheet report.
type BalanceSheetViewModel struct {
	BusinessName         string       `json:"businessName"`
	PeriodLabel          string       `json:"periodLabel"`
	Currency             string       `json:"currency"`
	TotalAssets          AmountView   `json:"totalAssets"`
	TotalLiabilities     AmountView   `json:"totalLiabilities"`
	TotalEquity          AmountView   `json:"totalEquity"`
	LiabilitiesAndEquity AmountView   `json:"liabilitiesAndEquity"`
	Report               BalanceSheet `json:"report"`
}

// NewBalanceSheetViewModel formats a balance sheet.
func NewBalanceSheetViewModel(business string, bs BalanceSheet, f Formatter) BalanceSheetViewModel {
	return BalanceSheetViewModel{
		BusinessName:         business,
		PeriodLabel:          bs.Period.Label,
		Currency:             f.Currency(),
		TotalAssets:          f.view(bs.Totals.Assets),
		TotalLiabilities:     f.view(bs.Liabilities.Total),
		TotalEquity:          f.view(bs.Equity.Total),
		LiabilitiesAndEquity: f.view(bs.Totals.LiabilitiesAndEquity),
		Report:               bs,
	}
}

// IncomeStatementViewModel holds display data for the income statement.
type IncomeStatementViewModel struct {
	BusinessName  string          `json:"businessName"`
	PeriodLabel   string          `json:"periodLabel"`
	Currency      string          `json:"currency"`
	Revenue       AmountView      `json:"revenue"`
	Expense       AmountView      `json:"expense"`
	NetIncome     AmountView      `json:"netIncome"`
	YearToDateNet AmountView      `json:"yearToDateNetIncome"`
	Report        IncomeStatement `json:"report"`
}

// NewIncomeStatementViewModel formats an income statement.
func NewIncomeStatementViewModel(business string, is IncomeStatement, f Formatter) IncomeStatementViewModel {
	return IncomeStatementViewModel{
		BusinessName:  business,
		PeriodLabel:   is.Period.Label,
		Currency:      f.Currency(),
		Revenue:       f.view(is.Totals.Revenue),
		Expense:       f.view(is.Totals.Expense),
		NetIncome:     f.view(is.Totals.NetIncome),
		YearToDateNet: f.view(is.YearToDate.NetIncome),
		Report:        is,
	}
}

// DashboardViewModel holds display data for the dashboard.
type DashboardViewModel struct {
	PeriodLabel string     `json:"periodLabel"`
	Currency    string     `json:"currency"`
	Revenue     AmountView `json:"revenue"`
	Expense     AmountView `json:"expense"`
	Cash        AmountView `json:"cash"`
	NetIncome   AmountView `json:"netIncome"`
	Report      Dashboard  `json:"report"`
}

// NewDashboardViewModel formats the dashboard summary.
func NewDashboardViewModel(d Dashboard, f Formatter) DashboardViewModel {
	return DashboardViewModel{
		PeriodLabel: d.Period.Label,
		Currency:    f.Currency(),
		Revenue:     f.view(d.Revenue),
		Expense:     f.view(d.Expense),
		Cash:        f.view(d.Cash),
		NetIncome:   f.view(d.NetIncome),
		Report:      d,
	}
}
