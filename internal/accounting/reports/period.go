package reports

import (
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

const monthLayout = "2006-01"

// Period is a calendar month with its fiscal year anchor. Start and End are
// inclusive calendar dates.
type Period struct {
	Key             string    `json:"key"`
	Label           string    `json:"label"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	FiscalYearStart time.Time `json:"fiscalYearStart"`
}

// Until returns the exclusive upper bound of the period.
func (p Period) Until() time.Time {
	return p.End.AddDate(0, 0, 1)
}

// ResolveMonthlyPeriod parses "YYYY-MM" (empty means the month of now) and
// anchors it to the fiscal year beginning in fiscalStartMonth.
func ResolveMonthlyPeriod(raw string, fiscalStartMonth int, now time.Time) (Period, error) {
	var month time.Time
	raw = strings.TrimSpace(raw)
	if raw == "" {
		y, m, _ := now.Date()
		month = time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	} else {
		parsed, err := time.Parse(monthLayout, raw)
		if err != nil {
			return Period{}, shared.Malformed("period %q must be YYYY-MM", raw)
		}
		month = parsed
	}
	return monthPeriod(month, fiscalStartMonth), nil
}

func monthPeriod(start time.Time, fiscalStartMonth int) Period {
	if fiscalStartMonth < 1 || fiscalStartMonth > 12 {
		fiscalStartMonth = 1
	}
	year := start.Year()
	if int(start.Month()) < fiscalStartMonth {
		year--
	}
	return Period{
		Key:             start.Format(monthLayout),
		Label:           start.Format("January 2006"),
		Start:           start,
		End:             start.AddDate(0, 1, -1),
		FiscalYearStart: time.Date(year, time.Month(fiscalStartMonth), 1, 0, 0, 0, 0, time.UTC),
	}
}

// trailingMonths returns count month periods ending with the month of end, oldest first.
func trailingMonths(end Period, count int) []Period {
	out := make([]Period, 0, count)
	for i := count - 1; i >= 0; i-- {
		out = append(out, monthPeriod(end.Start.AddDate(0, -i, 0), int(end.FiscalYearStart.Month())))
	}
	return out
}
