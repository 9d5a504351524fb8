package recurring

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Schedule is a validated billing schedule ready to be sent to either
// PayPal API generation.
type Schedule struct {
	Period    Period
	Frequency int

	// REST billing cycle frequency
	IntervalUnit  string
	IntervalCount int

	TotalCycles    int
	StartDate      time.Time  // UTC midnight
	ExpirationDate *time.Time // nil when open ended

	Amount        decimal.Decimal
	TaxAmount     decimal.Decimal
	TaxPercentage decimal.Decimal
	Currency      string
}

type Builder struct {
	now func() time.Time
}

func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// WithClock returns a builder that reads the current time from now.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	return &Builder{now: now}
}

// Build validates terms and computes the schedule for one cycle amount
// (price) and its tax.
func (b *Builder) Build(terms Terms, price, tax decimal.Decimal, currency string) (*Schedule, error) {
	maxFreq, ok := maxFrequency[terms.Period]
	if !ok {
		return nil, fmt.Errorf("%w: unknown billing period %q", ErrInvalidTerms, terms.Period)
	}
	if terms.Frequency < 1 {
		return nil, fmt.Errorf("%w: billing frequency must be at least 1", ErrInvalidTerms)
	}
	if terms.Frequency > maxFreq {
		if terms.Period == PeriodSemiMonth {
			return nil, fmt.Errorf("%w: semi-monthly billing frequency must be 1", ErrInvalidTerms)
		}
		return nil, fmt.Errorf("%w: %d %s exceeds one year", ErrInvalidTerms, terms.Frequency, terms.Period)
	}
	if terms.TotalCycles < 0 || terms.TotalCycles > MaxTotalCycles {
		return nil, fmt.Errorf("%w: total cycles must be between 0 and %d", ErrInvalidTerms, MaxTotalCycles)
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidTerms)
	}
	if tax.IsNegative() {
		return nil, fmt.Errorf("%w: tax must not be negative", ErrInvalidTerms)
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return nil, fmt.Errorf("%w: currency %q", ErrInvalidTerms, currency)
	}

	today := midnight(b.now())
	start := today
	if !terms.StartDate.IsZero() {
		start = midnight(terms.StartDate)
		if start.Before(today) {
			start = today
		}
	}
	if terms.Period == PeriodSemiMonth {
		start = snapSemiMonth(start)
	}

	unit, count := restInterval(terms.Period, terms.Frequency)
	schedule := &Schedule{
		Period:        terms.Period,
		Frequency:     terms.Frequency,
		IntervalUnit:  unit,
		IntervalCount: count,
		TotalCycles:   terms.TotalCycles,
		StartDate:     start,
		Amount:        price.Round(2),
		TaxAmount:     tax.Round(2),
		TaxPercentage: taxPercentage(price, tax),
		Currency:      currency,
	}
	if terms.TotalCycles > 0 {
		expires := schedule.BillingDate(terms.TotalCycles)
		schedule.ExpirationDate = &expires
	}

	return schedule, nil
}

// Remaining is the schedule left once the first cycle has been charged with
// the order: it starts one interval later with one cycle fewer. ok is false
// when the order paid the only cycle.
func (s *Schedule) Remaining() (*Schedule, bool) {
	if s.TotalCycles == 1 {
		return nil, false
	}
	rest := *s
	rest.StartDate = s.BillingDate(1)
	if s.TotalCycles > 0 {
		rest.TotalCycles = s.TotalCycles - 1
	}
	return &rest, true
}

// BillingDate returns the date of the k-th charge, k = 0 being the start date.
// Dates are computed from the start anchor so month-end days survive short
// months (Jan 31, Feb 28, Mar 31).
func (s *Schedule) BillingDate(k int) time.Time {
	switch s.Period {
	case PeriodDay:
		return s.StartDate.AddDate(0, 0, k*s.Frequency)
	case PeriodWeek:
		return s.StartDate.AddDate(0, 0, 7*k*s.Frequency)
	case PeriodMonth:
		return addMonthsClamped(s.StartDate, k*s.Frequency)
	case PeriodYear:
		return addMonthsClamped(s.StartDate, 12*k*s.Frequency)
	case PeriodSemiMonth:
		return semiMonthDate(s.StartDate, k)
	}
	return s.StartDate
}

// BillingDates lists the first n charge dates, stopping at the last cycle of
// a finite schedule.
func (s *Schedule) BillingDates(n int) []time.Time {
	if s.TotalCycles > 0 && n > s.TotalCycles {
		n = s.TotalCycles
	}
	dates := make([]time.Time, 0, n)
	for k := 0; k < n; k++ {
		dates = append(dates, s.BillingDate(k))
	}
	return dates
}

// NextBillingDate is the first charge strictly after from. ok is false once a
// finite schedule has no charges left.
func (s *Schedule) NextBillingDate(from time.Time) (time.Time, bool) {
	for k := 0; s.TotalCycles == 0 || k < s.TotalCycles; k++ {
		d := s.BillingDate(k)
		if d.After(from) {
			return d, true
		}
		// open-ended schedules always have a next date; bound the walk anyway
		if k > 100000 {
			break
		}
	}
	return time.Time{}, false
}

// Total is the per-cycle charge including tax.
func (s *Schedule) Total() decimal.Decimal {
	return s.Amount.Add(s.TaxAmount)
}

// Key identifies schedules that can share one PayPal billing plan.
func (s *Schedule) Key() string {
	return fmt.Sprintf("%s:%d:%d:%s:%s:%s",
		s.Period, s.Frequency, s.TotalCycles,
		s.Amount.StringFixed(2), s.Currency, s.TaxPercentage.String())
}

// Description is the human readable billing agreement text.
func (s *Schedule) Description() string {
	var every string
	switch {
	case s.Period == PeriodSemiMonth:
		every = "twice a month (1st and 15th)"
	case s.Frequency == 1:
		every = "every " + strings.ToLower(string(s.Period))
	default:
		every = fmt.Sprintf("every %d %ss", s.Frequency, strings.ToLower(string(s.Period)))
	}

	desc := fmt.Sprintf("%s %s %s", s.Total().StringFixed(2), s.Currency, every)
	if s.TotalCycles > 0 {
		desc += fmt.Sprintf(" for %d payments", s.TotalCycles)
	}
	return desc
}

// restInterval maps a period onto the REST API frequency. The REST API has no
// semi-monthly unit; it bills every 15 days instead.
func restInterval(period Period, frequency int) (string, int) {
	switch period {
	case PeriodDay:
		return "DAY", frequency
	case PeriodWeek:
		return "WEEK", frequency
	case PeriodSemiMonth:
		return "DAY", 15
	case PeriodMonth:
		return "MONTH", frequency
	case PeriodYear:
		return "YEAR", frequency
	}
	return "", 0
}

func taxPercentage(price, tax decimal.Decimal) decimal.Decimal {
	if price.IsZero() || tax.IsZero() {
		return decimal.Zero
	}
	return tax.Div(price).Mul(decimal.NewFromInt(100)).Round(3)
}

func midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// snapSemiMonth moves a date forward to the next 1st or 15th.
func snapSemiMonth(t time.Time) time.Time {
	switch d := t.Day(); {
	case d == 1 || d == 15:
		return t
	case d < 15:
		return time.Date(t.Year(), t.Month(), 15, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	}
}

// semiMonthDate walks the 1st/15th slots from a start on either day.
func semiMonthDate(start time.Time, k int) time.Time {
	slot := k
	if start.Day() >= 15 {
		slot++
	}
	day := 1
	if slot%2 == 1 {
		day = 15
	}
	return time.Date(start.Year(), start.Month()+time.Month(slot/2), day, 0, 0, 0, 0, time.UTC)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	lastDay := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}
