package recurring

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

type Period string

const (
	PeriodDay       Period = "Day"
	PeriodWeek      Period = "Week"
	PeriodSemiMonth Period = "SemiMonth"
	PeriodMonth     Period = "Month"
	PeriodYear      Period = "Year"
)

// MaxTotalCycles is the largest finite cycle count PayPal accepts.
const MaxTotalCycles = 999

var ErrInvalidTerms = errors.New("invalid subscription terms")

// maxFrequency keeps one billing interval within a year.
var maxFrequency = map[Period]int{
	PeriodDay:       365,
	PeriodWeek:      52,
	PeriodSemiMonth: 1,
	PeriodMonth:     12,
	PeriodYear:      1,
}

func ParsePeriod(value string) (Period, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.NewReplacer("-", "", "_", "", " ", "").Replace(v)

	switch v {
	case "day", "days", "daily":
		return PeriodDay, nil
	case "week", "weeks", "weekly":
		return PeriodWeek, nil
	case "semimonth", "semimonths", "semimonthly", "twicemonthly", "twiceamonth":
		return PeriodSemiMonth, nil
	case "month", "months", "monthly":
		return PeriodMonth, nil
	case "year", "years", "yearly", "annual", "annually":
		return PeriodYear, nil
	}
	return "", fmt.Errorf("%w: unknown billing period %q", ErrInvalidTerms, value)
}

// Terms are the subscription choices a shopper made through product attributes.
type Terms struct {
	Period      Period
	Frequency   int
	TotalCycles int // 0 = until cancelled
	StartDate   time.Time
}

// AttributeNames are the product option names that carry the terms.
type AttributeNames struct {
	Period    string
	Frequency string
	Cycles    string
	StartDate string
}

func DefaultAttributeNames() AttributeNames {
	return AttributeNames{
		Period:    "Billing Period",
		Frequency: "Billing Frequency",
		Cycles:    "Total Billing Cycles",
		StartDate: "Start Date",
	}
}

var startDateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	time.RFC3339,
}

// TermsFromAttributes extracts terms from a cart item's option -> value map.
// ok is false when the item carries no billing period, i.e. it is not a
// subscription product.
func TermsFromAttributes(attrs map[string]string, names AttributeNames) (*Terms, bool, error) {
	rawPeriod, found := lookup(attrs, names.Period)
	if !found || rawPeriod == "" {
		return nil, false, nil
	}

	period, err := ParsePeriod(rawPeriod)
	if err != nil {
		return nil, true, err
	}
	terms := &Terms{Period: period, Frequency: 1}

	if raw, found := lookup(attrs, names.Frequency); found && raw != "" {
		n, err := leadingInt(raw)
		if err != nil {
			return nil, true, fmt.Errorf("%w: billing frequency %q", ErrInvalidTerms, raw)
		}
		terms.Frequency = n
	}

	if raw, found := lookup(attrs, names.Cycles); found && raw != "" {
		n, err := leadingInt(raw)
		if err != nil {
			return nil, true, fmt.Errorf("%w: total billing cycles %q", ErrInvalidTerms, raw)
		}
		terms.TotalCycles = n
	}

	if raw, found := lookup(attrs, names.StartDate); found && raw != "" {
		start, err := parseStartDate(raw)
		if err != nil {
			return nil, true, err
		}
		terms.StartDate = start
	}

	return terms, true, nil
}

func lookup(attrs map[string]string, name string) (string, bool) {
	if name == "" {
		return "", false
	}
	if v, ok := attrs[name]; ok {
		return strings.TrimSpace(v), true
	}
	for k, v := range attrs {
		if strings.EqualFold(strings.TrimSpace(k), name) {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// leadingInt reads the number at the front of values like "12" or "12 payments".
func leadingInt(value string) (int, error) {
	value = strings.TrimSpace(value)
	end := 0
	for end < len(value) && unicode.IsDigit(rune(value[end])) {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("no number in %q", value)
	}
	return strconv.Atoi(value[:end])
}

func parseStartDate(value string) (time.Time, error) {
	for _, layout := range startDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: start date %q", ErrInvalidTerms, value)
}
