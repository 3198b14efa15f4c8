package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"harvest-engine/pkg/models"
)

var (
	salaryRangePattern  = regexp.MustCompile(`(?i)([$€£₹]|usd|eur|gbp|cad|inr)\s*(\d[\d,]*(?:\.\d+)?)\s*(k)?\s*(?:-|–|—|to)\s*(?:[$€£₹]|usd|eur|gbp|cad|inr)?\s*(\d[\d,]*(?:\.\d+)?)\s*(k)?`)
	salarySinglePattern = regexp.MustCompile(`(?i)([$€£₹]|usd|eur|gbp|cad|inr)\s*(\d[\d,]*(?:\.\d+)?)\s*(k)?`)
)

var currencySymbols = map[string]string{"$": "USD", "€": "EUR", "£": "GBP", "₹": "INR"}

// UndisclosedSalary is the explicit default for postings without pay information
func UndisclosedSalary() models.Salary {
	return models.Salary{Currency: models.DefaultCurrency, Period: models.DefaultSalaryRange}
}

// ParseSalary pulls a pay range out of free text. Amounts without a currency
// marker are ignored so "3-5 years" is never read as pay.
func ParseSalary(text string) models.Salary {
	if m := salaryRangePattern.FindStringSubmatch(text); m != nil {
		min := parseAmount(m[2], m[3] != "" || m[5] != "")
		max := parseAmount(m[4], m[5] != "")
		if min > 0 && max >= min {
			return disclosed(min, max, currencyCode(m[1]), text)
		}
	}
	if m := salarySinglePattern.FindStringSubmatch(text); m != nil {
		if v := parseAmount(m[2], m[3] != ""); v > 0 {
			return disclosed(v, v, currencyCode(m[1]), text)
		}
	}
	return UndisclosedSalary()
}

// NewSalary builds a disclosed salary from structured values, falling back to defaults
func NewSalary(min, max float64, currency, period string) models.Salary {
	if min <= 0 && max <= 0 {
		return UndisclosedSalary()
	}
	if max < min {
		min, max = max, min
	}
	if min <= 0 {
		min = max
	}
	s := models.Salary{Min: min, Max: max, Currency: strings.ToUpper(currency), Period: NormalizePeriod(period), IsDisclosed: true}
	if s.Currency == "" {
		s.Currency = models.DefaultCurrency
	}
	return s
}

// NormalizePeriod maps HOUR, per year, annually, /mo ... onto hourly/monthly/yearly
func NormalizePeriod(p string) string {
	p = strings.ToLower(p)
	switch {
	case containsAny(p, "hour", "/hr"):
		return "hourly"
	case containsAny(p, "month", "/mo"):
		return "monthly"
	case containsAny(p, "week"):
		return "weekly"
	case containsAny(p, "day", "daily"):
		return "daily"
	default:
		return models.DefaultSalaryRange
	}
}

func disclosed(min, max float64, currency, context string) models.Salary {
	lower := strings.ToLower(context)
	period := models.DefaultSalaryRange
	switch {
	case containsAny(lower, "per hour", "/hour", "/hr", "an hour", "hourly"):
		period = "hourly"
	case containsAny(lower, "per month", "/month", "/mo", "monthly"):
		period = "monthly"
	case max < 500:
		period = "hourly"
	}
	return models.Salary{Min: min, Max: max, Currency: currency, Period: period, IsDisclosed: true}
}

func parseAmount(s string, thousands bool) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0
	}
	if thousands {
		v *= 1000
	}
	return v
}

func currencyCode(marker string) string {
	if code, ok := currencySymbols[marker]; ok {
		return code
	}
	return strings.ToUpper(marker)
}
