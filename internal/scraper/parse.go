package scraper

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	priceNoise    = regexp.MustCompile(`(?i)\bnrs\.?|\brs\.?|\bnpr\b|/\s*tola|per\s+tola|,`)
	pricePattern  = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	changeTrim    = regexp.MustCompile(`[()\s,]`)
	changePattern = regexp.MustCompile(`^[+-]?\d+(?:\.\d+)?$`)
)

// ParsePrice turns text such as "Rs. 1,234.50/tola" into 1234.50, rounded to paisa.
func ParsePrice(text string) (decimal.Decimal, error) {
	cleaned := priceNoise.ReplaceAllString(text, "")
	num := pricePattern.FindString(cleaned)
	if num == "" {
		return decimal.Zero, errors.New("no number found")
	}
	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, err
	}
	// stored as decimal(14,2)
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, errors.New("not a positive number")
	}
	return d, nil
}

// ParseChange normalizes an advisory change annotation such as "(+15)".
// Anything that is not a plain signed number yields "".
func ParseChange(text string) string {
	cleaned := changeTrim.ReplaceAllString(strings.TrimSpace(text), "")
	if !changePattern.MatchString(cleaned) {
		return ""
	}
	return cleaned
}
