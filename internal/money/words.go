package money

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrNegativeAmount indicates a negative amount cannot be worded.
var ErrNegativeAmount = errors.New("money: amount must be non-negative")

var (
	onesWords = []string{
		"", "one", "two", "three", "four", "five", "six", "seven", "eight",
		"nine", "ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen",
		"sixteen", "seventeen", "eighteen", "nineteen",
	}
	tensWords = []string{
		"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy",
		"eighty", "ninety",
	}

	titleCaser = cases.Title(language.English)
)

// ToWords converts a non-negative rupee amount into its worded form using
// Indian grouping (thousand, lakh, crore). The integer and fractional parts
// are converted independently:
//
//	1234.56 -> "One Thousand Two Hundred Thirty Four Rupees And Fifty Six Paise Only"
//	0       -> "Zero Rupees Only"
//
// The wording is a persisted, user-facing invoice field; the grouping and
// suffixes must not change.
func ToWords(amount float64) (string, error) {
	if amount < 0 {
		return "", ErrNegativeAmount
	}
	rupees, paise := Split(amount)

	var b strings.Builder
	if rupees == 0 {
		b.WriteString("zero rupees")
	} else {
		b.WriteString(integerWords(rupees))
		b.WriteString(" rupees")
	}
	if paise > 0 {
		b.WriteString(" and ")
		b.WriteString(integerWords(paise))
		b.WriteString(" paise")
	}
	b.WriteString(" only")

	return titleCaser.String(b.String()), nil
}

// integerWords words a positive integer with Indian digit grouping.
// Crores recurse so arbitrarily large totals stay representable.
func integerWords(n int64) string {
	switch {
	case n >= 1_00_00_000:
		return joinWords(integerWords(n/1_00_00_000)+" crore", integerWords(n%1_00_00_000))
	case n >= 1_00_000:
		return joinWords(belowThousand(n/1_00_000)+" lakh", integerWords(n%1_00_000))
	case n >= 1_000:
		return joinWords(belowThousand(n/1_000)+" thousand", integerWords(n%1_000))
	default:
		return belowThousand(n)
	}
}

func belowThousand(n int64) string {
	if n >= 100 {
		return joinWords(onesWords[n/100]+" hundred", belowHundred(n%100))
	}
	return belowHundred(n)
}

func belowHundred(n int64) string {
	if n >= 20 {
		return joinWords(tensWords[n/10], onesWords[n%10])
	}
	return onesWords[n]
}

func joinWords(head, tail string) string {
	if tail == "" {
		return head
	}
	return head + " " + tail
}
