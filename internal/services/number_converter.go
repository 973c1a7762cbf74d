package services

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountInWords spells out a rand amount for statements.
// Example: 1500.50 -> "One thousand five hundred rand and 50/100"
func AmountInWords(amount decimal.Decimal) string {
	amount = amount.Round(2)
	negative := amount.IsNegative()
	amount = amount.Abs()

	whole := amount.IntPart()
	cents := amount.Sub(decimal.NewFromInt(whole)).Mul(decimal.NewFromInt(100)).IntPart()

	words := numberToWords(whole)
	if negative {
		words = "minus " + words
	}
	words = strings.ToUpper(words[:1]) + words[1:]
	return fmt.Sprintf("%s rand and %02d/100", words, cents)
}

func numberToWords(n int64) string {
	switch {
	case n == 0:
		return "zero"
	case n < 20:
		return smallNumbers[n]
	case n < 100:
		if n%10 == 0 {
			return tens[n/10]
		}
		return tens[n/10] + "-" + smallNumbers[n%10]
	case n < 1000:
		return scaled(n, 100, "hundred")
	case n < 1_000_000:
		return scaled(n, 1000, "thousand")
	case n < 1_000_000_000:
		return scaled(n, 1_000_000, "million")
	default:
		return scaled(n, 1_000_000_000, "billion")
	}
}

// scaled renders n as "<n/unit> <name> <rest>"
func scaled(n, unit int64, name string) string {
	head := numberToWords(n/unit) + " " + name
	rest := n % unit
	if rest == 0 {
		return head
	}
	if rest < 100 {
		return head + " and " + numberToWords(rest)
	}
	return head + " " + numberToWords(rest)
}

var smallNumbers = []string{
	"", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
	"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen", "seventeen", "eighteen", "nineteen",
}

var tens = []string{
	"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety",
}
