package common

import (
	"fmt"
	"strings"

	"jastip-settlement-go/internal/models"

	"github.com/shopspring/decimal"
)

const (
	DefaultWidth = 80

	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[90m"
)

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	fmt.Println("\n" + strings.Repeat("=", width))
	fmt.Println(title)
	PrintSeparator("=", width)
}

// BoxPrefix returns the appropriate box-drawing prefix for list items
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// FormatRupiah renders an amount as "Rp 1.250.000,50", dropping zero cents.
func FormatRupiah(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}

	whole := amount.Truncate(0)
	cents := amount.Sub(whole).Shift(2).Round(0).IntPart()
	if cents == 100 {
		whole = whole.Add(decimal.NewFromInt(1))
		cents = 0
	}

	digits := whole.String()
	var grouped strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(d)
	}

	if cents == 0 {
		return fmt.Sprintf("%sRp %s", sign, grouped.String())
	}
	return fmt.Sprintf("%sRp %s,%02d", sign, grouped.String(), cents)
}

// FormatJobSummary renders a one-line coloured run summary for terminals.
func FormatJobSummary(summary models.JobSummary) string {
	color := ColorGreen
	switch {
	case summary.ErrorCount > 0:
		color = ColorRed
	case summary.SkippedCount > 0:
		color = ColorYellow
	}
	return fmt.Sprintf("%s%-28s%s completed=%s%d%s skipped=%d errors=%d %s(%s)%s",
		ColorCyan, summary.Job, ColorReset,
		color, summary.CompletedCount, ColorReset,
		summary.SkippedCount, summary.ErrorCount,
		ColorGray, summary.FinishedAt.Sub(summary.StartedAt), ColorReset)
}
