package money

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const DefaultLocale = "id"

// Formatter renders whole-unit Rupiah amounts with the digit grouping of a
// locale, e.g. "Rp 116.000" for Indonesian.
type Formatter struct {
	printer *message.Printer
	symbol  string
}

func NewFormatter(locale string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Indonesian
	}
	return &Formatter{
		printer: message.NewPrinter(tag),
		symbol:  "Rp",
	}
}

func (f *Formatter) Format(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%s %s", sign, f.symbol, f.printer.Sprintf("%d", amount))
}
