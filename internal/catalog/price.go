package catalog

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const Currency = "COP"

// PriceFormatter renders whole-peso prices with locale digit grouping.
type PriceFormatter struct {
	printer *message.Printer
}

// NewPriceFormatter parses a BCP 47 tag such as "es-CO"; an unparseable tag
// falls back to Spanish.
func NewPriceFormatter(locale string) *PriceFormatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Spanish
	}
	return &PriceFormatter{printer: message.NewPrinter(tag)}
}

// Amount formats the number alone, e.g. "2.500.000".
func (f *PriceFormatter) Amount(v int64) string {
	return f.printer.Sprintf("%d", v)
}

// Format renders "$2.500.000 COP".
func (f *PriceFormatter) Format(v int64) string {
	return fmt.Sprintf("$%s %s", f.Amount(v), Currency)
}
