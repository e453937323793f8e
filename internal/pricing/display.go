package pricing

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var displayPrinter = message.NewPrinter(language.AmericanEnglish)

// Display renders a money value rounded to cents with US digit grouping, e.g. "$1,234.50".
func Display(m Money) string {
	rounded := m.Round(2)
	f, _ := rounded.Abs().Float64()
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
	}
	return sign + "$" + displayPrinter.Sprintf("%v", number.Decimal(f, number.Scale(2)))
}

// SummaryDisplay is the presentation form of a Summary.
type SummaryDisplay struct {
	Subtotal      string `json:"subtotal"`
	PromoDiscount string `json:"promoDiscount"`
	Shipping      string `json:"shipping"`
	Tax           string `json:"tax"`
	Total         string `json:"total"`
}

// Display renders every component with Display.
func (s Summary) Display() SummaryDisplay {
	return SummaryDisplay{
		Subtotal:      Display(s.Subtotal),
		PromoDiscount: Display(s.PromoDiscount),
		Shipping:      Display(s.Shipping),
		Tax:           Display(s.Tax),
		Total:         Display(s.Total),
	}
}
