package bot

import (
	"strings"

	"github.com/kylycht/ratebot/model"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// tiny rates get more digits so they do not render as zero
const smallRate = 0.0001

var printer = message.NewPrinter(language.English)

func formatAmount(v float64) string {
	return printer.Sprintf("%.2f", v)
}

func formatRate(v float64) string {
	if v < smallRate {
		return printer.Sprintf("%.8f", v)
	}
	return printer.Sprintf("%.4f", v)
}

func formatConversion(catalog *model.Catalog, res model.ConversionResult) string {
	return printer.Sprintf(conversionText,
		formatAmount(res.Amount), catalog.Name(res.From),
		formatAmount(res.Converted), catalog.Name(res.To),
		res.From, formatRate(res.Rate), res.To,
	)
}

func formatRates(catalog *model.Catalog, target model.Symbol, quotes []model.Quote) string {
	if len(quotes) == 0 {
		return ratesFailedText
	}

	sb := strings.Builder{}
	sb.WriteString(printer.Sprintf(ratesHeaderText, target))

	for _, q := range quotes {
		sb.WriteString(printer.Sprintf(ratesLineText, catalog.Name(q.Symbol), formatAmount(q.Rate), target))
	}

	return sb.String()
}

func formatSymbols(catalog *model.Catalog) string {
	symbols := catalog.Symbols()

	out := make([]string, len(symbols))
	for i, s := range symbols {
		out[i] = s.String()
	}

	return strings.Join(out, ", ")
}
