// Package analysis turns a portfolio snapshot into text and asks a
// chat-completion API for an assessment.
package analysis

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"octoadvisor/internal/model"
)

// Formatter renders a portfolio snapshot into the text block substituted
// into the LLM prompt.
type Formatter struct {
	MinAmount decimal.Decimal // balances below this are dust and skipped
	Quote     string          // quote currency for ticker lookups, e.g. ZEUR
}

// Format produces the portfolio section of the prompt.
func (f Formatter) Format(p *model.Portfolio) string {
	var b strings.Builder
	b.WriteString("AKTUELLES PORTFOLIO:\n\n")

	assets := make([]string, 0, len(p.Balances))
	for asset := range p.Balances {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	count := 0
	for _, asset := range assets {
		amount := p.Balances[asset]
		if amount.Cmp(f.MinAmount) < 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("Asset: %s\n", asset))
		b.WriteString(fmt.Sprintf("Menge: %s\n", amount.StringFixed(8)))

		if ticker, ok := p.Ticker[asset+f.Quote]; ok && !model.IsFiat(asset) {
			value := amount.Mul(ticker.Last)
			b.WriteString(fmt.Sprintf("EUR-Wert: €%s\n", value.StringFixed(2)))
			b.WriteString(fmt.Sprintf("Aktueller Preis: €%s\n", ticker.Last.StringFixed(2)))
			if !ticker.Open24h.IsZero() {
				b.WriteString(fmt.Sprintf("24h Änderung: %s%%\n", ticker.Change24h().StringFixed(2)))
			}
		}
		b.WriteString("\n")
		count++
	}

	if count == 0 {
		b.WriteString("Keine Assets mit ausreichender Menge gefunden.\n\n")
	}

	b.WriteString(fmt.Sprintf("GESAMTWERT: €%s\n", p.TradeBalance.Equity.StringFixed(2)))
	b.WriteString(fmt.Sprintf("VERFÜGBARES KAPITAL: €%s\n", p.TradeBalance.FreeMargin.StringFixed(2)))

	ts := p.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	b.WriteString(fmt.Sprintf("\nStand: %s\n", ts.Format(time.RFC3339)))

	return b.String()
}
