// Package report renders inventory snapshots as text lines.
package report

import (
	"fmt"
	"strings"

	"github.com/temoto/vendsim/currency"
	"github.com/temoto/vendsim/internal/coin"
	"github.com/temoto/vendsim/internal/inventory"
)

const (
	HeaderProducts = "Available products:"
	HeaderCoins    = "Available coins:"
)

// Snapshoter is the read side of inventory.
type Snapshoter interface {
	Products() []inventory.Product
	Coins() []inventory.CoinQty
	CoinsTotal() currency.Amount
}

var _ Snapshoter = &inventory.Inventory{}

func ProductLine(p inventory.Product) string {
	return fmt.Sprintf("- %s: %s (Stock: %d)", p.Name, p.Price.String(), p.Stock)
}

func CoinLine(cq inventory.CoinQty) string {
	value := cq.Kind.Value() * currency.Amount(cq.Qty)
	return fmt.Sprintf("- %s: %d coins (Value: %s)", cq.Kind.String(), cq.Qty, value.String())
}

// ProductLines in insertion order.
func ProductLines(s Snapshoter) []string {
	ps := s.Products()
	lines := make([]string, len(ps))
	for i, p := range ps {
		lines[i] = ProductLine(p)
	}
	return lines
}

// CoinLines by descending coin value.
func CoinLines(s Snapshoter) []string {
	cs := s.Coins()
	lines := make([]string, len(cs))
	for i, cq := range cs {
		lines[i] = CoinLine(cq)
	}
	return lines
}

func Totals(s Snapshoter) []string {
	return []string{
		fmt.Sprintf("Total products: %d", len(s.Products())),
		fmt.Sprintf("Total coin value: %s", s.CoinsTotal().String()),
	}
}

func Status(s Snapshoter) string {
	b := strings.Builder{}
	b.WriteString(HeaderProducts + "\n")
	for _, line := range ProductLines(s) {
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + HeaderCoins + "\n")
	for _, line := range CoinLines(s) {
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")
	for _, line := range Totals(s) {
		b.WriteString(line + "\n")
	}
	return b.String()
}

// CoinList for refund and change messages, "£1, 50p".
func CoinList(kinds []coin.Kind) string {
	if len(kinds) == 0 {
		return "none"
	}
	return coin.Join(kinds, ", ")
}
