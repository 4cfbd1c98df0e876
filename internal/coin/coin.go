// Package coin is the denomination table of accepted GBP coins.
package coin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/temoto/vendsim/currency"
)

// Kind value is the coin worth in pence.
type Kind uint16

const (
	KindInvalid Kind = 0
	Penny1      Kind = 1
	Pence2      Kind = 2
	Pence5      Kind = 5
	Pence10     Kind = 10
	Pence20     Kind = 20
	Pence50     Kind = 50
	Pound1      Kind = 100
	Pound2      Kind = 200
)

var all = [...]Kind{Penny1, Pence2, Pence5, Pence10, Pence20, Pence50, Pound1, Pound2}

var names = map[Kind]string{
	Penny1:  "1p",
	Pence2:  "2p",
	Pence5:  "5p",
	Pence10: "10p",
	Pence20: "20p",
	Pence50: "50p",
	Pound1:  "£1",
	Pound2:  "£2",
}

var (
	byValue map[currency.Amount]Kind
	byName  map[string]Kind
)

func init() {
	byValue = make(map[currency.Amount]Kind, len(all))
	byName = make(map[string]Kind, len(all))
	for _, k := range all {
		if _, dup := byValue[k.Value()]; dup {
			panic(fmt.Sprintf("code error coin table duplicate value=%d", k))
		}
		byValue[k.Value()] = k
		byName[names[k]] = k
	}
}

// All returns kinds in ascending value order.
func All() []Kind {
	out := make([]Kind, len(all))
	copy(out, all[:])
	return out
}

// Descending returns kinds from highest to lowest value, the greedy dispense order.
func Descending() []Kind {
	out := make([]Kind, len(all))
	for i, k := range all {
		out[len(all)-1-i] = k
	}
	return out
}

func Nominals() []currency.Nominal {
	out := make([]currency.Nominal, len(all))
	for i, k := range all {
		out[i] = k.Nominal()
	}
	return out
}

func (k Kind) Valid() bool {
	_, ok := names[k]
	return ok
}

func (k Kind) Value() currency.Amount    { return currency.Amount(k) }
func (k Kind) Nominal() currency.Nominal { return currency.Nominal(k) }

func (k Kind) String() string {
	if name, ok := names[k]; ok {
		return name
	}
	return fmt.Sprintf("coin(%d)", uint16(k))
}

// ByValue is exact reverse lookup. ok=false means no coin has this value.
func ByValue(a currency.Amount) (Kind, bool) {
	k, ok := byValue[a]
	return k, ok
}

// Parse accepts display name ("50p", "£1") or pence ("50", "100").
func Parse(s string) (Kind, error) {
	s = strings.TrimSpace(s)
	if k, ok := byName[s]; ok {
		return k, nil
	}
	if k, ok := byName[strings.ToLower(s)]; ok {
		return k, nil
	}
	if n, err := strconv.ParseUint(s, 10, 16); err == nil {
		if k := Kind(n); k.Valid() {
			return k, nil
		}
	}
	return KindInvalid, errors.NotValidf("coin='%s'", s)
}

// Group counts kinds preserving first-seen order.
func Group(kinds []Kind) ([]Kind, map[Kind]uint) {
	order := make([]Kind, 0, len(kinds))
	counts := make(map[Kind]uint, len(kinds))
	for _, k := range kinds {
		if _, ok := counts[k]; !ok {
			order = append(order, k)
		}
		counts[k]++
	}
	return order, counts
}

func Total(kinds []Kind) currency.Amount {
	sum := currency.Amount(0)
	for _, k := range kinds {
		sum += k.Value()
	}
	return sum
}

func Join(kinds []Kind, sep string) string {
	ss := make([]string, len(kinds))
	for i, k := range kinds {
		ss[i] = k.String()
	}
	return strings.Join(ss, sep)
}
