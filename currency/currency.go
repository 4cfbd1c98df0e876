package currency

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

// Amount is integer counting lowest currency unit, e.g. £1.20 = 120
type Amount int64

const Sign = "£"

// Format100I renders amount with exactly two decimal places, 150 -> "1.50".
func (self Amount) Format100I() string {
	a := int64(self)
	neg := a < 0
	if neg {
		a = -a
	}
	s := fmt.Sprintf("%d.%02d", a/100, a%100)
	if neg {
		return "-" + s
	}
	return s
}

func (self Amount) String() string {
	if self < 0 {
		return "-" + Sign + (-self).Format100I()
	}
	return Sign + self.Format100I()
}

// ParseAmount accepts "1.50", "1.5", "2", "£0.75", "-0.25".
// More than two fractional digits is an error, no rounding happens here.
func ParseAmount(s string) (Amount, error) {
	orig := s
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	s = strings.TrimPrefix(s, Sign)
	if s == "" {
		return 0, errors.NotValidf("amount='%s'", orig)
	}
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if len(frac) > 2 {
		return 0, errors.NotValidf("amount='%s' more than 2 decimal places", orig)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseUint(whole, 10, 31)
	if err != nil {
		return 0, errors.Annotatef(err, "amount='%s'", orig)
	}
	f, err := strconv.ParseUint(frac, 10, 8)
	if err != nil {
		return 0, errors.Annotatef(err, "amount='%s'", orig)
	}
	result := Amount(w*100 + f)
	if neg {
		result = -result
	}
	return result, nil
}

// Nominal is value of one coin or bill
type Nominal Amount

var (
	ErrNominalInvalid = errors.New("Nominal is not valid for this group")
	ErrNominalCount   = errors.New("Not enough nominals for this amount")
)

// NominalGroup operates money comprised of multiple nominals, like coins or bills.
// coin1 : 3
// coin5 : 1
// coin10: 4
// total : 48
type NominalGroup struct {
	values map[Nominal]uint
}

func (self *NominalGroup) Copy() *NominalGroup {
	ng2 := &NominalGroup{
		values: make(map[Nominal]uint, len(self.values)),
	}
	for k, v := range self.values {
		ng2.values[k] = v
	}
	return ng2
}

func (self *NominalGroup) SetValid(valid []Nominal) {
	self.values = make(map[Nominal]uint, len(valid))
	for _, n := range valid {
		if n > 0 {
			self.values[n] = 0
		}
	}
}

func (self *NominalGroup) Valid(n Nominal) bool {
	_, ok := self.values[n]
	return ok
}

func (self *NominalGroup) Add(n Nominal, count uint) error {
	if _, ok := self.values[n]; !ok {
		return errors.Annotatef(ErrNominalInvalid, "Add(n=%s, c=%d)", Amount(n).Format100I(), count)
	}
	self.values[n] += count
	return nil
}

func (self *NominalGroup) MustAdd(n Nominal, count uint) {
	if err := self.Add(n, count); err != nil {
		panic(err)
	}
}

// Remove takes at most `count` of nominal `n` and returns how many were actually removed.
func (self *NominalGroup) Remove(n Nominal, count uint) (uint, error) {
	stored, ok := self.values[n]
	if !ok {
		return 0, errors.Annotatef(ErrNominalInvalid, "Remove(n=%s, c=%d)", Amount(n).Format100I(), count)
	}
	if count > stored {
		count = stored
	}
	self.values[n] = stored - count
	return count, nil
}

func (self *NominalGroup) Get(n Nominal) (uint, error) {
	if stored, ok := self.values[n]; !ok {
		return 0, ErrNominalInvalid
	} else {
		return stored, nil
	}
}

// Iter visits nominals from highest to lowest.
func (self *NominalGroup) Iter(f func(nominal Nominal, count uint) error) error {
	for _, nominal := range self.order(ngOrderSortElemNominal) {
		if err := f(nominal, self.values[nominal]); err != nil {
			return err
		}
	}
	return nil
}

func (self *NominalGroup) Total() Amount {
	sum := Amount(0)
	for nominal, count := range self.values {
		sum += Amount(nominal) * Amount(count)
	}
	return sum
}

// Withdraw moves nominals summing to `a` from self into `to` (may be nil).
// On ErrNominalCount the returned Amount is the part that could not be covered,
// self is left partially expended, so callers wanting all-or-nothing work on Copy().
func (self *NominalGroup) Withdraw(to *NominalGroup, a Amount, strategy ExpendStrategy) (Amount, error) {
	return self.expendLoop(to, a, strategy)
}

func (self *NominalGroup) String() string {
	parts := make([]string, 0, len(self.values)+1)
	sum := Amount(0)
	for nominal, count := range self.values {
		if count > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", Amount(nominal).Format100I(), count))
			sum += Amount(nominal) * Amount(count)
		}
	}
	sort.Strings(parts)
	parts = append(parts, fmt.Sprintf("total:%s", sum.Format100I()))
	return strings.Join(parts, ",")
}

func (self *NominalGroup) expendLoop(to *NominalGroup, amount Amount, strategy ExpendStrategy) (Amount, error) {
	if amount < 0 {
		return amount, errors.NotValidf("withdraw amount=%s", amount.Format100I())
	}
	strategy.Reset(self)
	for amount > 0 {
		nominal, err := strategy.ExpendOne(self, amount)
		if err != nil {
			return amount, err
		}
		if nominal == 0 {
			panic("ExpendStrategy returned Nominal 0 without error")
		}
		amount -= Amount(nominal)
		if to != nil {
			if to.values == nil {
				to.values = make(map[Nominal]uint)
			}
			to.values[nominal] += 1
		}
	}
	return 0, nil
}

// common code from strategies
func expendOneOrdered(from *NominalGroup, order []Nominal, max Amount) (Nominal, error) {
	if len(order) < len(from.values) {
		panic("expendOneOrdered order must include all nominals")
	}
	if max == 0 {
		return 0, nil
	}
	for _, n := range order {
		if Amount(n) <= max && from.values[n] > 0 {
			from.values[n] -= 1
			return n, nil
		}
	}
	return 0, ErrNominalCount
}

type ngOrderSortElemFunc func(Nominal, uint) Nominal

func (self *NominalGroup) order(sortElemFunc ngOrderSortElemFunc) []Nominal {
	order := make([]Nominal, 0, len(self.values))
	for n := range self.values {
		order = append(order, n)
	}
	sort.Slice(order, func(i, j int) bool {
		ni, nj := order[i], order[j]
		ei, ej := sortElemFunc(ni, self.values[ni]), sortElemFunc(nj, self.values[nj])
		if ei == ej {
			return ni > nj
		}
		return ei > ej
	})
	return order
}
func ngOrderSortElemNominal(n Nominal, c uint) Nominal { return n }

// NominalGroup.Withdraw = strategy.Reset + loop strategy.ExpendOne
type ExpendStrategy interface {
	Reset(from *NominalGroup)
	ExpendOne(from *NominalGroup, max Amount) (Nominal, error)
}

type ExpendGenericOrder struct {
	order        []Nominal
	SortElemFunc ngOrderSortElemFunc
}

func (self *ExpendGenericOrder) Reset(from *NominalGroup) {
	self.order = from.order(self.SortElemFunc)
}
func (self *ExpendGenericOrder) ExpendOne(from *NominalGroup, max Amount) (Nominal, error) {
	return expendOneOrdered(from, self.order, max)
}

// Greedy: largest nominal first. Optimal for canonical coin systems like GBP.
func NewExpendLeastCount() ExpendStrategy {
	return &ExpendGenericOrder{SortElemFunc: ngOrderSortElemNominal}
}
