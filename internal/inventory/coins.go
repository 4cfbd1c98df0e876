package inventory

import (
	"github.com/juju/errors"
	"github.com/temoto/vendsim/currency"
	"github.com/temoto/vendsim/internal/coin"
	"github.com/temoto/vendsim/internal/types"
)

func validateCoinList(list []CoinQty) error {
	if len(list) == 0 {
		return types.NewError(types.ErrorCoinListEmpty, "Change list cannot be null or empty.")
	}
	for _, cq := range list {
		if cq.Kind == coin.KindInvalid {
			return types.NewError(types.ErrorCoinListEmpty, "Coin cannot be null.")
		}
		if !cq.Kind.Valid() {
			return types.NewError(types.ErrorInvalidCoinType, "Invalid coin type %s.", cq.Kind.String())
		}
		if cq.Qty < 0 {
			return types.NewError(types.ErrorCoinLoading, "Coin %s quantity=%d must not be negative, use unload.", cq.Kind.String(), cq.Qty)
		}
	}
	return nil
}

// LoadCoins returns total quantity loaded. Zero quantity registers the kind for reporting.
func (self *Inventory) LoadCoins(list []CoinQty) (int, error) {
	const tag = "inventory.load-coins"
	if err := validateCoinList(list); err != nil {
		return 0, err
	}

	self.mu.Lock()
	defer self.mu.Unlock()
	loaded := 0
	for _, cq := range list {
		if err := self.coins.Add(cq.Kind.Nominal(), uint(cq.Qty)); err != nil {
			// validated above, reaching here means coin table and stock disagree
			return loaded, errors.Annotatef(types.NewError(types.ErrorCoinLoading, "%v", err), tag)
		}
		self.coinSeen[cq.Kind] = struct{}{}
		loaded += cq.Qty
	}
	self.log.Debugf("%s loaded=%d stock=%s", tag, loaded, self.coins.String())
	return loaded, nil
}

// UnloadCoins never drives count below zero. Over-request is capped at available
// only when confirm agrees.
func (self *Inventory) UnloadCoins(list []CoinQty, confirm ConfirmFunc) (int, error) {
	const tag = "inventory.unload-coins"
	if err := validateCoinList(list); err != nil {
		return 0, err
	}

	self.mu.Lock()
	defer self.mu.Unlock()
	removed := 0
	for _, cq := range list {
		if _, ok := self.coinSeen[cq.Kind]; !ok {
			self.log.Infof("%s coin=%s not loaded, skip", tag, cq.Kind.String())
			continue
		}
		available, _ := self.coins.Get(cq.Kind.Nominal())
		want := uint(cq.Qty)
		if want > available {
			if confirm == nil || !confirm(cq.Kind.String(), cq.Qty, int(available)) {
				self.log.Infof("%s coin=%s requested=%d available=%d skip", tag, cq.Kind.String(), cq.Qty, available)
				continue
			}
			want = available
		}
		n, err := self.coins.Remove(cq.Kind.Nominal(), want)
		if err != nil {
			return removed, errors.Annotate(err, tag)
		}
		removed += int(n)
	}
	self.log.Debugf("%s removed=%d stock=%s", tag, removed, self.coins.String())
	return removed, nil
}

// Coins snapshot ordered by descending value. Only kinds ever loaded are listed.
func (self *Inventory) Coins() []CoinQty {
	self.mu.RLock()
	defer self.mu.RUnlock()
	out := make([]CoinQty, 0, len(self.coinSeen))
	for _, k := range coin.Descending() {
		if _, ok := self.coinSeen[k]; !ok {
			continue
		}
		count, _ := self.coins.Get(k.Nominal())
		out = append(out, CoinQty{Kind: k, Qty: int(count)})
	}
	return out
}

func (self *Inventory) CoinCount(k coin.Kind) uint {
	self.mu.RLock()
	defer self.mu.RUnlock()
	count, _ := self.coins.Get(k.Nominal())
	return count
}

func (self *Inventory) CoinsTotal() currency.Amount {
	self.mu.RLock()
	defer self.mu.RUnlock()
	return self.coins.Total()
}

// AddCoins folds coins (user inserted) into machine stock.
func (self *Inventory) AddCoins(kinds []coin.Kind) error {
	const tag = "inventory.add-coins"
	order, counts := coin.Group(kinds)
	self.mu.Lock()
	defer self.mu.Unlock()
	// check first, no partial fold
	for _, k := range order {
		if !self.coins.Valid(k.Nominal()) {
			return errors.Annotate(types.NewError(types.ErrorCoinLoading, "Error loading coins into machine: invalid coin %s.", k.String()), tag)
		}
	}
	for _, k := range order {
		self.coins.MustAdd(k.Nominal(), counts[k])
		self.coinSeen[k] = struct{}{}
	}
	return nil
}

// RemoveCoins takes back same coins, best effort.
// Returns coins that could not be removed because stock was short.
func (self *Inventory) RemoveCoins(kinds []coin.Kind) []coin.Kind {
	order, counts := coin.Group(kinds)
	self.mu.Lock()
	defer self.mu.Unlock()
	var missing []coin.Kind
	for _, k := range order {
		n, err := self.coins.Remove(k.Nominal(), counts[k])
		if err != nil {
			n = 0
		}
		for i := n; i < counts[k]; i++ {
			missing = append(missing, k)
		}
	}
	return missing
}

// CoinsView runs f on a private copy of coin stock, nothing is stored.
func (self *Inventory) CoinsView(f func(stock *currency.NominalGroup) error) error {
	self.mu.RLock()
	stock := self.coins.Copy()
	self.mu.RUnlock()
	return f(stock)
}

// CoinsTx runs f on a copy of coin stock under exclusive lock,
// the copy replaces stock only if f returns nil.
func (self *Inventory) CoinsTx(f func(stock *currency.NominalGroup) error) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	stock := self.coins.Copy()
	if err := f(stock); err != nil {
		return err
	}
	self.coins = *stock
	return nil
}
