// Package vend is the purchase transaction engine.
// Machine owns the current transaction: selected product and inserted coins.
// Stock lives in inventory, Machine only moves it.
package vend

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/temoto/vendsim/currency"
	"github.com/temoto/vendsim/internal/coin"
	"github.com/temoto/vendsim/internal/inventory"
	"github.com/temoto/vendsim/internal/types"
	"github.com/temoto/vendsim/log2"
	tele_api "github.com/temoto/vendsim/tele"
)

// Vend is InsertMoney outcome.
// Id names the transaction from first selection to completion or refund.
// Credit is running total of inserted coins.
// Change is set on success, Returned on terminal failure.
type Vend struct {
	Id       string
	Product  inventory.Product
	Credit   currency.Amount
	Change   []coin.Kind
	Returned []coin.Kind
}

type Machine struct {
	XXX_testHook func(State)

	inv  *inventory.Inventory
	log  *log2.Log
	tele tele_api.Teler

	mu       sync.Mutex
	state    State
	txid     string
	selected string
	inserted []coin.Kind
}

func NewMachine(inv *inventory.Inventory, log *log2.Log, tele tele_api.Teler) *Machine {
	if tele == nil {
		tele = tele_api.Noop{}
	}
	return &Machine{
		inv:   inv,
		log:   log,
		tele:  tele,
		state: StateIdle,
	}
}

func (self *Machine) State() State {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.state
}

// Credit is sum of inserted coins not yet spent or returned.
func (self *Machine) Credit() currency.Amount {
	self.mu.Lock()
	defer self.mu.Unlock()
	return coin.Total(self.inserted)
}

func (self *Machine) Selected() (string, bool) {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.selected, self.state == StateProductSelected
}

// Inserted coins in insertion order.
func (self *Machine) Inserted() []coin.Kind {
	self.mu.Lock()
	defer self.mu.Unlock()
	out := make([]coin.Kind, len(self.inserted))
	copy(out, self.inserted)
	return out
}

// SelectProduct keeps already inserted coins as credit for the new selection.
// Failure leaves current transaction as it was.
func (self *Machine) SelectProduct(name string) (inventory.Product, error) {
	const tag = "vend.select"
	self.mu.Lock()
	defer self.mu.Unlock()

	if strings.TrimSpace(name) == "" {
		return inventory.Product{}, types.NewError(types.ErrorInvalidSelection, "Invalid product selection. Please try again.")
	}
	p, ok := self.inv.Product(name)
	if !ok {
		return inventory.Product{}, types.NewError(types.ErrorProductNotFound, "The product '%s' does not exist.", name)
	}
	if p.Stock <= 0 {
		return p, types.NewError(types.ErrorProductOutOfStock, "The product '%s' is out of stock.", name)
	}

	if self.state == StateProductSelected && self.selected != name && len(self.inserted) != 0 {
		self.log.Infof("%s product=%s previous=%s carry credit=%s", tag, name, self.selected, coin.Total(self.inserted).String())
	}
	if self.state == StateIdle {
		self.txid = uuid.NewString()
	}
	self.selected = name
	self.setState(StateProductSelected)
	self.log.Debugf("%s tx=%s product=%s price=%s", tag, self.txid, p.Name, p.Price.String())
	return p, nil
}

// InsertMoney error with code InsufficientFunds is expected while credit < price,
// Vend.Credit carries running total. Any other error ends transaction,
// inserted coins are in Vend.Returned.
func (self *Machine) InsertMoney(kind coin.Kind) (Vend, error) {
	const tag = "vend.insert"
	self.mu.Lock()
	defer self.mu.Unlock()

	if self.state != StateProductSelected {
		return Vend{}, types.NewError(types.ErrorNoProductSelected, "No product selected.")
	}
	if !kind.Valid() {
		self.tele.StatModify(func(s *tele_api.Stat) { s.CoinsRejected++ })
		err := types.NewError(types.ErrorInvalidCoinType, "Invalid coin type.")
		return self.locked_abort(inventory.Product{Name: self.selected}, false, nil, errors.Annotatef(err, "%s coin=%s", tag, kind.String()))
	}

	self.inserted = append(self.inserted, kind)
	self.tele.StatModify(func(s *tele_api.Stat) { s.CoinsAccepted[kind.String()]++ })
	total := coin.Total(self.inserted)
	self.log.Debugf("%s coin=%s credit=%s", tag, kind.String(), total.String())

	p, ok := self.inv.Product(self.selected)
	if !ok {
		err := types.NewError(types.ErrorProductDelivery, "The product '%s' does not exist.", self.selected)
		return self.locked_abort(inventory.Product{Name: self.selected}, false, nil, err)
	}
	if total < p.Price {
		err := types.NewError(types.ErrorInsufficientFunds, "Insufficient funds. Inserted: %s, Price: %s", total.String(), p.Price.String())
		err.Credit = total
		return Vend{Id: self.txid, Product: p, Credit: total}, err
	}
	return self.locked_complete(p, total)
}

// CanGiveChange simulates greedy dispense on a copy of coin stock.
func (self *Machine) CanGiveChange(amount currency.Amount) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.locked_canGiveChange(amount)
}

// ReturnInsertedCoins clears and returns inserted coins, ending transaction.
// fromMachine=true also takes the same coins out of machine stock,
// that undoes coins folded during completion.
func (self *Machine) ReturnInsertedCoins(fromMachine bool) []coin.Kind {
	self.mu.Lock()
	defer self.mu.Unlock()
	coins := self.locked_returnInserted(fromMachine)
	if self.state == StateProductSelected {
		self.locked_finish(StateCancelled)
	}
	return coins
}

func (self *Machine) locked_complete(p inventory.Product, total currency.Amount) (Vend, error) {
	const tag = "vend.complete"

	if err := self.inv.AddCoins(self.inserted); err != nil {
		return self.locked_abort(p, false, nil, errors.Annotate(err, tag))
	}
	changeDue := total - p.Price
	if err := self.locked_canGiveChange(changeDue); err != nil {
		return self.locked_abort(p, true, nil, errors.Annotatef(err, "%s change=%s", tag, changeDue.String()))
	}
	change, err := self.locked_giveChange(changeDue)
	if err != nil {
		return self.locked_abort(p, true, nil, errors.Annotatef(err, "%s change=%s", tag, changeDue.String()))
	}
	given, err := self.locked_giveProduct()
	if err != nil {
		return self.locked_abort(p, true, change, errors.Annotate(err, tag))
	}

	v := Vend{Id: self.txid, Product: given, Credit: total, Change: change}
	self.inserted = nil
	self.locked_finish(StateCompleted)
	self.log.Infof("vend tx=%s product=%s price=%s credit=%s change=[%s]", v.Id, given.Name, given.Price.String(), total.String(), coin.Join(change, ","))
	self.tele.StatModify(func(s *tele_api.Stat) { s.Vends++ })
	self.tele.Transaction(tele_api.Transaction{
		Id:      v.Id,
		Product: given.Name,
		Price:   int64(given.Price),
		Credit:  int64(total),
		Change:  kindNames(change),
	})
	return v, nil
}

// locked_abort refunds inserted coins and ends transaction with `cause`.
// Change already dispensed goes back into stock.
func (self *Machine) locked_abort(p inventory.Product, folded bool, change []coin.Kind, cause error) (Vend, error) {
	const tag = "vend.abort"
	credit := coin.Total(self.inserted)
	txid := self.txid
	if len(change) != 0 {
		if err := self.inv.AddCoins(change); err != nil {
			self.log.Errorf("warning %s restore change=[%s] err=%v", tag, coin.Join(change, ","), err)
		}
	}
	returned := self.locked_returnInserted(folded)
	self.locked_finish(StateCancelled)
	self.log.Infof("%s tx=%s product=%s code=%s returned=[%s] err=%v", tag, txid, p.Name, types.CodeOf(cause).String(), coin.Join(returned, ","), cause)
	self.tele.StatModify(func(s *tele_api.Stat) { s.Failures++ })
	self.tele.Failure(tele_api.Failure{
		Id:       txid,
		Code:     types.CodeOf(cause).String(),
		Message:  errors.Cause(cause).Error(),
		Product:  p.Name,
		Returned: kindNames(returned),
	})
	return Vend{Id: txid, Product: p, Credit: credit, Returned: returned}, cause
}

func (self *Machine) locked_returnInserted(fromMachine bool) []coin.Kind {
	const tag = "vend.return"
	coins := self.inserted
	self.inserted = nil
	if fromMachine && len(coins) != 0 {
		if missing := self.inv.RemoveCoins(coins); len(missing) != 0 {
			self.log.Errorf("warning %s claw back short coins=[%s]", tag, coin.Join(missing, ","))
		}
	}
	if len(coins) != 0 {
		self.log.Debugf("%s coins=[%s] from_machine=%t", tag, coin.Join(coins, ","), fromMachine)
	}
	return coins
}

func (self *Machine) locked_canGiveChange(amount currency.Amount) error {
	if amount < 0 {
		return types.NewError(types.ErrorCannotGiveChange, "Change must be greater than zero.")
	}
	if amount == 0 {
		return nil
	}
	return self.inv.CoinsView(func(stock *currency.NominalGroup) error {
		left, err := stock.Withdraw(nil, amount, currency.NewExpendLeastCount())
		if err != nil {
			return changeError(left, err)
		}
		return nil
	})
}

// locked_giveChange dispenses from real stock, all or nothing.
func (self *Machine) locked_giveChange(amount currency.Amount) ([]coin.Kind, error) {
	if amount == 0 {
		return nil, nil
	}
	out := &currency.NominalGroup{}
	err := self.inv.CoinsTx(func(stock *currency.NominalGroup) error {
		left, err := stock.Withdraw(out, amount, currency.NewExpendLeastCount())
		if err != nil {
			return changeError(left, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	change := make([]coin.Kind, 0, 8)
	for _, k := range coin.Descending() {
		// absent kind means none withdrawn
		count, err := out.Get(k.Nominal())
		if err != nil {
			continue
		}
		for i := uint(0); i < count; i++ {
			change = append(change, k)
		}
	}
	return change, nil
}

func (self *Machine) locked_giveProduct() (inventory.Product, error) {
	if self.selected == "" {
		return inventory.Product{}, types.NewError(types.ErrorProductDelivery, "No product selected.")
	}
	p, err := self.inv.TakeProduct(self.selected)
	if err != nil {
		return p, types.NewError(types.ErrorProductDelivery, "Error delivering product: %s", errors.Cause(err).Error())
	}
	return p, nil
}

func (self *Machine) locked_finish(terminal State) {
	self.setState(terminal)
	self.txid = ""
	self.selected = ""
	self.setState(StateIdle)
}

func (self *Machine) setState(next State) {
	if next == self.state {
		return
	}
	self.log.Debugf("vend state %s -> %s", self.state.String(), next.String())
	switch {
	case self.state == StateIdle && next == StateProductSelected:
		self.tele.State(tele_api.StateClient)
	case next == StateIdle:
		self.tele.State(tele_api.StateNominal)
	}
	self.state = next
	if self.XXX_testHook != nil {
		self.XXX_testHook(next)
	}
}

// changeError names the missing coin when leftover is exactly one denomination.
func changeError(left currency.Amount, cause error) error {
	if errors.Cause(cause) != currency.ErrNominalCount {
		return errors.Annotate(cause, "change")
	}
	if k, ok := coin.ByValue(left); ok {
		return types.NewError(types.ErrorCannotGiveChange, "Cannot give exact change. Missing coin: %s", k.String())
	}
	return types.NewError(types.ErrorCannotGiveChange, "Cannot give exact change. Remaining change: %s", left.String())
}

func kindNames(kinds []coin.Kind) []string {
	if len(kinds) == 0 {
		return nil
	}
	ss := make([]string, len(kinds))
	for i, k := range kinds {
		ss[i] = k.String()
	}
	return ss
}
