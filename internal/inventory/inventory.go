// Package inventory owns product stock and machine coin stock.
// Nothing outside this package holds references into its maps,
// all reads return copies.
package inventory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/vendsim/currency"
	"github.com/temoto/vendsim/internal/coin"
	"github.com/temoto/vendsim/internal/types"
	"github.com/temoto/vendsim/log2"
)

type Product struct {
	Name  string
	Price currency.Amount
	Stock int
}

func (p Product) String() string {
	return fmt.Sprintf("product(name=%s price=%s stock=%d)", p.Name, p.Price.String(), p.Stock)
}

type ProductQty struct {
	Name string
	Qty  int
}

type CoinQty struct {
	Kind coin.Kind
	Qty  int
}

// ConfirmFunc is asked when unload request exceeds available stock.
// true = remove everything available, false = skip this entry.
type ConfirmFunc func(item string, requested, available int) bool

type Inventory struct {
	log *log2.Log
	mu  sync.RWMutex

	products map[string]*Product
	order    []string // product insertion order

	coins    currency.NominalGroup
	coinSeen map[coin.Kind]struct{}
}

func New(log *log2.Log) *Inventory {
	self := &Inventory{
		log:      log,
		products: make(map[string]*Product),
		coinSeen: make(map[coin.Kind]struct{}),
	}
	self.coins.SetValid(coin.Nominals())
	return self
}

func (self *Inventory) Product(name string) (Product, bool) {
	self.mu.RLock()
	defer self.mu.RUnlock()
	if p, ok := self.products[name]; ok {
		return *p, true
	}
	return Product{}, false
}

// Products snapshot in insertion order.
func (self *Inventory) Products() []Product {
	self.mu.RLock()
	defer self.mu.RUnlock()
	out := make([]Product, 0, len(self.order))
	for _, name := range self.order {
		out = append(out, *self.products[name])
	}
	return out
}

func (self *Inventory) ProductCount() int {
	self.mu.RLock()
	defer self.mu.RUnlock()
	return len(self.order)
}

func (self *Inventory) GetProductNameByIndex(i int) (string, error) {
	self.mu.RLock()
	defer self.mu.RUnlock()
	if i < 0 || i >= len(self.order) {
		return "", types.NewError(types.ErrorIndexOutOfRange, "product index=%d out of range [0,%d)", i, len(self.order))
	}
	return self.order[i], nil
}

// MustGetProductNameByIndex panics on out of range index, that is caller bug.
func (self *Inventory) MustGetProductNameByIndex(i int) string {
	name, err := self.GetProductNameByIndex(i)
	if err != nil {
		panic("code error " + err.Error())
	}
	return name
}

func (self *Inventory) LoadProducts(list []Product) (int, error) {
	const tag = "inventory.load-products"
	if len(list) == 0 {
		return 0, types.NewError(types.ErrorProductListEmpty, "Product list cannot be null or empty.")
	}
	for i, p := range list {
		if p.Name == "" {
			return 0, types.NewError(types.ErrorProductListEmpty, "One or more products are empty (index=%d).", i)
		}
		if p.Price < 0 {
			return 0, errors.NotValidf("%s product=%s price=%s", tag, p.Name, p.Price.String())
		}
	}

	self.mu.Lock()
	defer self.mu.Unlock()
	loaded := 0
	for _, p := range list {
		if existing, ok := self.products[p.Name]; ok {
			if existing.Price != p.Price {
				self.log.Debugf("%s product=%s keep price=%s ignore=%s", tag, p.Name, existing.Price.String(), p.Price.String())
			}
			existing.Stock += p.Stock
		} else {
			np := p
			self.products[p.Name] = &np
			self.order = append(self.order, p.Name)
		}
		loaded++
	}
	self.log.Debugf("%s loaded=%d", tag, loaded)
	return loaded, nil
}

func (self *Inventory) UnloadProducts(list []ProductQty, confirm ConfirmFunc) (int, error) {
	const tag = "inventory.unload-products"
	if len(list) == 0 {
		return 0, types.NewError(types.ErrorProductListEmpty, "Product list cannot be null or empty.")
	}
	for _, pq := range list {
		if pq.Name == "" {
			return 0, types.NewError(types.ErrorProductListEmpty, "One or more products are empty.")
		}
		if pq.Qty <= 0 {
			return 0, errors.NotValidf("%s product=%s qty=%d", tag, pq.Name, pq.Qty)
		}
	}

	self.mu.Lock()
	defer self.mu.Unlock()
	removed := 0
	for _, pq := range list {
		p, ok := self.products[pq.Name]
		if !ok {
			self.log.Infof("%s product=%s not found, skip", tag, pq.Name)
			continue
		}
		if pq.Qty <= p.Stock {
			p.Stock -= pq.Qty
			removed += pq.Qty
			continue
		}
		available := p.Stock
		if available < 0 {
			available = 0
		}
		if confirm == nil || !confirm(pq.Name, pq.Qty, available) {
			self.log.Infof("%s product=%s requested=%d available=%d skip", tag, pq.Name, pq.Qty, available)
			continue
		}
		removed += available
		self.locked_deleteProduct(pq.Name)
		self.log.Infof("%s product=%s removed=%d entry deleted", tag, pq.Name, available)
	}
	return removed, nil
}

// TakeProduct gives out one unit.
func (self *Inventory) TakeProduct(name string) (Product, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	p, ok := self.products[name]
	if !ok {
		return Product{}, types.NewError(types.ErrorProductNotFound, "The product '%s' does not exist.", name)
	}
	if p.Stock <= 0 {
		return *p, types.NewError(types.ErrorProductOutOfStock, "The product '%s' is out of stock.", name)
	}
	p.Stock--
	return *p, nil
}

func (self *Inventory) locked_deleteProduct(name string) {
	delete(self.products, name)
	for i, n := range self.order {
		if n == name {
			self.order = append(self.order[:i], self.order[i+1:]...)
			break
		}
	}
}

func (self *Inventory) String() string {
	self.mu.RLock()
	defer self.mu.RUnlock()
	parts := make([]string, 0, len(self.order))
	for _, name := range self.order {
		parts = append(parts, fmt.Sprintf("%s:%d", name, self.products[name].Stock))
	}
	return fmt.Sprintf("inventory(products=[%s] coins=[%s])", strings.Join(parts, ","), self.coins.String())
}
