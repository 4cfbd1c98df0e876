package vend

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/vendsim/currency"
	"github.com/temoto/vendsim/internal/coin"
	"github.com/temoto/vendsim/internal/inventory"
	"github.com/temoto/vendsim/internal/types"
	"github.com/temoto/vendsim/log2"
	tele_api "github.com/temoto/vendsim/tele"
)

type tenv struct {
	m   *Machine
	inv *inventory.Inventory
	rec *tele_api.Recorder
}

func newTestEnv(t testing.TB, products []inventory.Product, coins []inventory.CoinQty) *tenv {
	log := log2.NewTest(t, log2.LDebug)
	env := &tenv{
		inv: inventory.New(log),
		rec: tele_api.NewRecorder(),
	}
	if len(products) != 0 {
		_, err := env.inv.LoadProducts(products)
		require.NoError(t, err)
	}
	if len(coins) != 0 {
		_, err := env.inv.LoadCoins(coins)
		require.NoError(t, err)
	}
	env.m = NewMachine(env.inv, log, env.rec)
	return env
}

func (env *tenv) stock(t testing.TB, name string) int {
	p, ok := env.inv.Product(name)
	require.True(t, ok, "product=%s", name)
	return p.Stock
}

var demoProducts = []inventory.Product{
	{Name: "Soda", Price: 150, Stock: 10},
	{Name: "Chips", Price: 100, Stock: 5},
	{Name: "Candy", Price: 75, Stock: 20},
}

func TestCanGiveChange(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		coins    []inventory.CoinQty
		amount   currency.Amount
		expect   types.ErrorCode
		contains string
	}{
		{"enough", []inventory.CoinQty{{Kind: coin.Pound1, Qty: 5}, {Kind: coin.Pence50, Qty: 3}}, 150, types.ErrorNone, ""},
		{"empty-stock", []inventory.CoinQty{{Kind: coin.Pound1, Qty: 0}, {Kind: coin.Pence50, Qty: 0}, {Kind: coin.Pence20, Qty: 0}}, 50, types.ErrorCannotGiveChange, "50p"},
		{"remaining", []inventory.CoinQty{{Kind: coin.Pound1, Qty: 0}, {Kind: coin.Pence50, Qty: 0}}, 150, types.ErrorCannotGiveChange, "Remaining change: £1.50"},
		{"alternative-coins", []inventory.CoinQty{{Kind: coin.Pound2, Qty: 0}, {Kind: coin.Pound1, Qty: 2}, {Kind: coin.Pence50, Qty: 3}}, 200, types.ErrorNone, ""},
		{"multiple-kinds", []inventory.CoinQty{{Kind: coin.Pound1, Qty: 2}, {Kind: coin.Pence20, Qty: 1}, {Kind: coin.Pence10, Qty: 1}, {Kind: coin.Pence5, Qty: 1}}, 135, types.ErrorNone, ""},
		{"missing-penny", []inventory.CoinQty{{Kind: coin.Pence10, Qty: 5}}, 11, types.ErrorCannotGiveChange, "1p"},
		{"zero", nil, 0, types.ErrorNone, ""},
		{"negative", nil, -50, types.ErrorCannotGiveChange, "Change must be greater than zero."},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			env := newTestEnv(t, nil, c.coins)
			before := env.inv.Coins()
			err := env.m.CanGiveChange(c.amount)
			assert.Equal(t, c.expect, types.CodeOf(err))
			if c.contains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), c.contains)
			}
			assert.Equal(t, before, env.inv.Coins(), "stock must not change")
		})
	}
}

func TestPurchaseExact(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, demoProducts, nil)
	states := []State{}
	env.m.XXX_testHook = func(s State) { states = append(states, s) }

	p, err := env.m.SelectProduct("Soda")
	require.NoError(t, err)
	assert.Equal(t, currency.Amount(150), p.Price)

	v, err := env.m.InsertMoney(coin.Pound1)
	require.Error(t, err)
	txid := v.Id
	assert.Len(t, txid, 36)
	assert.Equal(t, types.ErrorInsufficientFunds, types.CodeOf(err))
	assert.False(t, types.IsTerminal(err))
	assert.Equal(t, "Insufficient funds. Inserted: £1.00, Price: £1.50", err.Error())
	assert.Equal(t, currency.Amount(100), v.Credit)
	assert.Equal(t, currency.Amount(100), errors.Cause(err).(*types.Error).Credit)
	assert.Equal(t, StateProductSelected, env.m.State())

	v, err = env.m.InsertMoney(coin.Pence50)
	require.NoError(t, err)
	assert.Equal(t, "Soda", v.Product.Name)
	assert.Equal(t, txid, v.Id)
	assert.Equal(t, currency.Amount(150), v.Credit)
	assert.Empty(t, v.Change)
	assert.Empty(t, v.Returned)

	assert.Equal(t, 9, env.stock(t, "Soda"))
	assert.Equal(t, uint(1), env.inv.CoinCount(coin.Pound1))
	assert.Equal(t, uint(1), env.inv.CoinCount(coin.Pence50))
	assert.Equal(t, StateIdle, env.m.State())
	assert.Equal(t, currency.Amount(0), env.m.Credit())
	assert.Equal(t, []State{StateProductSelected, StateCompleted, StateIdle}, states)

	require.Len(t, env.rec.Transactions, 1)
	assert.Equal(t, tele_api.Transaction{Id: txid, Product: "Soda", Price: 150, Credit: 150}, env.rec.Transactions[0])
	stat := env.rec.Stat()
	assert.Equal(t, uint32(1), stat.Vends)
	assert.Equal(t, uint32(1), stat.CoinsAccepted["£1"])
	assert.Equal(t, []tele_api.State{tele_api.StateClient, tele_api.StateNominal}, env.rec.States)
}

func TestPurchaseWithChange(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, demoProducts, []inventory.CoinQty{{Kind: coin.Pence20, Qty: 5}, {Kind: coin.Pence5, Qty: 1}})
	_, err := env.m.SelectProduct("Candy")
	require.NoError(t, err)
	v, err := env.m.InsertMoney(coin.Pound1)
	require.NoError(t, err)
	assert.Equal(t, []coin.Kind{coin.Pence20, coin.Pence5}, v.Change)
	assert.Equal(t, coin.Total(v.Change), v.Credit-v.Product.Price)
	assert.Equal(t, 19, env.stock(t, "Candy"))
	assert.Equal(t, uint(1), env.inv.CoinCount(coin.Pound1))
	assert.Equal(t, uint(4), env.inv.CoinCount(coin.Pence20))
	assert.Equal(t, uint(0), env.inv.CoinCount(coin.Pence5))
	require.Len(t, env.rec.Transactions, 1)
	assert.Equal(t, []string{"20p", "5p"}, env.rec.Transactions[0].Change)
}

func TestChangeRepeatedCoins(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, demoProducts, []inventory.CoinQty{{Kind: coin.Pence20, Qty: 5}, {Kind: coin.Pence10, Qty: 2}, {Kind: coin.Pence5, Qty: 1}})
	_, err := env.m.SelectProduct("Candy")
	require.NoError(t, err)
	v, err := env.m.InsertMoney(coin.Pound2)
	require.NoError(t, err)
	assert.Equal(t, []coin.Kind{
		coin.Pence20, coin.Pence20, coin.Pence20, coin.Pence20, coin.Pence20,
		coin.Pence10, coin.Pence10,
		coin.Pence5,
	}, v.Change)
	assert.Equal(t, currency.Amount(125), coin.Total(v.Change))
	assert.Equal(t, uint(0), env.inv.CoinCount(coin.Pence20))
	assert.Equal(t, uint(1), env.inv.CoinCount(coin.Pound2))
}

func TestCannotGiveChangeRefund(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, demoProducts, []inventory.CoinQty{{Kind: coin.Pound1, Qty: 10}})
	_, err := env.m.SelectProduct("Candy")
	require.NoError(t, err)

	v, err := env.m.InsertMoney(coin.Pound2)
	require.Error(t, err)
	assert.Equal(t, types.ErrorCannotGiveChange, types.CodeOf(err))
	assert.True(t, types.IsTerminal(err))
	assert.Contains(t, err.Error(), "Cannot give exact change. Remaining change: £0.25")
	assert.Equal(t, []coin.Kind{coin.Pound2}, v.Returned)

	assert.Equal(t, 20, env.stock(t, "Candy"))
	assert.Equal(t, uint(0), env.inv.CoinCount(coin.Pound2), "folded coin clawed back")
	assert.Equal(t, uint(10), env.inv.CoinCount(coin.Pound1))
	assert.Equal(t, StateIdle, env.m.State())
	assert.Empty(t, env.m.Inserted())

	require.Len(t, env.rec.Failures, 1)
	assert.Equal(t, "CannotGiveChange", env.rec.Failures[0].Code)
	assert.Equal(t, v.Id, env.rec.Failures[0].Id)
	assert.NotEmpty(t, v.Id)
	assert.Equal(t, []string{"£2"}, env.rec.Failures[0].Returned)
	assert.Empty(t, env.rec.Transactions)
}

func TestReturnInsertedCoins(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, demoProducts, nil)
	_, err := env.m.SelectProduct("Soda")
	require.NoError(t, err)
	_, err = env.m.InsertMoney(coin.Pence50)
	require.True(t, types.IsCode(err, types.ErrorInsufficientFunds))
	_, err = env.m.InsertMoney(coin.Pence20)
	require.True(t, types.IsCode(err, types.ErrorInsufficientFunds))

	assert.Equal(t, []coin.Kind{coin.Pence50, coin.Pence20}, env.m.ReturnInsertedCoins(false))
	assert.Empty(t, env.m.ReturnInsertedCoins(false))
	assert.Equal(t, StateIdle, env.m.State())
	_, selected := env.m.Selected()
	assert.False(t, selected)
	assert.Equal(t, currency.Amount(0), env.inv.CoinsTotal(), "stock untouched without fromMachine")
}

func TestReturnFromMachineShortfall(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, demoProducts, []inventory.CoinQty{{Kind: coin.Pound1, Qty: 1}})
	_, err := env.m.SelectProduct("Soda")
	require.NoError(t, err)
	_, err = env.m.InsertMoney(coin.Pound1)
	require.True(t, types.IsCode(err, types.ErrorInsufficientFunds))
	_, err = env.m.InsertMoney(coin.Pence20)
	require.True(t, types.IsCode(err, types.ErrorInsufficientFunds))

	// coins were never folded, only £1 can be taken from stock
	returned := env.m.ReturnInsertedCoins(true)
	assert.Equal(t, []coin.Kind{coin.Pound1, coin.Pence20}, returned)
	assert.Equal(t, uint(0), env.inv.CoinCount(coin.Pound1))
	assert.Equal(t, uint(0), env.inv.CoinCount(coin.Pence20))
}

func TestReselectKeepsCredit(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, demoProducts, nil)
	_, err := env.m.SelectProduct("Soda")
	require.NoError(t, err)
	_, err = env.m.InsertMoney(coin.Pound1)
	require.True(t, types.IsCode(err, types.ErrorInsufficientFunds))

	// failed selection leaves transaction as it was
	_, err = env.m.SelectProduct("Tea")
	assert.Equal(t, types.ErrorProductNotFound, types.CodeOf(err))
	name, ok := env.m.Selected()
	assert.True(t, ok)
	assert.Equal(t, "Soda", name)

	_, err = env.m.SelectProduct("Chips")
	require.NoError(t, err)
	assert.Equal(t, currency.Amount(100), env.m.Credit())

	v, err := env.m.InsertMoney(coin.Pence50)
	require.NoError(t, err)
	assert.Equal(t, "Chips", v.Product.Name)
	assert.Equal(t, env.rec.Transactions[0].Id, v.Id, "reselection keeps transaction")

	// next transaction gets new id
	_, err = env.m.SelectProduct("Soda")
	require.NoError(t, err)
	v2, _ := env.m.InsertMoney(coin.Pence50)
	assert.NotEqual(t, v.Id, v2.Id)
	assert.Equal(t, []coin.Kind{coin.Pence50}, v.Change)
	assert.Equal(t, 4, env.stock(t, "Chips"))
	assert.Equal(t, 10, env.stock(t, "Soda"))
}

func TestSelectProductErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		input  string
		expect types.ErrorCode
	}{
		{"empty", "", types.ErrorInvalidSelection},
		{"blank", "  \t", types.ErrorInvalidSelection},
		{"unknown", "Tea", types.ErrorProductNotFound},
		{"case-sensitive", "soda", types.ErrorProductNotFound},
		{"out-of-stock", "Gum", types.ErrorProductOutOfStock},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			env := newTestEnv(t, append([]inventory.Product{{Name: "Gum", Price: 20}}, demoProducts...), nil)
			_, err := env.m.SelectProduct(c.input)
			assert.Equal(t, c.expect, types.CodeOf(err))
			assert.Equal(t, StateIdle, env.m.State())
		})
	}
}

func TestInsertMoneyErrors(t *testing.T) {
	t.Parallel()

	t.Run("no-product-selected", func(t *testing.T) {
		env := newTestEnv(t, demoProducts, nil)
		v, err := env.m.InsertMoney(coin.Pound1)
		assert.Equal(t, types.ErrorNoProductSelected, types.CodeOf(err))
		assert.Equal(t, "No product selected.", err.Error())
		assert.Equal(t, Vend{}, v)
		assert.Equal(t, currency.Amount(0), env.inv.CoinsTotal())
	})

	t.Run("invalid-coin", func(t *testing.T) {
		env := newTestEnv(t, demoProducts, nil)
		_, err := env.m.SelectProduct("Soda")
		require.NoError(t, err)
		_, err = env.m.InsertMoney(coin.Pence50)
		require.True(t, types.IsCode(err, types.ErrorInsufficientFunds))
		v, err := env.m.InsertMoney(coin.Kind(3))
		assert.Equal(t, types.ErrorInvalidCoinType, types.CodeOf(err))
		assert.Equal(t, []coin.Kind{coin.Pence50}, v.Returned)
		assert.Equal(t, StateIdle, env.m.State())
		assert.Equal(t, uint32(1), env.rec.Stat().CoinsRejected)
	})

	t.Run("product-vanished", func(t *testing.T) {
		env := newTestEnv(t, demoProducts, nil)
		_, err := env.m.SelectProduct("Chips")
		require.NoError(t, err)
		_, err = env.inv.UnloadProducts([]inventory.ProductQty{{Name: "Chips", Qty: 99}}, func(string, int, int) bool { return true })
		require.NoError(t, err)
		v, err := env.m.InsertMoney(coin.Pound1)
		assert.Equal(t, types.ErrorProductDelivery, types.CodeOf(err))
		assert.Equal(t, []coin.Kind{coin.Pound1}, v.Returned)
		assert.Equal(t, currency.Amount(0), env.inv.CoinsTotal())
	})

	t.Run("delivery-restores-stock", func(t *testing.T) {
		env := newTestEnv(t, demoProducts, []inventory.CoinQty{{Kind: coin.Pence20, Qty: 2}, {Kind: coin.Pence5, Qty: 2}})
		_, err := env.m.SelectProduct("Candy")
		require.NoError(t, err)
		_, err = env.inv.UnloadProducts([]inventory.ProductQty{{Name: "Candy", Qty: 20}}, nil)
		require.NoError(t, err)
		before := env.inv.Coins()

		v, err := env.m.InsertMoney(coin.Pound1)
		assert.Equal(t, types.ErrorProductDelivery, types.CodeOf(err))
		assert.Equal(t, []coin.Kind{coin.Pound1}, v.Returned)
		assert.Empty(t, v.Change)
		assert.Equal(t, before, env.inv.Coins()[1:], "change restored")
		assert.Equal(t, uint(0), env.inv.CoinCount(coin.Pound1))
		assert.Equal(t, 0, env.stock(t, "Candy"))
	})
}
