package metrics

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/alive/v2"
	"github.com/temoto/vendsim/internal/coin"
	"github.com/temoto/vendsim/internal/inventory"
	"github.com/temoto/vendsim/log2"
	tele_api "github.com/temoto/vendsim/tele"
)

func newTestInventory(t testing.TB) *inventory.Inventory {
	inv := inventory.New(log2.NewTest(t, log2.LDebug))
	_, err := inv.LoadProducts([]inventory.Product{{Name: "Soda", Price: 150, Stock: 10}})
	require.NoError(t, err)
	_, err = inv.LoadCoins([]inventory.CoinQty{{Kind: coin.Pound1, Qty: 2}, {Kind: coin.Pence20, Qty: 3}})
	require.NoError(t, err)
	return inv
}

func TestMetricsTeler(t *testing.T) {
	t.Parallel()

	m := New(nil)
	m.State(tele_api.StateClient)
	m.State(tele_api.StateNominal)
	m.StatModify(func(s *tele_api.Stat) { s.CoinsAccepted["£1"]++ })
	m.StatModify(func(s *tele_api.Stat) { s.CoinsAccepted["£1"]++ })
	m.StatModify(func(s *tele_api.Stat) { s.CoinsRejected++ })
	m.Transaction(tele_api.Transaction{Product: "Soda", Price: 150, Credit: 200})
	m.Failure(tele_api.Failure{Code: "CannotGiveChange"})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessions))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.coinsAccepted.WithLabelValues("£1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.coinsRejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.vends.WithLabelValues("Soda")))
	assert.Equal(t, 150.0, testutil.ToFloat64(m.revenue))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("CannotGiveChange")))
}

func TestInventoryCollector(t *testing.T) {
	t.Parallel()

	c := NewInventoryCollector(newTestInventory(t))
	expect := `
# HELP vendsim_coin_count Coins in machine by kind.
# TYPE vendsim_coin_count gauge
vendsim_coin_count{coin="20p"} 3
vendsim_coin_count{coin="£1"} 2
# HELP vendsim_coin_value_pence Total value of coins in machine.
# TYPE vendsim_coin_value_pence gauge
vendsim_coin_value_pence 260
# HELP vendsim_product_stock Product units in machine.
# TYPE vendsim_product_stock gauge
vendsim_product_stock{product="Soda"} 10
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expect),
		"vendsim_coin_count", "vendsim_coin_value_pence", "vendsim_product_stock"))
}

func TestRouter(t *testing.T) {
	t.Parallel()

	inv := newTestInventory(t)
	m := New(inv)
	m.Transaction(tele_api.Transaction{Product: "Soda", Price: 150})
	srv := httptest.NewServer(NewRouter(m, inv))
	defer srv.Close()

	body := get(t, srv.URL+"/metrics")
	assert.Contains(t, body, `vendsim_vends_total{product="Soda"} 1`)
	assert.Contains(t, body, `vendsim_product_price_pence{product="Soda"} 150`)

	body = get(t, srv.URL+"/status")
	assert.Contains(t, body, "- Soda: £1.50 (Stock: 10)")
	assert.Contains(t, body, "Total coin value: £2.60")

	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServe(t *testing.T) {
	t.Parallel()

	a := alive.NewAlive()
	inv := newTestInventory(t)
	addr, err := Serve(a, log2.NewTest(t, log2.LDebug), "127.0.0.1:0", NewRouter(New(inv), inv))
	require.NoError(t, err)
	assert.Contains(t, get(t, "http://"+addr.String()+"/status"), "Available products:")
	a.Stop()
	a.Wait()

	_, err = Serve(a, log2.NewTest(t, log2.LDebug), "127.0.0.1:0", http.NotFoundHandler())
	assert.Error(t, err, "stopped alive")
}

func get(t testing.TB, url string) string {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}
