package state

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/vendsim/helpers"
	"github.com/temoto/vendsim/internal/coin"
	"github.com/temoto/vendsim/internal/inventory"
	"github.com/temoto/vendsim/internal/metrics"
	"github.com/temoto/vendsim/internal/vend"
	"github.com/temoto/vendsim/log2"
	tele_api "github.com/temoto/vendsim/tele"
)

type Global struct {
	Alive        *alive.Alive
	BuildVersion string
	Config       *Config
	Inventory    *inventory.Inventory
	Machine      *vend.Machine
	Metrics      *metrics.Metrics
	Log          *log2.Log
	Tele         tele_api.Teler

	_copy_guard sync.Mutex //nolint:unused
}

const ContextKey = "run/state-global"

func GetGlobal(ctx context.Context) *Global {
	v := ctx.Value(ContextKey)
	if v == nil {
		panic(fmt.Sprintf("context['%s'] is nil", ContextKey))
	}
	if g, ok := v.(*Global); ok {
		return g
	}
	panic(fmt.Sprintf("context['%s'] expected type *Global actual=%#v", ContextKey, v))
}

// If `Init` fails, consider `Global` is in broken state.
func (g *Global) Init(ctx context.Context, cfg *Config) error {
	g.Config = cfg
	if g.Config.Log.Debug {
		g.Log.SetLevel(log2.LDebug)
	} else {
		g.Log.SetLevel(log2.LInfo)
	}
	g.Log.Infof("build version=%s", g.BuildVersion)

	// Since tele is remote error reporting mechanism, it must be inited before anything else
	g.Config.Tele.BuildVersion = g.BuildVersion
	// Tele.Init gets g.Log clone before SetErrorFunc, so Tele.Log.Error doesn't recurse on itself
	if err := g.Tele.Init(ctx, g.Log.Clone(log2.LInfo), g.Config.Tele); err != nil {
		g.Tele = tele_api.Noop{}
		return errors.Annotate(err, "tele init")
	}

	if g.Config.Money.Scale == 0 {
		g.Config.Money.Scale = 1
		g.Log.Debugf("config: money.scale is not set, using 1")
	} else if g.Config.Money.Scale < 0 {
		return errors.NotValidf("config: money.scale < 0")
	}

	if g.Inventory == nil {
		g.Inventory = inventory.New(g.Log)
	}
	g.Metrics = metrics.New(g.Inventory)
	g.Log.SetErrorFunc(g.events().Error)
	g.Machine = vend.NewMachine(g.Inventory, g.Log, g.events())
	if err := g.initInventory(); err != nil {
		return errors.Annotate(err, "initInventory")
	}
	g.Tele.State(tele_api.StateNominal)
	return nil
}

func (g *Global) MustInit(ctx context.Context, cfg *Config) {
	err := g.Init(ctx, cfg)
	if err != nil {
		g.Fatal(err)
	}
}

func (g *Global) Error(err error, args ...interface{}) {
	if err != nil {
		if len(args) != 0 {
			msg := args[0].(string)
			args = args[1:]
			err = errors.Annotatef(err, msg, args...)
		}
		g.events().Error(err)
		g.Log.Logf(log2.LError, "error: %v", err)
	}
}

func (g *Global) Fatal(err error, args ...interface{}) {
	if err != nil {
		g.Error(err, args...)
		g.StopWait(5 * time.Second)
		g.Log.Fatal(errors.ErrorStack(err))
		os.Exit(1)
	}
}

// events fans out to telemetry and metrics once both exist.
func (g *Global) events() tele_api.Teler {
	if g.Metrics == nil {
		return g.Tele
	}
	return tele_api.Multi{g.Tele, g.Metrics}
}

// Stop also flushes telemetry.
func (g *Global) Stop() {
	g.Alive.Stop()
	g.Tele.Close()
}

func (g *Global) StopWait(timeout time.Duration) bool {
	g.Stop()
	select {
	case <-g.Alive.WaitChan():
		return true
	case <-time.After(timeout):
		return false
	}
}

// initInventory stocks machine from config, all entries are validated before loading.
func (g *Global) initInventory() error {
	errs := make([]error, 0)

	products := make([]inventory.Product, 0, len(g.Config.Inventory.Products))
	for _, pc := range g.Config.Inventory.Products {
		if pc.Price < 0 {
			errs = append(errs, errors.NotValidf("config: inventory.product=%s price=%d", pc.Name, pc.Price))
			continue
		}
		products = append(products, inventory.Product{
			Name:  pc.Name,
			Price: g.Config.ScaleI(pc.Price),
			Stock: pc.Stock,
		})
	}
	coins := make([]inventory.CoinQty, 0, len(g.Config.Inventory.Coins))
	for _, cc := range g.Config.Inventory.Coins {
		k, err := coin.Parse(cc.Name)
		if err != nil {
			errs = append(errs, errors.Annotatef(err, "config: inventory.coin"))
			continue
		}
		if cc.Count < 0 {
			errs = append(errs, errors.NotValidf("config: inventory.coin=%s count=%d", cc.Name, cc.Count))
			continue
		}
		coins = append(coins, inventory.CoinQty{Kind: k, Qty: cc.Count})
	}
	if err := helpers.FoldErrors(errs); err != nil {
		return err
	}

	if len(products) != 0 {
		if _, err := g.Inventory.LoadProducts(products); err != nil {
			errs = append(errs, err)
		}
	}
	if len(coins) != 0 {
		if _, err := g.Inventory.LoadCoins(coins); err != nil {
			errs = append(errs, err)
		}
	}
	g.Log.Debugf("config: %s", g.Inventory.String())
	return helpers.FoldErrors(errs)
}
