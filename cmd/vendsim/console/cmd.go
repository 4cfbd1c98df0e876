// Interactive operator and customer console.
package console

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/vendsim/cmd/vendsim/subcmd"
	"github.com/temoto/vendsim/helpers/cli"
	"github.com/temoto/vendsim/internal/metrics"
	"github.com/temoto/vendsim/internal/report"
	"github.com/temoto/vendsim/internal/state"
)

const modName = "console"

var Mod = subcmd.Mod{Name: modName, Usage: "interactive vending session", Main: Main}

func Main(ctx context.Context, config *state.Config) error {
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)
	g.Log.Debugf("config=%+v", g.Config)

	c := New(g, os.Stdout)
	if cli.IsInteractive() {
		c.Confirm = func(item string, requested, available int) bool {
			return cli.Ask(os.Stdin, os.Stdout, fmt.Sprintf("Only %d of %s available (requested %d). Remove all?", available, item, requested))
		}
	}
	fmt.Fprint(os.Stdout, report.Status(g.Inventory))

	if listen := g.Config.Metrics.Listen; listen != "" {
		if _, err := metrics.Serve(g.Alive, g.Log, listen, metrics.NewRouter(g.Metrics, g.Inventory)); err != nil {
			return err
		}
	}

	subcmd.SdNotify(daemon.SdNotifyReady)
	g.Log.Debugf("console init complete")

	prefix := g.Config.Console.Prompt
	if prefix == "" {
		prefix = modName
	}
	cli.MainLoop(g.Alive, prefix, newExecutor(g, c), c.Complete, func(s os.Signal) {
		g.Log.Infof("signal=%v", s)
		g.StopWait(5 * time.Second)
		os.Exit(0)
	})
	if coins := g.Machine.ReturnInsertedCoins(false); len(coins) != 0 {
		fmt.Fprintf(os.Stdout, "Coins returned: %s\n", report.CoinList(coins))
	}
	g.StopWait(5 * time.Second)
	return nil
}

func newExecutor(g *state.Global, c *Console) func(string) {
	return func(line string) {
		err := c.Exec(line)
		switch {
		case err == nil:
		case errors.Cause(err) == errExit:
			g.Alive.Stop()
			if cli.IsInteractive() {
				// go-prompt has no exit from executor
				if coins := g.Machine.ReturnInsertedCoins(false); len(coins) != 0 {
					fmt.Fprintf(os.Stdout, "Coins returned: %s\n", report.CoinList(coins))
				}
				g.StopWait(5 * time.Second)
				os.Exit(0)
			}
		default:
			fmt.Fprintf(os.Stdout, "error: %s\n", err.Error())
			g.Log.Debugf("%s", errors.ErrorStack(err))
		}
	}
}
