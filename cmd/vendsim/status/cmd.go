// Print inventory report and exit.
package status

import (
	"context"
	"fmt"
	"os"

	"github.com/temoto/vendsim/cmd/vendsim/subcmd"
	"github.com/temoto/vendsim/internal/report"
	"github.com/temoto/vendsim/internal/state"
)

var Mod = subcmd.Mod{Name: "status", Usage: "print products and coins from config", Main: Main}

func Main(ctx context.Context, config *state.Config) error {
	g := state.GetGlobal(ctx)
	if err := g.Init(ctx, config); err != nil {
		return err
	}
	defer g.Stop()
	_, err := fmt.Fprint(os.Stdout, report.Status(g.Inventory))
	return err
}
