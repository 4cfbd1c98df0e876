package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/juju/errors"
	"github.com/temoto/vendsim/cmd/vendsim/console"
	"github.com/temoto/vendsim/cmd/vendsim/status"
	"github.com/temoto/vendsim/cmd/vendsim/subcmd"
	"github.com/temoto/vendsim/internal/state"
	state_new "github.com/temoto/vendsim/internal/state/new"
	"github.com/temoto/vendsim/internal/tele"
	"github.com/temoto/vendsim/log2"
)

var log = log2.NewStderr(log2.LInfo)

var modules = []subcmd.Mod{
	console.Mod,
	status.Mod,
	{Name: "version", Usage: "print build version", Main: versionMain},
}

// set by ldflags -X main.BuildVersion=...
var BuildVersion string = "unknown"

func main() {
	flags := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagConfig := flags.String("config", "vendsim.hcl", "")
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage: %s [option...] command\n\nCommands:\n", os.Args[0])
		for _, m := range modules {
			fmt.Fprintf(flags.Output(), "  %-10s %s\n", m.Name, m.Usage)
		}
		fmt.Fprintf(flags.Output(), "\nOptions:\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		log.Fatal(err)
	}

	command := flags.Arg(0)
	if command == "" {
		command = console.Mod.Name
	}
	mod, err := subcmd.Parse(command, modules)
	if err != nil {
		flags.Usage()
		log.Fatal(err)
	}

	if subcmd.SdNotify("start") {
		// under systemd assume journal logging, remove timestamp
		log.SetFlags(log2.LServiceFlags)
	} else {
		log.SetFlags(log2.LInteractiveFlags)
	}

	config := state.MustReadConfig(log, state.NewOsFullReader(), *flagConfig)
	log.Debugf("config=%+v", config)

	ctx, g := state_new.NewContext(log, tele.New())
	g.BuildVersion = BuildVersion
	if err := mod.Main(ctx, config); err != nil {
		g.Fatal(errors.Annotate(err, mod.Name))
	}
}

func versionMain(ctx context.Context, config *state.Config) error {
	fmt.Printf("vendsim %s\n", BuildVersion)
	return nil
}
