package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/c-bata/go-prompt"
	"github.com/mattn/go-isatty"
	"github.com/temoto/alive/v2"
)

func IsInteractive() bool { return isatty.IsTerminal(os.Stdin.Fd()) }

// MainLoop feeds lines to exec until input ends or `a` is stopped.
// Terminal gets go-prompt with completion, pipe is read line by line.
// onSignal runs on SIGINT/SIGTERM/SIGHUP/SIGQUIT.
func MainLoop(a *alive.Alive, tag string, exec func(line string), complete func(d prompt.Document) []prompt.Suggest, onSignal func(os.Signal)) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	go func() {
		for s := range signalCh {
			onSignal(s)
		}
	}()

	if IsInteractive() {
		// TODO OptionHistory
		prompt.New(exec, complete,
			prompt.OptionTitle(tag),
			prompt.OptionPrefix(tag+"> "),
		).Run()
	} else {
		ReadLoop(a, os.Stdin, exec)
	}
}

func ReadLoop(a *alive.Alive, r io.Reader, exec func(line string)) {
	scanner := bufio.NewScanner(r)
	for a.IsRunning() && scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		exec(line)
	}
}

// Ask yes/no question, default is no.
// Reads one line from r, go-prompt keeps terminal in cooked mode while executor runs.
func Ask(r io.Reader, w io.Writer, question string) bool {
	fmt.Fprintf(w, "%s [y/N] ", question)
	answer, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && answer == "" {
		fmt.Fprintln(w)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
