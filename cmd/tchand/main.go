// Command tchand is the process entrypoint wrapping package tchan: a
// urfave/cli application (matching the teacher's own cmd/wallet
// commands) with serve/peers/bench subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "tchand"
	app.Usage = "run and exercise a tchan RPC channel endpoint"
	app.Commands = []cli.Command{
		serveCommand,
		peersCommand,
		benchCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
