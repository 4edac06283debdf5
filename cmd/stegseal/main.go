// Command stegseal hides encrypted messages in images.
package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "stegseal",
		Usage: "Hide public-key encrypted messages in images",
		Flags: globalFlags,
		Commands: []*cli.Command{
			keygenCommand,
			pubkeyCommand,
			keysCommand,
			delkeyCommand,
			hideCommand,
			revealCommand,
			scanCommand,
			capacityCommand,
			stripCommand,
			scrambleCommand,
			effectCommand,
			serveCommand,
		},
	}
}
