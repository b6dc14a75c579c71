package main

import (
	"os"

	"ai-things/clipcast/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args))
}
