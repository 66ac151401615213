package main

import (
	"os"

	"sqlite-provider/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
