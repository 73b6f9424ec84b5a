package main

import (
	"os"

	"github.com/harrisonrobin/taigo/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
