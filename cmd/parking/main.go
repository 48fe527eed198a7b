package main

import (
	"os"

	"github.com/prince1katiyar/Parking-project/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
