package main

import (
	"os"

	"github.com/noah-isme/toko-storefront/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
