package main

import (
	"os"

	"restaurant-ordering/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
