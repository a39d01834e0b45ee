package main

import (
	"os"

	"github.com/Centaurus99/Spearmint/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
