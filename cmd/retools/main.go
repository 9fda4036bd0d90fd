package main

import (
	"os"

	"github.com/jihghong/retools/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
