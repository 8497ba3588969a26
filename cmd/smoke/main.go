package main

import (
	"os"

	"github.com/okian/fplcoach/internal/smoke"
)

func main() {
	if err := smoke.NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
