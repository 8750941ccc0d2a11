package main

import (
	"os"

	_ "time/tzdata"

	"github.com/kjannette/papertrade-backend/cmd/ledgerctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
