package main

import (
	"os"

	"github.com/oremus-labs/ol-jsonl/internal/jsonlcli"
)

func main() {
	if err := jsonlcli.Execute(); err != nil {
		os.Exit(1)
	}
}
