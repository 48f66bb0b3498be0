// Command ingest keeps a connection to an IRC server and routes channel and
// private messages to named destination queues drained by writers.
package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env file is normal
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
