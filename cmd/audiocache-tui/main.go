package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ashwake/audiocache/internal/tui"
)

func main() {
	server := flag.String("server", "http://localhost:8405", "audiocache server URL")
	flag.Parse()

	if err := tui.Run(*server); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
