// Command facility-recon aligns scraped facility records with the ordered
// reference list and turns raw price rows into classified price tables.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "facility-recon:", err)
		stop()
		os.Exit(1)
	}
}
