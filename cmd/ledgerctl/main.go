// Command ledgerctl inspects and maintains the event dedup ledger.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root, a := newRootCmd()
	err := root.ExecuteContext(ctx)
	// Closed here rather than in a post-run hook, which cobra skips on error.
	a.close()
	if err != nil {
		os.Exit(1)
	}
}
