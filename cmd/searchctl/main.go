// Command searchctl runs discovery searches from the terminal and publishes
// cache invalidations.
//
// Usage:
//
//	searchctl search --fixtures configs/catalog.yaml --query "everest trek" --kind packages
//	searchctl explain --query everest --filter difficulty=difficult
//	searchctl invalidate --kind packages --id 10 --reason "price change"
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
