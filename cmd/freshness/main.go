// Command freshness inspects and reviews stale content from the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/cfmlabs/freshness-monitor/internal/cli"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
