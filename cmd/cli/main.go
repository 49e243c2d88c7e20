// Command cli inspects and maintains the bot's message counters.
package main

import (
	"context"
	"fmt"
	"os"

	"katu-bot/internal/config"
	"katu-bot/internal/storage"

	"go.uber.org/zap"
)

func main() {
	open := func(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
		return storage.Open(ctx, cfg.Storage, zap.NewNop())
	}
	if err := newRootCmd(config.Load, open).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
