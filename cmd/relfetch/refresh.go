package main

import (
	"context"
	"fmt"
	"time"
)

// runRefresh handles the `relfetch refresh` subcommand
func runRefresh(args []string) error {
	f, _, err := parseFlags(args)
	if err != nil {
		return err
	}
	if f.help {
		fmt.Println("Usage: relfetch refresh [--upstream NAME]")
		fmt.Println()
		fmt.Println("Downloads the versions index of the fastest source that publishes one")
		fmt.Println("and merges it into the catalog.")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	s, err := openSession(ctx, f, nil)
	if err != nil {
		return err
	}
	added, err := s.engine.RefreshCatalog(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Catalog refreshed: %d new entries (%d total)\n", added, s.engine.Catalog().Len())
	return nil
}
