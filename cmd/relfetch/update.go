package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/platform"
)

// runUpdate handles the `relfetch update` subcommand
func runUpdate(args []string) error {
	f, rest, err := parseFlags(args)
	if err != nil {
		return err
	}
	if f.help {
		fmt.Println("Usage: relfetch update [--upstream NAME] [sys/arch...]")
		fmt.Println()
		fmt.Println("Probes mirrors for releases newer than the catalog knows and records")
		fmt.Println("them. Without arguments every supported platform is checked.")
		return nil
	}
	if f.offline {
		return fmt.Errorf("update needs network access, drop --offline")
	}

	platforms := make([]platform.Info, 0, len(rest))
	for _, arg := range rest {
		info, err := parsePlatform(arg)
		if err != nil {
			return err
		}
		platforms = append(platforms, info)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	s, err := openSession(ctx, f, nil)
	if err != nil {
		return err
	}
	report, err := s.engine.UpdateCatalog(ctx, platforms)
	if err != nil {
		return err
	}

	fmt.Printf("Checked %d platform(s), %d new release(s) recorded\n", report.Platforms, report.Added)
	if len(report.Skipped) > 0 {
		fmt.Printf("Skipped (no upstream probing): %s\n", joinInfos(report.Skipped))
	}
	return nil
}

func joinInfos(infos []platform.Info) string {
	parts := make([]string, len(infos))
	for i, info := range infos {
		parts[i] = info.String()
	}
	return strings.Join(parts, ", ")
}
