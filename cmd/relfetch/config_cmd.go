package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/config"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/platform"
)

// runConfig handles the `relfetch config` subcommand
func runConfig(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("config subcommand requires an action (show, path)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "path":
		dir, err := config.ConfigDir()
		if err != nil {
			return err
		}
		fmt.Println(filepath.Join(dir, config.ConfigFileName))
		return nil
	case "show":
		cfg, path, err := config.NewParser(platform.NewDetector()).Load(ctx)
		if err != nil {
			return fmt.Errorf("load config: %s", config.FormatError(unwrapConfigError(err), true))
		}
		if path != "" {
			if content, err := os.ReadFile(path); err == nil {
				if findings := config.DetectSensitiveData(string(content)); len(findings) > 0 {
					fmt.Fprint(os.Stderr, config.FormatSensitiveDataWarning(findings))
				}
			}
		}
		out, err := config.NewGenerator().Generate(cfg)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	default:
		return fmt.Errorf("unknown config action: %s", args[0])
	}
}
