package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/config"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/engine"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/logging"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/platform"
)

// commonFlags are the options shared by every subcommand.
type commonFlags struct {
	upstream string
	platform string
	dest     string
	offline  bool
	verbose  bool
	help     bool
}

// parseFlags splits args into shared options and positional arguments.
func parseFlags(args []string) (commonFlags, []string, error) {
	var f commonFlags
	var rest []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, hasValue := strings.Cut(arg, "=")
		takeValue := func() (string, error) {
			if hasValue {
				return value, nil
			}
			if i+1 >= len(args) {
				return "", fmt.Errorf("%s requires a value", name)
			}
			i++
			return args[i], nil
		}

		var err error
		switch name {
		case "--help", "-h":
			f.help = true
		case "--verbose", "-v":
			f.verbose = true
		case "--offline":
			f.offline = true
		case "--upstream":
			f.upstream, err = takeValue()
		case "--platform":
			f.platform, err = takeValue()
		case "--dest":
			f.dest, err = takeValue()
		default:
			if strings.HasPrefix(arg, "-") && arg != "-" {
				return f, nil, fmt.Errorf("unknown option: %s", arg)
			}
			rest = append(rest, arg)
		}
		if err != nil {
			return f, nil, err
		}
	}
	return f, rest, nil
}

// parsePlatform parses "system/arch" in any accepted spelling.
func parsePlatform(s string) (platform.Info, error) {
	sys, arch, ok := strings.Cut(s, "/")
	if !ok {
		return platform.Info{}, fmt.Errorf("platform %q is not system/arch", s)
	}
	return platform.Normalize(sys, arch)
}

// session is a loaded configuration with its engine and target platform.
type session struct {
	cfg    *config.Config
	engine *engine.Engine
	info   platform.Info
	logger logging.Logger
}

// openSession loads the configuration, applies flag overrides and builds
// the engine. progress receives download progress bars when not nil.
func openSession(ctx context.Context, f commonFlags, progress io.Writer) (*session, error) {
	detector := platform.NewDetector()
	cfg, path, err := config.NewParser(detector).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %s", config.FormatError(unwrapConfigError(err), f.verbose))
	}
	if f.upstream != "" {
		cfg.Upstream = f.upstream
	}

	lc, err := cfg.LoggerConfig()
	if err != nil {
		return nil, err
	}
	if f.verbose {
		lc.Level = "debug"
	}
	logger, err := logging.New(lc)
	if err != nil {
		return nil, err
	}
	if path != "" {
		logger.Debug("configuration loaded", "path", path)
	}

	var info platform.Info
	if f.platform != "" {
		if info, err = parsePlatform(f.platform); err != nil {
			return nil, err
		}
	} else {
		host, err := detector.Detect(ctx)
		if err != nil {
			return nil, err
		}
		info = host.Info
	}

	e, err := engine.New(cfg, engine.Options{
		Logger:   logger,
		Progress: progress,
		Offline:  f.offline,
	})
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, engine: e, info: info, logger: logger}, nil
}

// unwrapConfigError returns the innermost *config.ParseError so the
// friendly formatter can render it.
func unwrapConfigError(err error) error {
	var pe *config.ParseError
	if errors.As(err, &pe) {
		return pe
	}
	return err
}

// isTerminal reports whether w is a character device.
func isTerminal(w *os.File) bool {
	fi, err := w.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
