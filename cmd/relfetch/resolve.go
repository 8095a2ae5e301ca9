package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/version"
)

// runResolve handles the `relfetch resolve` subcommand
func runResolve(args []string) error {
	f, rest, err := parseFlags(args)
	if err != nil {
		return err
	}
	if f.help {
		fmt.Println("Usage: relfetch resolve [--upstream NAME] [--platform SYS/ARCH] [--offline] [spec]")
		fmt.Println()
		fmt.Println("Prints the concrete release a specifier resolves to. An empty spec")
		fmt.Println("means the newest stable release.")
		return nil
	}
	spec, err := specArg(rest)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	s, err := openSession(ctx, f, nil)
	if err != nil {
		return err
	}
	res, err := s.engine.ResolveVersion(ctx, spec, s.info)
	if err != nil {
		return err
	}
	if res.Substituted {
		fmt.Fprintf(os.Stderr, "No release matches %q, using %s instead\n", spec.String(), res.Version)
	}
	fmt.Println(res.Version)
	return nil
}

// specArg parses the optional positional version specifier.
func specArg(rest []string) (version.Spec, error) {
	switch len(rest) {
	case 0:
		return version.Parse("")
	case 1:
		return version.Parse(rest[0])
	default:
		return version.Spec{}, fmt.Errorf("expected at most one version specifier, got %d", len(rest))
	}
}
