package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// runFetch handles the `relfetch fetch` subcommand
func runFetch(args []string) error {
	f, rest, err := parseFlags(args)
	if err != nil {
		return err
	}
	if f.help {
		fmt.Println("Usage: relfetch fetch [--upstream NAME] [--platform SYS/ARCH] [--dest DIR] [spec]")
		fmt.Println()
		fmt.Println("Resolves spec and downloads the artifact from the fastest mirror that")
		fmt.Println("serves it, verifying its signature when the configuration requires one.")
		fmt.Println("Prints the artifact path on success.")
		return nil
	}
	spec, err := specArg(rest)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	var progress io.Writer
	if isTerminal(os.Stderr) {
		progress = os.Stderr
	}
	s, err := openSession(ctx, f, progress)
	if err != nil {
		return err
	}

	dl, err := s.engine.Download(ctx, spec, s.info, f.dest)
	if err != nil {
		return err
	}
	if dl.Resolution.Substituted {
		fmt.Fprintf(os.Stderr, "No release matches %q, using %s instead\n", spec.String(), dl.Resolution.Version)
	}
	if dl.Artifact.Reused {
		fmt.Fprintln(os.Stderr, "Using existing download")
	}
	fmt.Println(dl.Artifact.Path)
	return nil
}
