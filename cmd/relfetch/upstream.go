package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/source"
)

// runUpstream handles the `relfetch upstream` subcommand
func runUpstream(args []string) error {
	f, _, err := parseFlags(args)
	if err != nil {
		return err
	}
	if f.help {
		fmt.Println("Usage: relfetch upstream")
		fmt.Println()
		fmt.Println("Measures the latency of every configured source, fastest first.")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	s, err := openSession(ctx, f, nil)
	if err != nil {
		return err
	}
	printUpstreams(os.Stdout, s.engine.Upstreams(ctx), s.cfg.Upstream)
	return nil
}

// printUpstreams writes the latency table. The scoped source is starred.
func printUpstreams(w io.Writer, ups []source.Upstream, current string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  NAME\tHOST\tLATENCY")
	for _, u := range ups {
		mark := " "
		if current != "" && u.Name == current {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s %s\t%s\t%s\n", mark, u.Name, u.Host, formatLatency(u.Latency))
	}
	tw.Flush()
}

func formatLatency(d time.Duration) string {
	return fmt.Sprintf("%.0fms", float64(d)/float64(time.Millisecond))
}
