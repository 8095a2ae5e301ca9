package main

import (
	"fmt"
	"os"
)

// Version will be set at build time via -ldflags
var Version = "v0.1.0"

func main() {
	if len(os.Args) > 1 {
		var err error
		switch os.Args[1] {
		case "--version":
			fmt.Printf("relfetch %s\n", Version)
			return
		case "resolve":
			err = runResolve(os.Args[2:])
		case "fetch", "download":
			err = runFetch(os.Args[2:])
		case "update":
			err = runUpdate(os.Args[2:])
		case "refresh":
			err = runRefresh(os.Args[2:])
		case "upstream":
			err = runUpstream(os.Args[2:])
		case "config":
			err = runConfig(os.Args[2:])
		case "--help", "-h", "help":
			printHelp()
			return
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", os.Args[1])
			printHelp()
			os.Exit(2)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	printHelp()
}

func printHelp() {
	fmt.Println("relfetch - resolve and download release artifacts from the fastest mirror")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  relfetch --version                 Show version information")
	fmt.Println("  relfetch resolve [options] [spec]  Resolve a version specifier (\"1\", \"1.6\", \"latest\")")
	fmt.Println("  relfetch fetch [options] [spec]    Resolve and download a verified artifact")
	fmt.Println("  relfetch update [options] [sys/arch...]")
	fmt.Println("                                     Probe mirrors for releases missing from the catalog")
	fmt.Println("  relfetch refresh [options]         Import the upstream versions index into the catalog")
	fmt.Println("  relfetch upstream [options]        Show configured sources by latency")
	fmt.Println("  relfetch config show|path          Print the effective configuration or its file")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --upstream NAME     Use only the named source")
	fmt.Println("  --platform SYS/ARCH Resolve for another platform (e.g. windows/x86_64)")
	fmt.Println("  --dest DIR          Download directory (fetch)")
	fmt.Println("  --offline           Resolve from the catalog only")
	fmt.Println("  --verbose, -v       Debug logging and full error details")
}
