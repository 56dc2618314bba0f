// Command fcpcore is the CLI surface over the capability-gated invocation
// core: evaluate one decision, assemble and diff policy bundles, preview a
// bundle rollout against recorded samples, and run a supervised connector
// loop against the fenced cursor store.
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing: no subcommand falls through to usage,
// since fcpcore has no always-on server mode.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stdout)
		return 0
	}

	switch args[1] {
	case "decide":
		return runDecideCmd(args[2:], stdout, stderr)
	case "bundle":
		return runBundleCmd(args[2:], stdout, stderr)
	case "diff":
		return runDiffCmd(args[2:], stdout, stderr)
	case "preview":
		return runPreviewCmd(args[2:], stdout, stderr)
	case "supervise":
		return runSuperviseCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

// ANSI colors for the usage banner.
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorGray  = "\033[37m"
	ColorBlue  = "\033[34m"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sfcpcore%s\n", ColorBold+ColorBlue, ColorReset)
	fmt.Fprintf(w, "%sCapability-gated invocation core%s\n", ColorGray, ColorReset)
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sUSAGE:%s\n", ColorBold, ColorReset)
	fmt.Fprintln(w, "  fcpcore <command> [flags]")
	fmt.Fprintln(w, "")
	printSection(w, "DECISIONS")
	printCommand(w, "decide", "Evaluate one PolicyDecisionInput against a zone policy")
	printSection(w, "POLICY BUNDLES")
	printCommand(w, "bundle", "Assemble and hash a policy bundle from fixture files")
	printCommand(w, "diff", "Diff two resolved bundles for the same zone")
	printCommand(w, "preview", "Simulate recorded samples across a bundle rollout")
	printSection(w, "CONNECTORS")
	printCommand(w, "supervise", "Run a supervised polling loop against the cursor store")
	fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s%s%s\n", ColorBold, title, ColorReset)
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %-12s %s\n", name, desc)
}
