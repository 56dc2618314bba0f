package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/flywheel-sh/fcpcore/pkg/bundle"
)

func runDiffCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("diff", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var beforePolicy, beforeZoneDef, afterPolicy, afterZoneDef, zoneID string
	cmd.StringVar(&beforePolicy, "before-policy", "", "Path to the before zone-policy fixture (REQUIRED)")
	cmd.StringVar(&beforeZoneDef, "before-zonedef", "", "Path to the before zone-definition fixture (REQUIRED)")
	cmd.StringVar(&afterPolicy, "after-policy", "", "Path to the after zone-policy fixture (REQUIRED)")
	cmd.StringVar(&afterZoneDef, "after-zonedef", "", "Path to the after zone-definition fixture (REQUIRED)")
	cmd.StringVar(&zoneID, "zone-id", "", "Zone id shared by both bundles (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if beforePolicy == "" || beforeZoneDef == "" || afterPolicy == "" || afterZoneDef == "" || zoneID == "" {
		fmt.Fprintln(stderr, "Usage: fcpcore diff -zone-id <id> -before-policy <file> -before-zonedef <file> -after-policy <file> -after-zonedef <file>")
		return 2
	}

	before, err := loadResolvedBundle(zoneID, beforePolicy, beforeZoneDef, "")
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	after, err := loadResolvedBundle(zoneID, afterPolicy, afterZoneDef, "")
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	diff, err := bundle.Diff(before, after)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	risk := bundle.ClassifyRisk(diff)

	out := struct {
		Diff bundle.BundleDiff `json:"diff"`
		Risk map[string]string `json:"risk,omitempty"`
	}{Diff: diff, Risk: make(map[string]string, len(risk.Flags))}
	for code, sev := range risk.Flags {
		out.Risk[string(code)] = sev.String()
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return encodeOrFail(enc, out, stderr)
}
