package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/flywheel-sh/fcpcore/pkg/bundle"
)

// sampleDTO is one entry of a preview's samples file: a sample id plus the
// same request shape decide accepts.
type sampleDTO struct {
	SampleID string `json:"sample_id"`
	requestDTO
}

func runPreviewCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("preview", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var beforePolicy, beforeZoneDef, afterPolicy, afterZoneDef, zoneID, samplesPath string
	cmd.StringVar(&beforePolicy, "before-policy", "", "Path to the before zone-policy fixture (REQUIRED)")
	cmd.StringVar(&beforeZoneDef, "before-zonedef", "", "Path to the before zone-definition fixture (REQUIRED)")
	cmd.StringVar(&afterPolicy, "after-policy", "", "Path to the after zone-policy fixture (REQUIRED)")
	cmd.StringVar(&afterZoneDef, "after-zonedef", "", "Path to the after zone-definition fixture (REQUIRED)")
	cmd.StringVar(&zoneID, "zone-id", "", "Zone id shared by both bundles (REQUIRED)")
	cmd.StringVar(&samplesPath, "samples", "", "Path to a JSON array of recorded decision samples (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if beforePolicy == "" || beforeZoneDef == "" || afterPolicy == "" || afterZoneDef == "" || zoneID == "" || samplesPath == "" {
		fmt.Fprintln(stderr, "Usage: fcpcore preview -zone-id <id> -before-policy <file> -before-zonedef <file> -after-policy <file> -after-zonedef <file> -samples <file>")
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

	samplesBody, err := os.ReadFile(samplesPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	var dtos []sampleDTO
	if err := json.Unmarshal(samplesBody, &dtos); err != nil {
		fmt.Fprintf(stderr, "preview: parse samples file: %v\n", err)
		return 1
	}

	samples := make([]bundle.Sample, 0, len(dtos))
	for _, s := range dtos {
		samples = append(samples, bundle.Sample{SampleID: s.SampleID, Input: s.requestDTO.toInput()})
	}

	entries, summary := bundle.PreviewBundles(before, after, samples, nil)

	out := struct {
		Entries []bundle.PreviewEntry `json:"entries"`
		Summary bundle.PreviewSummary `json:"summary"`
	}{Entries: entries, Summary: summary}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return encodeOrFail(enc, out, stderr)
}
