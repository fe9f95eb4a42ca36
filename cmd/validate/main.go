package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jwebster45206/gm-engine/pkg/gm"
	"github.com/jwebster45206/gm-engine/pkg/world"
)

func main() {
	transcript := flag.Bool("transcript", false, "treat each file as raw model output containing a STATE_UPDATE block")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-transcript] <file>...\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Applies each delta to a fresh world and prints the warnings and resulting summary.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	v := &DeltaValidator{out: os.Stdout, transcript: *transcript}
	failed := 0
	for _, filename := range flag.Args() {
		if err := v.validateFile(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed++
		}
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d files invalid\n", failed, flag.NArg())
		os.Exit(1)
	}
	fmt.Println("All files are valid!")
}

// DeltaValidator checks state update files against a fresh world.
type DeltaValidator struct {
	out        io.Writer
	transcript bool
}

func (v *DeltaValidator) validateFile(filename string) error {
	fmt.Fprintf(v.out, "Validating %s...\n", filename)

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	ws := world.New()
	result, err := v.apply(ws, data)
	if err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}

	if result == nil {
		fmt.Fprintln(v.out, "No state update block; the world is unchanged.")
	} else {
		fmt.Fprintf(v.out, "Applied sections: %s\n", joinOrNone(result.Applied))
		for _, w := range result.Warnings {
			fmt.Fprintf(v.out, "warning: %s\n", w)
		}
	}
	fmt.Fprintf(v.out, "\n%s\n\n", ws.Summarize())
	return nil
}

// apply merges the file's delta into ws. A transcript without any block
// yields a nil result; a block that is present but unreadable is an error.
func (v *DeltaValidator) apply(ws *world.WorldState, data []byte) (*world.MergeResult, error) {
	if !v.transcript {
		return ws.MergeJSON(data)
	}

	text := string(data)
	_, delta := gm.ExtractStateUpdate(text)
	if delta != nil {
		return ws.Merge(delta)
	}
	if strings.Contains(text, gm.StateUpdateOpen) {
		return nil, fmt.Errorf("malformed %s block", gm.StateUpdateOpen)
	}
	return nil, nil
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
