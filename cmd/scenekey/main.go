// Command scenekey prints the scene keys and image prompts the engine would
// derive from a game state snapshot. Pass a JSON file, or "-" for stdin.
// The file may hold a bare snapshot or a full command response with a
// "state" field.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/jwebster45206/scene-engine/pkg/prompts"
	"github.com/jwebster45206/scene-engine/pkg/scene"
)

func main() {
	showPrompt := flag.Bool("prompt", false, "print the image prompt for each scene")
	raw := flag.Bool("raw", false, "print full keys instead of short fingerprints")
	safe := flag.Bool("safe", true, "sanitize prompts the way SAFE_PROMPTS does")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <snapshot.json|->\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	snap, err := readSnapshot(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read snapshot: %v\n", err)
		os.Exit(1)
	}

	prompter := prompts.NewPrompter(*safe)
	printer := &scenePrinter{out: os.Stdout, prompter: prompter, raw: *raw, showPrompt: *showPrompt}

	printer.print("current", snap.Descriptor())
	for i, d := range snap.AdjacentDescriptors() {
		printer.print(fmt.Sprintf("adjacent[%d]", i), d)
	}
}

func readSnapshot(path string) (*scene.Snapshot, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return parseSnapshot(data)
}

// parseSnapshot accepts either a snapshot or a command response wrapping one.
func parseSnapshot(data []byte) (*scene.Snapshot, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("invalid JSON")
	}

	var envelope struct {
		State *scene.Snapshot `json:"state"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}
	if envelope.State != nil {
		return envelope.State, nil
	}

	var snap scene.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

type scenePrinter struct {
	out        io.Writer
	prompter   *prompts.Prompter
	raw        bool
	showPrompt bool
}

func (p *scenePrinter) print(label string, d scene.Descriptor) {
	key, ok := d.Key()
	if !ok {
		fmt.Fprintf(p.out, "%-12s (no location, not cached)\n", label)
		return
	}

	id := key.Short()
	if p.raw {
		id = string(key)
	}
	fmt.Fprintf(p.out, "%-12s %s  %s (%d entities)\n", label, id, d.LocationID, len(d.Entities))

	if p.showPrompt {
		fmt.Fprintf(p.out, "\n%s\n\n", p.prompter.ScenePrompt(d))
	}
}
