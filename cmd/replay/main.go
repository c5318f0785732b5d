package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	persistlog "github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/persistence/log"
)

func main() {
	var (
		eventsDir   = flag.String("events", "./data/worlds/world_1/events", "events dir containing animations-*.jsonl.zst")
		structureID = flag.String("structure", "", "only check animations of this structure (optional)")
		verbose     = flag.Bool("v", false, "print one line per finished animation")
	)
	flag.Parse()

	files, err := listEventFiles(*eventsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no events files found in", *eventsDir)
		os.Exit(1)
	}

	c := newChecker(*structureID)
	if *verbose {
		c.onFinished = func(r *record) {
			fmt.Printf("%s %s %s steps=%d/%d\n", r.structureID, r.id, r.terminal, r.lastStep, r.duration)
		}
	}
	for _, path := range files {
		if err := replayFile(c, path); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}
	s := c.summary()
	fmt.Printf("replay ok: events=%d animations=%d completed=%d aborted=%d open=%d\n",
		s.Events, s.Animations, s.Completed, s.Aborted, s.Open)
}

func listEventFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "animations-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func replayFile(c *checker, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	for sc.Scan() {
		var ev persistlog.AnimationEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if err := c.add(ev); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return sc.Err()
}
