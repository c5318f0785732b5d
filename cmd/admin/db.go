package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	structureID := fs.String("structure", "", "structure id (history)")
	pos := fs.String("pos", "", "block position x,y,z (changes)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "structures"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "structures.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer idx.Close()

	if err := runQuery(context.Background(), idx, q, *structureID, *pos, *limit); err != nil {
		fmt.Fprintln(os.Stderr, q+":", err)
		os.Exit(1)
	}
}

func runQuery(ctx context.Context, idx *indexdb.SQLiteIndex, q, structureID, pos string, limit int) error {
	switch q {
	case "structures":
		snaps, err := idx.LoadStructures()
		if err != nil {
			return err
		}
		for _, s := range snaps {
			printJSON(s)
		}
	case "history":
		if strings.TrimSpace(structureID) == "" {
			return fmt.Errorf("missing -structure")
		}
		if limit <= 0 {
			limit = 20
		}
		rows, err := idx.History(ctx, structureID, limit)
		if err != nil {
			return err
		}
		for _, r := range rows {
			printJSON(r)
		}
	case "changes":
		p, err := parseVec3(pos)
		if err != nil {
			return fmt.Errorf("bad -pos: %w", err)
		}
		n, err := idx.BlockChangesAt(ctx, p.X, p.Y, p.Z)
		if err != nil {
			return err
		}
		printJSON(map[string]any{"pos": p, "changes": n})
	default:
		return fmt.Errorf("unknown query (want structures, history or changes)")
	}
	return nil
}
