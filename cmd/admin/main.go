package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geom"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/structure"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/world"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// auditCmd lists block changes inside a cuboid. With -restore it prints, per
// position, the block that was there before -since_tick instead.
func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	aabb := fs.String("aabb", "", "cuboid filter: x1,y1,z1:x2,y2,z2 (required)")
	sinceTick := fs.Uint64("since_tick", 0, "changes since tick (inclusive)")
	toTick := fs.Uint64("to_tick", 0, "changes up to tick (inclusive, optional)")
	restore := fs.Bool("restore", false, "print the pre-change block per position")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	if strings.TrimSpace(*aabb) == "" {
		fmt.Fprintln(os.Stderr, "missing -aabb")
		os.Exit(2)
	}
	box, err := parseAABB(*aabb)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -aabb:", err)
		os.Exit(2)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	recs, err := readAudit(worldDir, *sinceTick, *toTick, box)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	if !*restore {
		for _, r := range recs {
			printJSON(r.Change)
		}
		fmt.Fprintf(os.Stderr, "entries=%d\n", len(recs))
		return
	}
	plan := restorePlan(recs)
	for _, c := range plan {
		printJSON(c)
	}
	fmt.Fprintf(os.Stderr, "entries=%d positions=%d\n", len(recs), len(plan))
}

type auditRec struct {
	Seq    uint64
	Change world.BlockChange
}

// readAudit returns the matching block changes in write order.
func readAudit(worldDir string, sinceTick, toTick uint64, box geom.Cuboid) ([]auditRec, error) {
	dir := filepath.Join(worldDir, "audit")
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
		if strings.HasPrefix(name, "audit-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]auditRec, 0, 1024)
	var seq uint64

	for _, name := range names {
		path := filepath.Join(dir, name)
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		dec, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		sc := bufio.NewScanner(dec)
		sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
		for sc.Scan() {
			var c world.BlockChange
			if err := json.Unmarshal(sc.Bytes(), &c); err != nil {
				dec.Close()
				_ = f.Close()
				return nil, fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
			}
			seq++
			if c.Tick < sinceTick || (toTick != 0 && c.Tick > toTick) {
				continue
			}
			if !box.Contains(c.Pos) {
				continue
			}
			out = append(out, auditRec{Seq: seq, Change: c})
		}
		if err := sc.Err(); err != nil {
			dec.Close()
			_ = f.Close()
			return nil, err
		}
		dec.Close()
		_ = f.Close()
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Change.Tick != out[j].Change.Tick {
			return out[i].Change.Tick < out[j].Change.Tick
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

// restorePlan keeps the first recorded change per position and turns it into
// a change back to the block it replaced.
func restorePlan(recs []auditRec) []world.BlockChange {
	seen := map[geom.Vec3i]bool{}
	var out []world.BlockChange
	for _, r := range recs {
		c := r.Change
		if seen[c.Pos] {
			continue
		}
		seen[c.Pos] = true
		out = append(out, world.BlockChange{Tick: c.Tick, Pos: c.Pos, Old: c.New, New: c.Old})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Pos, out[j].Pos
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
	return out
}

func parseAABB(s string) (geom.Cuboid, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return geom.Cuboid{}, fmt.Errorf("expected x1,y1,z1:x2,y2,z2")
	}
	a, err := parseVec3(parts[0])
	if err != nil {
		return geom.Cuboid{}, err
	}
	b, err := parseVec3(parts[1])
	if err != nil {
		return geom.Cuboid{}, err
	}
	return geom.NewCuboid(a, b), nil
}

func parseVec3(s string) (geom.Vec3i, error) {
	var v [3]int
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return geom.Vec3i{}, fmt.Errorf("expected x,y,z")
	}
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return geom.Vec3i{}, err
		}
		v[i] = n
	}
	return geom.Vec3i{X: v[0], Y: v[1], Z: v[2]}, nil
}

func printJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintln(os.Stderr, "marshal:", err)
		return
	}
	fmt.Println(string(b))
}

// serverState is the body of GET /admin/v1/state.
type serverState struct {
	WorldID    string               `json:"world_id"`
	Tick       uint64               `json:"tick"`
	Structures []structure.Snapshot `json:"structures"`
	Animations []struct {
		StructureID string `json:"structure_id"`
		State       string `json:"state"`
		Steps       int    `json:"steps"`
		Duration    int    `json:"duration"`
		Cause       string `json:"cause"`
	} `json:"animations"`
}

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	raw := fs.Bool("json", false, "print the raw response")
	_ = fs.Parse(args)

	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/admin/v1/state"
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		fmt.Fprintf(os.Stderr, "%s: %s\n", resp.Status, strings.TrimSpace(string(b)))
		os.Exit(1)
	}
	if *raw {
		fmt.Println(string(b))
		return
	}
	var st serverState
	if err := json.Unmarshal(b, &st); err != nil {
		fmt.Fprintln(os.Stderr, "decode:", err)
		os.Exit(1)
	}
	renderState(os.Stdout, st)
}

// renderState prints structures and running animations as two tables.
func renderState(out io.Writer, st serverState) {
	fmt.Fprintf(out, "world %s tick %d\n\n", st.WorldID, st.Tick)

	busy := map[string]bool{}
	for _, a := range st.Animations {
		busy[a.StructureID] = true
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STRUCTURE\tTYPE\tOPEN\tCUBOID\tBUSY")
	for _, s := range st.Structures {
		fmt.Fprintf(tw, "%s\t%s\t%v\t%s\t%v\n", s.ID, s.Type, s.Open, s.Cuboid, busy[s.ID])
	}
	_ = tw.Flush()

	if len(st.Animations) == 0 {
		fmt.Fprintln(out, "\nno running animations")
		return
	}
	fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ANIMATING\tSTATE\tSTEPS\tCAUSE")
	for _, a := range st.Animations {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\n", a.StructureID, a.State, a.Steps, a.Duration, a.Cause)
	}
	_ = tw.Flush()
}
