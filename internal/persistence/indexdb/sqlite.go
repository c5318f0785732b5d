package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/catalogs"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/structure"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/tuning"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/world"
)

var ErrClosed = errors.New("index closed")

// SQLiteIndex stores structures, animation history and block changes. All
// access goes through one writer goroutine that owns the single connection.
type SQLiteIndex struct {
	db *sql.DB

	mu sync.RWMutex
	ch chan req
	// prio carries synchronous writes that must not wait behind queued rows.
	prio   chan req
	wg     sync.WaitGroup
	once   sync.Once
	closed atomic.Bool

	dropAnimation   atomic.Uint64
	dropBlockChange atomic.Uint64
}

type Stats struct {
	QueueDepth           int
	QueueCapacity        int
	DropAnimationTotal   uint64
	DropBlockChangeTotal uint64
}

type reqKind int

const (
	reqAnimation reqKind = iota + 1
	reqBlockChange
	reqSync
)

type req struct {
	kind reqKind

	animation AnimationRow
	change    world.BlockChange

	fn   func(tx *sql.Tx) error
	done chan error
}

// AnimationRow is one finished animation.
type AnimationRow struct {
	ID            string    `json:"id"`
	StructureID   string    `json:"structure_id"`
	StructureType string    `json:"structure_type"`
	Type          string    `json:"type"`
	State         string    `json:"state"`
	Duration      int       `json:"duration"`
	Steps         int       `json:"steps"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Large buffer: a big structure rewrites many blocks in one transaction.
		ch:   make(chan req, 65536),
		prio: make(chan req, 64),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS structures (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			open INTEGER NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS animations (
			id TEXT PRIMARY KEY,
			structure_id TEXT NOT NULL,
			structure_type TEXT NOT NULL,
			type TEXT NOT NULL,
			state TEXT NOT NULL,
			duration INTEGER NOT NULL,
			steps INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_animations_structure ON animations(structure_id, started_at);`,
		`CREATE TABLE IF NOT EXISTS block_changes (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			from_block TEXT NOT NULL,
			to_block TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_block_changes_pos_tick ON block_changes(x, z, y, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed.Store(true)
		close(s.ch)
		close(s.prio)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:           len(s.ch),
		QueueCapacity:        cap(s.ch),
		DropAnimationTotal:   s.dropAnimation.Load(),
		DropBlockChangeTotal: s.dropBlockChange.Load(),
	}
}

// enqueue hands r to the writer without blocking. It reports false when the
// queue is full or the index closed.
func (s *SQLiteIndex) enqueue(r req) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return false
	}
	select {
	case s.ch <- r:
		return true
	default:
		return false
	}
}

// RecordAnimation queues a history row. Rows are dropped when the writer
// falls behind; the event log remains the source of truth.
func (s *SQLiteIndex) RecordAnimation(row AnimationRow) {
	if s == nil {
		return
	}
	if !s.enqueue(req{kind: reqAnimation, animation: row}) {
		s.dropAnimation.Add(1)
	}
}

// WriteBlockChange queues one block write of the world.
func (s *SQLiteIndex) WriteBlockChange(c world.BlockChange) {
	if s == nil {
		return
	}
	if !s.enqueue(req{kind: reqBlockChange, change: c}) {
		s.dropBlockChange.Add(1)
	}
}

// exec runs fn in its own transaction on the writer goroutine, after every
// row queued before it, and waits for the result.
func (s *SQLiteIndex) exec(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return s.execOn(ctx, s.ch, fn)
}

// execFirst is exec ahead of the queued rows.
func (s *SQLiteIndex) execFirst(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return s.execOn(ctx, s.prio, fn)
}

func (s *SQLiteIndex) execOn(ctx context.Context, ch chan req, fn func(tx *sql.Tx) error) error {
	done := make(chan error, 1)
	s.mu.RLock()
	if s.closed.Load() {
		s.mu.RUnlock()
		return ErrClosed
	}
	select {
	case ch <- req{kind: reqSync, fn: fn, done: done}:
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	s.mu.RUnlock()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SaveStructure stores the structure's current state. It returns once the
// row is committed and does not wait for queued history or block changes.
func (s *SQLiteIndex) SaveStructure(snap structure.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.execFirst(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT OR REPLACE INTO structures(id,type,open,json,updated_at) VALUES(?,?,?,?,?)`,
			snap.ID, snap.Type, snap.Open, string(raw), now)
		return err
	})
}

// LoadStructures returns every stored structure ordered by id.
func (s *SQLiteIndex) LoadStructures() ([]structure.Snapshot, error) {
	var out []structure.Snapshot
	err := s.exec(context.Background(), func(tx *sql.Tx) error {
		rows, err := tx.Query(`SELECT json FROM structures ORDER BY id`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var raw string
			if err := rows.Scan(&raw); err != nil {
				return err
			}
			var snap structure.Snapshot
			if err := json.Unmarshal([]byte(raw), &snap); err != nil {
				return err
			}
			out = append(out, snap)
		}
		return rows.Err()
	})
	return out, err
}

// History returns the latest animations of a structure, newest first.
func (s *SQLiteIndex) History(ctx context.Context, structureID string, limit int) ([]AnimationRow, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []AnimationRow
	err := s.exec(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT id,structure_id,structure_type,type,state,duration,steps,started_at,ended_at
			FROM animations WHERE structure_id = ? ORDER BY started_at DESC, id LIMIT ?`, structureID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r AnimationRow
			var started, ended string
			if err := rows.Scan(&r.ID, &r.StructureID, &r.StructureType, &r.Type, &r.State, &r.Duration, &r.Steps, &started, &ended); err != nil {
				return err
			}
			r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
			r.EndedAt, _ = time.Parse(time.RFC3339Nano, ended)
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

// BlockChangesAt returns how many block writes hit p.
func (s *SQLiteIndex) BlockChangesAt(ctx context.Context, x, y, z int) (int, error) {
	var n int
	err := s.exec(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM block_changes WHERE x=? AND y=? AND z=?`, x, y, z).Scan(&n)
	})
	return n, err
}

// UpsertCatalogs records the block catalog and the applied tuning so a
// database can be matched with the configuration that produced it.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cat *catalogs.BlockCatalog, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if configDir != "" && cat != nil {
		if b, err := os.ReadFile(filepath.Join(configDir, "blocks.json")); err == nil {
			rows = append(rows, kv{name: "blocks_defs", digest: cat.DefsDigest, json: b})
		}
	}
	if cat != nil {
		if b, _ := json.Marshal(cat.Palette); len(b) > 0 {
			rows = append(rows, kv{name: "blocks_palette", digest: cat.PaletteDigest, json: b})
		}
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	return s.exec(context.Background(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
			return err
		}
		stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rows {
			if r.name == "" || r.digest == "" || len(r.json) == 0 {
				continue
			}
			if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertAnimation, _ := s.db.Prepare(`INSERT OR REPLACE INTO animations(id,structure_id,structure_type,type,state,duration,steps,started_at,ended_at) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertChange, _ := s.db.Prepare(`INSERT OR REPLACE INTO block_changes(tick,seq,x,y,z,from_block,to_block) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		if insertAnimation != nil {
			_ = insertAnimation.Close()
		}
		if insertChange != nil {
			_ = insertChange.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastChangeTick uint64
		changeSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	queue, prio := s.ch, s.prio
	for queue != nil || prio != nil {
		var r req
		var ok bool
		select {
		case r, ok = <-prio:
			if !ok {
				prio = nil
				continue
			}
		default:
			select {
			case r, ok = <-prio:
				if !ok {
					prio = nil
					continue
				}
			case r, ok = <-queue:
				if !ok {
					queue = nil
					continue
				}
			}
		}
		if r.kind == reqSync {
			// Synchronous work gets a transaction of its own so a failure
			// never rolls back queued rows.
			commit()
			r.done <- s.runSync(ctx, r.fn)
			continue
		}

		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqAnimation:
			a := r.animation
			if insertAnimation != nil {
				if _, err := tx.Stmt(insertAnimation).Exec(
					a.ID,
					a.StructureID,
					a.StructureType,
					a.Type,
					a.State,
					a.Duration,
					a.Steps,
					a.StartedAt.UTC().Format(time.RFC3339Nano),
					a.EndedAt.UTC().Format(time.RFC3339Nano),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqBlockChange:
			c := r.change
			if c.Tick != lastChangeTick {
				lastChangeTick = c.Tick
				changeSeq = 0
			}
			seq := changeSeq
			changeSeq++
			if insertChange != nil {
				if _, err := tx.Stmt(insertChange).Exec(
					int64(c.Tick),
					seq,
					c.Pos.X, c.Pos.Y, c.Pos.Z,
					c.Old.Type,
					c.New.Type,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}

func (s *SQLiteIndex) runSync(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
