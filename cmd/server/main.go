package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	persistlog "github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/persistence/log"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/activity"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/animation"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/catalogs"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/scheduler"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/structure"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/tuning"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/world"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/transport/observer"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/transport/ws"
)

func main() {
	var (
		addr           = flag.String("addr", ":8080", "http listen address")
		worldID        = flag.String("world", "world_1", "world id")
		configDir      = flag.String("configs", "./configs", "config directory")
		dataDir        = flag.String("data", "./data", "runtime data directory")
		tuningPath     = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		structuresPath = flag.String("structures", "", "path to structures.yaml (default: <configs>/structures.yaml)")
		disableDB      = flag.Bool("disable_db", false, "disable the sqlite index (structure state, history, block changes)")
		controlToken   = flag.String("control_token", "", "token required by the control socket (or set AA_CONTROL_TOKEN)")
		stepEvery      = flag.Int("log_step_every", 0, "write every n-th animation step to the event log (0: none)")
		stopTimeout    = flag.Duration("stop_timeout", 5*time.Second, "how long shutdown waits for aborted animations")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)
	env := loadEnv(os.Getenv)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) && !errors.Is(err, tuning.ErrEmptyFile) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	sp := strings.TrimSpace(*structuresPath)
	if sp == "" {
		sp = filepath.Join(*configDir, "structures.yaml")
	}
	seed, err := structure.LoadFile(sp)
	if err != nil && !os.IsNotExist(err) {
		logger.Fatalf("load structures: %v", err)
	}

	// Optional: sqlite index holding structure state and animation history.
	idx, err := openRuntimeIndex(worldDir, env.IndexBackend, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	var store structure.Store
	var stored []structure.Snapshot
	if idx != nil {
		defer idx.Close()
		store = idx
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
		if stored, err = idx.LoadStructures(); err != nil {
			logger.Fatalf("index backend: load structures: %v", err)
		}
	}

	structs := structure.NewRegistry()
	for _, snap := range mergeStructures(seed, stored) {
		s, err := structure.New(snap)
		if err != nil {
			logger.Fatalf("structure: %v", err)
		}
		if err := structs.Add(s); err != nil {
			logger.Fatalf("structure: %v", err)
		}
	}
	logger.Printf("loaded %d structures (%d from %s, %d stored)", structs.Len(), len(seed), filepath.Base(sp), len(stored))

	auditLog := persistlog.NewAuditLogger(worldDir)
	defer auditLog.Close()
	eventLog := persistlog.NewEventLogger(worldDir)
	eventLog.StepEvery = *stepEvery
	eventLog.Log = logger
	defer eventLog.Close()

	w := world.New(world.WorldConfig{
		ID:           *worldID,
		TickDuration: tune.TickDuration(),
		BoundaryR:    tune.WorldBoundaryR,
		MinY:         tune.WorldMinY,
		MaxY:         tune.WorldMaxY,
		OnBlockChange: func(c world.BlockChange) {
			_ = auditLog.WriteBlockChange(c)
			if idx != nil {
				idx.WriteBlockChange(c)
			}
		},
	}, cats, logger)

	ctx, cancel := signalContext()
	defer cancel()

	// The world outlives ctx so shutdown can still abort animations on it.
	worldCtx, stopWorld := context.WithCancel(context.Background())
	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(worldCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("world stopped: %v", err)
		}
	}()

	sched := scheduler.New(logger)
	registry := activity.NewRegistry(logger)
	hooks := animation.NewHookManager(logger)
	hooks.Register(eventLog.Hook())
	if idx != nil {
		hooks.Register(idx.HistoryHook())
	}

	toggler, err := activity.NewToggler(activity.TogglerConfig{
		Main:        w,
		Scheduler:   sched,
		Structures:  structs,
		Registry:    registry,
		Hooks:       hooks,
		Store:       store,
		Timing:      animation.TimingFrom(tune),
		DefaultTime: tune.Animation.DefaultTime(),
		Log:         logger,
	})
	if err != nil {
		logger.Fatalf("toggler: %v", err)
	}

	go func() {
		err := tuning.Watch(ctx, tp, logger, func(t tuning.Tuning) {
			toggler.SetTiming(animation.TimingFrom(t), t.Animation.DefaultTime())
			logger.Printf("tuning reloaded: tick=%dms default_time=%dms", t.TickDurationMs, t.Animation.DefaultTimeMs)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("tuning watch stopped: %v", err)
		}
	}()

	// Bring powered structures in line with their power blocks.
	toggler.ScanPower()

	obsSrv := observer.NewServer(w, structs, registry, logger)
	obsSrv.SetDefaultInterval(tune.Observer.Interval())

	token := strings.TrimSpace(*controlToken)
	if token == "" {
		token = env.ControlToken
	}
	ctlCfg := ws.ServerConfig{
		World:      w,
		Structures: structs,
		Toggler:    toggler,
		Registry:   registry,
		Token:      token,
		Log:        logger,
	}
	if idx != nil {
		ctlCfg.History = idx
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(*worldID, w, structs, registry, obsSrv, idx))

	if env.AdminHTTP {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", stateHandler(*worldID, w, structs, registry))
		mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
	} else {
		logger.Printf("admin endpoints disabled (AA_ENABLE_ADMIN_HTTP=false)")
	}
	if env.PprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (AA_ENABLE_PPROF_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(ctlCfg).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
	}

	shutdown(logger, registry, *stopTimeout)
	sched.Close()
	stopWorld()
	<-worldDone
}

// shutdown aborts every running animation so no structure is left half-moved.
func shutdown(logger *log.Logger, registry *activity.Registry, timeout time.Duration) {
	aborted := registry.AbortAll()
	if len(aborted) == 0 {
		return
	}
	logger.Printf("aborting %d running animations", len(aborted))
	deadline := time.After(timeout)
	for _, a := range aborted {
		select {
		case <-a.Done():
		case <-deadline:
			logger.Printf("shutdown: animation of %s did not finish in %s", a.Snapshot().ID, timeout)
			return
		}
	}
}

func stateHandler(worldID string, w *world.World, structs *structure.Registry, registry *activity.Registry) http.HandlerFunc {
	type animationInfo struct {
		StructureID string `json:"structure_id"`
		State       string `json:"state"`
		Steps       int    `json:"steps"`
		Duration    int    `json:"duration"`
		Cause       string `json:"cause,omitempty"`
	}
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := struct {
			WorldID    string               `json:"world_id"`
			Tick       uint64               `json:"tick"`
			Structures []structure.Snapshot `json:"structures"`
			Animations []animationInfo      `json:"animations"`
		}{
			WorldID:    worldID,
			Tick:       w.CurrentTick(),
			Structures: []structure.Snapshot{},
			Animations: []animationInfo{},
		}
		for _, s := range structs.All() {
			resp.Structures = append(resp.Structures, s.Snapshot())
		}
		for _, a := range registry.Active() {
			resp.Animations = append(resp.Animations, animationInfo{
				StructureID: a.Snapshot().ID,
				State:       a.State().String(),
				Steps:       a.StepsExecuted(),
				Duration:    a.Duration(),
				Cause:       a.Request().Cause,
			})
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func metricsHandler(worldID string, w *world.World, structs *structure.Registry, registry *activity.Registry, obs *observer.Server, idx runtimeIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP aa_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE aa_world_tick gauge\n")
		fmt.Fprintf(rw, "aa_world_tick{world=%q} %d\n", worldID, w.CurrentTick())

		fmt.Fprintf(rw, "# HELP aa_structures Known structures.\n")
		fmt.Fprintf(rw, "# TYPE aa_structures gauge\n")
		fmt.Fprintf(rw, "aa_structures{world=%q} %d\n", worldID, structs.Len())

		counts := map[string]int{}
		for _, a := range registry.Active() {
			counts[a.State().String()]++
		}
		fmt.Fprintf(rw, "# HELP aa_animations Running animations by state.\n")
		fmt.Fprintf(rw, "# TYPE aa_animations gauge\n")
		for _, st := range []animation.State{animation.Starting, animation.Active, animation.Finishing, animation.Stopping} {
			fmt.Fprintf(rw, "aa_animations{world=%q,state=%q} %d\n", worldID, st.String(), counts[st.String()])
		}

		fmt.Fprintf(rw, "# HELP aa_observer_sessions Connected observers.\n")
		fmt.Fprintf(rw, "# TYPE aa_observer_sessions gauge\n")
		fmt.Fprintf(rw, "aa_observer_sessions{world=%q} %d\n", worldID, obs.Sessions())

		if idx == nil {
			return
		}
		s := idx.Stats()
		fmt.Fprintf(rw, "# HELP aa_index_queue_depth Index writer backlog.\n")
		fmt.Fprintf(rw, "# TYPE aa_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "aa_index_queue_depth{world=%q} %d\n", worldID, s.QueueDepth)

		fmt.Fprintf(rw, "# HELP aa_index_dropped_total Index writes dropped because the queue was full.\n")
		fmt.Fprintf(rw, "# TYPE aa_index_dropped_total counter\n")
		fmt.Fprintf(rw, "aa_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "animation", s.DropAnimationTotal)
		fmt.Fprintf(rw, "aa_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "block_change", s.DropBlockChangeTotal)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
