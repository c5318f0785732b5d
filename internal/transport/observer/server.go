package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/observerproto"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/activity"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/animation"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geom"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/structure"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/world"
)

type Server struct {
	world      *world.World
	structures *structure.Registry
	registry   *activity.Registry
	log        *log.Logger

	upgrader        websocket.Upgrader
	nextID          atomic.Uint64
	defaultInterval atomic.Int64

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu       sync.Mutex
	sub      observerproto.SubscribeMsg
	finished []observerproto.FinishedAnimation
	changed  chan struct{}
}

func NewServer(w *world.World, structures *structure.Registry, registry *activity.Registry, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		world:      w,
		structures: structures,
		registry:   registry,
		log:        logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		sessions: map[string]*session{},
	}
	registry.OnFinished(s.onFinished)
	return s
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(s.Bootstrap())
	}
}

// SetDefaultInterval sets the frame interval used when SUBSCRIBE leaves
// interval_ms unset.
func (s *Server) SetDefaultInterval(d time.Duration) {
	s.defaultInterval.Store(d.Milliseconds())
}

// Bootstrap describes the world and every known structure.
func (s *Server) Bootstrap() observerproto.BootstrapResponse {
	cfg := s.world.Config()
	resp := observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		WorldID:         cfg.ID,
		Tick:            s.world.CurrentTick(),
		WorldParams: observerproto.WorldParams{
			TickMs:    int(cfg.TickDuration / time.Millisecond),
			BoundaryR: cfg.BoundaryR,
			MinY:      cfg.MinY,
			MaxY:      cfg.MaxY,
		},
		Structures: []observerproto.StructureState{},
	}
	if cat := s.world.Catalog(); cat != nil {
		resp.BlockPalette = append([]string(nil), cat.Palette...)
	}
	for _, st := range s.structures.All() {
		snap := st.Snapshot()
		ss := observerproto.StructureState{
			ID:   snap.ID,
			Name: snap.Name,
			Type: snap.Type,
			Open: snap.Open,
			Min:  vec(snap.Cuboid.Min),
			Max:  vec(snap.Cuboid.Max),
			Busy: s.registry.IsBusy(snap.ID),
		}
		if snap.PowerBlock != nil {
			p := vec(*snap.PowerBlock)
			ss.PowerBlock = &p
		}
		resp.Structures = append(resp.Structures, ss)
	}
	return resp
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}
		s.applyDefaults(&sub)

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		sess := &session{sub: sub, changed: make(chan struct{}, 1)}
		s.mu.Lock()
		s.sessions[sid] = sess
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.sessions, sid)
			s.mu.Unlock()
		}()
		s.log.Printf("observer %s subscribed from %s interval=%dms", sid, r.RemoteAddr, sub.IntervalMs)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() { writeErr <- s.writeLoop(ctx, conn, sess) }()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var sub observerproto.SubscribeMsg
			if err := json.Unmarshal(msg, &sub); err != nil {
				continue
			}
			if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
				continue
			}
			s.applyDefaults(&sub)
			sess.mu.Lock()
			sess.sub = sub
			sess.mu.Unlock()
			select {
			case sess.changed <- struct{}{}:
			default:
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, sess *session) error {
	sess.mu.Lock()
	interval := time.Duration(sess.sub.IntervalMs) * time.Millisecond
	sess.mu.Unlock()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		sess.mu.Lock()
		sub := sess.sub
		finished := sess.finished
		sess.finished = nil
		sess.mu.Unlock()

		b, err := json.Marshal(s.Frame(sub, finished))
		if err != nil {
			return err
		}
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sess.changed:
			sess.mu.Lock()
			interval = time.Duration(sess.sub.IntervalMs) * time.Millisecond
			sess.mu.Unlock()
			ticker.Reset(interval)
		case <-ticker.C:
		}
	}
}

// Frame builds one TICK message from the registry's running animations.
func (s *Server) Frame(sub observerproto.SubscribeMsg, finished []observerproto.FinishedAnimation) observerproto.TickMsg {
	normalizeSubscribe(&sub)
	want := map[string]bool{}
	for _, id := range sub.StructureIDs {
		want[id] = true
	}

	msg := observerproto.TickMsg{
		Type:            observerproto.TypeTick,
		ProtocolVersion: observerproto.Version,
		Tick:            s.world.CurrentTick(),
		Animations:      []observerproto.AnimationState{},
	}
	budget := sub.MaxBlocks
	for _, a := range s.registry.Active() {
		if len(want) > 0 && !want[a.Snapshot().ID] {
			continue
		}
		st := animationState(a)
		if sub.IncludeBlocks && budget > 0 {
			for _, b := range a.AnimatedBlocks() {
				if budget == 0 {
					break
				}
				st.Blocks = append(st.Blocks, observerproto.BlockState{Pos: milli(b.Position()), Alive: b.Alive()})
				budget--
			}
		}
		msg.Animations = append(msg.Animations, st)
	}
	for _, f := range finished {
		if len(want) > 0 && !want[f.StructureID] {
			continue
		}
		msg.Finished = append(msg.Finished, f)
	}
	return msg
}

func (s *Server) onFinished(a *animation.Animator) {
	f := observerproto.FinishedAnimation{
		StructureID: a.Snapshot().ID,
		State:       a.State().String(),
		Steps:       a.StepsExecuted(),
		Cause:       a.Request().Cause,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.mu.Lock()
		if len(sess.finished) < 1024 {
			sess.finished = append(sess.finished, f)
		}
		sess.mu.Unlock()
	}
}

// Sessions returns the number of connected observers.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func animationState(a *animation.Animator) observerproto.AnimationState {
	region := a.Region()
	st := observerproto.AnimationState{
		StructureID:   a.Snapshot().ID,
		StructureType: a.Snapshot().Type,
		Type:          a.Request().Type.String(),
		Movement:      a.MovementMethod().String(),
		State:         a.State().String(),
		Steps:         a.StepsExecuted(),
		Duration:      a.Duration(),
		Perpetual:     a.Perpetual(),
		Min:           vec(region.Min),
		Max:           vec(region.Max),
	}
	if anim := a.Animation(); anim != nil {
		st.ID = anim.ID()
	}
	return st
}

func vec(v geom.Vec3i) [3]int { return [3]int{v.X, v.Y, v.Z} }

func milli(p mgl64.Vec3) [3]int {
	return [3]int{int(math.Round(p[0] * 1000)), int(math.Round(p[1] * 1000)), int(math.Round(p[2] * 1000))}
}

func (s *Server) applyDefaults(sub *observerproto.SubscribeMsg) {
	if sub.IntervalMs <= 0 {
		sub.IntervalMs = int(s.defaultInterval.Load())
	}
	normalizeSubscribe(sub)
}

func normalizeSubscribe(sub *observerproto.SubscribeMsg) {
	if sub.IntervalMs <= 0 {
		sub.IntervalMs = 200
	}
	if sub.IntervalMs < 50 {
		sub.IntervalMs = 50
	}
	if sub.IntervalMs > 10000 {
		sub.IntervalMs = 10000
	}
	if sub.MaxBlocks <= 0 {
		sub.MaxBlocks = 1024
	}
	if sub.MaxBlocks > 16384 {
		sub.MaxBlocks = 16384
	}
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
