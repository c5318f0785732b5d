package observer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/observerproto"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/activity"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/animation"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geom"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geometry"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/structure"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/world"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/worldtest"
)

type fixture struct {
	h        *worldtest.Harness
	registry *activity.Registry
	toggler  *activity.Toggler
	srv      *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	h := worldtest.New(t, world.WorldConfig{ID: "test"})
	structs := structure.NewRegistry()
	snap := structure.Snapshot{
		ID:     "door",
		Type:   geometry.SlidingDoor,
		Axis:   "X",
		Cuboid: geom.NewCuboid(geom.Vec3i{}, geom.Vec3i{X: 1, Y: 1}),
	}
	s, err := structure.New(snap)
	if err != nil {
		t.Fatalf("structure: %v", err)
	}
	if err := structs.Add(s); err != nil {
		t.Fatalf("add: %v", err)
	}
	h.Fill(snap.Cuboid, worldtest.Stone)

	registry := activity.NewRegistry(h.Logger())
	tg, err := activity.NewToggler(activity.TogglerConfig{
		Main:       h.W,
		Scheduler:  h.Sched,
		Structures: structs,
		Registry:   registry,
		Hooks:      animation.NewHookManager(h.Logger()),
		Timing: animation.Timing{
			Tick:              50 * time.Millisecond,
			PowerRecheckDelay: time.Second,
			MoveBlocksCap:     time.Minute,
			PreviewCap:        10 * time.Second,
		},
		DefaultTime: 200 * time.Millisecond,
		Log:         h.Logger(),
	})
	if err != nil {
		t.Fatalf("toggler: %v", err)
	}
	return &fixture{h: h, registry: registry, toggler: tg, srv: NewServer(h.W, structs, registry, h.Logger())}
}

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	s, err := jsonschema.Compile(filepath.Join("..", "..", "..", "schemas", name))
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

func validateJSON(t *testing.T, s *jsonschema.Schema, b []byte) {
	t.Helper()
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := s.Validate(v); err != nil {
		t.Fatalf("validate: %v\n%s", err, b)
	}
}

func TestFrame_ListsRunningAnimations(t *testing.T) {
	f := newFixture(t)
	a, err := f.toggler.Toggle(activity.ToggleRequest{StructureID: "door"})
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	f.h.Sync()

	msg := f.srv.Frame(observerproto.SubscribeMsg{IncludeBlocks: true, MaxBlocks: 3}, nil)
	if msg.Type != observerproto.TypeTick || len(msg.Animations) != 1 {
		t.Fatalf("frame=%+v", msg)
	}
	st := msg.Animations[0]
	if st.StructureID != "door" || st.State != "ACTIVE" || st.Movement != "VELOCITY" || st.Duration != a.Duration() {
		t.Fatalf("state=%+v", st)
	}
	if st.ID == "" || len(st.Blocks) != 3 {
		t.Fatalf("id=%q blocks=%d, want id and 3 blocks (capped)", st.ID, len(st.Blocks))
	}

	filtered := f.srv.Frame(observerproto.SubscribeMsg{StructureIDs: []string{"other"}}, nil)
	if len(filtered.Animations) != 0 {
		t.Fatalf("filter ignored: %+v", filtered.Animations)
	}

	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	validateJSON(t, compileSchema(t, "observer_tick.schema.json"), b)
}

func TestBootstrap(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/observer/bootstrap", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	rec := httptest.NewRecorder()
	f.srv.BootstrapHandler()(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	validateJSON(t, compileSchema(t, "observer_bootstrap.schema.json"), rec.Body.Bytes())

	var resp observerproto.BootstrapResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.WorldID != "test" || len(resp.Structures) != 1 || resp.Structures[0].Max != [3]int{1, 1, 0} {
		t.Fatalf("bootstrap=%+v", resp)
	}

	req = httptest.NewRequest(http.MethodGet, "/observer/bootstrap", nil)
	req.RemoteAddr = "192.0.2.10:4000"
	rec = httptest.NewRecorder()
	f.srv.BootstrapHandler()(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote status=%d want 403", rec.Code)
	}
}

func TestWS_StreamsTicksAndFinished(t *testing.T) {
	f := newFixture(t)
	if _, err := f.toggler.Toggle(activity.ToggleRequest{StructureID: "door", Cause: "test"}); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	f.h.Sync()

	ts := httptest.NewServer(f.srv.WSHandler())
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
		IntervalMs:      50,
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	schema := compileSchema(t, "observer_tick.schema.json")
	read := func() observerproto.TickMsg {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		validateJSON(t, schema, b)
		var msg observerproto.TickMsg
		if err := json.Unmarshal(b, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return msg
	}

	first := read()
	if len(first.Animations) != 1 || first.Animations[0].StructureID != "door" {
		t.Fatalf("first frame=%+v", first)
	}

	a, _ := f.registry.Get("door")
	f.registry.Stop("door")
	f.h.Wait(a.Done(), "stop")

	for i := 0; i < 20; i++ {
		msg := read()
		if len(msg.Finished) == 0 {
			continue
		}
		got := msg.Finished[0]
		if got.StructureID != "door" || got.State != "COMPLETED" || got.Cause != "test" {
			t.Fatalf("finished=%+v", got)
		}
		if len(msg.Animations) != 0 {
			t.Fatalf("finished animation still listed: %+v", msg.Animations)
		}
		return
	}
	t.Fatalf("no finished report")
}

func TestWS_RejectsBadHandshake(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.srv.WSHandler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteJSON(map[string]string{"type": "HELLO", "protocol_version": observerproto.Version}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("err=%v want policy violation close", err)
	}
	if n := f.srv.Sessions(); n != 0 {
		t.Fatalf("sessions=%d", n)
	}
}

func TestNormalizeSubscribe(t *testing.T) {
	sub := observerproto.SubscribeMsg{IntervalMs: 1, MaxBlocks: 1 << 20}
	normalizeSubscribe(&sub)
	if sub.IntervalMs != 50 || sub.MaxBlocks != 16384 {
		t.Fatalf("sub=%+v", sub)
	}
	if !isLoopbackRemote("[::1]:80") || isLoopbackRemote("10.0.0.1:80") {
		t.Fatalf("loopback detection")
	}
}
