package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/persistence/indexdb"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/protocol"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/activity"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/animation"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geom"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geometry"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/structure"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/world"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/worldtest"
)

type fakeHistory struct {
	rows []indexdb.AnimationRow
}

func (f fakeHistory) History(_ context.Context, structureID string, limit int) ([]indexdb.AnimationRow, error) {
	var out []indexdb.AnimationRow
	for _, r := range f.rows {
		if r.StructureID == structureID && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestServer(t *testing.T, token string, history HistorySource) (*Server, *worldtest.Harness, *activity.Registry) {
	t.Helper()
	h := worldtest.New(t, world.WorldConfig{ID: "test"})
	structs := structure.NewRegistry()
	snap := structure.Snapshot{
		ID:     "gate",
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
	srv := NewServer(ServerConfig{
		World:      h.W,
		Structures: structs,
		Toggler:    tg,
		Registry:   registry,
		History:    history,
		Token:      token,
		Log:        h.Logger(),
	})
	return srv, h, registry
}

func dispatch(t *testing.T, s *Server, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return s.Dispatch(context.Background(), b)
}

func TestDispatch_ToggleStopAbort(t *testing.T) {
	s, h, registry := newTestServer(t, "", nil)

	ack := dispatch(t, s, protocol.ToggleMsg{Type: protocol.TypeToggle, ProtocolVersion: protocol.Version, ID: "T1", StructureID: "gate"}).(protocol.AckMsg)
	if !ack.Accepted || ack.AckFor != "T1" || ack.Duration != 4 || ack.Movement != "VELOCITY" {
		t.Fatalf("ack=%+v", ack)
	}
	a, ok := registry.Get("gate")
	if !ok {
		t.Fatalf("toggle did not register an animation")
	}
	if a.Request().Cause != "control:T1" {
		t.Fatalf("cause=%q", a.Request().Cause)
	}

	busy := dispatch(t, s, protocol.ToggleMsg{Type: protocol.TypeToggle, ProtocolVersion: protocol.Version, ID: "T2", StructureID: "gate"}).(protocol.AckMsg)
	if busy.Accepted || busy.Code != protocol.ErrBusy {
		t.Fatalf("busy ack=%+v", busy)
	}

	h.Sync()
	abort := dispatch(t, s, protocol.StopMsg{Type: protocol.TypeAbort, ProtocolVersion: protocol.Version, ID: "A1", StructureID: "gate"}).(protocol.AckMsg)
	if !abort.Accepted || abort.AnimationID == "" {
		t.Fatalf("abort ack=%+v", abort)
	}
	h.Wait(a.Done(), "abort")
	if a.State() != animation.Aborted {
		t.Fatalf("state=%s want ABORTED", a.State())
	}

	idle := dispatch(t, s, protocol.StopMsg{Type: protocol.TypeStop, ProtocolVersion: protocol.Version, ID: "S1", StructureID: "gate"}).(protocol.AckMsg)
	if idle.Accepted || idle.Code != protocol.ErrNotAnimating {
		t.Fatalf("idle stop ack=%+v", idle)
	}
}

func TestDispatch_RejectsBadRequests(t *testing.T) {
	s, _, _ := newTestServer(t, "", nil)

	cases := []struct {
		name string
		msg  any
		code string
	}{
		{"version", protocol.ToggleMsg{Type: protocol.TypeToggle, ProtocolVersion: "0.1", ID: "X", StructureID: "gate"}, protocol.ErrProtoBadRequest},
		{"missing id", protocol.ToggleMsg{Type: protocol.TypeToggle, ProtocolVersion: protocol.Version, StructureID: "gate"}, protocol.ErrBadRequest},
		{"unknown type", protocol.ToggleMsg{Type: protocol.TypeToggle, ProtocolVersion: protocol.Version, ID: "X", StructureID: "gate", AnimationType: "EXPLODE"}, protocol.ErrBadRequest},
		{"unknown structure", protocol.ToggleMsg{Type: protocol.TypeToggle, ProtocolVersion: protocol.Version, ID: "X", StructureID: "nope"}, protocol.ErrUnknownStructure},
		{"history disabled", protocol.HistoryReqMsg{Type: protocol.TypeHistory, ProtocolVersion: protocol.Version, ReqID: "H", StructureID: "gate"}, protocol.ErrUnavailable},
	}
	for _, tc := range cases {
		ack, ok := dispatch(t, s, tc.msg).(protocol.AckMsg)
		if !ok || ack.Accepted || ack.Code != tc.code {
			t.Fatalf("%s: reply=%+v want code %s", tc.name, ack, tc.code)
		}
		if !protocol.IsKnownCode(ack.Code) {
			t.Fatalf("%s: unknown code %q", tc.name, ack.Code)
		}
	}

	if r := dispatch(t, s, protocol.BaseMessage{Type: "PING", ProtocolVersion: protocol.Version}); r != nil {
		t.Fatalf("unknown message type answered: %+v", r)
	}
}

func TestDispatch_History(t *testing.T) {
	started := time.UnixMilli(1_700_000_000_000)
	s, _, _ := newTestServer(t, "", fakeHistory{rows: []indexdb.AnimationRow{
		{ID: "b", StructureID: "gate", Type: "MOVE_BLOCKS", State: "COMPLETED", Duration: 4, Steps: 6, StartedAt: started, EndedAt: started.Add(time.Second)},
		{ID: "a", StructureID: "gate", Type: "PREVIEW", State: "ABORTED", Duration: 4, Steps: 1, StartedAt: started, EndedAt: started},
		{ID: "c", StructureID: "other", State: "COMPLETED"},
	}})

	resp, ok := dispatch(t, s, protocol.HistoryReqMsg{Type: protocol.TypeHistory, ProtocolVersion: protocol.Version, ReqID: "H1", StructureID: "gate", Limit: 10}).(protocol.HistoryMsg)
	if !ok {
		t.Fatalf("expected HISTORY reply")
	}
	if resp.ReqID != "H1" || len(resp.Items) != 2 || resp.Items[0].AnimationID != "b" {
		t.Fatalf("resp=%+v", resp)
	}
	if resp.Items[0].EndedAtMs-resp.Items[0].StartedAtMs != 1000 {
		t.Fatalf("timestamps=%+v", resp.Items[0])
	}
}

func TestHandler_HandshakeAndEvents(t *testing.T) {
	s, h, registry := newTestServer(t, "secret", nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")

	// Wrong token is refused.
	bad, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_ = bad.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, Auth: &protocol.HelloAuth{Token: "guess"}})
	_ = bad.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := bad.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("bad token err=%v", err)
	}
	bad.Close()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteJSON(protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      "panel",
		Capabilities:    protocol.HelloCapabilities{Events: true},
		Auth:            &protocol.HelloAuth{Token: "secret"},
	}); err != nil {
		t.Fatalf("hello: %v", err)
	}
	read := func(v any) {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := conn.ReadJSON(v); err != nil {
			t.Fatalf("read: %v", err)
		}
	}

	var welcome protocol.WelcomeMsg
	read(&welcome)
	if welcome.Type != protocol.TypeWelcome || welcome.SessionID == "" || welcome.WorldParams.TickMs != 50 || len(welcome.Structures) != 1 {
		t.Fatalf("welcome=%+v", welcome)
	}

	if err := conn.WriteJSON(protocol.ToggleMsg{Type: protocol.TypeToggle, ProtocolVersion: protocol.Version, ID: "T1", StructureID: "gate"}); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	var ack protocol.AckMsg
	read(&ack)
	if !ack.Accepted || ack.AckFor != "T1" {
		t.Fatalf("ack=%+v", ack)
	}

	a, ok := registry.Get("gate")
	if !ok {
		t.Fatalf("not animating")
	}
	h.Sync()
	h.Ticks(a.StopCount() + 1)
	h.Wait(a.Done(), "animation")

	var ev protocol.EventMsg
	read(&ev)
	if ev.Type != protocol.TypeEvent || ev.StructureID != "gate" || ev.State != "COMPLETED" || ev.Cause != "control:T1" {
		t.Fatalf("event=%+v", ev)
	}
}
