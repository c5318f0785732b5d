package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/persistence/indexdb"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/protocol"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/activity"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/animation"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/structure"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/world"
)

// HistorySource answers HISTORY_REQ messages.
type HistorySource interface {
	History(ctx context.Context, structureID string, limit int) ([]indexdb.AnimationRow, error)
}

type ServerConfig struct {
	World      *world.World
	Structures *structure.Registry
	Toggler    *activity.Toggler
	Registry   *activity.Registry
	// History is optional; without it HISTORY_REQ is answered with E_UNAVAILABLE.
	History HistorySource
	// Token, when set, must be presented in HELLO.auth.
	Token string
	Log   *log.Logger
}

// Server is the control socket: clients toggle, stop and abort structure
// animations and may follow finished animations as EVENT messages.
type Server struct {
	cfg ServerConfig
	log *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu          sync.Mutex
	subscribers map[string]chan []byte
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Log == nil {
		cfg.Log = log.Default()
	}
	s := &Server{
		cfg: cfg,
		log: cfg.Log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subscribers: map[string]chan []byte{},
	}
	cfg.Registry.OnFinished(s.publishFinished)
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID, out, events := s.handshake(conn)
		if sessionID == "" {
			return
		}
		if events {
			s.mu.Lock()
			s.subscribers[sessionID] = out
			s.mu.Unlock()
			defer func() {
				s.mu.Lock()
				delete(s.subscribers, sessionID)
				s.mu.Unlock()
			}()
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			reply := s.Dispatch(ctx, msg)
			if reply == nil {
				continue
			}
			b, err := json.Marshal(reply)
			if err != nil {
				s.log.Printf("control %s: marshal reply: %v", sessionID, err)
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
		}
		s.log.Printf("control %s: disconnected", sessionID)
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sessionID string, out chan []byte, events bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil, false
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil, false
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", nil, false
	}
	if s.cfg.Token != "" {
		token := ""
		if hello.Auth != nil {
			token = strings.TrimSpace(hello.Auth.Token)
		}
		if token != s.cfg.Token {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad token"), time.Now().Add(time.Second))
			return "", nil, false
		}
	}
	if hello.ClientName == "" {
		hello.ClientName = "client"
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}
	out = make(chan []byte, maxQ)

	sessionID = fmt.Sprintf("C%d", s.nextID.Add(1))
	if err := writeJSON(conn, s.welcome(sessionID)); err != nil {
		return "", nil, false
	}
	s.log.Printf("control %s: %s connected (events=%v)", sessionID, hello.ClientName, hello.Capabilities.Events)
	return sessionID, out, hello.Capabilities.Events
}

func (s *Server) welcome(sessionID string) protocol.WelcomeMsg {
	cfg := s.cfg.World.Config()
	msg := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		WorldID:         cfg.ID,
		WorldParams: protocol.WorldParams{
			TickMs:    int(s.cfg.Toggler.Timing().Tick / time.Millisecond),
			BoundaryR: cfg.BoundaryR,
			MinY:      cfg.MinY,
			MaxY:      cfg.MaxY,
		},
		Structures: []string{},
	}
	if cat := s.cfg.World.Catalog(); cat != nil {
		msg.Catalogs = protocol.CatalogDigests{
			BlockPalette: protocol.DigestRef{Digest: cat.PaletteDigest, Count: len(cat.Palette)},
			BlockDefs:    cat.DefsDigest,
		}
	}
	for _, st := range s.cfg.Structures.All() {
		msg.Structures = append(msg.Structures, st.ID())
	}
	return msg
}

// Dispatch handles one client message and returns the reply, or nil for
// messages that are ignored.
func (s *Server) Dispatch(ctx context.Context, msg []byte) any {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return s.ack("", protocol.ErrProtoBadRequest, "bad json")
	}
	if base.ProtocolVersion != protocol.Version {
		return s.ack("", protocol.ErrProtoBadRequest, "bad protocol_version")
	}
	switch base.Type {
	case protocol.TypeToggle:
		var m protocol.ToggleMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return s.ack("", protocol.ErrProtoBadRequest, err.Error())
		}
		return s.toggle(m)
	case protocol.TypeStop, protocol.TypeAbort:
		var m protocol.StopMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return s.ack("", protocol.ErrProtoBadRequest, err.Error())
		}
		return s.stop(m)
	case protocol.TypeHistory:
		var m protocol.HistoryReqMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return s.ack("", protocol.ErrProtoBadRequest, err.Error())
		}
		return s.history(ctx, m)
	}
	return nil
}

func (s *Server) toggle(m protocol.ToggleMsg) protocol.AckMsg {
	if m.ID == "" || m.StructureID == "" || m.TimeMs < 0 {
		return s.ack(m.ID, protocol.ErrBadRequest, "id and structure_id are required")
	}
	typ, err := animation.ParseType(m.AnimationType)
	if err != nil {
		return s.ack(m.ID, protocol.ErrBadRequest, err.Error())
	}
	a, err := s.cfg.Toggler.Toggle(activity.ToggleRequest{
		StructureID: m.StructureID,
		Type:        typ,
		Time:        time.Duration(m.TimeMs) * time.Millisecond,
		Skip:        m.Skip,
		Cause:       "control:" + m.ID,
	})
	if err != nil {
		return s.ack(m.ID, codeOf(err), err.Error())
	}
	ack := s.ack(m.ID, "", "")
	ack.Duration = a.Duration()
	ack.Movement = a.MovementMethod().String()
	return ack
}

func (s *Server) stop(m protocol.StopMsg) protocol.AckMsg {
	a, ok := s.cfg.Registry.Get(m.StructureID)
	if !ok {
		return s.ack(m.ID, protocol.ErrNotAnimating, m.StructureID+" is not animating")
	}
	if m.Type == protocol.TypeAbort {
		a.Abort()
	} else {
		a.Stop()
	}
	ack := s.ack(m.ID, "", "")
	if anim := a.Animation(); anim != nil {
		ack.AnimationID = anim.ID()
	}
	return ack
}

func (s *Server) history(ctx context.Context, m protocol.HistoryReqMsg) any {
	if s.cfg.History == nil {
		return s.ack(m.ReqID, protocol.ErrUnavailable, "history is disabled")
	}
	if m.StructureID == "" {
		return s.ack(m.ReqID, protocol.ErrBadRequest, "structure_id is required")
	}
	limit := m.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.cfg.History.History(ctx, m.StructureID, limit)
	if err != nil {
		return s.ack(m.ReqID, protocol.ErrInternal, err.Error())
	}
	resp := protocol.HistoryMsg{
		Type:            protocol.TypeRecords,
		ProtocolVersion: protocol.Version,
		ReqID:           m.ReqID,
		StructureID:     m.StructureID,
		Items:           make([]protocol.HistoryItem, 0, len(rows)),
	}
	for _, r := range rows {
		resp.Items = append(resp.Items, protocol.HistoryItem{
			AnimationID: r.ID,
			Type:        r.Type,
			State:       r.State,
			Duration:    r.Duration,
			Steps:       r.Steps,
			StartedAtMs: r.StartedAt.UnixMilli(),
			EndedAtMs:   r.EndedAt.UnixMilli(),
		})
	}
	return resp
}

func (s *Server) ack(ref, code, message string) protocol.AckMsg {
	return protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          ref,
		Accepted:        code == "",
		Code:            code,
		Message:         message,
		ServerTick:      s.cfg.World.CurrentTick(),
	}
}

func (s *Server) publishFinished(a *animation.Animator) {
	ev := protocol.EventMsg{
		Type:            protocol.TypeEvent,
		ProtocolVersion: protocol.Version,
		ServerTick:      s.cfg.World.CurrentTick(),
		StructureID:     a.Snapshot().ID,
		State:           a.State().String(),
		Steps:           a.StepsExecuted(),
		Cause:           a.Request().Cause,
	}
	if anim := a.Animation(); anim != nil {
		ev.AnimationID = anim.ID()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, out := range s.subscribers {
		select {
		case out <- b:
		default:
			s.log.Printf("control %s: event queue full, dropping %s", id, ev.StructureID)
		}
	}
}

func codeOf(err error) string {
	switch {
	case errors.Is(err, activity.ErrUnknownStructure):
		return protocol.ErrUnknownStructure
	case errors.Is(err, activity.ErrStructureBusy):
		return protocol.ErrBusy
	case errors.Is(err, activity.ErrRegionOccupied):
		return protocol.ErrRegionOccupied
	}
	return protocol.ErrBadRequest
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
