package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	toggleSchema := compile("toggle.schema.json")
	ackSchema := compile("ack.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "client_name":"panel",
	  "capabilities":{"events":true,"max_queue":8}
	}`), &hello)
	validate(helloSchema, hello)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "session_id":"C1",
	  "world_id":"world",
	  "world_params":{"tick_ms":50,"boundary_r":30000,"min_y":-64,"max_y":320},
	  "catalogs":{"block_palette":{"digest":"deadbeef","count":6},"block_defs_digest":"deadbeef"},
	  "structures":["gate","portcullis"]
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var toggle any
	_ = json.Unmarshal([]byte(`{
	  "type":"TOGGLE",
	  "protocol_version":"1.0",
	  "id":"T1",
	  "structure_id":"gate",
	  "animation_type":"PREVIEW",
	  "time_ms":1500
	}`), &toggle)
	validate(toggleSchema, toggle)

	var ack any
	_ = json.Unmarshal([]byte(`{
	  "type":"ACK",
	  "protocol_version":"1.0",
	  "ack_for":"T1",
	  "accepted":true,
	  "server_tick":12,
	  "animation_id":"0f1b",
	  "duration":30,
	  "movement":"VELOCITY"
	}`), &ack)
	validate(ackSchema, ack)
}

func TestSchemas_TypedMessagesValidate(t *testing.T) {
	s, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", "ack.schema.json"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	b, err := json.Marshal(protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          "T2",
		Code:            protocol.ErrBusy,
		Message:         "gate: structure is already animating",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := s.Validate(v); err != nil {
		t.Fatalf("validate: %v", err)
	}

	base, err := protocol.DecodeBase(b)
	if err != nil || base.Type != protocol.TypeAck || base.ProtocolVersion != protocol.Version {
		t.Fatalf("base=%+v err=%v", base, err)
	}
}
