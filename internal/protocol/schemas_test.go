package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"gridfire.ai/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		s, err := protocol.CompileSchema(name)
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

	helloSchema := compile("hello")
	welcomeSchema := compile("welcome")
	obsSchema := compile("obs")
	actSchema := compile("act")
	resultSchema := compile("result")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.1",
	  "team_name":"gridfire",
	  "auth":{"token":"secret"}
	}`), &hello)
	validate(helloSchema, hello)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.1",
	  "team_id":"T1",
	  "session_id":"S1",
	  "round":"round-1",
	  "arena_params":{
	    "map_size":[21,21],
	    "vision_radius":10,
	    "bomb_range":1,
	    "bomb_fuse_ticks":8,
	    "tick_rate_hz":2,
	    "rate_per_sec":3,
	    "rate_burst":3,
	    "max_path_length":30
	  }
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var obs any
	_ = json.Unmarshal([]byte(`{
	  "type":"OBS",
	  "protocol_version":"1.1",
	  "tick":7,
	  "round":"round-1",
	  "raw_score":40,
	  "map_size":[21,21],
	  "units":[{"id":"u1","pos":[3,4],"alive":true,"can_act":true,"bombs":1}],
	  "enemies":[{"id":"e1","pos":[9,9]}],
	  "mobs":[{"id":"m1","pos":[5,5],"kind":"GHOST","safe_time":0}],
	  "arena":{
	    "walls":[[0,0],[1,0]],
	    "obstacles":[[4,4]],
	    "bombs":[{"pos":[2,2],"range":1,"fuse_ticks":6}]
	  }
	}`), &obs)
	validate(obsSchema, obs)

	var act any
	_ = json.Unmarshal([]byte(`{
	  "type":"ACT",
	  "protocol_version":"1.1",
	  "tick":7,
	  "commands":[{"id":"u1","path":[[3,5],[3,6]],"bombs":[[3,6]]}]
	}`), &act)
	validate(actSchema, act)

	var result any
	_ = json.Unmarshal([]byte(`{
	  "type":"RESULT",
	  "protocol_version":"1.1",
	  "tick":7,
	  "results":[
	    {"id":"u1","accepted":true},
	    {"id":"u2","accepted":false,"code":"E_INVALID_CELL","cell":[4,4]}
	  ]
	}`), &result)
	validate(resultSchema, result)
}

func TestSchemas_RejectMalformed(t *testing.T) {
	obsSchema, err := protocol.CompileSchema("obs")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	// Truncated observation: no units, no arena.
	var truncated any
	_ = json.Unmarshal([]byte(`{
	  "type":"OBS",
	  "protocol_version":"1.1",
	  "tick":7,
	  "map_size":[21,21]
	}`), &truncated)
	if err := obsSchema.Validate(truncated); err == nil {
		t.Fatalf("truncated OBS passed validation")
	}

	// A 3-element position is another game entirely.
	var badPos any
	_ = json.Unmarshal([]byte(`{
	  "type":"OBS",
	  "protocol_version":"1.1",
	  "tick":7,
	  "map_size":[21,21],
	  "units":[{"id":"u1","pos":[3,4,1],"alive":true,"can_act":true,"bombs":1}],
	  "arena":{}
	}`), &badPos)
	if err := obsSchema.Validate(badPos); err == nil {
		t.Fatalf("3d position passed validation")
	}
}
