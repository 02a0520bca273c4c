package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"gridfire.ai/internal/arena"
	"gridfire.ai/internal/engine"
	"gridfire.ai/internal/protocol"
)

var upgrader = websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}

// newArenaServer runs script against each connecting client and returns a
// ws:// URL for it.
func newArenaServer(t *testing.T, script func(conn *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		script(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func acceptHello(t *testing.T, conn *websocket.Conn, params protocol.ArenaParams) protocol.HelloMsg {
	var hello protocol.HelloMsg
	if err := conn.ReadJSON(&hello); err != nil {
		t.Errorf("read HELLO: %v", err)
		return hello
	}
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		TeamID:          "team-1",
		SessionID:       "sess-1",
		Round:           "round-1",
		ArenaParams:     params,
	}
	if err := conn.WriteJSON(welcome); err != nil {
		t.Errorf("send WELCOME: %v", err)
	}
	return hello
}

func obsFrame(tick uint64) protocol.ObsMsg {
	return protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		RawScore:        40,
		MapSize:         [2]int{9, 9},
		Units: []protocol.UnitObs{
			{ID: "u1", Pos: [2]int{4, 4}, Alive: true, CanAct: true, Bombs: 1},
		},
		Arena: protocol.ArenaObs{Obstacles: [][2]int{{4, 5}}},
	}
}

func dialOpts(url string) Options {
	return Options{URL: url, TeamName: "gridfire", RatePerSec: 1000, RateBurst: 10}
}

func TestDial_HandshakeCarriesTeamAndAuth(t *testing.T) {
	hellos := make(chan protocol.HelloMsg, 1)
	url := newArenaServer(t, func(conn *websocket.Conn) {
		hellos <- acceptHello(t, conn, protocol.ArenaParams{
			MapSize: [2]int{15, 11}, VisionRadius: 6, RatePerSec: 50, RateBurst: 2,
		})
	})
	opts := dialOpts(url)
	opts.AuthToken = "sekret"
	c, err := Dial(context.Background(), opts)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	hello := <-hellos
	if hello.TeamName != "gridfire" || hello.Auth == nil || hello.Auth.Token != "sekret" {
		t.Fatalf("HELLO=%+v want team gridfire with auth token", hello)
	}
	w := c.Welcome()
	if w.TeamID != "team-1" || w.Round != "round-1" || w.ArenaParams.VisionRadius != 6 {
		t.Fatalf("welcome=%+v", w)
	}
}

func TestFetch_SkipsStrayFramesAndConverts(t *testing.T) {
	url := newArenaServer(t, func(conn *websocket.Conn) {
		acceptHello(t, conn, protocol.ArenaParams{})
		// A stray RESULT first; Fetch must keep reading until the OBS.
		_ = conn.WriteJSON(protocol.ResultMsg{
			Type: protocol.TypeResult, ProtocolVersion: protocol.Version,
			Tick: 3, Results: []protocol.CommandResult{},
		})
		_ = conn.WriteJSON(obsFrame(7))
	})
	c, err := Dial(context.Background(), dialOpts(url))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	snap, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if snap.Tick != 7 || snap.Score != 40 || snap.MapWidth != 9 || snap.MapHeight != 9 {
		t.Fatalf("snapshot=%+v", snap)
	}
	if len(snap.Units) != 1 || snap.Units[0].ID != "u1" || !snap.Units[0].Ready {
		t.Fatalf("units=%+v", snap.Units)
	}
	if len(snap.Obstacles) != 1 || snap.Obstacles[0] != (arena.Cell{X: 4, Y: 5}) {
		t.Fatalf("obstacles=%+v", snap.Obstacles)
	}
}

func TestFetch_MalformedObsIsStale(t *testing.T) {
	url := newArenaServer(t, func(conn *websocket.Conn) {
		acceptHello(t, conn, protocol.ArenaParams{})
		// No units and no arena: the schema must refuse this frame.
		raw := `{"type":"OBS","protocol_version":"1.1","tick":4,"map_size":[9,9]}`
		_ = conn.WriteMessage(websocket.TextMessage, []byte(raw))
	})
	c, err := Dial(context.Background(), dialOpts(url))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	if _, err := c.Fetch(context.Background()); !errors.Is(err, engine.ErrStaleObservation) {
		t.Fatalf("err=%v want ErrStaleObservation", err)
	}
}

func TestSubmit_MapsVerdictsAndCellCodes(t *testing.T) {
	acts := make(chan protocol.ActMsg, 1)
	url := newArenaServer(t, func(conn *websocket.Conn) {
		acceptHello(t, conn, protocol.ArenaParams{})
		var act protocol.ActMsg
		if err := conn.ReadJSON(&act); err != nil {
			t.Errorf("read ACT: %v", err)
			return
		}
		acts <- act
		// An OBS in between must not be mistaken for the RESULT.
		_ = conn.WriteJSON(obsFrame(12))
		cell := [2]int{4, 5}
		_ = conn.WriteJSON(protocol.ResultMsg{
			Type: protocol.TypeResult, ProtocolVersion: protocol.Version, Tick: 12,
			Results: []protocol.CommandResult{
				{ID: "u1", Accepted: true},
				{ID: "u2", Code: protocol.ErrInvalidCell, Message: "wall", Cell: &cell},
				{ID: "u3", Code: protocol.ErrUnitBusy, Cell: &cell},
			},
		})
	})
	c, err := Dial(context.Background(), dialOpts(url))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	batch := []engine.Command{
		{UnitID: "u1", Path: []arena.Cell{{X: 4, Y: 5}}, Bombs: []arena.Cell{{X: 4, Y: 5}}},
		{UnitID: "u2"},
		{UnitID: "u3"},
	}
	rep, err := c.Submit(context.Background(), 12, batch)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	act := <-acts
	if act.Tick != 12 || len(act.Commands) != 3 {
		t.Fatalf("act=%+v", act)
	}
	if act.Commands[0].ID != "u1" || act.Commands[0].Path[0] != [2]int{4, 5} || act.Commands[0].Bombs[0] != [2]int{4, 5} {
		t.Fatalf("command=%+v", act.Commands[0])
	}

	if rep.Tick != 12 || len(rep.Verdicts) != 3 {
		t.Fatalf("report=%+v", rep)
	}
	if v := rep.Verdicts[0]; !v.Accepted || v.UnitID != "u1" {
		t.Fatalf("verdict0=%+v", v)
	}
	if v := rep.Verdicts[1]; v.Accepted || v.Code != protocol.ErrInvalidCell || v.Cell == nil || *v.Cell != (arena.Cell{X: 4, Y: 5}) {
		t.Fatalf("verdict1=%+v", v)
	}
	// E_UNIT_BUSY is not about a cell; its cell must not reach the engine's
	// blacklist path.
	if v := rep.Verdicts[2]; v.Cell != nil {
		t.Fatalf("verdict2=%+v carried a cell", v)
	}
}
