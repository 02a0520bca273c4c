// Package gateway is the websocket client side of the arena protocol: one
// connection, a HELLO/WELCOME handshake, schema-validated OBS reads and
// ACT/RESULT exchanges, all under one shared command-rate budget.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"gridfire.ai/internal/arena"
	"gridfire.ai/internal/engine"
	"gridfire.ai/internal/protocol"
	"gridfire.ai/internal/ratelimit"
)

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 5 * time.Second
	readTimeout      = 60 * time.Second
)

// Options configure a dial. The rate fields are defaults; WELCOME overrides
// them when the arena announces its own limit.
type Options struct {
	URL        string
	TeamName   string
	AuthToken  string
	RatePerSec float64
	RateBurst  int
	Logger     *log.Logger
}

// Client is one connected arena session. It implements the engine's
// ObservationSource and ActionSink. Not safe for concurrent use: the engine
// drives it from a single loop.
type Client struct {
	conn    *websocket.Conn
	valid   *protocol.Validators
	bucket  *ratelimit.Bucket
	logger  *log.Logger
	welcome protocol.WelcomeMsg
}

// Dial connects, performs the HELLO/WELCOME handshake and sizes the rate
// budget from the server's announced limits.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.URL, err)
	}
	valid, err := protocol.NewValidators()
	if err != nil {
		conn.Close()
		return nil, err
	}
	c := &Client{conn: conn, valid: valid, logger: opts.Logger}
	if err := c.handshake(opts); err != nil {
		conn.Close()
		return nil, err
	}
	rate, burst := opts.RatePerSec, opts.RateBurst
	if p := c.welcome.ArenaParams; p.RatePerSec > 0 {
		rate = p.RatePerSec
	}
	if p := c.welcome.ArenaParams; p.RateBurst > 0 {
		burst = p.RateBurst
	}
	c.bucket = ratelimit.NewBucket(rate, burst)
	return c, nil
}

func (c *Client) handshake(opts Options) error {
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		TeamName:        opts.TeamName,
	}
	if opts.AuthToken != "" {
		hello.Auth = &protocol.HelloAuth{Token: opts.AuthToken}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(hello); err != nil {
		return fmt.Errorf("send HELLO: %w", err)
	}
	c.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("await WELCOME: %w", err)
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeWelcome {
		return fmt.Errorf("handshake: got %q, want %s", base.Type, protocol.TypeWelcome)
	}
	if err := protocol.ValidateRaw(c.valid.Welcome, msg); err != nil {
		return fmt.Errorf("WELCOME schema: %w", err)
	}
	if err := json.Unmarshal(msg, &c.welcome); err != nil {
		return fmt.Errorf("WELCOME decode: %w", err)
	}
	c.printf("WELCOME team=%s session=%s round=%s", c.welcome.TeamID, c.welcome.SessionID, c.welcome.Round)
	return nil
}

// Welcome returns the handshake reply: session ids for naming recordings and
// the arena parameters that override config defaults.
func (c *Client) Welcome() protocol.WelcomeMsg { return c.welcome }

// Fetch blocks until the next OBS frame and converts it to a snapshot.
// Frames of other types are skipped; the stream keeps delivering. A frame
// that fails schema validation or carries impossible values is reported as a
// stale observation and the connection stays usable.
func (c *Client) Fetch(ctx context.Context) (*arena.Snapshot, error) {
	if err := c.bucket.Wait(ctx); err != nil {
		return nil, err
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", engine.ErrStaleObservation, err)
		}
		if base.Type != protocol.TypeObs {
			c.printf("skipping %s frame while waiting for OBS", base.Type)
			continue
		}
		if err := protocol.ValidateRaw(c.valid.Obs, msg); err != nil {
			return nil, fmt.Errorf("%w: %v", engine.ErrStaleObservation, err)
		}
		var obs protocol.ObsMsg
		if err := json.Unmarshal(msg, &obs); err != nil {
			return nil, fmt.Errorf("%w: %v", engine.ErrStaleObservation, err)
		}
		snap, err := protocol.ToSnapshot(&obs)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", engine.ErrStaleObservation, err)
		}
		return snap, nil
	}
}

// Submit sends the batch as one ACT and blocks for the matching RESULT.
// OBS frames arriving in between are dropped; the next Fetch picks up a
// fresh one.
func (c *Client) Submit(ctx context.Context, tick uint64, batch []engine.Command) (*engine.Report, error) {
	if err := c.bucket.Wait(ctx); err != nil {
		return nil, err
	}
	act := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		Commands:        make([]protocol.UnitCommand, 0, len(batch)),
	}
	for _, cmd := range batch {
		act.Commands = append(act.Commands, protocol.UnitCommand{
			ID:    cmd.UnitID,
			Path:  protocol.CellArrays(cmd.Path),
			Bombs: protocol.CellArrays(cmd.Bombs),
		})
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(act); err != nil {
		return nil, fmt.Errorf("send ACT: %w", err)
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil || base.Type != protocol.TypeResult {
			continue
		}
		if err := protocol.ValidateRaw(c.valid.Result, msg); err != nil {
			return nil, fmt.Errorf("RESULT schema: %w", err)
		}
		var res protocol.ResultMsg
		if err := json.Unmarshal(msg, &res); err != nil {
			return nil, fmt.Errorf("RESULT decode: %w", err)
		}
		if res.Tick != tick {
			c.printf("RESULT for tick %d while awaiting %d", res.Tick, tick)
			continue
		}
		return toReport(&res), nil
	}
}

// Close sends a best-effort close frame and tears the connection down.
func (c *Client) Close() error {
	deadline := time.Now().Add(writeTimeout)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.conn.Close()
}

// toReport maps the wire result onto engine verdicts. A cell is only carried
// over for codes where it names the offending cell, so the engine can ban it
// without second-guessing the code.
func toReport(res *protocol.ResultMsg) *engine.Report {
	rep := &engine.Report{Tick: res.Tick}
	for _, r := range res.Results {
		v := engine.Verdict{UnitID: r.ID, Accepted: r.Accepted, Code: r.Code, Message: r.Message}
		if r.Cell != nil && protocol.IsCellCode(r.Code) {
			cell := arena.CellFromArray(*r.Cell)
			v.Cell = &cell
		}
		rep.Verdicts = append(rep.Verdicts, v)
	}
	return rep
}

func (c *Client) printf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
