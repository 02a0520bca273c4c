package cli

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"gridfire.ai/internal/engine"
	"gridfire.ai/internal/gateway"
	"gridfire.ai/internal/replay"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Connect to an arena and play until the round ends",
	RunE:  runPlay,
}

var (
	urlFlag    string
	teamFlag   string
	tokenFlag  string
	recordFlag bool
)

func init() {
	playCmd.Flags().StringVar(&urlFlag, "url", "ws://localhost:8080/v1/ws", "arena websocket url")
	playCmd.Flags().StringVar(&teamFlag, "team", "gridfire", "team name sent in HELLO")
	playCmd.Flags().StringVar(&tokenFlag, "token", "", "auth token (or set GRIDFIRE_TOKEN)")
	playCmd.Flags().BoolVar(&recordFlag, "record", true, "record the match for later replay")
}

func runPlay(cmd *cobra.Command, args []string) error {
	logger := log.New(os.Stdout, "[gridfire] ", log.LstdFlags|log.Lmicroseconds)
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	token := tokenFlag
	if token == "" {
		token = os.Getenv("GRIDFIRE_TOKEN")
	}

	ctx, cancel := signalContext()
	defer cancel()

	client, err := gateway.Dial(ctx, gateway.Options{
		URL:        urlFlag,
		TeamName:   teamFlag,
		AuthToken:  token,
		RatePerSec: cfg.Gateway.RatePerSec,
		RateBurst:  cfg.Gateway.RateBurst,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	// The arena's announced parameters beat the local config.
	welcome := client.Welcome()
	if p := welcome.ArenaParams; p.VisionRadius > 0 {
		cfg.Cycle.VisionRadius = p.VisionRadius
	}
	if p := welcome.ArenaParams; p.BombRange > 0 {
		cfg.Target.BombRange = p.BombRange
	}
	if p := welcome.ArenaParams; p.MaxPathLength > 0 {
		cfg.Plan.MaxPathLength = p.MaxPathLength
	}

	eng := engine.New(cfg, client, client, logger)

	if recordFlag {
		index, err := replay.OpenIndex(filepath.Join(cfg.Replay.Dir, "index.db"))
		if err != nil {
			return err
		}
		defer index.Close()
		rec, err := replay.NewRecorder(cfg.Replay.Dir, welcome.Round, index)
		if err != nil {
			return err
		}
		defer rec.Close()
		eng.SetRecorder(rec)
		logger.Printf("recording match %s", rec.ID())
	}

	err = eng.Run(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		logger.Printf("shutting down")
		return nil
	case isSessionClosed(err):
		logger.Printf("arena closed the session")
		return nil
	}
	return err
}

// isSessionClosed reports whether err is the server ending the round with a
// normal websocket close.
func isSessionClosed(err error) bool {
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr) &&
		(closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway)
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
