package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/emojinious/emojinious-client/internal/api"
	"github.com/emojinious/emojinious-client/internal/broker"
	"github.com/emojinious/emojinious-client/internal/config"
	"github.com/emojinious/emojinious-client/internal/creds"
	"github.com/emojinious/emojinious-client/internal/models"
	"github.com/emojinious/emojinious-client/internal/session"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var (
		configPath = flag.String("config", "emojinious.yaml", "path to config file")
		nickname   = flag.String("nickname", "", "nickname for a new player (starts the join flow)")
		character  = flag.Int("character", 1, "character id (1-8) for a new player")
		joinID     = flag.String("join", "", "session id to join as guest (empty creates a new session)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	credPath, err := creds.DefaultPath()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve credentials path")
	}
	store := creds.NewFileStore(credPath)
	apiClient := api.NewClient(cfg.API.BaseURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := store.Load()
	if err != nil {
		if *nickname == "" {
			log.Fatal().Msg("no saved credentials; pass -nickname to create or join a game")
		}
		c, err = join(ctx, apiClient, store, *nickname, *character, *joinID)
		if err != nil {
			log.Fatal().Err(err).Msg("join failed")
		}
		fmt.Printf("Invite your friends: %s\n", apiClient.InviteLink(c.SessionID))
	}

	engine := session.New(session.Config{
		SessionID: c.SessionID,
		Creds:     store,
		Dial:      dialFunc(cfg),
		Settings:  apiClient,
		ChatLimit: cfg.Chat.MaxMessages,
	})

	if _, err := engine.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to game session")
	}
	defer engine.Close()

	go renderEvents(engine)
	go readCommands(ctx, engine)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutting down")
}

// join runs the player-creation flow and persists the credentials it
// returns, exactly once, before the first connect.
func join(ctx context.Context, client *api.Client, store creds.Store, nickname string, characterID int, sessionID string) (creds.Credentials, error) {
	resp, err := client.CreatePlayer(ctx, nickname, characterID, sessionID)
	if err != nil {
		return creds.Credentials{}, err
	}

	c := creds.Credentials{
		PlayerID:    resp.Player.ID,
		Token:       resp.Token,
		SessionID:   resp.Player.SessionID,
		CharacterID: resp.Player.CharacterID,
	}
	if err := store.Save(c); err != nil {
		return creds.Credentials{}, err
	}

	log.Info().
		Str("player_id", c.PlayerID).
		Str("session_id", c.SessionID).
		Bool("is_host", resp.Player.IsHost).
		Msg("joined game")
	return c, nil
}

func dialFunc(cfg *config.Config) session.DialFunc {
	return func(c creds.Credentials) (broker.Broker, error) {
		switch cfg.Broker.Transport {
		case "websocket":
			return broker.DialWebSocket(broker.DefaultWebSocketConfig(cfg.Broker.URL, c.Token))
		default:
			return broker.DialNATS(broker.DefaultNATSConfig(cfg.Broker.URL, c.Token))
		}
	}
}

// renderEvents prints the live view as log lines.
func renderEvents(engine *session.Engine) {
	for ev := range engine.Events() {
		switch ev.Type {
		case session.EventSnapshot:
			v := engine.View()
			evt := log.Info().
				Str("mode", string(v.Mode)).
				Int("remaining_sec", v.RemainingSeconds).
				Bool("is_host", v.IsHost)
			if v.Game != nil {
				evt = evt.Int("turn", v.Game.CurrentTurn).Int("players", len(v.Game.Players))
				if v.Mode == session.ModeFinished {
					if winner, ok := v.Game.Winner(); ok {
						fmt.Printf("*** Winner: %s (%d points) ***\n", winner.Nickname, winner.Score)
					}
				}
			}
			evt.Msg("game state updated")
		case session.EventChat:
			fmt.Printf("[chat] %s: %s\n", ev.Chat.Sender, ev.Chat.Content)
		case session.EventProgress:
			fmt.Printf("[progress] %d/%d submitted\n", ev.Progress.Submitted, ev.Progress.Total)
		case session.EventPersonal:
			fmt.Printf("[%s] %s\n", ev.Personal.Type, ev.Personal.Data)
		case session.EventBanner:
			fmt.Printf("*** %s ***\n", ev.Banner)
		case session.EventConnState:
			log.Info().Str("state", string(ev.ConnState)).Msg("connection state changed")
		}
	}
}

// readCommands turns stdin lines into outbound commands. Plain lines are
// chat; /start, /prompt, /guess and /settings map to the other actions.
func readCommands(ctx context.Context, engine *session.Engine) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var err error
		switch {
		case line == "/start":
			err = engine.StartGame()
		case strings.HasPrefix(line, "/prompt "):
			err = engine.SubmitPrompt(strings.TrimPrefix(line, "/prompt "))
		case strings.HasPrefix(line, "/guess "):
			err = engine.SubmitGuess(strings.TrimPrefix(line, "/guess "))
		case strings.HasPrefix(line, "/settings "):
			err = updateSettings(ctx, engine, strings.TrimPrefix(line, "/settings "))
		default:
			err = engine.SendChat(line)
		}
		if err != nil {
			log.Error().Err(err).Msg("command failed")
		}
	}
}

// updateSettings parses "/settings <promptSec> <guessSec> <difficulty> <turns>".
func updateSettings(ctx context.Context, engine *session.Engine, args string) error {
	fields := strings.Fields(args)
	if len(fields) != 4 {
		return fmt.Errorf("usage: /settings <promptSec> <guessSec> <difficulty> <turns>")
	}

	promptSec, err := strconv.Atoi(fields[0])
	if err != nil {
		return fmt.Errorf("invalid prompt time limit: %w", err)
	}
	guessSec, err := strconv.Atoi(fields[1])
	if err != nil {
		return fmt.Errorf("invalid guess time limit: %w", err)
	}
	turns, err := strconv.Atoi(fields[3])
	if err != nil {
		return fmt.Errorf("invalid turn count: %w", err)
	}

	return engine.UpdateSettings(ctx, models.GameSettings{
		PromptTimeLimit: promptSec,
		GuessTimeLimit:  guessSec,
		Difficulty:      fields[2],
		Turns:           turns,
	})
}
