// Command bot logs in to a running server, creates a match, and plays its
// human seats remotely with a sandboxed agent.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/dicewars/internal/client"
	"github.com/freeeve/dicewars/internal/match"
	"github.com/freeeve/dicewars/internal/sandbox"
)

// seatAgent plays every seat it is asked about with one built-in agent.
type seatAgent struct {
	driver *sandbox.Driver
	agent  string
}

func (s seatAgent) Intents(ctx context.Context, st match.State, playerID int) []match.Intent {
	if p := st.Player(playerID); p != nil {
		p.AgentID = s.agent
	}
	return s.driver.Intents(ctx, st, playerID)
}

const defaultLevel = "type: config\nsize: small\nbots: 3\ndifficulty: normal\n"

func main() {
	url := flag.String("url", "http://localhost:8009", "server base URL")
	name := flag.String("name", "bot", "dev login name")
	agent := flag.String("agent", "builtin:greedy", "built-in agent playing the human seats")
	levelPath := flag.String("level", "", "level file (YAML or JSON); default is a small config level")
	seed := flag.Int64("seed", 0, "match seed (0 = random)")
	maxTurns := flag.Int("max-turns", 500, "stop after this many turns")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	level := []byte(defaultLevel)
	if *levelPath != "" {
		data, err := os.ReadFile(*levelPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Read level failed")
		}
		level = data
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("Received shutdown signal")
		cancel()
	}()

	c := client.New(*name, *url)
	if err := c.Login(ctx); err != nil {
		log.Fatal().Err(err).Msg("Login failed")
	}
	st, err := c.CreateMatch(ctx, level, *seed)
	if err != nil {
		log.Fatal().Err(err).Msg("Create match failed")
	}
	log.Info().Str("matchId", st.ID).Int("players", len(st.Players)).Msg("Match created")

	driver := seatAgent{driver: sandbox.NewDriver(sandbox.New(sandbox.InProcessRunner{}), nil), agent: *agent}
	final, err := c.PlayMatch(ctx, st.ID, driver, *maxTurns)
	if err != nil {
		log.Fatal().Err(err).Str("matchId", st.ID).Msg("Play failed")
	}
	log.Info().
		Str("matchId", final.ID).
		Bool("over", final.Over).
		Int("winner", final.Winner).
		Int("turns", final.Turn).
		Msg("Bot match finished")
}
