// Command simulate plays headless bot-vs-bot matches and reports win rates
// per agent. Results can be stored in a SQLite file and battles exported to
// Parquet for offline balance analysis.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/dicewars/internal/archive"
	"github.com/freeeve/dicewars/internal/repository"
	"github.com/freeeve/dicewars/internal/repository/sqlite"
	"github.com/freeeve/dicewars/internal/sandbox"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var (
		numGames   int
		workers    int
		size       string
		style      string
		mode       string
		players    int
		agents     string
		seed       int64
		maxTurns   int
		sqlitePath string
		parquetOut string
		eventDir   string
		workerPath string
		jsonOut    bool
		verbose    bool
	)

	flag.IntVar(&numGames, "n", 10, "Number of games to run")
	flag.IntVar(&workers, "workers", 1, "Concurrency (parallel games)")
	flag.StringVar(&size, "size", "medium", "Board size (small, medium, large, huge)")
	flag.StringVar(&style, "style", "full", "Board style")
	flag.StringVar(&mode, "mode", "classic", "Game mode")
	flag.IntVar(&players, "players", 4, "Seats per game")
	flag.StringVar(&agents, "agents", "", "Comma-separated agents assigned round-robin (e.g. easy,hard or agent IDs)")
	flag.Int64Var(&seed, "seed", 0, "Base seed (0 = random)")
	flag.IntVar(&maxTurns, "max-turns", 1000, "Turn cap before a game is abandoned")
	flag.StringVar(&sqlitePath, "sqlite", "", "SQLite file for match records and stored agents")
	flag.StringVar(&parquetOut, "parquet", "", "Write every battle to this Parquet file")
	flag.StringVar(&eventDir, "events", "", "Directory for per-match zstd event logs")
	flag.StringVar(&workerPath, "worker", "", "Path to agentd (empty runs agents in-process)")
	flag.BoolVar(&jsonOut, "json", false, "Output results as JSON")
	flag.BoolVar(&verbose, "v", false, "Log eliminations and per-game details")

	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("Shutting down...")
		cancel()
	}()

	var runner sandbox.Runner = sandbox.InProcessRunner{}
	if workerPath != "" {
		runner = sandbox.NewProcessRunner(workerPath)
	}
	var (
		sbOpts   []sandbox.Option
		finder   sandbox.AgentFinder
		matchRec repository.MatchRepository
	)
	if sqlitePath != "" {
		store, err := sqlite.Open(sqlitePath)
		if err != nil {
			log.Fatal().Err(err).Msg("Open SQLite store failed")
		}
		defer store.Close()
		sbOpts = append(sbOpts, sandbox.WithStorage(store.Storage()))
		finder = store.Agents()
		matchRec = store.Matches()
	}
	driver := sandbox.NewDriver(sandbox.New(runner, sbOpts...), finder)

	base := gameConfig{
		Size:     size,
		Style:    style,
		Mode:     mode,
		Players:  players,
		Agents:   parseAgents(agents, sandbox.BuiltinNames()),
		MaxTurns: maxTurns,
		EventDir: eventDir,
		Progress: verbose,
	}

	// Run games
	results := make([]*gameResult, numGames)
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, max(workers, 1))
	errCount := 0

	for i := 0; i < numGames; i++ {
		wg.Add(1)
		sem <- struct{}{}

		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			cfg := base
			if seed != 0 {
				cfg.Seed = seed + int64(idx)
			}

			result, err := runGame(ctx, cfg, driver, matchRec)
			if err != nil {
				log.Error().Err(err).Int("game", idx+1).Msg("Game failed")
				mu.Lock()
				errCount++
				mu.Unlock()
				return
			}

			mu.Lock()
			results[idx] = result
			mu.Unlock()

			log.Info().Int("game", idx+1).Str("winner", result.WinnerAgent()).Int("turns", result.Turns).Msg("Game completed")
		}(i)
	}

	wg.Wait()

	if parquetOut != "" {
		var rows []archive.BattleRow
		for _, r := range results {
			if r != nil {
				rows = append(rows, archive.BattleRows(r.MatchID, r.Battles)...)
			}
		}
		if err := archive.WriteBattleRows(parquetOut, rows); err != nil {
			log.Error().Err(err).Str("path", parquetOut).Msg("Parquet export failed")
		} else {
			log.Info().Int("rows", len(rows)).Str("path", parquetOut).Msg("Battles exported")
		}
	}

	if jsonOut {
		printJSON(results, numGames, errCount)
	} else {
		printSummary(results, numGames, errCount)
	}
}

func printSummary(results []*gameResult, total, errCount int) {
	completed, capped := 0, 0
	for _, r := range results {
		if r == nil {
			continue
		}
		completed++
		if r.Capped {
			capped++
		}
	}

	fmt.Printf("\nResults (%d of %d games):\n", completed, total)
	if errCount > 0 {
		fmt.Printf("  (%d games failed)\n", errCount)
	}
	if capped > 0 {
		fmt.Printf("  (%d games hit the turn cap)\n", capped)
	}
	for _, s := range summarize(results) {
		rate := 0.0
		if s.Seats > 0 {
			rate = 100 * float64(s.Wins) / float64(s.Seats)
		}
		fmt.Printf("  %-24s %4d wins in %4d seats  (%.1f%%)\n", s.Agent, s.Wins, s.Seats, rate)
	}
}

func printJSON(results []*gameResult, total, errCount int) {
	out := struct {
		Total   int           `json:"total"`
		Errors  int           `json:"errors"`
		Agents  []agentStats  `json:"agents"`
		Results []*gameResult `json:"results"`
	}{
		Total:   total,
		Errors:  errCount,
		Agents:  summarize(results),
		Results: results,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}
