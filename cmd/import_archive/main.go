// Command import_archive reads match event logs (*.jsonl.zst) and imports
// them as match records with battle history, so headless or offline matches
// are viewable through the API.
//
// Usage:
//
//	go run ./cmd/import_archive/ --input data/archive --db postgres://...
//	go run ./cmd/import_archive/ --input data/archive --sqlite dicewars.db
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/dicewars/internal/archive"
	"github.com/freeeve/dicewars/internal/repository"
	"github.com/freeeve/dicewars/internal/repository/postgres"
	"github.com/freeeve/dicewars/internal/repository/sqlite"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	input := flag.String("input", "", "Event log file or directory of *.jsonl.zst logs")
	dbURL := flag.String("db", os.Getenv("DATABASE_URL"), "Postgres connection URL")
	sqlitePath := flag.String("sqlite", "", "SQLite file (used instead of Postgres when set)")
	dryRun := flag.Bool("dry-run", false, "Summarize logs without writing")
	flag.Parse()

	if *input == "" {
		log.Fatal().Msg("--input is required")
	}
	paths, err := logPaths(*input)
	if err != nil {
		log.Fatal().Err(err).Msg("List event logs failed")
	}

	var repo repository.MatchRepository
	switch {
	case *dryRun:
	case *sqlitePath != "":
		store, err := sqlite.Open(*sqlitePath)
		if err != nil {
			log.Fatal().Err(err).Msg("Open SQLite store failed")
		}
		defer store.Close()
		repo = store.Matches()
	case *dbURL != "":
		db, err := postgres.Connect(context.Background(), *dbURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Connect to postgres failed")
		}
		defer db.Close()
		repo = postgres.NewMatchRepo(db)
	default:
		log.Fatal().Msg("--db, --sqlite, or --dry-run is required")
	}

	ctx := context.Background()
	imported, skipped := 0, 0
	for _, path := range paths {
		s, err := summarizeLog(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skip event log")
			skipped++
			continue
		}
		if repo != nil {
			ok, err := importMatch(ctx, repo, s)
			if err != nil {
				log.Error().Err(err).Str("matchId", s.MatchID).Msg("Import failed")
				skipped++
				continue
			}
			if !ok {
				log.Info().Str("matchId", s.MatchID).Msg("Already imported")
				skipped++
				continue
			}
		}
		imported++
		log.Info().
			Str("matchId", s.MatchID).
			Bool("over", s.Over).
			Int("winner", s.Winner).
			Int("turns", s.Turns).
			Int("battles", len(s.Battles)).
			Msg("Imported match")
	}

	log.Info().Int("imported", imported).Int("skipped", skipped).Msg("Done")
}

// logPaths expands input into the event log files it names.
func logPaths(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{input}, nil
	}
	paths, err := filepath.Glob(filepath.Join(input, "*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no event logs in %s", input)
	}
	return paths, nil
}

func summarizeLog(path string) (*archive.MatchSummary, error) {
	recs, err := archive.ReadEvents(path)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	s, err := archive.Summarize(recs)
	if err != nil {
		return nil, err
	}
	if want := strings.TrimSuffix(filepath.Base(path), ".jsonl.zst"); want != s.MatchID {
		return nil, fmt.Errorf("log file %s holds match %s", want, s.MatchID)
	}
	return s, nil
}

// importMatch stores a summarized match unless a record already exists. It
// reports whether the match was written.
func importMatch(ctx context.Context, repo repository.MatchRepository, s *archive.MatchSummary) (bool, error) {
	existing, err := repo.FindByID(ctx, s.MatchID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	if err := repo.Create(ctx, s.Record()); err != nil {
		return false, fmt.Errorf("create match: %w", err)
	}
	if s.Over {
		if err := repo.SetFinished(ctx, s.MatchID, s.Winner, s.Turns); err != nil {
			return false, fmt.Errorf("set finished: %w", err)
		}
	}
	if err := repo.SaveBattles(ctx, s.MatchID, s.Battles); err != nil {
		return false, fmt.Errorf("save battles: %w", err)
	}
	return true, nil
}
