package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/freeeve/dicewars/internal/model"
	"github.com/freeeve/dicewars/pkg/dicewars"
)

// MatchRepo handles match records and battle history.
type MatchRepo struct {
	db *sql.DB
}

// NewMatchRepo creates a MatchRepo.
func NewMatchRepo(db *sql.DB) *MatchRepo {
	return &MatchRepo{db: db}
}

// Create inserts a new match record.
func (r *MatchRepo) Create(ctx context.Context, rec *model.MatchRecord) error {
	players, err := json.Marshal(rec.Players)
	if err != nil {
		return fmt.Errorf("encode players: %w", err)
	}
	var level any
	if len(rec.Level) > 0 {
		level = []byte(rec.Level)
	}
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO matches (id, creator_id, status, winner, turns, players, level)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		rec.ID, rec.CreatorID, rec.Status, rec.Winner, rec.Turns, players, level,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("create match: %w", err)
	}
	return nil
}

const matchColumns = `id, creator_id, status, winner, turns, players, level, created_at, finished_at`

func scanMatch(row interface{ Scan(...any) error }) (*model.MatchRecord, error) {
	var m model.MatchRecord
	var players, level []byte
	if err := row.Scan(&m.ID, &m.CreatorID, &m.Status, &m.Winner, &m.Turns, &players, &level, &m.CreatedAt, &m.FinishedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(players, &m.Players); err != nil {
		return nil, fmt.Errorf("decode players: %w", err)
	}
	if len(level) > 0 {
		m.Level = json.RawMessage(level)
	}
	return &m, nil
}

// FindByID returns a match record, or nil if it does not exist.
func (r *MatchRepo) FindByID(ctx context.Context, id string) (*model.MatchRecord, error) {
	m, err := scanMatch(r.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find match: %w", err)
	}
	return m, nil
}

// ListRecent returns the most recently created matches.
func (r *MatchRepo) ListRecent(ctx context.Context, limit int) ([]model.MatchRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM matches ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var out []model.MatchRecord
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// SetFinished marks a match as finished with its winner and turn count.
func (r *MatchRepo) SetFinished(ctx context.Context, id string, winner, turns int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE matches SET status = $1, winner = $2, turns = $3, finished_at = now() WHERE id = $4`,
		model.MatchFinished, winner, turns, id,
	)
	if err != nil {
		return fmt.Errorf("set match finished: %w", err)
	}
	return nil
}

// SaveBattles replaces the stored battle history of a match.
func (r *MatchRepo) SaveBattles(ctx context.Context, matchID string, battles []dicewars.BattleResult) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM battles WHERE match_id = $1`, matchID); err != nil {
			return fmt.Errorf("clear battles: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO battles (match_id, seq, attacker, defender, from_x, from_y, to_x, to_y, attacker_rolls, defender_rolls, won)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`)
		if err != nil {
			return fmt.Errorf("prepare battle insert: %w", err)
		}
		defer stmt.Close()

		for i, b := range battles {
			_, err := stmt.ExecContext(ctx, matchID, i, b.Attacker, b.Defender,
				b.From.X, b.From.Y, b.To.X, b.To.Y,
				pq.Array(toInt64s(b.AttackerRolls)), pq.Array(toInt64s(b.DefenderRolls)), b.Won)
			if err != nil {
				return fmt.Errorf("insert battle %d: %w", i, err)
			}
		}
		return nil
	})
}

// ListBattles returns the battle history of a match in order.
func (r *MatchRepo) ListBattles(ctx context.Context, matchID string) ([]dicewars.BattleResult, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT attacker, defender, from_x, from_y, to_x, to_y, attacker_rolls, defender_rolls, won
		 FROM battles WHERE match_id = $1 ORDER BY seq`, matchID)
	if err != nil {
		return nil, fmt.Errorf("list battles: %w", err)
	}
	defer rows.Close()

	var out []dicewars.BattleResult
	for rows.Next() {
		var b dicewars.BattleResult
		var att, def pq.Int64Array
		if err := rows.Scan(&b.Attacker, &b.Defender, &b.From.X, &b.From.Y, &b.To.X, &b.To.Y, &att, &def, &b.Won); err != nil {
			return nil, fmt.Errorf("scan battle: %w", err)
		}
		b.AttackerRolls = fromInt64s(att)
		b.DefenderRolls = fromInt64s(def)
		out = append(out, b)
	}
	return out, rows.Err()
}

func toInt64s(xs []int) []int64 {
	out := make([]int64, len(xs))
	for i, x := range xs {
		out[i] = int64(x)
	}
	return out
}

func fromInt64s(xs []int64) []int {
	out := make([]int, len(xs))
	for i, x := range xs {
		out[i] = int(x)
	}
	return out
}
