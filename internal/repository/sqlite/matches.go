package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/freeeve/dicewars/internal/model"
	"github.com/freeeve/dicewars/pkg/dicewars"
)

// MatchRepo handles match records and battle history.
type MatchRepo struct {
	db *sql.DB
}

// Create inserts a new match record.
func (r *MatchRepo) Create(ctx context.Context, rec *model.MatchRecord) error {
	players, err := json.Marshal(rec.Players)
	if err != nil {
		return fmt.Errorf("encode players: %w", err)
	}
	var level sql.NullString
	if len(rec.Level) > 0 {
		level = sql.NullString{String: string(rec.Level), Valid: true}
	}
	ts := now()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO matches (id, creator_id, status, winner, turns, players, level, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatorID, rec.Status, rec.Winner, rec.Turns, string(players), level, ts)
	if err != nil {
		return fmt.Errorf("create match: %w", err)
	}
	rec.CreatedAt = fromMillis(ts)
	return nil
}

const matchColumns = `id, creator_id, status, winner, turns, players, level, created_at, finished_at`

func scanMatch(row interface{ Scan(...any) error }) (*model.MatchRecord, error) {
	var m model.MatchRecord
	var players string
	var level sql.NullString
	var created int64
	var finished sql.NullInt64
	if err := row.Scan(&m.ID, &m.CreatorID, &m.Status, &m.Winner, &m.Turns, &players, &level, &created, &finished); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(players), &m.Players); err != nil {
		return nil, fmt.Errorf("decode players: %w", err)
	}
	if level.Valid {
		m.Level = json.RawMessage(level.String)
	}
	m.CreatedAt = fromMillis(created)
	if finished.Valid {
		t := fromMillis(finished.Int64)
		m.FinishedAt = &t
	}
	return &m, nil
}

// FindByID returns a match record, or nil if it does not exist.
func (r *MatchRepo) FindByID(ctx context.Context, id string) (*model.MatchRecord, error) {
	m, err := scanMatch(r.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = ?`, id))
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
		`SELECT `+matchColumns+` FROM matches ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
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
		`UPDATE matches SET status = ?, winner = ?, turns = ?, finished_at = ? WHERE id = ?`,
		model.MatchFinished, winner, turns, time.Now().UTC().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("set match finished: %w", err)
	}
	return nil
}

// SaveBattles replaces the stored battle history of a match.
func (r *MatchRepo) SaveBattles(ctx context.Context, matchID string, battles []dicewars.BattleResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM battles WHERE match_id = ?`, matchID); err != nil {
		return fmt.Errorf("clear battles: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO battles (match_id, seq, attacker, defender, from_x, from_y, to_x, to_y, attacker_rolls, defender_rolls, won)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare battle insert: %w", err)
	}
	defer stmt.Close()

	for i, b := range battles {
		att, _ := json.Marshal(b.AttackerRolls)
		def, _ := json.Marshal(b.DefenderRolls)
		if _, err := stmt.ExecContext(ctx, matchID, i, b.Attacker, b.Defender,
			b.From.X, b.From.Y, b.To.X, b.To.Y, string(att), string(def), b.Won); err != nil {
			return fmt.Errorf("insert battle %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// ListBattles returns the battle history of a match in order.
func (r *MatchRepo) ListBattles(ctx context.Context, matchID string) ([]dicewars.BattleResult, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT attacker, defender, from_x, from_y, to_x, to_y, attacker_rolls, defender_rolls, won
		 FROM battles WHERE match_id = ? ORDER BY seq`, matchID)
	if err != nil {
		return nil, fmt.Errorf("list battles: %w", err)
	}
	defer rows.Close()

	var out []dicewars.BattleResult
	for rows.Next() {
		var b dicewars.BattleResult
		var att, def string
		if err := rows.Scan(&b.Attacker, &b.Defender, &b.From.X, &b.From.Y, &b.To.X, &b.To.Y, &att, &def, &b.Won); err != nil {
			return nil, fmt.Errorf("scan battle: %w", err)
		}
		if err := json.Unmarshal([]byte(att), &b.AttackerRolls); err != nil {
			return nil, fmt.Errorf("decode attacker rolls: %w", err)
		}
		if err := json.Unmarshal([]byte(def), &b.DefenderRolls); err != nil {
			return nil, fmt.Errorf("decode defender rolls: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
