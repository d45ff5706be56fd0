package archive

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/freeeve/dicewars/pkg/dicewars"
)

// BattleRow is one resolved attack, flattened for columnar analysis.
type BattleRow struct {
	MatchID       string  `parquet:"match_id,dict"`
	Seq           int32   `parquet:"seq"`
	Attacker      int32   `parquet:"attacker"`
	Defender      int32   `parquet:"defender"`
	FromX         int32   `parquet:"from_x"`
	FromY         int32   `parquet:"from_y"`
	ToX           int32   `parquet:"to_x"`
	ToY           int32   `parquet:"to_y"`
	AttackerDice  int32   `parquet:"attacker_dice"`
	DefenderDice  int32   `parquet:"defender_dice"`
	AttackerRolls []int32 `parquet:"attacker_rolls"`
	DefenderRolls []int32 `parquet:"defender_rolls"`
	AttackerSum   int32   `parquet:"attacker_sum"`
	DefenderSum   int32   `parquet:"defender_sum"`
	Won           bool    `parquet:"won"`
}

// BattleRows converts a match's battle history to rows.
func BattleRows(matchID string, battles []dicewars.BattleResult) []BattleRow {
	rows := make([]BattleRow, len(battles))
	for i, b := range battles {
		rows[i] = BattleRow{
			MatchID:       matchID,
			Seq:           int32(i),
			Attacker:      int32(b.Attacker),
			Defender:      int32(b.Defender),
			FromX:         int32(b.From.X),
			FromY:         int32(b.From.Y),
			ToX:           int32(b.To.X),
			ToY:           int32(b.To.Y),
			AttackerDice:  int32(len(b.AttackerRolls)),
			DefenderDice:  int32(len(b.DefenderRolls)),
			AttackerRolls: int32s(b.AttackerRolls),
			DefenderRolls: int32s(b.DefenderRolls),
			AttackerSum:   int32(b.AttackerSum()),
			DefenderSum:   int32(b.DefenderSum()),
			Won:           b.Won,
		}
	}
	return rows
}

func int32s(xs []int) []int32 {
	out := make([]int32, len(xs))
	for i, x := range xs {
		out[i] = int32(x)
	}
	return out
}

// WriteBattleRows writes rows to outPath, replacing it atomically.
func WriteBattleRows(outPath string, rows []BattleRow) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", "battle_row_v1"),
	); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}

// WriteBattlesParquet exports one match's battle history to outPath.
func WriteBattlesParquet(outPath, matchID string, battles []dicewars.BattleResult) error {
	return WriteBattleRows(outPath, BattleRows(matchID, battles))
}

// ReadBattlesParquet reads back a battle export.
func ReadBattlesParquet(path string) ([]BattleRow, error) {
	rows, err := parquet.ReadFile[BattleRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	return rows, nil
}
