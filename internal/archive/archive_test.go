package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freeeve/dicewars/internal/match"
	"github.com/freeeve/dicewars/pkg/dicewars"
)

func sampleBattles() []dicewars.BattleResult {
	return []dicewars.BattleResult{
		{Attacker: 0, Defender: 1, From: dicewars.Coord{X: 0, Y: 0}, To: dicewars.Coord{X: 1, Y: 0},
			AttackerRolls: []int{6, 2}, DefenderRolls: []int{3}, Won: true},
		{Attacker: 1, Defender: 0, From: dicewars.Coord{X: 2, Y: 1}, To: dicewars.Coord{X: 2, Y: 0},
			AttackerRolls: []int{1, 1, 1}, DefenderRolls: []int{4}, Won: false},
	}
}

func TestEventLogRoundTrip(t *testing.T) {
	dir := t.TempDir()
	el, err := NewEventLog(dir, "m1")
	require.NoError(t, err)

	battle := sampleBattles()[0]
	el.OnEvent(match.TurnStarted{Match: "m1", Turn: 1, PlayerID: 0})
	el.OnEvent(match.AttackResolved{Match: "m1", Turn: 1, Battle: battle})
	el.OnEvent(match.GameOver{Match: "m1", Turn: 1, Winner: 0})
	assert.Equal(t, 3, el.Len())
	require.NoError(t, el.Close())
	require.NoError(t, el.Close())
	require.Error(t, el.Write(match.GameOver{Match: "m1"}))

	recs, err := ReadEvents(LogPath(dir, "m1"))
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []match.EventKind{match.KindTurnStarted, match.KindAttackResolved, match.KindGameOver},
		[]match.EventKind{recs[0].Kind, recs[1].Kind, recs[2].Kind})
	for i, r := range recs {
		assert.Equal(t, i, r.Seq)
		assert.False(t, r.At.IsZero())
	}

	var got match.AttackResolved
	require.NoError(t, json.Unmarshal(recs[1].Event, &got))
	assert.Equal(t, battle, got.Battle)
}

func TestEventLogIsCompressed(t *testing.T) {
	dir := t.TempDir()
	el, err := NewEventLog(dir, "m2")
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		require.NoError(t, el.Write(match.TurnStarted{Match: "m2", Turn: i, PlayerID: i % 4}))
	}
	require.NoError(t, el.Close())

	raw, err := os.ReadFile(el.Path())
	require.NoError(t, err)
	// zstd frame magic
	require.GreaterOrEqual(t, len(raw), 4)
	assert.Equal(t, []byte{0x28, 0xb5, 0x2f, 0xfd}, raw[:4])

	recs, err := ReadEvents(el.Path())
	require.NoError(t, err)
	assert.Len(t, recs, 200)
}

func TestNewEventLogRejectsEmptyID(t *testing.T) {
	_, err := NewEventLog(t.TempDir(), "")
	require.Error(t, err)
}

func TestBattleRows(t *testing.T) {
	rows := BattleRows("m1", sampleBattles())
	require.Len(t, rows, 2)
	assert.Equal(t, BattleRow{
		MatchID: "m1", Seq: 0, Attacker: 0, Defender: 1,
		FromX: 0, FromY: 0, ToX: 1, ToY: 0,
		AttackerDice: 2, DefenderDice: 1,
		AttackerRolls: []int32{6, 2}, DefenderRolls: []int32{3},
		AttackerSum: 8, DefenderSum: 3, Won: true,
	}, rows[0])
	assert.Equal(t, int32(3), rows[1].AttackerSum)
	assert.False(t, rows[1].Won)
}

func TestWriteBattlesParquet(t *testing.T) {
	out := filepath.Join(t.TempDir(), "exports", "m1.parquet")
	require.NoError(t, WriteBattlesParquet(out, "m1", sampleBattles()))

	_, err := os.Stat(out + ".tmp")
	assert.True(t, os.IsNotExist(err))

	rows, err := ReadBattlesParquet(out)
	require.NoError(t, err)
	assert.Equal(t, BattleRows("m1", sampleBattles()), rows)
}

func TestEventLogReopenAppends(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		el, err := NewEventLog(dir, "m3")
		require.NoError(t, err)
		require.NoError(t, el.Write(match.TurnStarted{Match: "m3", Turn: i + 1}))
		require.NoError(t, el.Close())
	}

	recs, err := ReadEvents(LogPath(dir, "m3"))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	var second match.TurnStarted
	require.NoError(t, json.Unmarshal(recs[1].Event, &second))
	assert.Equal(t, 2, second.Turn)
}
