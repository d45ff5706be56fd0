//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/freeeve/dicewars/internal/model"
	"github.com/freeeve/dicewars/internal/testutil"
	"github.com/freeeve/dicewars/pkg/dicewars"
)

var testDB *sql.DB

func setup(t *testing.T) {
	t.Helper()
	if testDB == nil {
		testDB = testutil.SetupDB(t)
	}
	testutil.CleanupDB(t, testDB)
}

func createTestUser(t *testing.T, name string) *model.User {
	t.Helper()
	u, err := NewUserRepo(testDB).Create(context.Background(), name)
	if err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return u
}

// --- UserRepo Tests ---

func TestUserCreateIsIdempotent(t *testing.T) {
	setup(t)
	repo := NewUserRepo(testDB)
	ctx := context.Background()

	a, err := repo.Create(ctx, "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b, err := repo.Create(ctx, "alice")
	if err != nil {
		t.Fatalf("create again: %v", err)
	}
	if a.ID == "" || a.ID != b.ID {
		t.Fatalf("ids %q and %q, want equal and non-empty", a.ID, b.ID)
	}

	byName, err := repo.FindByName(ctx, "alice")
	if err != nil || byName == nil || byName.ID != a.ID {
		t.Fatalf("find by name = %+v, %v", byName, err)
	}
	byID, err := repo.FindByID(ctx, a.ID)
	if err != nil || byID == nil || byID.DisplayName != "alice" {
		t.Fatalf("find by id = %+v, %v", byID, err)
	}
}

func TestUserNotFound(t *testing.T) {
	setup(t)
	u, err := NewUserRepo(testDB).FindByID(context.Background(), uuid.NewString())
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if u != nil {
		t.Fatalf("expected nil, got %+v", u)
	}
}

// --- AgentRepo Tests ---

func TestAgentCRUD(t *testing.T) {
	setup(t)
	ctx := context.Background()
	owner := createTestUser(t, "owner")
	repo := NewAgentRepo(testDB)

	a, err := repo.Create(ctx, &model.Agent{
		ID: uuid.NewString(), OwnerID: owner.ID, Name: "rusher",
		Source: "api.endTurn();", TurnTimeoutMs: 2000, MaxMoves: 50,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.CreatedAt.IsZero() {
		t.Fatal("expected created_at")
	}

	a.Name = "rusher v2"
	a.MaxMoves = 60
	if err := repo.Update(ctx, a); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := repo.FindByID(ctx, a.ID)
	if err != nil || got == nil {
		t.Fatalf("find: %+v, %v", got, err)
	}
	if got.Name != "rusher v2" || got.MaxMoves != 60 || got.TurnTimeoutMs != 2000 {
		t.Fatalf("after update: %+v", got)
	}

	list, err := repo.List(ctx, owner.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %v, %v", list, err)
	}

	if err := repo.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = repo.FindByID(ctx, a.ID)
	if err != nil || got != nil {
		t.Fatalf("after delete: %+v, %v", got, err)
	}
}

// --- MatchRepo Tests ---

func TestMatchLifecycle(t *testing.T) {
	setup(t)
	ctx := context.Background()
	repo := NewMatchRepo(testDB)

	rec := &model.MatchRecord{
		ID:        uuid.NewString(),
		CreatorID: "someone",
		Status:    model.MatchActive,
		Winner:    dicewars.NoOwner,
		Players:   []model.MatchPlayer{{PlayerID: 0, UserID: "someone"}, {PlayerID: 1, IsBot: true, AgentID: "builtin:hard"}},
		Level:     []byte(`{"type":"config","size":"small"}`),
	}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.SetFinished(ctx, rec.ID, 1, 17); err != nil {
		t.Fatalf("set finished: %v", err)
	}

	got, err := repo.FindByID(ctx, rec.ID)
	if err != nil || got == nil {
		t.Fatalf("find: %+v, %v", got, err)
	}
	if got.Status != model.MatchFinished || got.Winner != 1 || got.Turns != 17 || got.FinishedAt == nil {
		t.Fatalf("finished record = %+v", got)
	}
	if !reflect.DeepEqual(got.Players, rec.Players) {
		t.Fatalf("players = %+v, want %+v", got.Players, rec.Players)
	}

	recent, err := repo.ListRecent(ctx, 10)
	if err != nil || len(recent) != 1 {
		t.Fatalf("recent = %v, %v", recent, err)
	}
}

func TestMatchBattles(t *testing.T) {
	setup(t)
	ctx := context.Background()
	repo := NewMatchRepo(testDB)

	rec := &model.MatchRecord{ID: uuid.NewString(), Status: model.MatchActive, Winner: -1}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	battles := []dicewars.BattleResult{
		{Attacker: 0, Defender: 1, From: dicewars.Coord{X: 0, Y: 0}, To: dicewars.Coord{X: 1, Y: 0}, AttackerRolls: []int{6, 5}, DefenderRolls: []int{1}, Won: true},
		{Attacker: 1, Defender: -1, From: dicewars.Coord{X: 2, Y: 2}, To: dicewars.Coord{X: 2, Y: 3}, AttackerRolls: []int{1, 1, 1}, DefenderRolls: []int{4}, Won: false},
	}
	if err := repo.SaveBattles(ctx, rec.ID, battles); err != nil {
		t.Fatalf("save battles: %v", err)
	}
	got, err := repo.ListBattles(ctx, rec.ID)
	if err != nil {
		t.Fatalf("list battles: %v", err)
	}
	if !reflect.DeepEqual(got, battles) {
		t.Fatalf("battles = %+v, want %+v", got, battles)
	}

	if err := repo.SaveBattles(ctx, rec.ID, battles[:1]); err != nil {
		t.Fatalf("resave battles: %v", err)
	}
	got, _ = repo.ListBattles(ctx, rec.ID)
	if len(got) != 1 {
		t.Fatalf("battles after resave = %d, want 1", len(got))
	}
}
