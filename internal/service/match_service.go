package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/dicewars/internal/archive"
	"github.com/freeeve/dicewars/internal/logger"
	"github.com/freeeve/dicewars/internal/match"
	"github.com/freeeve/dicewars/internal/model"
	"github.com/freeeve/dicewars/internal/repository"
	"github.com/freeeve/dicewars/pkg/dicewars"
)

var (
	ErrMatchNotFound = errors.New("match not found")
	ErrNotYourTurn   = errors.New("not your turn")
	ErrNotYourSeat   = errors.New("you do not control this seat")
	ErrMatchOver     = errors.New("match is over")
	ErrInvalidLevel  = errors.New("invalid level")
)

// MaxAutoTurns caps matches without human seats, which play out unattended.
const MaxAutoTurns = 1000

// liveMatch is a match held in memory. mu serialises every operation on it.
type liveMatch struct {
	mu       sync.Mutex
	m        *match.Match
	seats    map[int]string // player ID -> controlling user ID
	events   *archive.EventLog
	finished bool
	touched  time.Time
}

// MatchService runs live matches and records their results.
type MatchService struct {
	matchRepo  repository.MatchRepository
	cache      repository.MatchCache
	driver     match.BotDriver
	broadcast  Broadcaster
	archiveDir string

	mu   sync.Mutex
	live map[string]*liveMatch
	bg   sync.WaitGroup
}

// NewMatchService creates a MatchService. cache may be nil, and an empty
// archiveDir disables event logs.
func NewMatchService(matchRepo repository.MatchRepository, cache repository.MatchCache, driver match.BotDriver, bc Broadcaster, archiveDir string) *MatchService {
	if bc == nil {
		bc = NoopBroadcaster{}
	}
	return &MatchService{
		matchRepo:  matchRepo,
		cache:      cache,
		driver:     driver,
		broadcast:  bc,
		archiveDir: archiveDir,
		live:       make(map[string]*liveMatch),
	}
}

// CreateMatch builds a match from a YAML or JSON level description, starts
// it, and plays bot turns until a human seat is to move. Every human seat is
// controlled by the creator. A match without human seats plays out in the
// background. A zero seed picks a random one.
func (s *MatchService) CreateMatch(ctx context.Context, creatorID string, levelData []byte, seed int64) (match.State, error) {
	level, err := dicewars.ParseLevel(levelData)
	if err != nil {
		return match.State{}, fmt.Errorf("%w: %v", ErrInvalidLevel, err)
	}
	rng := dicewars.NewRand(seed)
	setup, err := dicewars.BuildLevel(level, rng)
	if err != nil {
		return match.State{}, fmt.Errorf("%w: %v", ErrInvalidLevel, err)
	}

	id := uuid.NewString()
	lm := &liveMatch{seats: make(map[int]string), touched: time.Now()}
	rec := &model.MatchRecord{
		ID:        id,
		CreatorID: creatorID,
		Status:    model.MatchActive,
		Winner:    dicewars.NoOwner,
	}
	for _, p := range setup.Players {
		mp := model.MatchPlayer{PlayerID: p.ID, IsBot: p.IsBot, AgentID: p.AgentID}
		if !p.IsBot {
			mp.UserID = creatorID
			lm.seats[p.ID] = creatorID
		}
		rec.Players = append(rec.Players, mp)
	}
	if rec.Level, err = json.Marshal(level); err != nil {
		return match.State{}, fmt.Errorf("encode level: %w", err)
	}
	if err := s.matchRepo.Create(ctx, rec); err != nil {
		return match.State{}, fmt.Errorf("create match record: %w", err)
	}

	lm.m = match.New(id, setup.Board, setup.Players, setup.DiceSides,
		match.WithRand(rng),
		match.WithBotDriver(s.driver),
		match.WithObserver(s.observerFor(lm, id)),
	)

	s.mu.Lock()
	s.live[id] = lm
	s.mu.Unlock()

	l := logger.ForMatch(ctx, id)
	l.Info().Str("creatorId", creatorID).Str("levelType", string(level.Type)).
		Int("players", len(setup.Players)).Int("humans", len(lm.seats)).Msg("Match created")

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if err := lm.m.Start(); err != nil {
		return match.State{}, err
	}
	if len(lm.seats) == 0 {
		s.bg.Add(1)
		go s.playOut(id, lm)
		return lm.m.Snapshot(), nil
	}
	if err := s.advance(ctx, lm); err != nil {
		return match.State{}, err
	}
	return lm.m.Snapshot(), nil
}

// Wait blocks until every background match started by this service is done.
func (s *MatchService) Wait() { s.bg.Wait() }

func (s *MatchService) playOut(id string, lm *liveMatch) {
	defer s.bg.Done()
	lm.mu.Lock()
	defer lm.mu.Unlock()

	ctx := context.Background()
	if err := lm.m.Run(ctx, MaxAutoTurns); err != nil {
		log.Error().Err(err).Str("matchId", id).Msg("Background match failed")
	}
	if !lm.m.Over {
		log.Warn().Str("matchId", id).Int("turn", lm.m.Turn).Msg("Background match hit the turn cap")
	}
	s.afterAction(ctx, lm)
	if !lm.m.Over {
		s.finish(ctx, lm)
	}
}

func (s *MatchService) observerFor(lm *liveMatch, id string) match.Observer {
	obs := match.MultiObserver{broadcastObserver{bc: s.broadcast}}
	if s.archiveDir != "" {
		el, err := archive.NewEventLog(s.archiveDir, id)
		if err != nil {
			log.Warn().Err(err).Str("matchId", id).Msg("Event log unavailable")
		} else {
			lm.events = el
			obs = append(obs, el)
		}
	}
	return obs
}

// GetMatch returns the current state of a match. Matches no longer held in
// memory are served from the cache, and resumed if still in progress.
func (s *MatchService) GetMatch(ctx context.Context, matchID string) (match.State, error) {
	lm, err := s.load(ctx, matchID)
	if err != nil {
		return match.State{}, err
	}
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.touched = time.Now()
	return lm.m.Snapshot(), nil
}

// Attack resolves an attack by a human seat.
func (s *MatchService) Attack(ctx context.Context, matchID, userID string, playerID int, from, to dicewars.Coord) (dicewars.BattleResult, match.State, error) {
	lm, err := s.load(ctx, matchID)
	if err != nil {
		return dicewars.BattleResult{}, match.State{}, err
	}
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if err := s.checkSeat(lm, userID, playerID); err != nil {
		return dicewars.BattleResult{}, match.State{}, err
	}

	res, err := lm.m.Attack(playerID, from, to)
	if err != nil {
		return res, match.State{}, mapMatchError(err)
	}
	s.afterAction(ctx, lm)
	return res, lm.m.Snapshot(), nil
}

// EndTurn ends a human seat's turn and plays the bot turns that follow.
func (s *MatchService) EndTurn(ctx context.Context, matchID, userID string, playerID int) (dicewars.ReinforcementResult, match.State, error) {
	lm, err := s.load(ctx, matchID)
	if err != nil {
		return dicewars.ReinforcementResult{}, match.State{}, err
	}
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if err := s.checkSeat(lm, userID, playerID); err != nil {
		return dicewars.ReinforcementResult{}, match.State{}, err
	}

	res, err := lm.m.EndTurn(playerID)
	if err != nil {
		return res, match.State{}, mapMatchError(err)
	}
	if err := s.advance(ctx, lm); err != nil {
		return res, match.State{}, err
	}
	return res, lm.m.Snapshot(), nil
}

// Battles returns the battle history of a match.
func (s *MatchService) Battles(ctx context.Context, matchID string) ([]dicewars.BattleResult, error) {
	s.mu.Lock()
	lm := s.live[matchID]
	s.mu.Unlock()
	if lm != nil {
		return lm.m.Battles.All(), nil
	}

	rec, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrMatchNotFound
	}
	return s.matchRepo.ListBattles(ctx, matchID)
}

// ListRecent returns the most recent match records.
func (s *MatchService) ListRecent(ctx context.Context, limit int) ([]model.MatchRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.matchRepo.ListRecent(ctx, limit)
}

func (s *MatchService) checkSeat(lm *liveMatch, userID string, playerID int) error {
	if lm.m.Over {
		return ErrMatchOver
	}
	owner, ok := lm.seats[playerID]
	if !ok || owner != userID {
		return ErrNotYourSeat
	}
	lm.touched = time.Now()
	return nil
}

// advance plays bot turns until a human is to move or the match ends. The
// turns run to completion even if the caller's request is cancelled, so a
// match is never left waiting on a bot seat.
func (s *MatchService) advance(ctx context.Context, lm *liveMatch) error {
	ctx = context.WithoutCancel(ctx)
	err := lm.m.Run(ctx, 0)
	s.afterAction(ctx, lm)
	if err != nil {
		return fmt.Errorf("play bot turns: %w", err)
	}
	return nil
}

// afterAction caches the match state and records the result once it is over.
func (s *MatchService) afterAction(ctx context.Context, lm *liveMatch) {
	s.cacheState(ctx, lm)
	if lm.m.Over {
		s.finish(ctx, lm)
	}
}

func (s *MatchService) cacheState(ctx context.Context, lm *liveMatch) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(lm.m.Snapshot())
	if err != nil {
		log.Error().Err(err).Str("matchId", lm.m.ID).Msg("Failed to encode match state")
		return
	}
	if err := s.cache.SetMatchState(ctx, lm.m.ID, data); err != nil {
		log.Warn().Err(err).Str("matchId", lm.m.ID).Msg("Failed to cache match state")
	}
}

// finish persists the result and battle history. It runs once per match.
func (s *MatchService) finish(ctx context.Context, lm *liveMatch) {
	if lm.finished {
		return
	}
	lm.finished = true
	m := lm.m
	l := logger.ForMatch(ctx, m.ID)
	if err := s.matchRepo.SetFinished(ctx, m.ID, m.Winner, m.Turn); err != nil {
		l.Error().Err(err).Msg("Failed to record match result")
	}
	if err := s.matchRepo.SaveBattles(ctx, m.ID, m.Battles.All()); err != nil {
		l.Error().Err(err).Msg("Failed to save battle history")
	}
	if lm.events != nil {
		if err := lm.events.Close(); err != nil {
			l.Warn().Err(err).Msg("Failed to close event log")
		}
	}
	l.Info().Int("winner", m.Winner).Int("turns", m.Turn).
		Int("battles", m.Battles.Len()).Msg("Match recorded")
}

// load returns the live match, restoring it from the cache if needed.
func (s *MatchService) load(ctx context.Context, matchID string) (*liveMatch, error) {
	s.mu.Lock()
	lm := s.live[matchID]
	s.mu.Unlock()
	if lm != nil {
		return lm, nil
	}
	if s.cache == nil {
		return nil, ErrMatchNotFound
	}

	raw, err := s.cache.GetMatchState(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrMatchNotFound
	}
	var st match.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode cached match state: %w", err)
	}
	rec, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrMatchNotFound
	}

	lm = &liveMatch{seats: make(map[int]string), finished: st.Over, touched: time.Now()}
	for _, p := range rec.Players {
		if !p.IsBot {
			lm.seats[p.PlayerID] = p.UserID
		}
	}
	var obs match.Observer = broadcastObserver{bc: s.broadcast}
	if !st.Over {
		obs = s.observerFor(lm, matchID)
	}
	lm.m = match.Restore(st, match.WithBotDriver(s.driver), match.WithObserver(obs))

	s.mu.Lock()
	if existing := s.live[matchID]; existing != nil {
		s.mu.Unlock()
		if lm.events != nil {
			lm.events.Close()
		}
		return existing, nil
	}
	s.live[matchID] = lm
	lm.mu.Lock()
	s.mu.Unlock()
	defer lm.mu.Unlock()

	log.Info().Str("matchId", matchID).Int("turn", st.Turn).Msg("Match restored from cache")
	s.resume(ctx, lm)
	return lm, nil
}

// resume restarts automated play on a restored match that was saved with a
// bot to move. lm.mu must be held.
func (s *MatchService) resume(ctx context.Context, lm *liveMatch) {
	if lm.m.Over {
		return
	}
	if len(lm.seats) == 0 {
		s.bg.Add(1)
		go s.playOut(lm.m.ID, lm)
		return
	}
	if p := lm.m.CurrentPlayer(); p == nil || !p.IsBot {
		return
	}
	if err := s.advance(ctx, lm); err != nil {
		l := logger.ForMatch(ctx, lm.m.ID)
		l.Error().Err(err).Msg("Failed to resume bot turns")
	}
}

func mapMatchError(err error) error {
	switch {
	case errors.Is(err, match.ErrNotYourTurn):
		return ErrNotYourTurn
	case errors.Is(err, match.ErrMatchOver):
		return ErrMatchOver
	}
	return err
}
