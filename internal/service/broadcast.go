package service

import "github.com/freeeve/dicewars/internal/match"

// Broadcaster sends real-time events to connected clients.
// Implemented by the WebSocket hub.
type Broadcaster interface {
	BroadcastMatchEvent(matchID string, eventType string, data any)
}

// NoopBroadcaster is a no-op implementation for testing or when WS is disabled.
type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastMatchEvent(string, string, any) {}

// broadcastObserver forwards match events to a Broadcaster.
type broadcastObserver struct {
	bc Broadcaster
}

func (o broadcastObserver) OnEvent(e match.Event) {
	o.bc.BroadcastMatchEvent(e.MatchID(), string(e.Kind()), e)
}
