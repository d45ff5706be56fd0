// Command agentd is the sandbox worker. It reads one agent turn request from
// stdin, runs the agent in an embedded interpreter, and streams the queued
// intents and the final result to stdout as newline-delimited JSON.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/dicewars/internal/logger"
	"github.com/freeeve/dicewars/internal/sandbox"
)

func main() {
	logger.InitTo(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sandbox.Serve(ctx, os.Stdin, os.Stdout); err != nil {
		log.Error().Err(err).Msg("agentd failed")
		stop()
		os.Exit(1)
	}
}
