package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/models"
	red "github.com/povarna/generative-ai-agents/tlm-agent/internal/redis"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/stream/redis"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type promptList []string

func (p *promptList) String() string {
	return fmt.Sprint(*p)
}

func (p *promptList) Set(value string) error {
	*p = append(*p, value)
	return nil
}

func main() {
	var prompts promptList
	flag.Var(&prompts, "p", "Prompt to publish (repeatable)")
	data := flag.String("d", "", "Inline JSON PromptMessage, overrides -p")
	stream := flag.String("stream", redis.DefaultStream, "Stream name")
	timeout := flag.Float64("timeout", 0, "Per-prompt timeout in seconds, worker default when 0")
	flag.Parse()

	if *data == "" && len(prompts) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: producer -p '<prompt>' [-p '<prompt>'...] | -d '<json>'")
		flag.PrintDefaults()
		os.Exit(1)
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	msg, err := buildMessage(*data, prompts, *timeout)
	if err != nil {
		log.Error().Err(err).Msg("invalid message")
		os.Exit(1)
	}

	if err := run(msg, *stream); err != nil {
		log.Error().Err(err).Msg("producer failed")
		os.Exit(1)
	}
}

func buildMessage(data string, prompts []string, timeout float64) (models.PromptMessage, error) {
	var msg models.PromptMessage
	if data != "" {
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			return msg, err
		}
	} else {
		msg = models.PromptMessage{Prompts: prompts, TimeoutSeconds: timeout}
	}

	if len(msg.Prompts) == 0 {
		return msg, fmt.Errorf("message has no prompts")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	return msg, nil
}

func run(msg models.PromptMessage, stream string) error {
	_ = godotenv.Load()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	ctx := context.Background()
	client, err := red.Connect(ctx, addr, os.Getenv("REDIS_PASSWORD"), 3, &log.Logger)
	if err != nil {
		return err
	}
	defer client.Close()

	id, err := redis.Publish(ctx, client, stream, msg)
	if err != nil {
		return err
	}

	log.Info().Str("stream", stream).Str("id", id).Str("message_id", msg.ID).Int("prompts", len(msg.Prompts)).Msg("Published successfully!")
	return nil
}
