package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/setup"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/setup/logger"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/tlm"
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
	flag.Var(&prompts, "p", "Prompt to send (repeatable); remaining arguments are prompts too")
	try := flag.Bool("try", false, "Tolerant mode: failed prompts come back as null instead of failing the call")
	timeout := flag.Duration("timeout", 0, "Per-prompt timeout, dispatcher default when 0")
	concurrency := flag.Int("concurrency", 0, "Max prompts in flight, dispatcher default when 0")
	flag.Parse()

	prompts = append(prompts, flag.Args()...)
	if len(prompts) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: tlm [-try] [-timeout 30s] -p '<prompt>' ['<prompt>'...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := setup.LoadConfig()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = logger.NewConsole(cfg.LogLevel)
	appLogger := log.Logger

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	deps, err := setup.Wire(ctx, cfg, &appLogger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer deps.Close()

	var opts []tlm.CallOption
	if *timeout > 0 {
		opts = append(opts, tlm.WithTimeout(*timeout))
	}
	if *concurrency > 0 {
		opts = append(opts, tlm.WithMaxConcurrency(*concurrency))
	}

	var result any
	if *try {
		result = tlm.Responses(deps.TLM.TryPromptBatch(ctx, prompts, opts...))
	} else {
		responses, err := deps.TLM.PromptBatch(ctx, prompts, opts...)
		if err != nil {
			log.Error().Err(err).Msg("Prompt failed")
			deps.Close()
			os.Exit(1)
		}
		result = responses
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		log.Fatal().Err(err).Msg("Failed to write output")
	}
}
