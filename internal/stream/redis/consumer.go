package redis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/povarna/generative-ai-agents/tlm-agent/internal/models"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/tlm"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Client is the subset of *redis.Client the consumer uses.
type Client interface {
	Publisher
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

type Prompter interface {
	TryPromptBatch(ctx context.Context, prompts []string, opts ...tlm.CallOption) []tlm.Result
}

type Consumer struct {
	client       Client
	stream       string
	resultStream string
	groupID      string
	consumerName string
	prompter     Prompter
	logger       *zerolog.Logger
}

func NewConsumer(client Client, cfg *RedisStreamConfig, prompter Prompter, logger *zerolog.Logger) *Consumer {
	return &Consumer{
		client:       client,
		stream:       cfg.Stream,
		resultStream: cfg.ResultStream,
		groupID:      cfg.Group,
		consumerName: cfg.ConsumerName,
		prompter:     prompter,
		logger:       logger,
	}
}

func (c *Consumer) Setup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.groupID, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info().
		Str("stream", c.stream).
		Str("result_stream", c.resultStream).
		Str("group", c.groupID).
		Str("consumer", c.consumerName).
		Msg("Consumer started")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.groupID,
			Consumer: c.consumerName,
			Streams:  []string{c.stream, ">"},
			Count:    1,
			Block:    2 * time.Second,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}

			c.logger.Error().Err(err).Msg("Failed to read from stream")
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				c.process(ctx, msg)
			}
		}
	}
}

// Stop closes the client when the consumer owns it.
func (c *Consumer) Stop() error {
	if closer, ok := c.client.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Consumer) process(ctx context.Context, msg redis.XMessage) {
	c.logger.Info().Str("id", msg.ID).Msg("Message received")

	payload, ok := msg.Values[payloadField].(string)
	if !ok {
		c.logger.Error().Str("id", msg.ID).Msg("Missing payload field")
		c.ack(ctx, msg.ID)
		return
	}

	var promptMsg models.PromptMessage
	if err := json.Unmarshal([]byte(payload), &promptMsg); err != nil {
		c.logger.Error().Err(err).Str("id", msg.ID).Msg("Failed to decode message")
		c.ack(ctx, msg.ID) // bad message, ACK to skip it
		return
	}
	if len(promptMsg.Prompts) == 0 {
		c.logger.Error().Str("id", msg.ID).Msg("Message has no prompts")
		c.ack(ctx, msg.ID)
		return
	}
	if promptMsg.ID == "" {
		promptMsg.ID = msg.ID
	}

	var opts []tlm.CallOption
	if promptMsg.TimeoutSeconds > 0 {
		opts = append(opts, tlm.WithTimeout(tlm.Seconds(promptMsg.TimeoutSeconds)))
	}

	results := c.prompter.TryPromptBatch(ctx, promptMsg.Prompts, opts...)
	result := newResultMessage(promptMsg, results)

	// Leave the message pending when the result cannot be published so it is redelivered.
	id, err := Publish(ctx, c.client, c.resultStream, result)
	if err != nil {
		c.logger.Error().Err(err).Str("id", msg.ID).Msg("Failed to publish result")
		return
	}

	c.logger.Info().
		Str("id", msg.ID).
		Str("result_id", id).
		Int("prompts", len(promptMsg.Prompts)).
		Int("absent", result.Absent).
		Msg("Prompt message complete")

	c.ack(ctx, msg.ID)
}

func (c *Consumer) ack(ctx context.Context, msgID string) {
	if err := c.client.XAck(ctx, c.stream, c.groupID, msgID).Err(); err != nil {
		c.logger.Error().Err(err).Str("id", msgID).Msg("Failed to ACK message")
	}
}

func newResultMessage(msg models.PromptMessage, results []tlm.Result) models.ResultMessage {
	out := models.ResultMessage{
		ID:      msg.ID,
		Results: make([]models.OutputRecord, len(results)),
	}
	for i, r := range results {
		record := models.OutputRecord{
			ID:       strconv.Itoa(i),
			Prompt:   msg.Prompts[i],
			Response: r.Response,
		}
		if r.Absent() {
			out.Absent++
			if r.Err != nil {
				record.Error = r.Err.Error()
			}
		}
		out.Results[i] = record
	}
	return out
}
