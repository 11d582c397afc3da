package watchlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"curvewatch/internal/observability"
)

// DefaultStream is the Redis stream the upstream chat listener publishes to.
const DefaultStream = "telegram:detections"

// readBlock is how long one XRead call blocks waiting for entries.
const readBlock = 5 * time.Second

// Detection is the schema-versioned record the upstream listener pushes
// per extracted contract address.
type Detection struct {
	SchemaVersion string `json:"schema_version"`
	UserID        int    `json:"user_id"`
	ChatID        int64  `json:"chat_id"`
	MessageID     int    `json:"message_id"`
	Contract      string `json:"contract"`
	Type          string `json:"type"`
	Sender        int64  `json:"sender_id"`
	Username      string `json:"username"`
	Message       string `json:"message"`
	DetectedAt    int64  `json:"detected_at"`
}

// TrackFunc starts tracking a mint. The engine's Track method satisfies it
// modulo the return value.
type TrackFunc func(ctx context.Context, mint string) error

// ConsumerOptions configures a Consumer.
type ConsumerOptions struct {
	Client *redis.Client
	Stream string // optional; defaults to DefaultStream
	// StartID is the stream position to read from. Defaults to "$"
	// (new entries only).
	StartID string
	Track   TrackFunc
	Logger  *log.Logger
}

// Consumer reads detections from the Redis stream and feeds each new mint
// into the engine. Already-tracked and unresolvable mints are skipped.
type Consumer struct {
	client *redis.Client
	stream string
	lastID string
	track  TrackFunc
	logger *log.Logger
	seen   map[string]struct{}
}

// NewConsumer creates a Consumer.
func NewConsumer(opts ConsumerOptions) *Consumer {
	stream := opts.Stream
	if stream == "" {
		stream = DefaultStream
	}
	startID := opts.StartID
	if startID == "" {
		startID = "$"
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Consumer{
		client: opts.Client,
		stream: stream,
		lastID: startID,
		track:  opts.Track,
		logger: logger,
		seen:   make(map[string]struct{}),
	}
}

// Run consumes the stream until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Printf("[watchlist] consuming %s from %s", c.stream, c.lastID)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		streams, err := c.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{c.stream, c.lastID},
			Count:   100,
			Block:   readBlock,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // block timeout, nothing new
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read stream %s: %w", c.stream, err)
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				c.lastID = msg.ID
				c.handleEntry(ctx, msg.Values)
			}
		}
	}
}

// handleEntry decodes one stream entry and tracks the mints it carries.
func (c *Consumer) handleEntry(ctx context.Context, values map[string]interface{}) {
	observability.DefaultMetrics.DetectionsConsumed.Inc()

	raw, ok := values["data"].(string)
	if !ok {
		c.logger.Printf("[watchlist] entry without data field, skipping")
		return
	}

	var d Detection
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		c.logger.Printf("[watchlist] malformed detection: %v", err)
		return
	}

	for _, m := range c.mintsFrom(d) {
		if _, dup := c.seen[m.Address]; dup {
			continue
		}
		c.seen[m.Address] = struct{}{}
		observability.DefaultMetrics.MintsExtracted.WithLabelValues(m.Form).Inc()

		if err := c.track(ctx, m.Address); err != nil {
			c.logger.Printf("[watchlist] track %s: %v", m.Address, err)
			continue
		}
		c.logger.Printf("[watchlist] tracking %s (%s, from %s)", m.Address, m.Form, d.Username)
	}
}

// mintsFrom extracts the mints a detection carries: the pre-extracted
// contract when valid, otherwise a fresh extraction from the message text.
func (c *Consumer) mintsFrom(d Detection) []Match {
	if ValidMint(d.Contract) {
		form := d.Type
		if form == "" {
			form = FormStandard
		}
		return []Match{{Address: d.Contract, Raw: d.Contract, Form: form}}
	}
	return ExtractMints(d.Message)
}
