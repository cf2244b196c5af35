package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/log-analyzer/internal/domain"
)

const (
	redisGroup        = "analyzer"
	redisBlockTimeout = time.Second
	chunkField        = "data"
)

// RedisFactory consumes line chunks from a redis stream through one consumer
// group. Each partition is a stable consumer name in the group, so the group
// delivers every message to exactly one partition, and a replacement worker
// re-reads whatever its crashed predecessor read but never acknowledged.
// Acknowledgement is XACK, the stream's native offset commit.
type RedisFactory struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

// NewRedisFactory creates a factory over the given stream.
func NewRedisFactory(client *redis.Client, stream string, logger *slog.Logger) *RedisFactory {
	return &RedisFactory{
		client: client,
		stream: stream,
		logger: logger.With("component", "redis_source"),
	}
}

// Partitions returns open-ended stream partitions. Redis streams have no
// byte ranges; the index only selects the consumer name.
func (f *RedisFactory) Partitions(count int) ([]domain.Partition, error) {
	if count < 1 {
		count = 1
	}
	partitions := make([]domain.Partition, count)
	for i := range partitions {
		partitions[i] = domain.Partition{Index: i, Start: 0, End: -1}
	}
	return partitions, nil
}

// Open joins the consumer group under the partition's stable consumer name.
func (f *RedisFactory) Open(ctx context.Context, partition domain.Partition, consumer string) (domain.ChunkSource, error) {
	err := f.client.XGroupCreateMkStream(ctx, f.stream, redisGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("failed to create consumer group %s: %w", redisGroup, err)
	}

	name := fmt.Sprintf("partition-%d", partition.Index)
	f.logger.Debug("opened redis partition", "partition", partition.Index, "consumer", name, "worker", consumer)
	return &redisSource{
		client:   f.client,
		stream:   f.stream,
		consumer: name,
		logger:   f.logger,
		pending:  true,
	}, nil
}

type redisSource struct {
	client   *redis.Client
	stream   string
	consumer string
	logger   *slog.Logger

	// pending: still replaying messages delivered to this consumer name but
	// never acknowledged (predecessor crashed mid-chunk).
	pending bool
}

// Next reads one message, replaying this partition's unacknowledged
// deliveries before asking for new ones.
func (s *redisSource) Next(ctx context.Context) (domain.Chunk, error) {
	for {
		cursor := ">"
		if s.pending {
			cursor = "0"
		}

		streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    redisGroup,
			Consumer: s.consumer,
			Streams:  []string{s.stream, cursor},
			Count:    1,
			Block:    redisBlockTimeout,
		}).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return domain.Chunk{}, ctx.Err()
			}
			s.pending = false
			continue // nothing new yet, keep blocking
		}
		if err != nil {
			if ctx.Err() != nil {
				return domain.Chunk{}, ctx.Err()
			}
			return domain.Chunk{}, fmt.Errorf("failed to read from stream %s: %w", s.stream, err)
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				return s.toChunk(msg), nil
			}
		}
		// An empty reply on the "0" cursor means the pending backlog is done.
		s.pending = false
	}
}

func (s *redisSource) toChunk(msg redis.XMessage) domain.Chunk {
	data, ok := msg.Values[chunkField].(string)
	if !ok {
		// Malformed producer payload; an empty chunk is acknowledged like any
		// other so it cannot wedge the partition.
		s.logger.Warn("stream message missing data field", "id", msg.ID)
	}
	return domain.Chunk{Data: []byte(data), ID: msg.ID}
}

// Ack marks the message processed via XACK.
func (s *redisSource) Ack(ctx context.Context, chunk domain.Chunk) error {
	if chunk.ID == "" {
		return nil
	}
	return s.client.XAck(ctx, s.stream, redisGroup, chunk.ID).Err()
}

func (s *redisSource) Close() error {
	return nil
}
