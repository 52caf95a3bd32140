package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"agroquote/quoter/internal/config"
	"agroquote/quoter/internal/domain"
)

// QuotePublisher hands assembled quotes to the document renderers over a
// Redis stream. Renderers read them through a consumer group.
type QuotePublisher interface {
	PublishQuote(ctx context.Context, quote *domain.Quote) (string, error) // Returns message ID
	NextQuote(ctx context.Context, consumer string, block time.Duration) (*Message, error)
	AckQuote(ctx context.Context, msgID string) error
	ClaimStale(ctx context.Context, consumer string) ([]Message, error)
	EnsureStream(ctx context.Context) error
}

// Message is one quote read back from the stream.
type Message struct {
	ID    string
	Quote *domain.Quote
}

type RedisQuoteStream struct {
	redisClient *redis.Client
	stream      string
	groupName   string
	minIdleTime time.Duration
}

func NewRedisQuoteStream(ctx context.Context, redisClient *redis.Client, cfg config.RedisConfig) (*RedisQuoteStream, error) {
	q := &RedisQuoteStream{
		redisClient: redisClient,
		stream:      cfg.QuoteStream,
		groupName:   cfg.ConsumerGroup,
		minIdleTime: cfg.MinIdleTime,
	}

	if err := q.EnsureStream(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure quote stream exists: %w", err)
	}
	return q, nil
}

// EnsureStream creates the stream and the renderer consumer group.
func (q *RedisQuoteStream) EnsureStream(ctx context.Context) error {
	err := q.redisClient.XGroupCreateMkStream(ctx, q.stream, q.groupName, "0").Err()
	if err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP") {
		log.Debugf("Group %s already exists for stream %s", q.groupName, q.stream)
		return nil
	}
	if err != nil {
		return err
	}
	log.Infof("✅ Stream %s and consumer group %s ready", q.stream, q.groupName)
	return nil
}

func (q *RedisQuoteStream) PublishQuote(ctx context.Context, quote *domain.Quote) (string, error) {
	data, err := json.Marshal(quote)
	if err != nil {
		return "", fmt.Errorf("failed to serialize quote: %w", err)
	}

	messageID, err := q.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{
			"quote_id":   quote.ID,
			"quote_data": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to add quote to Redis stream %s: %w", q.stream, err)
	}

	log.Debugf("Published quote %s to stream %s with message ID: %s", quote.ID, q.stream, messageID)
	return messageID, nil
}

// NextQuote blocks up to block for a new quote. It returns nil when none
// arrived.
func (q *RedisQuoteStream) NextQuote(ctx context.Context, consumer string, block time.Duration) (*Message, error) {
	result, err := q.redisClient.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.groupName,
		Consumer: consumer,
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from Redis stream %s: %w", q.stream, err)
	}

	if len(result) == 0 || len(result[0].Messages) == 0 {
		return nil, nil
	}

	msg, err := decodeMessage(result[0].Messages[0])
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (q *RedisQuoteStream) AckQuote(ctx context.Context, msgID string) error {
	return q.redisClient.XAck(ctx, q.stream, q.groupName, msgID).Err()
}

// ClaimStale takes over quotes another renderer read but never acknowledged.
func (q *RedisQuoteStream) ClaimStale(ctx context.Context, consumer string) ([]Message, error) {
	result, _, err := q.redisClient.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.groupName,
		Consumer: consumer,
		MinIdle:  q.minIdleTime,
		Start:    "0-0",
		Count:    10,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to claim messages from Redis stream %s: %w", q.stream, err)
	}

	messages := make([]Message, 0, len(result))
	for _, m := range result {
		msg, err := decodeMessage(m)
		if err != nil {
			log.Warnf("⚠️ Skipping undecodable message %s: %v", m.ID, err)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func decodeMessage(m redis.XMessage) (Message, error) {
	raw, ok := m.Values["quote_data"].(string)
	if !ok {
		return Message{}, fmt.Errorf("message %s has no quote_data field", m.ID)
	}

	var quote domain.Quote
	if err := json.Unmarshal([]byte(raw), &quote); err != nil {
		return Message{}, fmt.Errorf("failed to decode quote in message %s: %w", m.ID, err)
	}
	return Message{ID: m.ID, Quote: &quote}, nil
}
