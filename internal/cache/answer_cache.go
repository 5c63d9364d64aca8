package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"pdfchat/internal/domain"
)

// AnswerCache stores answered questions per index build. A rebuild gets a
// new build id, so answers from an older index are never returned.
type AnswerCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewAnswerCache(client *redisv9.Client, ttl time.Duration) *AnswerCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &AnswerCache{client: client, ttl: ttl}
}

func (c *AnswerCache) Get(ctx context.Context, buildID, question string) (*domain.Answer, bool, error) {
	raw, err := c.client.Get(ctx, AnswerKey(buildID, question)).Result()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get answer failed: %w", err)
	}

	var ans domain.Answer
	if err := json.Unmarshal([]byte(raw), &ans); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached answer failed: %w", err)
	}
	return &ans, true, nil
}

func (c *AnswerCache) Set(ctx context.Context, buildID, question string, ans domain.Answer) error {
	payload, err := json.Marshal(ans)
	if err != nil {
		return fmt.Errorf("marshal answer cache failed: %w", err)
	}
	if err := c.client.Set(ctx, AnswerKey(buildID, question), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set answer failed: %w", err)
	}
	return nil
}

// AnswerKey hashes the question after folding case and whitespace so that
// trivially different spellings share an entry.
func AnswerKey(buildID, question string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	sum := blake2b.Sum256([]byte(normalized))
	return fmt.Sprintf("pdfchat:answer:%s:%s", buildID, hex.EncodeToString(sum[:]))
}
