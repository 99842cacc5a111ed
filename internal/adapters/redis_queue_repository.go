package adapters

import (
	"context"
	"encoding/json"
	"net/url"

	"courier/internal/models"

	"github.com/go-redis/redis"
)

// RedisQueueRepository keeps each recipient's pending buffer in a redis
// list, one RPUSH per append. Drain reads and deletes the list in a MULTI
// transaction so no concurrent append is lost or delivered twice within a
// single drain.
type RedisQueueRepository struct {
	client *redis.Client
}

func NewRedisQueueRepository(client *redis.Client) *RedisQueueRepository {
	return &RedisQueueRepository{client: client}
}

func (r *RedisQueueRepository) Append(ctx context.Context, key models.QueueKey, message models.Message) error {
	bytes, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return r.client.RPush(queueKey(key), bytes).Err()
}

func (r *RedisQueueRepository) Drain(ctx context.Context, key models.QueueKey) ([]models.Message, error) {
	var pending *redis.StringSliceCmd
	_, err := r.client.TxPipelined(func(pipe redis.Pipeliner) error {
		pending = pipe.LRange(queueKey(key), 0, -1)
		pipe.Del(queueKey(key))
		return nil
	})
	if err != nil {
		return nil, err
	}

	var messages []models.Message
	for _, raw := range pending.Val() {
		var message models.Message
		if err := json.Unmarshal([]byte(raw), &message); err != nil {
			continue
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func queueKey(key models.QueueKey) string {
	return "queue:" + url.QueryEscape(key.Owner) + ":" + url.QueryEscape(key.Group)
}
