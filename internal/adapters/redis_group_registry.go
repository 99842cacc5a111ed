package adapters

import (
	"context"
	"net/url"

	"github.com/go-redis/redis"
)

// RedisGroupRegistry keeps group membership in a redis set per group.
type RedisGroupRegistry struct {
	client *redis.Client
}

func NewRedisGroupRegistry(client *redis.Client) *RedisGroupRegistry {
	return &RedisGroupRegistry{client: client}
}

func (r *RedisGroupRegistry) Join(ctx context.Context, group, user string) error {
	return r.client.SAdd(groupKey(group), user).Err()
}

func (r *RedisGroupRegistry) Members(ctx context.Context, group string) ([]string, error) {
	return r.client.SMembers(groupKey(group)).Result()
}

func (r *RedisGroupRegistry) IsGroup(ctx context.Context, group string) (bool, error) {
	exists, err := r.client.Exists(groupKey(group)).Result()
	if err != nil {
		return false, err
	}
	return exists == 1, nil
}

func groupKey(group string) string {
	return "group:" + url.QueryEscape(group)
}
