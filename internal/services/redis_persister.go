package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"waitroom/models"
)

// RedisPersister mirrors the in-memory session state into Redis so queue
// state survives a process restart. One JSON record per session plus a set
// index per resource.
type RedisPersister struct {
	Redis *redis.Client
}

func NewRedisPersister(client *redis.Client) *RedisPersister {
	return &RedisPersister{Redis: client}
}

func sessionKey(resourceID, sessionID string) string {
	return fmt.Sprintf("waitroom:session:%s:%s", resourceID, sessionID)
}

func sessionIndexKey(resourceID string) string {
	return fmt.Sprintf("waitroom:sessions:%s", resourceID)
}

const resourceIndexKey = "waitroom:resources"

func (p *RedisPersister) SaveSession(ctx context.Context, session *models.QueueSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	if err := p.Redis.Set(ctx, sessionKey(session.ResourceID, session.ID), data, 0).Err(); err != nil {
		return err
	}
	if err := p.Redis.SAdd(ctx, sessionIndexKey(session.ResourceID), session.ID).Err(); err != nil {
		return err
	}
	return p.Redis.SAdd(ctx, resourceIndexKey, session.ResourceID).Err()
}

func (p *RedisPersister) DeleteSession(ctx context.Context, resourceID, sessionID string) error {
	if err := p.Redis.Del(ctx, sessionKey(resourceID, sessionID)).Err(); err != nil {
		return err
	}
	return p.Redis.SRem(ctx, sessionIndexKey(resourceID), sessionID).Err()
}

func (p *RedisPersister) LoadSessions(ctx context.Context) ([]*models.QueueSession, error) {
	resourceIDs, err := p.Redis.SMembers(ctx, resourceIndexKey).Result()
	if err != nil {
		return nil, err
	}

	var sessions []*models.QueueSession
	for _, resourceID := range resourceIDs {
		ids, err := p.Redis.SMembers(ctx, sessionIndexKey(resourceID)).Result()
		if err != nil {
			return nil, err
		}

		for _, id := range ids {
			data, err := p.Redis.Get(ctx, sessionKey(resourceID, id)).Result()
			if err == redis.Nil {
				// Index entry without a record; drop it on the next save.
				continue
			} else if err != nil {
				return nil, err
			}

			var session models.QueueSession
			if err := json.Unmarshal([]byte(data), &session); err != nil {
				continue
			}
			sessions = append(sessions, &session)
		}
	}

	return sessions, nil
}
