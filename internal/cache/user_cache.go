package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"playtube/api/internal/models"
)

// UserCache is a best-effort read-through cache for authenticated user
// lookups. It stores sanitized records only; a nil *UserCache is a no-op, so
// callers never need to guard for a disabled cache. All failures degrade to a
// cache miss.
type UserCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewUserCache(client *redis.Client, ttl time.Duration) *UserCache {
	if client == nil {
		return nil
	}
	return &UserCache{client: client, ttl: ttl}
}

type cachedUser struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatarUrl"`
	CoverImageURL *string   `json:"coverImageUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func userKey(id string) string {
	return "user:" + id
}

func (c *UserCache) Get(ctx context.Context, id string) (models.User, bool) {
	if c == nil {
		return models.User{}, false
	}

	payload, err := c.client.Get(ctx, userKey(id)).Bytes()
	if err != nil {
		return models.User{}, false
	}

	var cached cachedUser
	if err := json.Unmarshal(payload, &cached); err != nil {
		return models.User{}, false
	}

	return models.User{
		ID:            cached.ID,
		Username:      cached.Username,
		Email:         cached.Email,
		FullName:      cached.FullName,
		AvatarURL:     cached.AvatarURL,
		CoverImageURL: cached.CoverImageURL,
		CreatedAt:     cached.CreatedAt,
		UpdatedAt:     cached.UpdatedAt,
	}, true
}

func (c *UserCache) Set(ctx context.Context, user models.User) {
	if c == nil {
		return
	}

	user = user.Sanitized()
	payload, err := json.Marshal(cachedUser{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		FullName:      user.FullName,
		AvatarURL:     user.AvatarURL,
		CoverImageURL: user.CoverImageURL,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	})
	if err != nil {
		return
	}

	c.client.Set(ctx, userKey(user.ID), payload, c.ttl)
}

func (c *UserCache) Invalidate(ctx context.Context, id string) {
	if c == nil {
		return
	}
	c.client.Del(ctx, userKey(id))
}
