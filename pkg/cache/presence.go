package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"devconnect/pkg/config"
	"devconnect/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	onlineKeyPrefix   = "presence:online:"
	lastSeenKeyPrefix = "presence:lastseen:"
)

// Status 用户在线状态
type Status struct {
	Online   bool
	LastSeen *time.Time
}

// Presence 基于 redis 的在线状态存储
// client 为空时所有操作为空操作, 所有用户显示离线
type Presence struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPresence 按配置连接 redis, 未配置地址时返回禁用的实例
func NewPresence(ctx context.Context) (*Presence, error) {
	cfg := config.GlobalConfig.Redis
	if cfg.Addr == "" {
		logger.L.Info("Redis address not configured, presence disabled")
		return &Presence{}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.L.Info("Redis connected", zap.String("addr", cfg.Addr))
	return NewPresenceWithClient(client, cfg.PresenceTTL), nil
}

func NewPresenceWithClient(client *redis.Client, ttl time.Duration) *Presence {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Presence{client: client, ttl: ttl}
}

func (p *Presence) Enabled() bool {
	return p != nil && p.client != nil
}

// SetOnline 标记在线并刷新过期时间, 心跳时重复调用
func (p *Presence) SetOnline(ctx context.Context, userID uint) error {
	if !p.Enabled() {
		return nil
	}
	now := time.Now()
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, onlineKey(userID), 1, p.ttl)
		pipe.Set(ctx, lastSeenKey(userID), now.UnixMilli(), 0)
		return nil
	})
	return err
}

// SetOffline 清除在线标记, 保留最后在线时间
func (p *Presence) SetOffline(ctx context.Context, userID uint) error {
	if !p.Enabled() {
		return nil
	}
	now := time.Now()
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, onlineKey(userID))
		pipe.Set(ctx, lastSeenKey(userID), now.UnixMilli(), 0)
		return nil
	})
	return err
}

// Lookup 批量查询, 未知用户为离线且无最后在线时间
func (p *Presence) Lookup(ctx context.Context, userIDs []uint) (map[uint]Status, error) {
	result := make(map[uint]Status, len(userIDs))
	if !p.Enabled() || len(userIDs) == 0 {
		return result, nil
	}

	keys := make([]string, 0, len(userIDs)*2)
	for _, id := range userIDs {
		keys = append(keys, onlineKey(id), lastSeenKey(id))
	}
	values, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for i, id := range userIDs {
		status := Status{Online: values[2*i] != nil}
		if raw, ok := values[2*i+1].(string); ok {
			if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
				seen := time.UnixMilli(ms)
				status.LastSeen = &seen
			}
		}
		result[id] = status
	}
	return result, nil
}

func (p *Presence) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.client.Close()
}

func onlineKey(userID uint) string {
	return onlineKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

func lastSeenKey(userID uint) string {
	return lastSeenKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

func (p *Presence) Ping(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	return p.client.Ping(ctx).Err()
}
