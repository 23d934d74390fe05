package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/reserve_account.lua
var reserveAccountScript string

//go:embed scripts/release_account.lua
var releaseAccountScript string

//go:embed scripts/commit_sale.lua
var commitSaleScript string

type Client struct {
	rdb           *redis.Client
	reserveScript *redis.Script
	releaseScript *redis.Script
	commitScript  *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		reserveScript: redis.NewScript(reserveAccountScript),
		releaseScript: redis.NewScript(releaseAccountScript),
		commitScript:  redis.NewScript(commitSaleScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func accountKey(accountID int64) string {
	return fmt.Sprintf("account:%d", accountID)
}

// ReserveAccount atomically reserves an account mirror entry via Lua script.
// Returns true if reservation succeeded, false if the listing is off sale.
func (c *Client) ReserveAccount(ctx context.Context, accountID int64, quantity int) (bool, error) {
	result, err := c.reserveScript.Run(ctx, c.rdb, []string{accountKey(accountID)}, quantity).Result()
	if err != nil {
		return false, fmt.Errorf("reserve account script failed: %w", err)
	}

	success, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}

	return success == 1, nil
}

// ReleaseAccount atomically puts a reserved mirror entry back on sale
func (c *Client) ReleaseAccount(ctx context.Context, accountID int64) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{accountKey(accountID)}).Result()
	if err != nil {
		return fmt.Errorf("release account script failed: %w", err)
	}

	return nil
}

// CommitSale atomically settles the mirror entry after payment
func (c *Client) CommitSale(ctx context.Context, accountID int64, quantity int) error {
	_, err := c.commitScript.Run(ctx, c.rdb, []string{accountKey(accountID)}, quantity).Result()
	if err != nil {
		return fmt.Errorf("commit sale script failed: %w", err)
	}

	return nil
}

// InitAccount seeds the availability mirror for a listing
func (c *Client) InitAccount(ctx context.Context, accountID int64, status string, stock int) error {
	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, accountKey(accountID), "status", status)
	pipe.HSet(ctx, accountKey(accountID), "stock", stock)

	_, err := pipe.Exec(ctx)
	return err
}

// DropAccount removes a deleted listing from the mirror
func (c *Client) DropAccount(ctx context.Context, accountID int64) error {
	return c.rdb.Del(ctx, accountKey(accountID)).Err()
}

// IncrementDailySales advances the dashboard counters for the given day
func (c *Client) IncrementDailySales(ctx context.Context, day string, amount int64) error {
	pipe := c.rdb.Pipeline()
	pipe.Incr(ctx, fmt.Sprintf("stats:sales:%s", day))
	pipe.IncrBy(ctx, fmt.Sprintf("stats:revenue:%s", day), amount)

	_, err := pipe.Exec(ctx)
	return err
}

// GetDailySales reads the dashboard counters for the given day
func (c *Client) GetDailySales(ctx context.Context, day string) (sales int64, revenue int64, err error) {
	sales, err = c.rdb.Get(ctx, fmt.Sprintf("stats:sales:%s", day)).Int64()
	if err == redis.Nil {
		sales = 0
	} else if err != nil {
		return 0, 0, err
	}

	revenue, err = c.rdb.Get(ctx, fmt.Sprintf("stats:revenue:%s", day)).Int64()
	if err == redis.Nil {
		return sales, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	return sales, revenue, nil
}
