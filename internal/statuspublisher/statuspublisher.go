// Package statuspublisher mirrors pool connectivity and firmware-transfer
// progress into Redis, for a shell process that wants to watch GCP activity
// without holding the port itself. It is adapted from the teacher's
// pkg/redis/client.go (same Hset+Publish pipeline pattern via
// github.com/redis/go-redis/v9), trimmed to the handful of operations this
// domain needs and re-keyed under a "gcp:" namespace instead of the
// teacher's scooter-state hash keys.
package statuspublisher

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	gcp "github.com/glitchi/gcp-host"
	"github.com/glitchi/gcp-host/internal/pool"
)

// Publisher writes pool and firmware state to Redis. The zero value is not
// usable; construct with New.
type Publisher struct {
	client *redis.Client
	ctx    context.Context
}

// New connects to the Redis instance at addr and verifies it is reachable.
func New(addr, password string, db int) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("statuspublisher: connect to redis: %w", err)
	}
	return &Publisher{client: client, ctx: ctx}, nil
}

// PublishPortStatus writes and publishes a pool.Status for portName under
// the "gcp:port:<portName>" hash, mirroring the teacher's
// WriteAndPublishString pattern of an HSet paired with a Publish in one
// pipeline.
func (p *Publisher) PublishPortStatus(portName string, status pool.Status) error {
	key := fmt.Sprintf("gcp:port:%s", portName)
	pipe := p.client.Pipeline()
	pipe.HSet(p.ctx, key, "state", status.State.String())
	pipe.HSet(p.ctx, key, "message", status.Message)
	pipe.Publish(p.ctx, key, fmt.Sprintf("state:%s", status.State.String()))
	_, err := pipe.Exec(p.ctx)
	return err
}

// PublishFirmwareProgress writes and publishes a firmware ProgressEvent
// under "gcp:firmware:<portName>".
func (p *Publisher) PublishFirmwareProgress(portName string, ev gcp.ProgressEvent) error {
	key := fmt.Sprintf("gcp:firmware:%s", portName)
	pipe := p.client.Pipeline()
	pipe.HSet(p.ctx, key, "stage", ev.Stage)
	pipe.HSet(p.ctx, key, "current_chunk", ev.CurrentChunk)
	pipe.HSet(p.ctx, key, "total_chunks", ev.TotalChunks)
	pipe.Publish(p.ctx, key, fmt.Sprintf("stage:%s", ev.Stage))
	_, err := pipe.Exec(p.ctx)
	return err
}

// Close closes the underlying Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
