// Package notify fans notifications out to websocket clients. With Redis
// configured every instance relays the shared channel into its local hub, so
// a client connected anywhere receives frames published anywhere.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hirewise/api/internal/logger"
	"github.com/hirewise/api/internal/model"
	"github.com/hirewise/api/internal/websocket"
)

// Deliverer is the local delivery side, normally *websocket.Hub.
type Deliverer interface {
	Deliver(env websocket.Envelope) bool
}

type relayMessage struct {
	Kind   model.TargetType `json:"kind"`
	Target string           `json:"target,omitempty"`
	Frame  json.RawMessage  `json:"frame"`
}

type Dispatcher struct {
	rdb     *redis.Client
	channel string
	local   Deliverer
	log     zerolog.Logger
}

// NewDispatcher creates a dispatcher. rdb may be nil for single-instance
// delivery.
func NewDispatcher(rdb *redis.Client, channel string, local Deliverer) *Dispatcher {
	if channel == "" {
		channel = "notifications"
	}
	return &Dispatcher{
		rdb:     rdb,
		channel: channel,
		local:   local,
		log:     logger.With("notify"),
	}
}

// Publish sends a notification to its targets.
func (d *Dispatcher) Publish(ctx context.Context, n model.Notification) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	frame, err := json.Marshal(model.WSNotificationMessage{
		Type:      model.WSMessageTypeNotification,
		Event:     n.Event,
		Data:      n.Data,
		Timestamp: n.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	return d.send(ctx, n.Type, n.Target, frame)
}

// JobUpdated pushes a job's new state to its owner and to watchers of the job.
func (d *Dispatcher) JobUpdated(ctx context.Context, job *model.Job) {
	frame, err := json.Marshal(model.WSJobMessage{
		Type:  model.WSMessageTypeJob,
		Event: "job." + string(job.Status),
		Job:   job.View(),
	})
	if err != nil {
		d.log.Error().Err(err).Str("jobId", job.ID).Msg("failed to encode job update")
		return
	}
	if job.OwnerID != "" {
		if err := d.send(ctx, model.TargetUser, job.OwnerID, frame); err != nil {
			d.log.Warn().Err(err).Str("jobId", job.ID).Msg("job update not delivered")
		}
	}
	if err := d.send(ctx, model.TargetJob, job.ID, frame); err != nil {
		d.log.Warn().Err(err).Str("jobId", job.ID).Msg("job update not delivered")
	}
}

func (d *Dispatcher) send(ctx context.Context, kind model.TargetType, target string, frame []byte) error {
	if d.rdb != nil {
		msg, err := json.Marshal(relayMessage{Kind: kind, Target: target, Frame: frame})
		if err != nil {
			return err
		}
		err = d.rdb.Publish(ctx, d.channel, msg).Err()
		if err == nil {
			return nil
		}
		d.log.Warn().Err(err).Msg("redis publish failed, delivering locally")
	}
	d.local.Deliver(websocket.Envelope{Kind: kind, Target: target, Payload: frame})
	return nil
}

// Start subscribes to the shared channel and relays into the local hub until
// ctx is done. It returns once the subscription is confirmed.
func (d *Dispatcher) Start(ctx context.Context) error {
	if d.rdb == nil {
		return nil
	}
	sub := d.rdb.Subscribe(ctx, d.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", d.channel, err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				d.relay(m.Payload)
			}
		}
	}()
	d.log.Info().Str("channel", d.channel).Msg("notification relay started")
	return nil
}

func (d *Dispatcher) relay(payload string) {
	var msg relayMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		d.log.Warn().Err(err).Msg("ignoring malformed relay message")
		return
	}
	d.local.Deliver(websocket.Envelope{Kind: msg.Kind, Target: msg.Target, Payload: msg.Frame})
}
