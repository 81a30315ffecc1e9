// Package pubsub adapts the teacher's Pub/Sub-backed Initium/Terminus
// (components/pubsub/pubsub.go) into operators.Source/operators.Sink.
package pubsub

import (
	"context"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"github.com/spf13/viper"

	timely "github.com/flowmesh/timely"
	"github.com/flowmesh/timely/operators"
)

type source struct {
	ctx    context.Context
	sub    *pubsub.Subscription
	logger *slog.Logger
}

// NewSource builds a Pub/Sub-backed operators.Source from project_id,
// topic, and subscription viper keys, matching
// components/pubsub/pubsub.go's Initium.
func NewSource(ctx context.Context, v *viper.Viper) (operators.Source, error) {
	client, err := pubsub.NewClient(ctx, v.GetString("project_id"))
	if err != nil {
		return nil, err
	}
	topic := client.Topic(v.GetString("topic"))
	sub, err := client.CreateSubscription(ctx, v.GetString("subscription"), pubsub.SubscriptionConfig{Topic: topic})
	if err != nil {
		return nil, err
	}
	return &source{ctx: ctx, sub: sub, logger: slog.Default()}, nil
}

func (s *source) Run(pusher timely.Pusher[operators.Record]) {
	err := s.sub.Receive(s.ctx, func(ctx context.Context, m *pubsub.Message) {
		record, decodeErr := operators.JSONCodec{}.Decode(m.Data)
		if decodeErr != nil {
			s.logger.Error("pubsub source decode failed", "error", decodeErr)
			m.Nack()
			return
		}
		pusher.Push(&record)
		m.Ack()
	})
	if err != nil && s.ctx.Err() == nil {
		s.logger.Error("pubsub source receive failed", "error", err)
	}
	pusher.Push(nil)
}

type sink struct {
	ctx    context.Context
	topic  *pubsub.Topic
	logger *slog.Logger
}

// NewSink builds a Pub/Sub-backed operators.Sink from project_id and
// topic viper keys, matching components/pubsub/pubsub.go's Terminus.
func NewSink(ctx context.Context, v *viper.Viper) (operators.Sink, error) {
	client, err := pubsub.NewClient(ctx, v.GetString("project_id"))
	if err != nil {
		return nil, err
	}
	return &sink{ctx: ctx, topic: client.Topic(v.GetString("topic")), logger: slog.Default()}, nil
}

func (s *sink) Drain(puller *timely.Puller[operators.Record]) {
	for {
		record, ok := puller.Pull()
		if !ok {
			if puller.Done() {
				return
			}
			continue
		}
		data := operators.JSONCodec{}
		buf := make([]byte, data.Size(record))
		data.Encode(record, buf)
		result := s.topic.Publish(s.ctx, &pubsub.Message{Data: buf})
		if _, err := result.Get(s.ctx); err != nil {
			s.logger.Error("pubsub sink publish failed", "error", err)
		}
	}
}
