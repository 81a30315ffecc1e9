// Package kafka adapts the teacher's Kafka-backed Initium/Terminus
// (components/kafka/kafka.go) into operators.Source/operators.Sink.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	kaf "github.com/segmentio/kafka-go"
	"github.com/spf13/viper"

	timely "github.com/flowmesh/timely"
	"github.com/flowmesh/timely/operators"
)

// source reads batches of messages from a Kafka topic and pushes each as
// a Record, matching the teacher's Initium polling loop but pushing one
// Record at a time instead of batching into a slice.
type source struct {
	ctx           context.Context
	reader        *kaf.Reader
	batchInterval time.Duration
	batchSize     int
	logger        *slog.Logger
}

// NewSource builds a Kafka-backed operators.Source configured the way
// components/kafka/kafka.go's Initium reads its viper keys: topic,
// partition, brokers, deadline, retries, batch.interval, batch.size.
func NewSource(ctx context.Context, v *viper.Viper) operators.Source {
	reader := kaf.NewReader(kaf.ReaderConfig{
		Brokers:     v.GetStringSlice("brokers"),
		Topic:       v.GetString("topic"),
		Partition:   v.GetInt("partition"),
		MaxWait:     v.GetDuration("deadline"),
		MaxAttempts: v.GetInt("retries"),
	})
	return &source{
		ctx:           ctx,
		reader:        reader,
		batchInterval: v.GetDuration("batch.interval"),
		batchSize:     v.GetInt("batch.size"),
		logger:        slog.Default(),
	}
}

func (s *source) Run(pusher timely.Pusher[operators.Record]) {
	for {
		select {
		case <-s.ctx.Done():
			pusher.Push(nil)
			return
		case <-time.After(s.batchInterval):
			for i := 0; i < s.batchSize; i++ {
				message, err := s.reader.ReadMessage(s.ctx)
				if err != nil {
					s.logger.Error("kafka source read failed", "error", err)
					continue
				}
				record, err := operators.JSONCodec{}.Decode(message.Value)
				if err != nil {
					s.logger.Error("kafka source decode failed", "error", err)
					continue
				}
				pusher.Push(&record)
			}
		}
	}
}

// sink writes Records pulled from a worker's output to a Kafka topic,
// matching components/kafka/kafka.go's Terminus.
type sink struct {
	writer *kaf.Writer
	ctx    context.Context
	logger *slog.Logger
}

// NewSink builds a Kafka-backed operators.Sink configured the way
// components/kafka/kafka.go's Terminus reads its viper keys: topic,
// brokers, retries.
func NewSink(ctx context.Context, v *viper.Viper) operators.Sink {
	writer := &kaf.Writer{
		Addr:        kaf.TCP(v.GetStringSlice("brokers")...),
		Topic:       v.GetString("topic"),
		Balancer:    &kaf.LeastBytes{},
		MaxAttempts: v.GetInt("retries"),
	}
	return &sink{writer: writer, ctx: ctx, logger: slog.Default()}
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
		bytez, err := json.Marshal(record)
		if err != nil {
			s.logger.Error("kafka sink marshal failed", "error", err)
			continue
		}
		if err := s.writer.WriteMessages(s.ctx, kaf.Message{Value: bytez}); err != nil {
			s.logger.Error("kafka sink write failed", "error", err)
		}
	}
}
