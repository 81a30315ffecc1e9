// Package sqs adapts the teacher's SQS-backed Initium/Terminus
// (components/sqs/sqs.go) into operators.Source/operators.Sink, ported
// from aws-sdk-go v1 to aws-sdk-go-v2 per SPEC_FULL.md's domain stack.
package sqs

import (
	"context"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/spf13/viper"

	timely "github.com/flowmesh/timely"
	"github.com/flowmesh/timely/operators"
)

type source struct {
	ctx      context.Context
	client   *sqs.Client
	queueURL string
	batch    int32
	wait     int32
	interval time.Duration
	logger   *slog.Logger
}

// NewSource builds an SQS-backed operators.Source from region,
// queue_url, batch_size, wait_time_seconds, and interval viper keys,
// matching components/sqs/sqs.go's Initium.
func NewSource(ctx context.Context, v *viper.Viper) (operators.Source, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(v.GetString("region")))
	if err != nil {
		return nil, err
	}
	return &source{
		ctx:      ctx,
		client:   sqs.NewFromConfig(cfg),
		queueURL: v.GetString("queue_url"),
		batch:    int32(v.GetInt("batch_size")),
		wait:     int32(v.GetInt("wait_time_seconds")),
		interval: v.GetDuration("interval"),
		logger:   slog.Default(),
	}, nil
}

func (s *source) Run(pusher timely.Pusher[operators.Record]) {
	for {
		select {
		case <-s.ctx.Done():
			pusher.Push(nil)
			return
		case <-time.After(s.interval):
			id := uuid.New().String()
			out, err := s.client.ReceiveMessage(s.ctx, &sqs.ReceiveMessageInput{
				QueueUrl:                &s.queueURL,
				MaxNumberOfMessages:     s.batch,
				WaitTimeSeconds:         s.wait,
				ReceiveRequestAttemptId: &id,
			})
			if err != nil {
				s.logger.Error("sqs source receive failed", "error", err)
				continue
			}
			for _, message := range out.Messages {
				record, err := operators.JSONCodec{}.Decode([]byte(*message.Body))
				if err != nil {
					s.logger.Error("sqs source decode failed", "error", err)
					continue
				}
				pusher.Push(&record)
			}
		}
	}
}

type sink struct {
	ctx      context.Context
	client   *sqs.Client
	queueURL string
	delay    int32
	logger   *slog.Logger
}

// NewSink builds an SQS-backed operators.Sink from region, queue_url, and
// delay viper keys, matching components/sqs/sqs.go's Terminus.
func NewSink(ctx context.Context, v *viper.Viper) (operators.Sink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(v.GetString("region")))
	if err != nil {
		return nil, err
	}
	return &sink{
		ctx:      ctx,
		client:   sqs.NewFromConfig(cfg),
		queueURL: v.GetString("queue_url"),
		delay:    int32(v.GetInt("delay")),
		logger:   slog.Default(),
	}, nil
}

func (s *sink) Drain(puller *timely.Puller[operators.Record]) {
	groupID := uuid.New().String()
	for {
		record, ok := puller.Pull()
		if !ok {
			if puller.Done() {
				return
			}
			continue
		}
		codec := operators.JSONCodec{}
		buf := make([]byte, codec.Size(record))
		codec.Encode(record, buf)
		body := string(buf)
		id := uuid.New().String()
		_, err := s.client.SendMessage(s.ctx, &sqs.SendMessageInput{
			QueueUrl:               &s.queueURL,
			MessageBody:            &body,
			DelaySeconds:           s.delay,
			MessageGroupId:         &groupID,
			MessageDeduplicationId: &id,
		})
		if err != nil {
			s.logger.Error("sqs sink send failed", "error", err)
		}
	}
}
