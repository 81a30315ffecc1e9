// Package redis adapts the teacher's Redis-backed Subscription
// (subscriptions/redis/redis.go) into an operators.Source, reading
// pub/sub messages into Records instead of machine.Data.
package redis

import (
	"log/slog"

	ps "github.com/gomodule/redigo/redis"

	timely "github.com/flowmesh/timely"
	"github.com/flowmesh/timely/operators"
)

type source struct {
	conn   ps.PubSubConn
	logger *slog.Logger
}

// NewSource builds a Redis pub/sub-backed operators.Source subscribed to
// channels, matching subscriptions/redis/redis.go's New/Read pair.
func NewSource(pool *ps.Pool, channels ...string) (operators.Source, error) {
	conn := ps.PubSubConn{Conn: pool.Get()}
	args := make([]interface{}, len(channels))
	for i, c := range channels {
		args[i] = c
	}
	if err := conn.Subscribe(args...); err != nil {
		return nil, err
	}
	return &source{conn: conn, logger: slog.Default()}, nil
}

func (s *source) Run(pusher timely.Pusher[operators.Record]) {
	defer s.conn.Close()
	for {
		switch v := s.conn.Receive().(type) {
		case ps.Message:
			record, err := operators.JSONCodec{}.Decode(v.Data)
			if err != nil {
				s.logger.Error("redis source decode failed", "error", err)
				continue
			}
			pusher.Push(&record)
		case ps.Subscription:
			if v.Count == 0 {
				pusher.Push(nil)
				return
			}
		case error:
			s.logger.Error("redis source receive failed", "error", v)
			pusher.Push(nil)
			return
		}
	}
}
