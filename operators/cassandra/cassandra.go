// Package cassandra adapts the teacher's Cassandra-backed Initium/Terminus
// (components/cassandra/cassandra.go) into operators.Source/operators.Sink.
package cassandra

import (
	"context"
	"log/slog"
	"time"

	"github.com/gocql/gocql"
	"github.com/spf13/viper"

	timely "github.com/flowmesh/timely"
	"github.com/flowmesh/timely/operators"
)

// source polls a paged Cassandra query on an interval and pushes one
// Record per result row, matching components/cassandra/cassandra.go's
// Initium but pushing row by row instead of batching into a slice.
type source struct {
	ctx      context.Context
	session  *gocql.Session
	query    string
	pageSize int
	interval time.Duration
	logger   *slog.Logger
}

// NewSource builds a Cassandra-backed operators.Source from hosts,
// keyspace, query, page_size, and interval viper keys, matching
// components/cassandra/cassandra.go's Initium.
func NewSource(ctx context.Context, v *viper.Viper) (operators.Source, error) {
	cluster := gocql.NewCluster(v.GetStringSlice("hosts")...)
	cluster.Keyspace = v.GetString("keyspace")
	cluster.Consistency = gocql.Quorum
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, err
	}
	return &source{
		ctx:      ctx,
		session:  session,
		query:    v.GetString("query"),
		pageSize: v.GetInt("page_size"),
		interval: v.GetDuration("interval"),
		logger:   slog.Default(),
	}, nil
}

func (s *source) Run(pusher timely.Pusher[operators.Record]) {
	state := []byte{}
	active := s.session.Query(s.query).PageSize(s.pageSize).WithContext(s.ctx)
	for {
		select {
		case <-s.ctx.Done():
			s.session.Close()
			pusher.Push(nil)
			return
		case <-time.After(s.interval):
			iter := active.PageState(state).Iter()
			rows, err := iter.SliceMap()
			if err != nil {
				s.logger.Error("cassandra source query failed", "error", err)
				continue
			}
			state = iter.PageState()
			for _, row := range rows {
				record := operators.Record(row)
				pusher.Push(&record)
			}
		}
	}
}

// sink executes an update/insert query once per Record pulled, matching
// components/cassandra/cassandra.go's Terminus row-at-a-time loop.
type sink struct {
	session *gocql.Session
	query   string
	keys    []string
	logger  *slog.Logger
}

// NewSink builds a Cassandra-backed operators.Sink from hosts, keyspace,
// query, and keys viper keys, matching components/cassandra/cassandra.go's
// Terminus. keys names the positional bind parameters to pull out of each
// Record in order.
func NewSink(v *viper.Viper) (operators.Sink, error) {
	cluster := gocql.NewCluster(v.GetStringSlice("hosts")...)
	cluster.Keyspace = v.GetString("keyspace")
	cluster.Consistency = gocql.Quorum
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, err
	}
	return &sink{
		session: session,
		query:   v.GetString("query"),
		keys:    v.GetStringSlice("keys"),
		logger:  slog.Default(),
	}, nil
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
		values := make([]interface{}, 0, len(s.keys))
		for _, key := range s.keys {
			values = append(values, record[key])
		}
		if err := s.session.Query(s.query, values...).Exec(); err != nil {
			s.logger.Error("cassandra sink exec failed", "error", err)
		}
	}
}
