// Package bigquery adapts the teacher's BigQuery-backed Initium/Terminus
// (components/bigquery/bigquery.go) into operators.Source/operators.Sink.
package bigquery

import (
	"context"
	"log/slog"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/spf13/viper"
	"google.golang.org/api/iterator"

	timely "github.com/flowmesh/timely"
	"github.com/flowmesh/timely/operators"
)

// loader adapts a Record to bigquery.ValueLoader/ValueSaver, matching the
// teacher's loader type.
type loader operators.Record

func (l loader) Load(values []bigquery.Value, schema bigquery.Schema) error {
	for i := 0; i < len(schema); i++ {
		l[schema[i].Name] = values[i]
	}
	return nil
}

func (l loader) Save() (row map[string]bigquery.Value, id string, err error) {
	row = map[string]bigquery.Value{}
	for k, v := range l {
		row[k] = v
	}
	return row, "", nil
}

type source struct {
	ctx      context.Context
	client   *bigquery.Client
	query    string
	interval time.Duration
	logger   *slog.Logger
}

// NewSource builds a BigQuery-backed operators.Source from project_id,
// query, and interval viper keys, matching
// components/bigquery/bigquery.go's Initium.
func NewSource(ctx context.Context, v *viper.Viper) (operators.Source, error) {
	client, err := bigquery.NewClient(ctx, v.GetString("project_id"))
	if err != nil {
		return nil, err
	}
	return &source{
		ctx:      ctx,
		client:   client,
		query:    v.GetString("query"),
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
			it, err := s.client.Query(s.query).Read(s.ctx)
			if err != nil {
				s.logger.Error("bigquery source query failed", "error", err)
				continue
			}
			for {
				value := loader{}
				err := it.Next(&value)
				if err == iterator.Done {
					break
				}
				if err != nil {
					s.logger.Error("bigquery source iterator failed", "error", err)
					break
				}
				record := operators.Record(value)
				pusher.Push(&record)
			}
		}
	}
}

type sink struct {
	ctx    context.Context
	table  *bigquery.Table
	logger *slog.Logger
}

// NewSink builds a BigQuery-backed operators.Sink from project_id,
// dataset, and table viper keys, matching
// components/bigquery/bigquery.go's Terminus.
func NewSink(ctx context.Context, v *viper.Viper) (operators.Sink, error) {
	client, err := bigquery.NewClient(ctx, v.GetString("project_id"))
	if err != nil {
		return nil, err
	}
	table := client.Dataset(v.GetString("dataset")).Table(v.GetString("table"))
	return &sink{ctx: ctx, table: table, logger: slog.Default()}, nil
}

func (s *sink) Drain(puller *timely.Puller[operators.Record]) {
	inserter := s.table.Inserter()
	for {
		record, ok := puller.Pull()
		if !ok {
			if puller.Done() {
				return
			}
			continue
		}
		if err := inserter.Put(s.ctx, loader(record)); err != nil {
			s.logger.Error("bigquery sink insert failed", "error", err)
		}
	}
}
