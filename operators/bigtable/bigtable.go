// Package bigtable adapts the teacher's Bigtable-backed Initium/Terminus
// (components/bigtable/bigtable.go) into operators.Source/operators.Sink.
package bigtable

import (
	"context"
	"log/slog"
	"time"

	"cloud.google.com/go/bigtable"
	"github.com/spf13/viper"

	timely "github.com/flowmesh/timely"
	"github.com/flowmesh/timely/operators"
)

// RowFilter decides whether a scanned row should be pushed as a Record,
// matching the teacher's Filter func type.
type RowFilter func(r bigtable.Row) bool

// RowMutation turns a batch of Records into the row keys and mutations to
// apply in a bulk write, matching the teacher's Mutation func type.
type RowMutation func(records []operators.Record) (rowKeys []string, muts []*bigtable.Mutation)

type source struct {
	ctx      context.Context
	table    *bigtable.Table
	rowRange bigtable.RowRange
	opts     []bigtable.ReadOption
	filter   RowFilter
	interval time.Duration
	logger   *slog.Logger
}

// NewSource builds a Bigtable-backed operators.Source from project_id,
// instance, table, prefix_range, and family_filters viper keys, matching
// components/bigtable/bigtable.go's Initium. filter selects which scanned
// rows are pushed.
func NewSource(ctx context.Context, v *viper.Viper, filter RowFilter) (operators.Source, error) {
	client, err := bigtable.NewClient(ctx, v.GetString("project_id"), v.GetString("instance"))
	if err != nil {
		return nil, err
	}
	opts := []bigtable.ReadOption{}
	for _, family := range v.GetStringSlice("family_filters") {
		opts = append(opts, bigtable.RowFilter(bigtable.FamilyFilter(family)))
	}
	return &source{
		ctx:      ctx,
		table:    client.Open(v.GetString("table")),
		rowRange: bigtable.PrefixRange(v.GetString("prefix_range")),
		opts:     opts,
		filter:   filter,
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
			err := s.table.ReadRows(s.ctx, s.rowRange, func(row bigtable.Row) bool {
				if !s.filter(row) {
					return true
				}
				record := operators.Record{"__key": row.Key()}
				for family, items := range row {
					record[family] = items
				}
				pusher.Push(&record)
				return true
			}, s.opts...)
			if err != nil {
				s.logger.Error("bigtable source read failed", "error", err)
			}
		}
	}
}

type sink struct {
	ctx    context.Context
	table  *bigtable.Table
	mutate RowMutation
	logger *slog.Logger

	batchSize int
}

// NewSink builds a Bigtable-backed operators.Sink from project_id,
// instance, and table viper keys, matching
// components/bigtable/bigtable.go's Terminus. Since Bigtable's ApplyBulk
// is naturally batched, records are accumulated for batchSize pulls (or
// until the puller reports Done) before each bulk apply.
func NewSink(ctx context.Context, v *viper.Viper, mutate RowMutation, batchSize int) (operators.Sink, error) {
	client, err := bigtable.NewClient(ctx, v.GetString("project_id"), v.GetString("instance"))
	if err != nil {
		return nil, err
	}
	return &sink{
		ctx:    ctx,
		table:  client.Open(v.GetString("table")),
		mutate: mutate,
		logger: slog.Default(),

		batchSize: batchSize,
	}, nil
}

func (s *sink) Drain(puller *timely.Puller[operators.Record]) {
	batchSize := s.batchSize
	batch := make([]operators.Record, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		keys, muts := s.mutate(batch)
		if errs, err := s.table.ApplyBulk(s.ctx, keys, muts); err != nil {
			s.logger.Error("bigtable sink apply failed", "error", err)
		} else if len(errs) > 0 {
			s.logger.Error("bigtable sink partial apply failure", "count", len(errs))
		}
		batch = batch[:0]
	}
	for {
		record, ok := puller.Pull()
		if !ok {
			if puller.Done() {
				flush()
				return
			}
			continue
		}
		batch = append(batch, record)
		if len(batch) >= batchSize {
			flush()
		}
	}
}
