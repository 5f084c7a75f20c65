package transfer

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/imrenagi/go-drive-relay/transfer"

var (
	meter  = otel.Meter(instrumentationName)
	tracer = otel.Tracer(instrumentationName)
)

type instruments struct {
	results  metric.Int64Counter
	bytes    metric.Int64Counter
	duration metric.Float64Histogram
}

func newInstruments() instruments {
	var ins instruments
	var err error
	ins.results, err = meter.Int64Counter("relay.transfers",
		metric.WithDescription("Finished transfers by result"))
	if err != nil {
		log.Error().Err(err).Msg("unable to create transfers counter")
	}
	ins.bytes, err = meter.Int64Counter("relay.uploaded_bytes",
		metric.WithDescription("Bytes committed to the storage target"),
		metric.WithUnit("By"))
	if err != nil {
		log.Error().Err(err).Msg("unable to create uploaded bytes counter")
	}
	ins.duration, err = meter.Float64Histogram("relay.transfer_duration",
		metric.WithDescription("Wall time of a transfer from first status message to report"),
		metric.WithUnit("s"))
	if err != nil {
		log.Error().Err(err).Msg("unable to create transfer duration histogram")
	}
	return ins
}

func (ins instruments) record(ctx context.Context, res Result, kind MediaKind, uploaded int64, elapsed time.Duration) {
	outcome := "success"
	if f, ok := res.(Failure); ok {
		outcome = f.Kind.String()
	}
	attrs := metric.WithAttributes(
		attribute.String("result", outcome),
		attribute.String("media_kind", kind.String()),
	)
	if ins.results != nil {
		ins.results.Add(ctx, 1, attrs)
	}
	if ins.bytes != nil && uploaded > 0 {
		ins.bytes.Add(ctx, uploaded, metric.WithAttributes(attribute.String("media_kind", kind.String())))
	}
	if ins.duration != nil {
		ins.duration.Record(ctx, elapsed.Seconds(), attrs)
	}
}
