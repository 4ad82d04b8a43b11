package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/jdkdb-crawler/internal/progress"
)

// LogSink writes one PROGRESS line per event; events carrying an error are
// logged at error level.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		if evt.Message == "" {
			continue
		}
		fields := []zap.Field{
			zap.String("scraper", evt.Source),
			zap.String("kind", string(evt.Kind)),
			zap.String("run_id", evt.RunID),
			zap.Time("event_ts", evt.TS),
		}
		if evt.Err != nil {
			s.logger.Error("PROGRESS: "+evt.Source+" - "+evt.Message, append(fields, zap.Error(evt.Err))...)
			continue
		}
		s.logger.Info("PROGRESS: "+evt.Source+" - "+evt.Message, fields...)
	}
	return nil
}

// Close implements the Sink interface; it flushes the logger.
func (s *LogSink) Close(context.Context) error {
	_ = s.logger.Sync()
	return nil
}
