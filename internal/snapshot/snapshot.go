// Package snapshot ships structured stats to long term storage and to Kafka.
package snapshot

import (
	"context"
	"fmt"

	"github.com/getsentry/sentry-go"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"go.uber.org/multierr"
	"gocloud.dev/blob"

	"github.com/getsentry/timestats/internal/storageutil"
	"github.com/getsentry/timestats/internal/timestats"
)

type (
	// KafkaWriter is the subset of *kafka.Writer the exporter needs.
	KafkaWriter interface {
		WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	}

	// Source provides the stats to export.
	Source interface {
		Snapshot(maxLayers *uint32) (timestats.GlobalStats, bool)
	}

	// Exporter writes snapshots to the configured destinations. Both
	// destinations are optional.
	Exporter struct {
		Source   Source
		Bucket   *blob.Bucket
		Producer KafkaWriter
		Hostname string
		Logger   *zerolog.Logger
	}
)

// ObjectName returns where a snapshot taken at stats end is stored.
func ObjectName(stats timestats.GlobalStats) string {
	return fmt.Sprintf("timestats/%d/%s.json.lz4", stats.StatsEnd.Unix(), uuid.New().String())
}

// GenerateKafkaMessage encodes a snapshot as a message keyed by host.
func GenerateKafkaMessage(hostname string, stats timestats.GlobalStats) (kafka.Message, error) {
	b, err := json.Marshal(stats)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(hostname),
		Value: b,
	}, nil
}

func (e *Exporter) logger() *zerolog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return &log.Logger
}

// Export takes a snapshot and writes it everywhere it's configured to go. It
// returns the object name, empty if nothing was stored.
func (e *Exporter) Export(ctx context.Context) (string, error) {
	span := sentry.StartSpan(ctx, "snapshot.export")
	defer span.Finish()

	stats, ok := e.Source.Snapshot(nil)
	if !ok {
		e.logger().Debug().Msg("stats not started, nothing to export")
		return "", nil
	}

	var objectName string
	var err error
	if e.Bucket != nil {
		s := span.StartChild("gcs.write")
		name := ObjectName(stats)
		s.Description = name
		writeErr := storageutil.CompressedWrite(s.Context(), e.Bucket, name, stats)
		s.Finish()
		if writeErr != nil {
			err = multierr.Append(err, fmt.Errorf("write %s: %w", name, writeErr))
		} else {
			objectName = name
		}
	}

	if e.Producer != nil {
		s := span.StartChild("kafka.write")
		msg, encodeErr := GenerateKafkaMessage(e.Hostname, stats)
		if encodeErr == nil {
			encodeErr = e.Producer.WriteMessages(s.Context(), msg)
		}
		s.Finish()
		if encodeErr != nil {
			err = multierr.Append(err, fmt.Errorf("publish: %w", encodeErr))
		}
	}

	if err != nil {
		return objectName, err
	}
	e.logger().Debug().
		Str("object", objectName).
		Int("layers", len(stats.Layers)).
		Msg("snapshot exported")
	return objectName, nil
}
