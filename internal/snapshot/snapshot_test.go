package snapshot

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"go.uber.org/multierr"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"

	"github.com/getsentry/timestats/internal/testutil"
	"github.com/getsentry/timestats/internal/timestats"
)

var fileBlobBucket *blob.Bucket

func TestMain(m *testing.M) {
	temporaryDirectory, err := os.MkdirTemp(os.TempDir(), "timestats-*")
	if err != nil {
		log.Fatalf("couldn't create a temporary directory: %s", err.Error())
	}

	fileBlobBucket, err = blob.OpenBucket(context.Background(), "file://"+temporaryDirectory)
	if err != nil {
		log.Fatalf("couldn't open a local filesystem bucket: %s", err.Error())
	}

	code := m.Run()

	if err := fileBlobBucket.Close(); err != nil {
		log.Printf("couldn't close the local filesystem bucket: %s", err.Error())
	}

	err = os.RemoveAll(temporaryDirectory)
	if err != nil {
		log.Printf("couldn't remove the temporary directory: %s", err.Error())
	}

	os.Exit(code)
}

type KafkaWriterMock struct {
	messages []kafka.Message
	err      error
}

func (k *KafkaWriterMock) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if k.err != nil {
		return k.err
	}
	k.messages = append(k.messages, msgs...)
	return nil
}

func newService(t *testing.T) *timestats.Service {
	t.Helper()
	logger := zerolog.Nop()
	clock := testutil.NewClock(time.Date(2023, time.January, 1, 12, 0, 0, 0, time.UTC))
	s := timestats.New(timestats.Config{Clock: clock, Logger: &logger})
	s.Enable()
	s.IncrementTotalFrames()
	for i := 0; i <= 2; i++ {
		postTime := int64(i) * 16_000_000
		s.SetPostTime("com.app/A#0", uint64(i), postTime)
		s.SetPresentTime("com.app/A#0", uint64(i), postTime+16_000_000)
	}
	return s
}

func newExporter(s Source, producer KafkaWriter) *Exporter {
	logger := zerolog.Nop()
	return &Exporter{
		Source:   s,
		Bucket:   fileBlobBucket,
		Producer: producer,
		Hostname: "device-1",
		Logger:   &logger,
	}
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	producer := &KafkaWriterMock{}
	e := newExporter(newService(t), producer)

	objectName, err := e.Export(ctx)
	if err != nil {
		t.Fatalf("export shouldn't fail: %v", err)
	}
	if !strings.HasPrefix(objectName, "timestats/1672574400/") || !strings.HasSuffix(objectName, ".json.lz4") {
		t.Fatalf("unexpected object name %q", objectName)
	}

	var stored timestats.GlobalStats
	if err := testutil.ReadCompressed(ctx, fileBlobBucket, objectName, &stored); err != nil {
		t.Fatalf("snapshot should be readable: %v", err)
	}
	if stored.TotalFrames != 1 || len(stored.Layers) != 1 || stored.Layers[0].TotalFrames != 2 {
		t.Fatalf("unexpected stored snapshot: %+v", stored)
	}

	if len(producer.messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(producer.messages))
	}
	if string(producer.messages[0].Key) != "device-1" {
		t.Fatalf("got key %q, want the host name", string(producer.messages[0].Key))
	}
	var published timestats.GlobalStats
	if err := json.Unmarshal(producer.messages[0].Value, &published); err != nil {
		t.Fatalf("message should be valid JSON: %v", err)
	}
	if diff := testutil.Diff(published, stored); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestExportBeforeEnable(t *testing.T) {
	logger := zerolog.Nop()
	s := timestats.New(timestats.Config{Logger: &logger})
	producer := &KafkaWriterMock{}

	objectName, err := newExporter(s, producer).Export(context.Background())
	if err != nil || objectName != "" {
		t.Fatalf("got (%q, %v), want nothing exported", objectName, err)
	}
	if len(producer.messages) != 0 {
		t.Fatalf("got %d messages, want 0", len(producer.messages))
	}
}

func TestExportKafkaFailure(t *testing.T) {
	brokerDown := errors.New("broker down")
	e := newExporter(newService(t), &KafkaWriterMock{err: brokerDown})

	objectName, err := e.Export(context.Background())
	if !errors.Is(err, brokerDown) {
		t.Fatalf("got %v, want the producer error", err)
	}
	if len(multierr.Errors(err)) != 1 {
		t.Fatalf("got %d errors, want 1", len(multierr.Errors(err)))
	}
	if objectName == "" {
		t.Fatal("the snapshot should still be stored")
	}
}

func TestExportWithoutDestinations(t *testing.T) {
	logger := zerolog.Nop()
	e := &Exporter{Source: newService(t), Logger: &logger}
	objectName, err := e.Export(context.Background())
	if err != nil || objectName != "" {
		t.Fatalf("got (%q, %v), want nothing stored", objectName, err)
	}
}
