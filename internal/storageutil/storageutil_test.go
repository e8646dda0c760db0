package storageutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"math"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/pierrec/lz4/v4"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"

	"github.com/getsentry/timestats/internal/testutil"
)

var fileBlobBucket *blob.Bucket

type Snapshot struct {
	TotalFrames  uint64   `json:"total_frames"`
	MissedFrames uint64   `json:"missed_frames"`
	Layers       []string `json:"layers"`
}

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

func TestUploadSnapshot(t *testing.T) {
	ctx := context.Background()
	objectName := uuid.New().String()
	originalData := Snapshot{
		TotalFrames:  120,
		MissedFrames: 3,
		Layers:       []string{"StatusBar#0", "com.app/A#0"},
	}

	err := CompressedWrite(ctx, fileBlobBucket, objectName, originalData)
	if err != nil {
		t.Fatalf("we should be able to write: %v", err)
	}
	content, err := fileBlobBucket.ReadAll(ctx, objectName)
	if err != nil {
		t.Fatalf("we should be able to read the object: %v", err)
	}
	r := lz4.NewReader(bytes.NewBuffer(content))
	uncompressedData, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("we should be able to uncompress the data: %v", err)
	}
	b, err := json.Marshal(originalData)
	if err != nil {
		t.Fatalf("we should be able to marshal this: %v", err)
	}
	if !bytes.Equal(b, bytes.TrimSpace(uncompressedData)) {
		t.Fatal("data should be identical")
	}
}

func TestReadBackSnapshot(t *testing.T) {
	ctx := context.Background()
	objectName := uuid.New().String()
	originalData := Snapshot{
		TotalFrames:  120,
		MissedFrames: 3,
		Layers:       []string{"StatusBar#0"},
	}

	err := CompressedWrite(ctx, fileBlobBucket, objectName, originalData)
	if err != nil {
		t.Fatalf("we should be able to write: %v", err)
	}

	var snapshot Snapshot
	err = testutil.ReadCompressed(ctx, fileBlobBucket, objectName, &snapshot)
	if err != nil {
		t.Fatalf("we should be able to read the object: %v", err)
	}
	if diff := testutil.Diff(snapshot, originalData); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestFailedEncodingStoresNothing(t *testing.T) {
	ctx := context.Background()
	objectName := uuid.New().String()

	err := CompressedWrite(ctx, fileBlobBucket, objectName, map[string]interface{}{
		"average_fps": math.Inf(1),
	})
	if err == nil {
		t.Fatal("encoding an infinite float should fail")
	}
	exists, err := fileBlobBucket.Exists(ctx, objectName)
	if err != nil {
		t.Fatalf("we should be able to check the object: %v", err)
	}
	if exists {
		t.Fatal("a failed write shouldn't leave an object behind")
	}
}
