package storageutil

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pierrec/lz4/v4"
	"gocloud.dev/blob"
)

// CompressedWrite compresses and writes data to a bucket. Nothing is stored
// if encoding fails.
func CompressedWrite(ctx context.Context, b *blob.Bucket, objectName string, d interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ow, err := b.NewWriter(ctx, objectName, &blob.WriterOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return err
	}
	zw := lz4.NewWriter(ow)
	_ = zw.Apply(lz4.CompressionLevelOption(lz4.Level9))
	jw := json.NewEncoder(zw)
	err = jw.Encode(d)
	if err == nil {
		err = zw.Close()
	}
	if err != nil {
		// Closing a writer whose context is done aborts the upload.
		cancel()
		_ = ow.Close()
		return err
	}
	return ow.Close()
}
