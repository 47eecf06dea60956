package exporter

import (
	"bytes"
	"fmt"
	"path"
	"time"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/c360/netstreams/telemetry"
)

// Encode writes records of one kind as a snappy-compressed parquet file.
func Encode(kind telemetry.Kind, records []telemetry.Record) ([]byte, error) {
	schema, err := telemetry.RowSchema(kind)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	pw, err := writer.NewParquetWriterFromWriter(&buf, schema, 1)
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, rec := range records {
		if rec.Kind() != kind {
			return nil, fmt.Errorf("record %d is %s, batch is %s", i, rec.Kind(), kind)
		}
		if err := pw.Write(rec.Row()); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finish parquet file: %w", err)
	}
	return buf.Bytes(), nil
}

// ObjectKey builds <prefix>/<kind>/YYYY/MM/DD/HH/<id>.parquet in UTC.
func ObjectKey(prefix string, kind telemetry.Kind, at time.Time, id string) string {
	at = at.UTC()
	return path.Join(prefix, kind.String(), at.Format("2006/01/02/15"), id+".parquet")
}
