// Package export turns warehouse results into downloadable artifacts.
// Results are encoded as CSV or Parquet, uploaded to the object store
// and handed back as a public URL.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/growexx/Americana-Audit-trail-chatbot/internal/observability"
	"github.com/growexx/Americana-Audit-trail-chatbot/internal/storage"
	"github.com/growexx/Americana-Audit-trail-chatbot/internal/warehouse"
)

const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// Artifact describes one uploaded result file.
type Artifact struct {
	Key    string
	URL    string
	Format string
	Size   int64
}

type Exporter struct {
	store storage.ObjectStore
	now   func() time.Time
}

func NewExporter(store storage.ObjectStore) *Exporter {
	return &Exporter{store: store, now: time.Now}
}

// ExportCSV encodes the full result as CSV and uploads it under the
// chat's key space.
func (e *Exporter) ExportCSV(ctx context.Context, chatID string, result warehouse.Result) (Artifact, error) {
	data, err := EncodeCSV(result)
	if err != nil {
		return Artifact{}, err
	}
	return e.upload(ctx, chatID, FormatCSV, "text/csv", data)
}

// ExportParquet encodes the full result as Parquet and uploads it
// under the chat's key space. All columns are written as optional
// strings so arbitrary result shapes round-trip without a declared
// schema.
func (e *Exporter) ExportParquet(ctx context.Context, chatID string, result warehouse.Result) (Artifact, error) {
	data, err := EncodeParquet(result)
	if err != nil {
		return Artifact{}, err
	}
	return e.upload(ctx, chatID, FormatParquet, "application/vnd.apache.parquet", data)
}

func (e *Exporter) upload(ctx context.Context, chatID, format, contentType string, data []byte) (Artifact, error) {
	key := fmt.Sprintf("%s/result_%s.%s", chatID, e.now().UTC().Format("20060102T150405"), format)
	info, err := e.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: contentType})
	if err != nil {
		return Artifact{}, fmt.Errorf("upload %s artifact: %w", format, err)
	}
	observability.IncrementArtifactUpload(format)
	return Artifact{
		Key:    key,
		URL:    e.store.PublicURL(key),
		Format: format,
		Size:   info.Size,
	}, nil
}

func EncodeCSV(result warehouse.Result) ([]byte, error) {
	if len(result.Columns) == 0 {
		return nil, fmt.Errorf("result has no columns")
	}

	buf := bytes.NewBuffer(nil)
	writer := csv.NewWriter(buf)
	if err := writer.Write(result.Columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(result.Columns))
	for _, row := range result.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = formatCell(row[i])
			}
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func EncodeParquet(result warehouse.Result) ([]byte, error) {
	if len(result.Columns) == 0 {
		return nil, fmt.Errorf("result has no columns")
	}

	group := parquet.Group{}
	for _, column := range result.Columns {
		group[column] = parquet.Optional(parquet.String())
	}
	schema := parquet.NewSchema("result", group)

	rows := make([]map[string]any, 0, len(result.Rows))
	for _, row := range result.Rows {
		record := make(map[string]any, len(result.Columns))
		for i, column := range result.Columns {
			if i < len(row) && row[i] != nil {
				record[column] = formatCell(row[i])
			}
		}
		rows = append(rows, record)
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[map[string]any](buf, schema)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return nil, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func formatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}
