package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Veraticus/spice-sms/internal/model"
)

// CSVFile reads a headered CSV export with sender, body and timestamp columns.
// An id column is optional.
type CSVFile struct {
	path string
}

// NewCSVFile returns a source over the CSV at path.
func NewCSVFile(path string) *CSVFile {
	return &CSVFile{path: path}
}

// Messages implements service.MessageSource.
func (c *CSVFile) Messages(ctx context.Context, since time.Time, limit int) ([]model.RawMessage, error) {
	f, err := openFile(ctx, c.path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	msgs, err := ReadCSV(f)
	if err != nil {
		return nil, err
	}
	return window(msgs, since, limit), nil
}

// columnAliases maps accepted header names onto the canonical column.
var columnAliases = map[string]string{
	"id":        "id",
	"_id":       "id",
	"sender":    "sender",
	"address":   "sender",
	"from":      "sender",
	"body":      "body",
	"message":   "body",
	"timestamp": "timestamp",
	"date":      "timestamp",
	"time":      "timestamp",
}

// ReadCSV parses all rows of r.
func ReadCSV(r io.Reader) ([]model.RawMessage, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading message CSV header: %w", err)
	}

	cols := make(map[string]int)
	for i, name := range header {
		if canonical, ok := columnAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
			cols[canonical] = i
		}
	}
	for _, required := range []string{"sender", "body", "timestamp"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("message CSV is missing the %s column", required)
		}
	}

	var msgs []model.RawMessage
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}

		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return rec[i]
		}

		at, err := parseTimestamp(field("timestamp"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}

		msg := model.RawMessage{
			ID:        strings.TrimSpace(field("id")),
			Sender:    strings.TrimSpace(field("sender")),
			Body:      field("body"),
			Timestamp: at,
		}
		if msg.ID == "" {
			msg.ID = DeriveID(msg.Sender, at, msg.Body)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
