// Package source reads exported SMS archives as message sources.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/spice-sms/internal/common"
	"github.com/Veraticus/spice-sms/internal/model"
	"github.com/Veraticus/spice-sms/internal/service"
)

// Supported archive formats.
const (
	FormatXML = "xml"
	FormatCSV = "csv"
)

// messageNamespace scopes derived message ids so they stay stable across runs.
var messageNamespace = uuid.MustParse("6f1d2c8e-4b0a-5e8f-9c3d-2a7b1e6f0d94")

// New opens a file-backed source for format. An empty format is inferred from the extension.
func New(path, format string) (service.MessageSource, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: source path is required", common.ErrMissingConfig)
	}
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}

	switch format {
	case FormatXML:
		return NewXMLFile(path), nil
	case FormatCSV:
		return NewCSVFile(path), nil
	default:
		return nil, fmt.Errorf("%w: unsupported source format %q", common.ErrInvalidConfig, format)
	}
}

// DeriveID builds a deterministic id from the message contents for archives that carry none.
func DeriveID(sender string, at time.Time, body string) string {
	key := sender + "\x00" + strconv.FormatInt(at.UnixMilli(), 10) + "\x00" + body
	return uuid.NewSHA1(messageNamespace, []byte(key)).String()
}

// window keeps messages at or after since, caps them to the newest limit, and
// returns them oldest first.
func window(msgs []model.RawMessage, since time.Time, limit int) []model.RawMessage {
	kept := msgs[:0]
	for _, m := range msgs {
		if !m.Timestamp.Before(since) {
			kept = append(kept, m)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Timestamp.After(kept[j].Timestamp) })
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Timestamp.Before(kept[j].Timestamp) })
	return kept
}

func openFile(ctx context.Context, path string) (*os.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Clean(path)) // #nosec G304 -- user-supplied archive path
	if err != nil {
		return nil, fmt.Errorf("failed to open message archive: %w", err)
	}
	return f, nil
}

// parseTimestamp accepts unix milliseconds, unix seconds or RFC 3339.
func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		if n > 1e11 {
			return time.UnixMilli(n), nil
		}
		return time.Unix(n, 0), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}
