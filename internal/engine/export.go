package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Veraticus/spice-sms/internal/model"
)

// RejectionHeader is the CSV header of the rejection audit log.
const RejectionHeader = "run_id,message_id,timestamp,sender,reason,body"

// WriteRejections writes the rejection log of a scan as CSV, header included.
func WriteRejections(w io.Writer, runID string, rejections []model.Rejection) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(strings.Split(RejectionHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, r := range rejections {
		record := []string{
			runID,
			r.MessageID,
			r.Timestamp.UTC().Format(time.RFC3339),
			r.Sender,
			r.Reason,
			r.Body,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReasonCounts tallies rejections by reason.
func ReasonCounts(rejections []model.Rejection) map[string]int {
	counts := make(map[string]int)
	for _, r := range rejections {
		counts[r.Reason]++
	}
	return counts
}
