package source

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Veraticus/spice-sms/internal/common"
	"github.com/Veraticus/spice-sms/internal/model"
)

// inboxType is the SMS Backup & Restore type value of received messages.
const inboxType = "1"

// XMLFile reads an SMS Backup & Restore export.
type XMLFile struct {
	path string
}

// NewXMLFile returns a source over the export at path.
func NewXMLFile(path string) *XMLFile {
	return &XMLFile{path: path}
}

// Messages implements service.MessageSource.
func (x *XMLFile) Messages(ctx context.Context, since time.Time, limit int) ([]model.RawMessage, error) {
	f, err := openFile(ctx, x.path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	msgs, err := ReadXML(ctx, f)
	if err != nil {
		return nil, err
	}
	return window(msgs, since, limit), nil
}

type smsRecord struct {
	ID      string `xml:"_id,attr"`
	Address string `xml:"address,attr"`
	Date    string `xml:"date,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:"body,attr"`
}

// ReadXML streams <sms> elements from r. Sent messages and records without a
// usable date are skipped.
func ReadXML(ctx context.Context, r io.Reader) ([]model.RawMessage, error) {
	dec := xml.NewDecoder(r)

	var (
		msgs    []model.RawMessage
		skipped int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read sms backup: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "sms" {
			continue
		}

		var rec smsRecord
		if err := dec.DecodeElement(&rec, &start); err != nil {
			return nil, fmt.Errorf("failed to decode sms element: %w", err)
		}
		if rec.Type != "" && rec.Type != inboxType {
			continue
		}

		at, err := parseTimestamp(rec.Date)
		if err != nil || rec.Address == "" {
			skipped++
			continue
		}

		id := rec.ID
		if id == "" {
			id = DeriveID(rec.Address, at, rec.Body)
		}
		msgs = append(msgs, model.RawMessage{ID: id, Sender: rec.Address, Body: rec.Body, Timestamp: at})

		if len(msgs)%500 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}

	if skipped > 0 {
		common.LogDebug("skipped unusable sms records", common.Fields{"count": skipped})
	}
	return msgs, nil
}
