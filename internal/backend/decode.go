package backend

import (
	"encoding/json"
	"time"

	"github.com/kvirtanen/galleria/internal/errors"
)

// timestampLayouts are tried in order until one parses. Layouts without an
// offset are interpreted as UTC.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00", // fractional seconds, explicit offset
	"2006-01-02T15:04:05Z07:00",           // no fractional seconds, explicit offset
	"2006-01-02T15:04:05.999999999",       // optional fractional seconds, no offset
	"2006-01-02T15:04:05",
}

// parseTimestamp parses a backend timestamp, normalizing to UTC.
func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}

	// Last resort: general RFC 3339 parser
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UTC(), nil
	}

	return time.Time{}, errors.Newf("unparseable timestamp %q", value).
		Category(errors.CategoryDecode).
		Component("backend").
		Build()
}

// imageRecordRow mirrors the wire shape of one image table row. Pointer
// fields distinguish absent and null from zero values.
type imageRecordRow struct {
	ID        *int64            `json:"id"`
	UserID    *string           `json:"user_id"`
	ImageURL  *string           `json:"image_url"`
	PhotoDate *string           `json:"photo_date"`
	CreatedAt *string           `json:"created_at"`
	Metadata  map[string]string `json:"metadata"`
}

// UnmarshalJSON decodes one raw backend row into an ImageRecord.
//
// The id column is a generated integer; a string-typed id is a decode
// failure, not something to coerce. An unparseable photo_date falls back to
// created_at, an unparseable or missing created_at fails the row.
func (r *ImageRecord) UnmarshalJSON(data []byte) error {
	var row imageRecordRow
	if err := json.Unmarshal(data, &row); err != nil {
		return errors.Newf("row is not a valid image record: %w", err).
			Category(errors.CategoryDecode).
			Component("backend").
			Build()
	}

	if row.ID == nil {
		return errors.Newf("image record has no id").
			Category(errors.CategoryDecode).
			Component("backend").
			Build()
	}

	if row.ImageURL == nil || *row.ImageURL == "" {
		return errors.Newf("image record %d has no image_url", *row.ID).
			Category(errors.CategoryDecode).
			Component("backend").
			Context("record_id", *row.ID).
			Build()
	}

	if row.CreatedAt == nil || *row.CreatedAt == "" {
		return errors.Newf("image record %d has no created_at", *row.ID).
			Category(errors.CategoryDecode).
			Component("backend").
			Context("record_id", *row.ID).
			Build()
	}

	createdAt, err := parseTimestamp(*row.CreatedAt)
	if err != nil {
		return errors.Newf("image record %d has unparseable created_at: %w", *row.ID, err).
			Category(errors.CategoryDecode).
			Component("backend").
			Context("record_id", *row.ID).
			Build()
	}

	// photo_date falls back to created_at when absent, null or unparseable
	photoDate := createdAt
	if row.PhotoDate != nil && *row.PhotoDate != "" {
		if ts, err := parseTimestamp(*row.PhotoDate); err == nil {
			photoDate = ts
		}
	}

	ownerID := ""
	if row.UserID != nil {
		ownerID = *row.UserID
	}

	*r = ImageRecord{
		ID:        *row.ID,
		OwnerID:   ownerID,
		ImageURL:  *row.ImageURL,
		PhotoDate: photoDate,
		CreatedAt: createdAt,
		Metadata:  row.Metadata,
	}

	return nil
}

// decodePage decodes a JSON array of rows into records. The whole page fails
// on the first row-level failure so a partially decoded batch never reaches
// the gallery.
func decodePage(body []byte) ([]ImageRecord, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, errors.Newf("response is not a JSON array: %w", err).
			Category(errors.CategoryDecode).
			Component("backend").
			Build()
	}

	records := make([]ImageRecord, 0, len(rows))
	for i, raw := range rows {
		var record ImageRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, errors.Newf("row %d failed to decode: %w", i, err).
				Category(errors.CategoryDecode).
				Component("backend").
				Context("row_index", i).
				Build()
		}
		records = append(records, record)
	}

	return records, nil
}
