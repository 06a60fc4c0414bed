package links

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const maxURLLength = 2048

var (
	errURLEmpty   = errors.New("url is required")
	errURLTooLong = errors.New("url too long (max 2048 characters)")
	errURLScheme  = errors.New("url scheme must be http or https")
	errURLHost    = errors.New("url must include a host")
)

// Encode serializes a record to its storage representation.
func Encode(rec Record) ([]byte, error) {
	if err := rec.check(); err != nil {
		return nil, err
	}
	return json.Marshal(rec)
}

// Decode parses stored bytes. Any shape or constraint violation is reported
// as ErrMalformedRecord.
func Decode(raw []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if err := rec.check(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (r Record) check() error {
	if err := validateDestination(r.URL); err != nil {
		return fmt.Errorf("%w: url: %v", ErrMalformedRecord, err)
	}
	if r.ExpiryTimestamp != nil && *r.ExpiryTimestamp < 0 {
		return fmt.Errorf("%w: negative expiry_timestamp", ErrMalformedRecord)
	}
	if r.CreatedAt < 0 || r.ModifiedAt < 0 {
		return fmt.Errorf("%w: negative timestamps", ErrMalformedRecord)
	}
	if r.LastViewedAt != nil && *r.LastViewedAt < 0 {
		return fmt.Errorf("%w: negative last_viewed_at", ErrMalformedRecord)
	}
	if r.MaxViews != nil && r.Views > *r.MaxViews {
		return fmt.Errorf("%w: views %d exceed max_views %d", ErrMalformedRecord, r.Views, *r.MaxViews)
	}
	return nil
}

func validateDestination(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errURLEmpty
	}
	if len(raw) > maxURLLength {
		return errURLTooLong
	}

	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errURLScheme
	}
	if strings.TrimSpace(u.Hostname()) == "" {
		return errURLHost
	}
	return nil
}
