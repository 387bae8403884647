package errors

import (
	"encoding/json"
	"maps"
	"strings"

	"github.com/cockroachdb/errors"
)

// detailsPrefix tags the JSON safe detail written by WithReportableDetails.
const detailsPrefix = "details:"

// Builder accumulates context on an error. Every chain ends in Mark, which
// attaches a sentinel and hands back the finished error.
type Builder struct {
	err error
}

// NewError begins a chain from a fresh error carrying msg.
func NewError(msg string) *Builder {
	return &Builder{err: errors.New(msg)}
}

// WithError begins a chain from err.
func WithError(err error) *Builder {
	return &Builder{err: err}
}

// WithMessagef prefixes the error text. It is logged, never shown to clients.
func (b *Builder) WithMessagef(format string, args ...any) *Builder {
	b.err = errors.WithMessagef(b.err, format, args...)
	return b
}

// WithHint sets the text a client sees in the response body.
func (b *Builder) WithHint(hint string) *Builder {
	b.err = errors.WithHint(b.err, hint)
	return b
}

func (b *Builder) WithHintf(format string, args ...any) *Builder {
	b.err = errors.WithHintf(b.err, format, args...)
	return b
}

// WithReportableDetails records details as a JSON safe detail, so they stay
// visible after redaction. Details that fail to encode are dropped.
func (b *Builder) WithReportableDetails(details map[string]any) *Builder {
	if raw, err := json.Marshal(details); err == nil {
		b.err = errors.WithSafeDetails(b.err, detailsPrefix+"%s", errors.Safe(string(raw)))
	}
	return b
}

// Mark tags the error with reference and returns it.
func (b *Builder) Mark(reference error) error {
	return errors.Mark(b.err, reference)
}

// ReportableDetails merges every detail map recorded along the chain of err.
func ReportableDetails(err error) map[string]any {
	details := make(map[string]any)
	for _, sd := range errors.GetAllSafeDetails(err) {
		for _, payload := range sd.SafeDetails {
			raw, ok := strings.CutPrefix(payload, detailsPrefix)
			if !ok {
				continue
			}
			var m map[string]any
			if json.Unmarshal([]byte(raw), &m) == nil {
				maps.Copy(details, m)
			}
		}
	}
	return details
}
