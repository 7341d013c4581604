// Package catalog owns the persisted event catalog and its archive: decoding
// and encoding the JSON array, the per-source merge, the archival sweep, and
// the locked file store both are written through.
package catalog

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/family-events/internal/model"
)

// Entry is one persisted record. The original bytes are kept so records no
// refresh touches are written back exactly as they were read.
type Entry struct {
	ID     string
	Source model.Source
	// Event is nil when the record could not be decoded into the schema.
	Event *model.Event
	raw   json.RawMessage
}

const indent = "  "

// header is the subset of a record every entry must carry.
type header struct {
	ID     string       `json:"id"`
	Source model.Source `json:"source"`
}

// NewEntry serializes a freshly produced event in the canonical layout: the
// record indented as an element of the top-level array.
func NewEntry(e model.Event) (Entry, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return Entry{}, eris.Wrapf(err, "catalog: encode event %s", e.ID)
	}
	var raw bytes.Buffer
	if err := json.Indent(&raw, bytes.TrimRight(buf.Bytes(), "\n"), indent, indent); err != nil {
		return Entry{}, eris.Wrapf(err, "catalog: indent event %s", e.ID)
	}
	ev := e
	return Entry{ID: e.ID, Source: e.Source, Event: &ev, raw: raw.Bytes()}, nil
}

// Raw returns the record's serialized form.
func (e Entry) Raw() json.RawMessage { return e.raw }

// Decoded reports whether the record matched the schema.
func (e Entry) Decoded() bool { return e.Event != nil }

// Decode reads a catalog file body. Empty input is an empty catalog. Records
// that do not fit the schema are kept opaque rather than rejected, but every
// record must at least carry an id.
func Decode(data []byte) ([]Entry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []Entry{}, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, eris.Wrap(err, "catalog: decode")
	}
	out := make([]Entry, 0, len(raws))
	for i, raw := range raws {
		var h header
		if err := json.Unmarshal(raw, &h); err != nil {
			return nil, eris.Wrapf(err, "catalog: decode record %d", i)
		}
		if h.ID == "" {
			return nil, eris.Errorf("catalog: record %d has no id", i)
		}
		entry := Entry{ID: h.ID, Source: h.Source, raw: raw}
		var ev model.Event
		if err := json.Unmarshal(raw, &ev); err == nil {
			entry.Event = &ev
		}
		out = append(out, entry)
	}
	return out, nil
}

// Encode writes entries as a two-space indented JSON array with a trailing
// newline. Each record's bytes are copied verbatim.
func Encode(entries []Entry) ([]byte, error) {
	if len(entries) == 0 {
		return []byte("[]\n"), nil
	}
	var buf bytes.Buffer
	buf.WriteString("[\n")
	for i, e := range entries {
		if len(e.raw) == 0 {
			return nil, eris.Errorf("catalog: entry %s has no serialized form", e.ID)
		}
		if i > 0 {
			buf.WriteString(",\n")
		}
		buf.WriteString(indent)
		buf.Write(e.raw)
	}
	buf.WriteString("\n]\n")
	return buf.Bytes(), nil
}

// Events returns the decoded events in entry order.
func Events(entries []Entry) []model.Event {
	out := make([]model.Event, 0, len(entries))
	for _, e := range entries {
		if e.Event != nil {
			out = append(out, *e.Event)
		}
	}
	return out
}
