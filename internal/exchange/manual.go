// Package exchange moves catalog records in and out of formats people edit
// or subscribe to: hand-curated YAML, spreadsheets and calendar feeds.
package exchange

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/family-events/internal/model"
)

// manualFile is the top level of a hand-curated records file. A bare list of
// records is accepted too.
type manualFile struct {
	Events []map[string]any `yaml:"events"`
}

// ParseManual decodes hand-curated records. Fields use the catalog's JSON
// names (startDate, activityTypes, ageRange, ...); source and lastUpdated may
// be left out.
func ParseManual(data []byte) ([]model.Event, error) {
	var file manualFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		var list []map[string]any
		if lerr := yaml.Unmarshal(data, &list); lerr != nil {
			return nil, eris.Wrap(err, "exchange: parse manual records")
		}
		file.Events = list
	}

	events := make([]model.Event, 0, len(file.Events))
	for i, rec := range file.Events {
		raw, err := json.Marshal(plain(rec))
		if err != nil {
			return nil, eris.Wrapf(err, "exchange: record %d", i+1)
		}
		var e model.Event
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, eris.Wrapf(err, "exchange: record %d", i+1)
		}
		events = append(events, e)
	}
	return events, nil
}

// plain turns explicitly tagged YAML timestamps back into catalog-layout
// strings.
func plain(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = plain(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = plain(val)
		}
		return t
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
			return t.Format(time.DateOnly)
		}
		return t.Format(model.TimestampLayout)
	}
	return v
}
