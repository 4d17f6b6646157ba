package protocol

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ajitpratap0/hostbridge-go/pkg/roster"
)

// NormalizeRoster converts a host response into roster entries. The second
// result is false when the shape was not recognized; the entries are then
// empty. Entries lacking an id or a display name are skipped.
func NormalizeRoster(raw interface{}) ([]roster.Entry, bool) {
	switch v := raw.(type) {
	case nil:
		return nil, false
	case []roster.Entry:
		out := make([]roster.Entry, 0, len(v))
		for _, e := range v {
			if e.Valid() {
				out = append(out, e)
			}
		}
		return out, true
	case string:
		return normalizeRosterJSON([]byte(strings.TrimSpace(v)))
	case []byte:
		return normalizeRosterJSON(v)
	case json.RawMessage:
		return normalizeRosterJSON(v)
	case []interface{}:
		out := make([]roster.Entry, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				if e, ok := entryFromMap(m); ok {
					out = append(out, e)
				}
			}
		}
		return out, true
	case []map[string]interface{}:
		out := make([]roster.Entry, 0, len(v))
		for _, m := range v {
			if e, ok := entryFromMap(m); ok {
				out = append(out, e)
			}
		}
		return out, true
	case map[string]interface{}:
		data, ok := v["data"]
		if !ok {
			return nil, false
		}
		switch data.(type) {
		case []interface{}, []map[string]interface{}, string:
			return NormalizeRoster(data)
		}
		return nil, false
	default:
		// Typed values from Go hosts: round-trip through JSON into the generic shapes.
		b, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		var generic interface{}
		if err := json.Unmarshal(b, &generic); err != nil {
			return nil, false
		}
		switch generic.(type) {
		case []interface{}, map[string]interface{}:
			return NormalizeRoster(generic)
		}
		return nil, false
	}
}

func normalizeRosterJSON(data []byte) ([]roster.Entry, bool) {
	if len(data) == 0 {
		return nil, false
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, false
	}
	switch generic.(type) {
	case []interface{}, map[string]interface{}:
		return NormalizeRoster(generic)
	case string:
		// doubly encoded
		return NormalizeRoster(generic)
	}
	return nil, false
}

func entryFromMap(m map[string]interface{}) (roster.Entry, bool) {
	e := roster.Entry{
		ID:          stringID(m["id"]),
		DisplayName: firstString(m, "displayName", "display_name", "name"),
		SeatLabel:   firstString(m, "seatLabel", "seat_label", "seat"),
	}
	return e, e.Valid()
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// stringID renders a JSON id that may have been encoded as a number.
func stringID(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		return id.String()
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	}
	return ""
}

// NormalizeBool converts a host acknowledgement into a boolean. The second
// result is false when the shape was not recognized; the value is then false.
func NormalizeBool(raw interface{}) (bool, bool) {
	switch v := raw.(type) {
	case nil:
		return false, false
	case bool:
		return v, true
	case string:
		s := strings.TrimSpace(v)
		switch strings.ToLower(s) {
		case "true", "1":
			return true, true
		case "false", "0":
			return false, true
		}
		if strings.HasPrefix(s, "{") {
			return normalizeBoolJSON([]byte(s))
		}
		return false, false
	case []byte:
		return normalizeBoolJSON(v)
	case json.RawMessage:
		return normalizeBoolJSON(v)
	case float64:
		return numericBool(v)
	case float32:
		return numericBool(float64(v))
	case int:
		return numericBool(float64(v))
	case int64:
		return numericBool(float64(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return false, false
		}
		return numericBool(f)
	case map[string]interface{}:
		for _, key := range []string{"success", "result"} {
			if field, ok := v[key]; ok {
				return truthy(field), true
			}
		}
		return false, false
	}
	return false, false
}

func normalizeBoolJSON(data []byte) (bool, bool) {
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return false, false
	}
	return NormalizeBool(generic)
}

func numericBool(f float64) (bool, bool) {
	switch f {
	case 1:
		return true, true
	case 0:
		return false, true
	}
	return false, false
}

func truthy(v interface{}) bool {
	if b, ok := NormalizeBool(v); ok {
		return b
	}
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case float64:
		return t != 0
	}
	return true
}
