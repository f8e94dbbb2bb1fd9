package provider

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/passivedns/internal/model"
)

// newResult builds a Result with the fields every provider reports.
// Names lose their trailing root dot and the rrtype is upper-cased.
func newResult(source string, elapsed time.Duration, query, answer, rrtype string) model.Result {
	return model.Result{
		Source:       source,
		ResponseTime: elapsed,
		Query:        model.TrimDot(query),
		Answer:       model.TrimDot(answer),
		RRType:       model.NormalizeRRType(rrtype),
	}
}

// timeLayouts are the timestamp formats seen in provider replies.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTime parses a provider timestamp as UTC. Values without a zone are
// taken as UTC. Unparseable or empty input yields nil.
func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.TimePtr(t)
		}
	}
	return nil
}

// flexInt decodes a JSON number or a numeric string.
type flexInt struct {
	value int64
	valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = flexInt{}
		return nil
	}
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*f = flexInt{}
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = flexInt{value: n, valid: true}
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexInt{value: int64(n), valid: true}
	return nil
}

// intPtr returns the value as *int, or nil when absent.
func (f flexInt) intPtr() *int {
	if !f.valid {
		return nil
	}
	return model.IntPtr(int(f.value))
}

// unixTime interprets the value as epoch seconds.
func (f flexInt) unixTime() *time.Time {
	if !f.valid {
		return nil
	}
	return model.UnixTimePtr(f.value)
}

// flexStrings decodes either a JSON string or an array of strings.
type flexStrings []string

// UnmarshalJSON implements json.Unmarshaler.
func (f *flexStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexStrings{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*f = list
	return nil
}

// jsonLines decodes a stream of newline separated JSON objects.
func jsonLines[T any](body []byte) ([]T, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	var out []T
	for dec.More() {
		var v T
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// required returns the setting stored under key or ErrMissingCredential.
func required(section, key, value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", &MissingSettingError{Section: section, Key: key}
	}
	return value, nil
}

// flexTime decodes a timestamp given as epoch seconds (number or numeric
// string) or as one of timeLayouts.
type flexTime struct {
	t *time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *flexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = flexTime{}
		return nil
	}
	if data[0] != '"' {
		var n flexInt
		if err := n.UnmarshalJSON(data); err != nil {
			return err
		}
		*f = flexTime{t: n.unixTime()}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		*f = flexTime{t: model.UnixTimePtr(n)}
		return nil
	}
	*f = flexTime{t: parseTime(s)}
	return nil
}
