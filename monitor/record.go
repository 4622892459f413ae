// Package monitor follows a running keyboard from the host side. It parses
// the JSON log records the firmware writes to its UART and fans key events
// out to websocket clients.
package monitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ardnew/maghand/keys"
	"github.com/ardnew/maghand/pkg"
)

// Record is one decoded log line.
type Record struct {
	Time      time.Time
	Level     string
	Component string
	Msg       string
	// Attrs holds every other field. Numbers are kept as json.Number.
	Attrs map[string]any
}

// KeyEvent is a key transition reported by the filter.
type KeyEvent struct {
	Key   keys.Name `json:"key"`
	Label string    `json:"label"`
	On    bool      `json:"on"`
	At    time.Time `json:"at"`
}

const (
	keyToggledMsg = "key toggled"
)

// ParseLine decodes a single JSON log line. Lines that are not JSON
// objects return ErrMalformedRecord; the UART also carries boot chatter.
func ParseLine(line []byte) (Record, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return Record{}, pkg.ErrMalformedRecord
	}

	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return Record{}, fmt.Errorf("%w: %v", pkg.ErrMalformedRecord, err)
	}

	var rec Record
	rec.Msg, _ = take(fields, "msg").(string)
	rec.Level, _ = take(fields, "level").(string)
	rec.Component, _ = take(fields, "component").(string)
	if ts, ok := take(fields, "time").(string); ok {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return Record{}, fmt.Errorf("%w: time %q", pkg.ErrMalformedRecord, ts)
		}
		rec.Time = t
	}
	if rec.Msg == "" {
		return Record{}, fmt.Errorf("%w: no message", pkg.ErrMalformedRecord)
	}
	rec.Attrs = fields
	return rec, nil
}

func take(m map[string]any, key string) any {
	v := m[key]
	delete(m, key)
	return v
}

// KeyEvent extracts the key transition from a filter record.
func (r Record) KeyEvent() (KeyEvent, bool) {
	if r.Component != string(pkg.ComponentFilter) || r.Msg != keyToggledMsg {
		return KeyEvent{}, false
	}
	num, ok := r.Attrs["key"].(json.Number)
	if !ok {
		return KeyEvent{}, false
	}
	n, err := num.Int64()
	if err != nil || n < 0 || n > 255 {
		return KeyEvent{}, false
	}
	on, ok := r.Attrs["on"].(bool)
	if !ok {
		return KeyEvent{}, false
	}
	name := keys.Name(n)
	return KeyEvent{Key: name, Label: name.String(), On: on, At: r.Time}, true
}
