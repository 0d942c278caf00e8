// Package message defines the clipshrink control protocol spoken between
// the CLI and a running daemon.
//
// All messages are newline-delimited JSON, one request and one reply per
// connection. Each message is exactly one line: <json>\n
package message

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type identifies the kind of message.
type Type string

const (
	TypeShrink         Type = "SHRINK"
	TypeResult         Type = "RESULT"
	TypeStatus         Type = "STATUS"
	TypeStatusResponse Type = "STATUS_RESPONSE"
	TypeConfigList     Type = "CONFIG_LIST"
	TypeConfigGet      Type = "CONFIG_GET"
	TypeConfigSet      Type = "CONFIG_SET"
	TypeConfigResponse Type = "CONFIG_RESPONSE"
	TypeError          Type = "ERROR"
)

// Error kinds carried in ERROR replies so the CLI can tell outcomes apart.
const (
	KindNoImage    = "no_image"
	KindDecode     = "decode_error"
	KindEncode     = "encode_error"
	KindWrite      = "write_error"
	KindUnknownKey = "unknown_key"
	KindInvalid    = "invalid_value"
	KindInternal   = "internal"
)

// Setting is one persisted transcode setting rendered as text.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Result summarises a completed shrink.
type Result struct {
	OriginalWidth    int    `json:"original_width"`
	OriginalHeight   int    `json:"original_height"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	Format           string `json:"format"`
	OriginalBytes    int    `json:"original_bytes"`
	Bytes            int    `json:"bytes"`
	ReductionPercent int    `json:"reduction_percent"`
	Summary          string `json:"summary"`
}

// Notification is the last user-facing message the daemon emitted.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Status describes a running daemon.
type Status struct {
	Version          string        `json:"version"`
	StartedAt        time.Time     `json:"started_at"`
	Backend          string        `json:"backend"`
	MonitorState     string        `json:"monitor_state"`
	Baseline         int64         `json:"baseline"`
	ChangeCount      int64         `json:"change_count"`
	HEIC             bool          `json:"heic"`
	SettingsPath     string        `json:"settings_path"`
	Settings         []Setting     `json:"settings"`
	Attempts         int64         `json:"attempts"`
	Shrunk           int64         `json:"shrunk"`
	Failed           int64         `json:"failed"`
	BytesSaved       int64         `json:"bytes_saved"`
	LastNotification *Notification `json:"last_notification,omitempty"`
}

// Message is the top-level wire envelope.
type Message struct {
	// Always present
	Type Type `json:"type"`

	// CONFIG_GET, CONFIG_SET
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`

	// CONFIG_RESPONSE
	Settings []Setting `json:"settings,omitempty"`

	// RESULT
	Result *Result `json:"result,omitempty"`

	// STATUS_RESPONSE
	Status *Status `json:"status,omitempty"`

	// ERROR
	Kind  string `json:"kind,omitempty"`
	Error string `json:"error,omitempty"`
}

// Encode serialises the message to JSON without a trailing newline.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode deserialises a message from raw JSON bytes.
func Decode(b []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("message decode: %w", err)
	}
	if m.Type == "" {
		return nil, fmt.Errorf("message decode: missing type")
	}
	return &m, nil
}

// Errorf builds an ERROR reply.
func Errorf(kind, format string, args ...any) *Message {
	return &Message{Type: TypeError, Kind: kind, Error: fmt.Sprintf(format, args...)}
}
