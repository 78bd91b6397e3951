package models

import (
	"bytes"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// LocationPoint is one entry of a live-location session history.
type LocationPoint struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// LocationUpdate is the location:update request. Coordinates are pointers so a
// zero coordinate can be told apart from a missing one.
type LocationUpdate struct {
	ShareID   string     `json:"shareId"`
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Timestamp ClientTime `json:"timestamp"`
}

// ClientTime is a device-reported instant, sent either as an RFC 3339 string
// or as epoch milliseconds. Any other value decodes as the zero time, which
// callers treat as absent.
type ClientTime struct {
	time.Time
}

func (t *ClientTime) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '"':
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			t.Time = parsed
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		ms, err := strconv.ParseFloat(string(data), 64)
		if err != nil || ms <= 0 {
			return nil
		}
		t.Time = time.UnixMilli(int64(ms)).UTC()
	}
	return nil
}

// Session end reasons carried by location:session_ended.
const (
	ReasonTimeout   = "timeout"
	ReasonAllLeft   = "all_left"
	ReasonUserEnded = "user_ended"
)

type SessionEnded struct {
	Reason string `json:"reason"`
}

// AckResponse answers a client event that carried an acknowledgment id.
type AckResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
