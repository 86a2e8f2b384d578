package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ValidationError reports a payload that decoded but failed schema checks.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

var strictHikerIDPattern = regexp.MustCompile(`^pendaki_[0-9]+$`)

// parseTopic extracts the hiker id from a tracking/<hikerId>/data topic.
// With strict enabled, the id must additionally match pendaki_<digits>.
func parseTopic(topic string, strict bool) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "tracking" || parts[2] != "data" {
		return "", fmt.Errorf("topic %q does not match tracking/<hiker>/data", topic)
	}

	hikerID := parts[1]
	if hikerID == "" {
		return "", fmt.Errorf("topic %q has an empty hiker segment", topic)
	}
	if strict && !strictHikerIDPattern.MatchString(hikerID) {
		return "", fmt.Errorf("hiker id %q does not match pendaki_<digits>", hikerID)
	}

	return hikerID, nil
}

// sosFlag accepts the SOS field as 0/1 or a JSON boolean.
type sosFlag bool

func (f *sosFlag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "0", "false":
		*f = false
	case "1", "true":
		*f = true
	default:
		return fmt.Errorf("sos flag must be 0, 1, or a boolean, got %s", data)
	}
	return nil
}

// inboundReading is the accepted wire schema. Devices publish the
// Indonesian field names; the English aliases are accepted as well.
type inboundReading struct {
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Suhu        *float64 `json:"suhu"`
	Temperature *float64 `json:"temperature"`
	Kelembaban  *float64 `json:"kelembaban"`
	Humidity    *float64 `json:"humidity"`
	StatusSOS   *sosFlag `json:"status_sos"`
	SOS         *sosFlag `json:"sos"`
}

func (r *inboundReading) temperature() *float64 {
	if r.Suhu != nil {
		return r.Suhu
	}
	return r.Temperature
}

func (r *inboundReading) humidity() *float64 {
	if r.Kelembaban != nil {
		return r.Kelembaban
	}
	return r.Humidity
}

func (r *inboundReading) sosActive() bool {
	if r.StatusSOS != nil {
		return bool(*r.StatusSOS)
	}
	if r.SOS != nil {
		return bool(*r.SOS)
	}
	return false
}

// decodePayload parses an inbound message body and enforces the schema:
// latitude and longitude are required, everything else is optional. It fails
// closed with a *ValidationError instead of letting missing keys slide.
func decodePayload(payload []byte) (*inboundReading, error) {
	if !utf8.Valid(payload) {
		return nil, fmt.Errorf("payload is not valid UTF-8")
	}

	var reading inboundReading
	if err := json.Unmarshal(payload, &reading); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	if reading.Latitude == nil {
		return nil, &ValidationError{Field: "latitude", Reason: "required"}
	}
	if reading.Longitude == nil {
		return nil, &ValidationError{Field: "longitude", Reason: "required"}
	}

	return &reading, nil
}
