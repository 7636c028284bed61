package protocol

import (
	"encoding/json"
	"fmt"
)

// Header types. The agent routes "httpRequest" frames to its API handler and
// pushes stack notifications as "event" frames.
const (
	TypeRequest  = "httpRequest"
	TypeResponse = "httpResponse"
	TypeEvent    = "event"
)

// DeviceInfo is the JSON served by the device info characteristic.
type DeviceInfo struct {
	ID         string `json:"id"`
	FWVersion  string `json:"fwv"`
	APIVersion string `json:"apiVersion"`
	Chip       string `json:"chip,omitempty"`
}

// Header is the JSON header of every frame. Fields unused by a frame type
// are omitted.
type Header struct {
	Type       string   `json:"type"`
	ID         string   `json:"id,omitempty"`
	Timestamp  int64    `json:"timestamp"`
	Method     string   `json:"method,omitempty"`
	Path       string   `json:"path,omitempty"`
	StatusCode int      `json:"statusCode,omitempty"`
	Name       string   `json:"name,omitempty"`
	Headers    struct{} `json:"headers"`
}

// Message is a decoded frame.
type Message struct {
	Header Header
	Body   []byte
	Seq    uint16
}

// Marshal encodes m as a frame with a JSON body.
func Marshal(m Message) ([]byte, error) {
	h, err := json.Marshal(m.Header)
	if err != nil {
		return nil, fmt.Errorf("marshal header: %w", err)
	}
	return Encode(h, m.Body, m.Seq, false)
}

// Unmarshal decodes a complete frame.
func Unmarshal(frame []byte) (Message, error) {
	h, body, seq, err := Decode(frame)
	if err != nil {
		return Message{}, err
	}
	var m Message
	if err := json.Unmarshal(h, &m.Header); err != nil {
		return Message{}, fmt.Errorf("parse header: %w", err)
	}
	m.Body, m.Seq = body, seq
	return m, nil
}
