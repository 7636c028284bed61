package protocol

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var seqCounter atomic.Uint32

// NextRequestID returns a fresh request ID and the frame sequence number
// that goes with it.
func NextRequestID() (string, uint16) {
	return uuid.NewString(), uint16(seqCounter.Add(1))
}

// NewRequest builds the header of an API request.
func NewRequest(method, path string) (Header, uint16) {
	id, seq := NextRequestID()
	return Header{
		Type:      TypeRequest,
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
		Method:    method,
		Path:      path,
	}, seq
}
