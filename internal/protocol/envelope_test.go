package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	header := []byte(`{"type":"httpRequest","path":"/api/1.0/aabbccddeeff/wifi/mode"}`)
	body := []byte(`{"mode":"sta"}`)

	frame, err := Encode(header, body, 42, false)
	require.NoError(t, err)
	assert.Equal(t, len(frame), int(binary.BigEndian.Uint16(frame[0:2])))

	h, b, seq, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, header, h)
	assert.Equal(t, body, b)
	assert.Equal(t, uint16(42), seq)
}

func TestEncodeRawBody(t *testing.T) {
	body := []byte{0x00, 0xff, 0x10}
	frame, err := Encode([]byte(`{}`), body, 1, true)
	require.NoError(t, err)
	assert.True(t, bytes.HasSuffix(frame, body))

	_, b, _, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, body, b)
}

func TestDecodeUncompressedSections(t *testing.T) {
	header := []byte(`{"type":"event","name":"scan_done"}`)
	frame := []byte{0, 0, 0, 7, markerHeader, formatJSON, compressionZlib, 1, 0, 0, 0, 0, byte(len(header))}
	frame = append(frame, header...)
	binary.BigEndian.PutUint16(frame[0:2], uint16(len(frame)))

	h, b, seq, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, header, h)
	assert.Nil(t, b)
	assert.Equal(t, uint16(7), seq)
}

func TestDecodeErrors(t *testing.T) {
	_, _, _, err := Decode([]byte{0, 4, 0, 0})
	require.ErrorIs(t, err, ErrShortFrame)

	frame, err := Encode([]byte(`{"a":1}`), []byte(`{"b":2}`), 1, false)
	require.NoError(t, err)

	_, _, _, err = Decode(frame[:len(frame)-3])
	require.ErrorIs(t, err, ErrShortFrame)

	bad := bytes.Clone(frame)
	bad[4] = 0x09
	_, _, _, err = Decode(bad)
	require.ErrorContains(t, err, "header marker")
}

func TestMessageRoundTrip(t *testing.T) {
	hdr, seq := NewRequest("POST", "/api/1.0/aabbccddeeff/wifi/connect")
	frame, err := Marshal(Message{Header: hdr, Body: []byte(`{}`), Seq: seq})
	require.NoError(t, err)

	m, err := Unmarshal(frame)
	require.NoError(t, err)
	assert.Equal(t, hdr, m.Header)
	assert.Equal(t, seq, m.Seq)
	assert.Equal(t, []byte(`{}`), m.Body)
}

func TestNextRequestID(t *testing.T) {
	id1, seq1 := NextRequestID()
	id2, seq2 := NextRequestID()
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, seq1+1, seq2)
	_, err := uuid.Parse(id1)
	assert.NoError(t, err)
}

func TestAssemblerSplitAndCoalesced(t *testing.T) {
	f1, err := Encode([]byte(`{"n":1}`), []byte(`{"x":"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}`), 1, false)
	require.NoError(t, err)
	f2, err := Encode([]byte(`{"n":2}`), nil, 2, false)
	require.NoError(t, err)

	var a Assembler
	assert.Empty(t, a.Feed(f1[:3]))
	assert.Empty(t, a.Feed(f1[3:10]))
	assert.Equal(t, 10, a.Pending())

	stream := append(bytes.Clone(f1[10:]), f2...)
	frames := a.Feed(stream)
	require.Len(t, frames, 2)
	assert.Equal(t, f1, frames[0])
	assert.Equal(t, f2, frames[1])
	assert.Zero(t, a.Pending())
}

func TestAssemblerDropsGarbage(t *testing.T) {
	var a Assembler
	assert.Empty(t, a.Feed([]byte{0, 1, 0, 0, 9}))
	assert.Zero(t, a.Pending())
}
