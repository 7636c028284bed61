package protocol

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	outerHeaderLen   = 4
	headerSectionLen = 9
	bodySectionLen   = 8

	markerHeader = 0x03
	markerBody   = 0x02

	formatJSON = 0x01
	formatRaw  = 0x03

	compressionNone = 0x00
	compressionZlib = 0x01

	// MaxFrameLen is the largest frame the 16-bit length prefix can carry.
	MaxFrameLen = 0xFFFF
)

var (
	ErrShortFrame     = errors.New("frame too short")
	ErrHeaderTooLarge = errors.New("compressed header exceeds 255 bytes")
	ErrFrameTooLarge  = errors.New("frame exceeds 65535 bytes")
)

func zlibCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func zlibDecompress(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// looksZlib reports whether data starts with a zlib stream header. Some
// agents set the compression flag but send the section uncompressed.
func looksZlib(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x78
}

// Encode wraps a JSON header and a body in a frame:
//
//	[outer header, 4 bytes]
//	  0-1  total frame length, big-endian
//	  2-3  sequence number
//	[header section, 9 bytes + zlib JSON]
//	  0    marker 0x03
//	  1    format 0x01 (JSON)
//	  2    compression 0x01 (zlib)
//	  3    flags 0x01
//	  4-7  decompressed length, big-endian
//	  8    compressed length
//	[body section, 8 bytes + payload]
//	  0    marker 0x02
//	  1    format 0x01 (JSON) or 0x03 (raw)
//	  2    compression 0x01 (zlib) or 0x00
//	  3    reserved
//	  4-7  payload length, big-endian
//
// JSON bodies are compressed, raw bodies are sent as is.
func Encode(header, body []byte, seq uint16, raw bool) ([]byte, error) {
	compressedHeader, err := zlibCompress(header)
	if err != nil {
		return nil, fmt.Errorf("compress header: %w", err)
	}
	if len(compressedHeader) > 0xFF {
		return nil, ErrHeaderTooLarge
	}

	payload := body
	format, compression := byte(formatRaw), byte(compressionNone)
	if !raw {
		payload, err = zlibCompress(body)
		if err != nil {
			return nil, fmt.Errorf("compress body: %w", err)
		}
		format, compression = formatJSON, compressionZlib
	}

	total := outerHeaderLen + headerSectionLen + len(compressedHeader) + bodySectionLen + len(payload)
	if total > MaxFrameLen {
		return nil, ErrFrameTooLarge
	}

	buf := make([]byte, 0, total)
	buf = binary.BigEndian.AppendUint16(buf, uint16(total))
	buf = binary.BigEndian.AppendUint16(buf, seq)

	buf = append(buf, markerHeader, formatJSON, compressionZlib, 0x01)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(header)))
	buf = append(buf, byte(len(compressedHeader)))
	buf = append(buf, compressedHeader...)

	buf = append(buf, markerBody, format, compression, 0x00)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(payload)))
	buf = append(buf, payload...)
	return buf, nil
}

// Decode splits a frame into its header JSON and body. A frame without a
// body section yields a nil body.
func Decode(data []byte) (header, body []byte, seq uint16, err error) {
	if len(data) < outerHeaderLen+headerSectionLen {
		return nil, nil, 0, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(data))
	}
	seq = binary.BigEndian.Uint16(data[2:4])
	pos := outerHeaderLen

	if data[pos] != markerHeader {
		return nil, nil, 0, fmt.Errorf("expected header marker 0x03, got 0x%02x", data[pos])
	}
	headerCompressed := data[pos+2] == compressionZlib
	n := int(data[pos+8])
	pos += headerSectionLen
	if len(data) < pos+n {
		return nil, nil, 0, fmt.Errorf("%w: header truncated", ErrShortFrame)
	}
	header = data[pos : pos+n]
	pos += n
	if headerCompressed && looksZlib(header) {
		if header, err = zlibDecompress(header); err != nil {
			return nil, nil, 0, fmt.Errorf("decompress header: %w", err)
		}
	}

	if len(data) < pos+bodySectionLen {
		return header, nil, seq, nil
	}
	if data[pos] != markerBody {
		return nil, nil, 0, fmt.Errorf("expected body marker 0x02, got 0x%02x", data[pos])
	}
	bodyCompressed := data[pos+2] == compressionZlib
	n = int(binary.BigEndian.Uint32(data[pos+4 : pos+8]))
	pos += bodySectionLen
	if len(data) < pos+n {
		return nil, nil, 0, fmt.Errorf("%w: body truncated", ErrShortFrame)
	}
	body = data[pos : pos+n]
	if bodyCompressed && looksZlib(body) {
		if body, err = zlibDecompress(body); err != nil {
			return nil, nil, 0, fmt.Errorf("decompress body: %w", err)
		}
	}
	return header, body, seq, nil
}

// Assembler reassembles frames split across notifications. It also copes
// with several frames arriving in one notification.
type Assembler struct {
	buf bytes.Buffer
}

// Feed appends a chunk and returns every frame it completed.
func (a *Assembler) Feed(chunk []byte) [][]byte {
	a.buf.Write(chunk)
	var frames [][]byte
	for a.buf.Len() >= outerHeaderLen {
		n := int(binary.BigEndian.Uint16(a.buf.Bytes()[0:2]))
		if n < outerHeaderLen {
			// Garbage length prefix; drop what we have and resync on the next chunk.
			a.buf.Reset()
			break
		}
		if a.buf.Len() < n {
			break
		}
		frame := make([]byte, n)
		copy(frame, a.buf.Next(n))
		frames = append(frames, frame)
	}
	return frames
}

// Pending returns the number of buffered bytes not yet forming a frame.
func (a *Assembler) Pending() int { return a.buf.Len() }

// Reset drops any partial frame.
func (a *Assembler) Reset() { a.buf.Reset() }
