// Package tcp is the binary wire adapter for programmatic clients: one
// persistent connection per client, length-prefixed gob-encoded frames,
// one request in flight per connection (bodies stream raw, chunked, after
// their header frame).
package tcp

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// maxFrameSize bounds a single header frame, guarding against a
// corrupt/malicious length prefix causing an unbounded allocation.
const maxFrameSize = 16 << 20

// CommandKind tags which operation a Request carries.
type CommandKind uint8

// The command table. Every value has a corresponding field set on
// Request and a corresponding case in the server's dispatch switch.
const (
	CmdUpload CommandKind = iota + 1
	CmdUploadSized
	CmdAppend
	CmdDownload
	CmdDelete
	CmdDeleteAll
	CmdCopy
	CmdCopyAll
	CmdMove
	CmdMoveAll
	CmdList
	CmdInfo
	CmdInfoAll
	CmdPing
)

// Request is the header frame sent before any streamed body. ID tags the
// request so responses (and any future multiplexing) can be correlated;
// it is assigned by the client with uuid.NewV7 so IDs sort roughly by
// creation time, which is useful in server-side logs.
type Request struct {
	ID      uuid.UUID
	Kind    CommandKind
	Name    string
	Offset  uint64
	Limit   uint64
	Size    uint64
	HasSize bool
	Glob    string
	Names   []string
	Pairs   map[string]string
}

// NewRequest builds a Request of kind with a fresh ID.
func NewRequest(kind CommandKind) Request {
	return Request{ID: uuid.Must(uuid.NewV7()), Kind: kind}
}

// Status is the outcome tag on a Response.
type Status uint8

const (
	StatusOK Status = iota
	StatusError
)

// Response is the header frame a server sends back before any streamed
// body (a Download's payload, or nothing for a metadata-only call).
type Response struct {
	ID        uuid.UUID
	Status    Status
	ErrorCode int
	ErrorMsg  string
	Size      uint64
	HasSize   bool
	Listing   map[string]Metadata
	Info      Metadata
	InfoFound bool
	InfoAll   map[string]Metadata
}

// Metadata mirrors fs.Metadata for the wire, kept as a distinct type so
// the protocol doesn't import the fs package's internal representation
// directly and can evolve independently.
type Metadata struct {
	Size    uint64
	ModTime int64
}

// WriteFrame gob-encodes v and writes it to w as a 4-byte big-endian
// length prefix followed by the encoded bytes.
func WriteFrame(w io.Writer, v interface{}) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if buf.Len() > maxFrameSize {
		return fmt.Errorf("encode frame: %d bytes exceeds max frame size", buf.Len())
	}
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(buf.Len()))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// ReadFrame reads a length-prefixed frame from r and gob-decodes it into
// v, which must be a pointer.
func ReadFrame(r io.Reader, v interface{}) error {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	if n > maxFrameSize {
		return fmt.Errorf("decode frame: %d bytes exceeds max frame size", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return fmt.Errorf("read frame body: %w", err)
	}
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(v); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	return nil
}

// chunkSize is how much of a streamed body WriteBody buffers per chunk
// frame.
const chunkSize = 64 << 10

// WriteBody streams src to w as a sequence of raw (non-gob) length-
// prefixed chunks, terminated by a zero-length chunk. A persistent,
// multi-request connection can't rely on io.EOF to mark the end of one
// body the way a one-shot stream could, since more requests follow on
// the same conn.
func WriteBody(w io.Writer, src io.Reader) error {
	buf := make([]byte, chunkSize)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if err := writeChunk(w, buf[:n]); err != nil {
				return err
			}
		}
		if rerr == io.EOF {
			return writeChunk(w, nil)
		}
		if rerr != nil {
			return rerr
		}
	}
}

func writeChunk(w io.Writer, data []byte) error {
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(data)))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("write chunk length: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write chunk body: %w", err)
	}
	return nil
}

// bodyReader adapts the chunked wire format back into an io.Reader that
// returns io.EOF once the zero-length terminator chunk is seen.
type bodyReader struct {
	r   io.Reader
	cur []byte
	eof bool
}

// NewBodyReader wraps r (a connection positioned right after a Request
// or Response header frame) as an io.Reader over its chunked body.
func NewBodyReader(r io.Reader) io.Reader {
	return &bodyReader{r: r}
}

func (b *bodyReader) Read(p []byte) (int, error) {
	for len(b.cur) == 0 {
		if b.eof {
			return 0, io.EOF
		}
		var lenPrefix [4]byte
		if _, err := io.ReadFull(b.r, lenPrefix[:]); err != nil {
			return 0, err
		}
		n := binary.BigEndian.Uint32(lenPrefix[:])
		if n > maxFrameSize {
			return 0, fmt.Errorf("read chunk: %d bytes exceeds max frame size", n)
		}
		if n == 0 {
			b.eof = true
			return 0, io.EOF
		}
		chunk := make([]byte, n)
		if _, err := io.ReadFull(b.r, chunk); err != nil {
			return 0, fmt.Errorf("read chunk body: %w", err)
		}
		b.cur = chunk
	}
	n := copy(p, b.cur)
	b.cur = b.cur[n:]
	return n, nil
}
