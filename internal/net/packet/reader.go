package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortRead is returned by Err when a read ran past the end of the payload.
var ErrShortRead = errors.New("packet: short read")

// Reader reads fields from a payload. Reads past the end return zero values
// and latch ErrShortRead, so a decoder can read a whole record and check
// Err once at the end.
type Reader struct {
	data []byte
	off  int
	err  error
}

// NewReader reads data from its first byte.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// NewPacketReader skips the opcode byte of a wire packet.
func NewPacketReader(data []byte) *Reader {
	return &Reader{data: data, off: 1}
}

func (r *Reader) Opcode() byte {
	if len(r.data) == 0 {
		return 0
	}
	return r.data[0]
}

func (r *Reader) fail(n int) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d of %d", ErrShortRead, n, r.off, len(r.data))
	}
	r.off = len(r.data)
}

// ReadC reads 1 unsigned byte.
func (r *Reader) ReadC() byte {
	if r.off >= len(r.data) {
		r.fail(1)
		return 0
	}
	v := r.data[r.off]
	r.off++
	return v
}

// ReadBool reads 1 byte, any non-zero value is true.
func (r *Reader) ReadBool() bool {
	return r.ReadC() != 0
}

// ReadH reads 2 bytes as little-endian uint16.
func (r *Reader) ReadH() uint16 {
	if r.off+2 > len(r.data) {
		r.fail(2)
		return 0
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

// ReadD reads 4 bytes as little-endian int32.
func (r *Reader) ReadD() int32 {
	return int32(r.ReadDU())
}

// ReadDU reads 4 bytes as little-endian uint32.
func (r *Reader) ReadDU() uint32 {
	if r.off+4 > len(r.data) {
		r.fail(4)
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

// ReadQ reads 8 bytes as little-endian uint64.
func (r *Reader) ReadQ() uint64 {
	if r.off+8 > len(r.data) {
		r.fail(8)
		return 0
	}
	v := binary.LittleEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v
}

// ReadS reads a length-prefixed UTF-8 string.
func (r *Reader) ReadS() string {
	n := int(r.ReadH())
	if r.err != nil {
		return ""
	}
	return string(r.ReadBytes(n))
}

// ReadBlob reads a 4-byte length followed by that many bytes.
func (r *Reader) ReadBlob() []byte {
	n := int(r.ReadDU())
	if r.err != nil {
		return nil
	}
	return r.ReadBytes(n)
}

// ReadBytes reads n raw bytes.
func (r *Reader) ReadBytes(n int) []byte {
	if n < 0 || r.off+n > len(r.data) {
		r.fail(n)
		return nil
	}
	b := make([]byte, n)
	copy(b, r.data[r.off:r.off+n])
	r.off += n
	return b
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Err reports the first short read, if any.
func (r *Reader) Err() error {
	return r.err
}
