package ecs

// Writer is the subset of a byte writer the arena and pools encode into.
type Writer interface {
	WriteC(v byte)
	WriteBool(v bool)
	WriteDU(v uint32)
	WriteQ(v uint64)
	WriteBlob(b []byte)
}

// Reader is the matching decoder side. Reads past the end latch an error
// reported by Err.
type Reader interface {
	ReadC() byte
	ReadBool() bool
	ReadDU() uint32
	ReadQ() uint64
	ReadBlob() []byte
	Remaining() int
	Err() error
}
