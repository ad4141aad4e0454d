package server

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/bombarena/server/internal/core/event"
	coresys "github.com/bombarena/server/internal/core/system"
	"github.com/bombarena/server/internal/cosmos"
	"github.com/bombarena/server/internal/entropy"
	"github.com/bombarena/server/internal/mode"
	"github.com/bombarena/server/internal/net/packet"
	"github.com/bombarena/server/internal/persist"
	"github.com/bombarena/server/internal/system"
)

const recordingVersion = 1

var ErrBadRecording = errors.New("bad recording")

// Recorder writes a replayable session: the world and mode at the first
// recorded step, then one entropy record per step.
// Record layout: [4 bytes LE: length][payload].
type Recorder struct {
	w      *bufio.Writer
	closer io.Closer
	buf    *packet.Writer
	steps  uint32
}

// NewRecorder writes the header to w.
func NewRecorder(w io.Writer, initial *cosmos.Solvable, c *cosmos.Cosmos, m *mode.BombMode) (*Recorder, error) {
	rec := &Recorder{w: bufio.NewWriter(w), buf: packet.NewWriter()}
	if cl, ok := w.(io.Closer); ok {
		rec.closer = cl
	}

	rec.buf.WriteC(recordingVersion)
	is := packet.NewWriter()
	cosmos.EncodeSolvable(is, initial)
	rec.buf.WriteBlob(is.Bytes())
	rec.buf.WriteBlob(c.Save())
	ms := packet.NewWriter()
	m.Encode(ms)
	rec.buf.WriteBlob(ms.Bytes())
	if err := rec.writeRecord(); err != nil {
		return nil, fmt.Errorf("write recording header: %w", err)
	}
	return rec, nil
}

// CreateRecording opens a new recording file under dir.
func CreateRecording(dir, name string, initial *cosmos.Solvable, c *cosmos.Cosmos, m *mode.BombMode) (*Recorder, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("create record dir: %w", err)
	}
	path := filepath.Join(dir, name+".rec")
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("create recording: %w", err)
	}
	rec, err := NewRecorder(f, initial, c, m)
	if err != nil {
		f.Close()
		return nil, "", err
	}
	return rec, path, nil
}

// Record appends the entropy of one step.
func (r *Recorder) Record(t *entropy.Total) error {
	t.Encode(r.buf)
	r.steps++
	return r.writeRecord()
}

func (r *Recorder) Steps() uint32 { return r.steps }

func (r *Recorder) writeRecord() error {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(r.buf.Len()))
	if _, err := r.w.Write(n[:]); err != nil {
		return err
	}
	_, err := r.w.Write(r.buf.Bytes())
	r.buf.Reset()
	return err
}

// Flush pushes buffered records to the underlying writer.
func (r *Recorder) Flush() error { return r.w.Flush() }

func (r *Recorder) Close() error {
	err := r.w.Flush()
	if r.closer != nil {
		if cerr := r.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func readRecord(r io.Reader) ([]byte, error) {
	var n [4]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(n[:])
	if size > 1<<30 {
		return nil, fmt.Errorf("%w: record of %d bytes", ErrBadRecording, size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRecording, err)
	}
	return payload, nil
}

// ReplayOptions is what a replay needs besides the recording itself. The
// definitions and rules must be the ones the recording was made with.
type ReplayOptions struct {
	Common       cosmos.Common
	Rules        mode.Rules
	Scripts      mode.Scripts
	FullChecksum bool
	Log          *zap.Logger
}

// Replay re-runs a recording and returns the checksum after every step.
func Replay(r io.Reader, opts ReplayOptions) ([]persist.Checksum, error) {
	br := bufio.NewReader(r)
	head, err := readRecord(br)
	if err != nil {
		return nil, fmt.Errorf("read recording header: %w", err)
	}
	hr := packet.NewReader(head)
	if v := hr.ReadC(); hr.Err() == nil && v != recordingVersion {
		return nil, fmt.Errorf("%w: version %d", ErrBadRecording, v)
	}
	initialRaw, worldRaw, modeRaw := hr.ReadBlob(), hr.ReadBlob(), hr.ReadBlob()
	if err := hr.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRecording, err)
	}

	initial, err := cosmos.DecodeSolvable(packet.NewReader(initialRaw))
	if err != nil {
		return nil, fmt.Errorf("initial world: %w", err)
	}
	factory := &cosmos.Factory{}
	c := factory.NewCosmos(opts.Common, 0)
	if err := c.Load(worldRaw); err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	m := mode.New(0)
	if opts.Log != nil {
		m.SetLogger(opts.Log)
	}
	if opts.Scripts != nil {
		m.SetScripts(opts.Scripts)
	}
	if err := m.Decode(packet.NewReader(modeRaw)); err != nil {
		return nil, fmt.Errorf("mode: %w", err)
	}

	rules := opts.Rules
	runner := coresys.NewRunner()
	system.RegisterDefaults(runner)
	m.Register(runner, mode.Input{Rules: &rules, Initial: &initial})
	queues := event.NewQueues()

	var (
		sums []persist.Checksum
		e    entropy.Total
	)
	for {
		raw, err := readRecord(br)
		if errors.Is(err, io.EOF) {
			return sums, nil
		}
		if err != nil {
			return sums, err
		}
		if err := e.Decode(packet.NewReader(raw)); err != nil {
			return sums, fmt.Errorf("step %d: %w", c.Step(), err)
		}
		runner.Advance(coresys.Step{Cosmos: c, Entropy: &e, Queues: queues})
		sums = append(sums, persist.Checksum{Step: c.Step(), Hash: checksumOf(c, opts.FullChecksum)})
	}
}

func checksumOf(c *cosmos.Cosmos, full bool) uint32 {
	if full {
		return c.FullHash()
	}
	return c.CalculateSigniHash()
}
