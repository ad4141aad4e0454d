package server

import (
	"go.uber.org/zap"

	gonet "github.com/bombarena/server/internal/net"
)

// checksumHistory is how many recent steps a client report can be checked
// against.
const checksumHistory = 256

type checksumRing struct {
	steps  [checksumHistory]uint32
	hashes [checksumHistory]uint32
	filled [checksumHistory]bool
}

func (r *checksumRing) put(step, hash uint32) {
	i := step % checksumHistory
	r.steps[i], r.hashes[i], r.filled[i] = step, hash, true
}

func (r *checksumRing) get(step uint32) (uint32, bool) {
	i := step % checksumHistory
	if !r.filled[i] || r.steps[i] != step {
		return 0, false
	}
	return r.hashes[i], true
}

type desyncResult uint8

const (
	checksumUnknown desyncResult = iota
	checksumMatch
	checksumMismatch
)

// verify compares a client's checksum with the server's for the same step.
func (l *Loop) verify(sess *gonet.Session, step, hash uint32) desyncResult {
	want, ok := l.sums.get(step)
	if !ok {
		l.log.Debug("checksum for unknown step",
			zap.Uint64("session", sess.ID),
			zap.Uint32("step", step),
		)
		return checksumUnknown
	}
	if want != hash {
		l.log.Warn("client desync",
			zap.Uint64("session", sess.ID),
			zap.Uint32("player", uint32(sess.Player)),
			zap.Uint32("step", step),
			zap.Uint32("server", want),
			zap.Uint32("client", hash),
		)
		return checksumMismatch
	}
	return checksumMatch
}
