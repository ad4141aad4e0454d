package server

import (
	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/ecs"
	"github.com/bombarena/server/internal/core/event"
	"github.com/bombarena/server/internal/entropy"
	"github.com/bombarena/server/internal/mode"
	"github.com/bombarena/server/internal/net/packet"
)

func joinedPacket(player entropy.PlayerID, character ecs.EntityID) []byte {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_JOINED)
	w.WriteDU(uint32(player))
	w.WriteQ(uint64(character))
	return w.Bytes()
}

func checksumPacket(step, hash uint32) []byte {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_CHECKSUM)
	w.WriteDU(step)
	w.WriteDU(hash)
	return w.Bytes()
}

func notificationPacket(n event.GameNotification) []byte {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_NOTIFICATION)
	w.WriteDU(uint32(n.Player))
	w.WriteS(n.Name)
	w.WriteC(byte(n.Kind))
	w.WriteC(byte(n.Choice))
	w.WriteC(byte(n.Faction))
	return w.Bytes()
}

// roundStatus is what the round packet carries. Comparable so the loop can
// send it only on change.
type roundStatus struct {
	State  mode.State
	Round  uint32
	Scores [len(component.PlayableFactions)]uint32
}

func currentRound(m *mode.BombMode) roundStatus {
	rs := roundStatus{State: m.State, Round: m.RoundNum()}
	for i, f := range component.PlayableFactions {
		rs.Scores[i] = m.Score(f)
	}
	return rs
}

func roundPacket(rs roundStatus) []byte {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_ROUND)
	w.WriteC(byte(rs.State))
	w.WriteDU(rs.Round)
	for _, s := range rs.Scores {
		w.WriteDU(s)
	}
	return w.Bytes()
}
