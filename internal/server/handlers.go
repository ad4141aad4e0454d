package server

import (
	"go.uber.org/zap"

	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/entropy"
	gonet "github.com/bombarena/server/internal/net"
	"github.com/bombarena/server/internal/net/packet"
)

type pendingJoin struct {
	sess    *gonet.Session
	name    string
	faction component.Faction
	id      entropy.PlayerID
}

// intake collects what the handlers decoded since the last step. Joins and
// leaves go into the entropy one per step; the rest is consumed whole.
type intake struct {
	joins    []pendingJoin
	leaves   []entropy.PlayerID
	restart  bool
	commands []entropy.PlayerCommand
	intents  []entropy.Intent
	motions  []entropy.Motion
}

func (in *intake) dropJoin(sess *gonet.Session) {
	for i, j := range in.joins {
		if j.sess == sess {
			in.joins = append(in.joins[:i], in.joins[i+1:]...)
			return
		}
	}
}

var (
	connected = []packet.SessionState{packet.StateConnected}
	playing   = []packet.SessionState{packet.StatePlaying}
	joined    = []packet.SessionState{packet.StateJoinRequested, packet.StatePlaying}
)

func (l *Loop) registerHandlers(reg *packet.Registry) {
	reg.Register(packet.C_OPCODE_JOIN, connected, l.handleJoin)
	reg.Register(packet.C_OPCODE_LEAVE, joined, l.handleLeave)
	reg.Register(packet.C_OPCODE_TEAM_CHOICE, playing, l.handleTeamChoice)
	reg.Register(packet.C_OPCODE_BUY_ITEM, playing, l.handleBuyItem)
	reg.Register(packet.C_OPCODE_BUY_SPELL, playing, l.handleBuySpell)
	reg.Register(packet.C_OPCODE_REBUY, playing, l.handleRebuy)
	reg.Register(packet.C_OPCODE_RESTART, playing, l.handleRestart)
	reg.Register(packet.C_OPCODE_INTENT, playing, l.handleIntent)
	reg.Register(packet.C_OPCODE_MOTION, playing, l.handleMotion)
	reg.Register(packet.C_OPCODE_CHECKSUM, playing, l.handleChecksum)
}

func (l *Loop) handleJoin(s any, r *packet.Reader) {
	sess := s.(*gonet.Session)
	name := r.ReadS()
	faction := component.Faction(r.ReadC())
	if r.Err() != nil {
		return
	}
	if faction >= component.FactionCount {
		faction = component.FactionDefault
	}
	sess.SetState(packet.StateJoinRequested)
	l.in.joins = append(l.in.joins, pendingJoin{sess: sess, name: name, faction: faction})
}

func (l *Loop) handleLeave(s any, _ *packet.Reader) {
	sess := s.(*gonet.Session)
	l.release(sess)
	sess.SetState(packet.StateConnected)
}

// release gives up whatever the session holds in the mode.
func (l *Loop) release(sess *gonet.Session) {
	l.in.dropJoin(sess)
	if sess.Player.IsSet() {
		l.in.leaves = append(l.in.leaves, sess.Player)
		sess.Player = 0
	}
}

func (l *Loop) command(sess *gonet.Session, c entropy.Command) {
	l.in.commands = append(l.in.commands, entropy.PlayerCommand{Player: sess.Player, Command: c})
}

func (l *Loop) handleTeamChoice(s any, r *packet.Reader) {
	f := component.Faction(r.ReadC())
	if r.Err() != nil || f >= component.FactionCount {
		return
	}
	l.command(s.(*gonet.Session), entropy.TeamChoice{Faction: f})
}

func (l *Loop) handleBuyItem(s any, r *packet.Reader) {
	fl := component.FlavourID(r.ReadH())
	if r.Err() != nil {
		return
	}
	l.command(s.(*gonet.Session), entropy.ItemPurchase{Flavour: fl})
}

func (l *Loop) handleBuySpell(s any, r *packet.Reader) {
	sp := r.ReadC()
	if r.Err() != nil {
		return
	}
	l.command(s.(*gonet.Session), entropy.SpellPurchase{Spell: sp})
}

func (l *Loop) handleRebuy(s any, _ *packet.Reader) {
	l.command(s.(*gonet.Session), entropy.SpecialPurchase{Kind: entropy.RebuyPrevious})
}

func (l *Loop) handleRestart(s any, _ *packet.Reader) {
	sess := s.(*gonet.Session)
	l.log.Info("restart requested", zap.Uint32("player", uint32(sess.Player)))
	l.in.restart = true
}

func (l *Loop) handleIntent(s any, r *packet.Reader) {
	sess := s.(*gonet.Session)
	action := entropy.Action(r.ReadC())
	pressed := r.ReadBool()
	if r.Err() != nil || action >= entropy.ActionCount {
		return
	}
	subject := l.mode.Lookup(sess.Player)
	if subject.IsZero() {
		return
	}
	l.in.intents = append(l.in.intents, entropy.Intent{Subject: subject, Action: action, Pressed: pressed})
}

func (l *Loop) handleMotion(s any, r *packet.Reader) {
	sess := s.(*gonet.Session)
	dx, dy := r.ReadD(), r.ReadD()
	if r.Err() != nil {
		return
	}
	subject := l.mode.Lookup(sess.Player)
	if subject.IsZero() {
		return
	}
	l.in.motions = append(l.in.motions, entropy.Motion{Subject: subject, Delta: component.Vec{X: dx, Y: dy}})
}

func (l *Loop) handleChecksum(s any, r *packet.Reader) {
	sess := s.(*gonet.Session)
	step, hash := r.ReadDU(), r.ReadDU()
	if r.Err() != nil {
		return
	}
	l.verify(sess, step, hash)
}
