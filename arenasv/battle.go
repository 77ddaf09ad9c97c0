package main

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"arenasv/arenasv/arena"
	"arenasv/arenasv/wire"
)

var ErrBattleExhausted = errors.New("no free battle")

const intentQueueSize = 64

// Battle is one allocated match. The arena and the member count are
// guarded by mtx. A slot that is reallocated gets a fresh Battle.
type Battle struct {
	ID int

	mtx       sync.Mutex
	allocated bool
	userCount int
	arena     *arena.Arena

	intents chan arena.Intent
	done    chan struct{}
	stopped chan struct{}
	logger  *zap.Logger
}

func (b *Battle) Allocated() bool {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return b.allocated
}

func (b *Battle) UserCount() int {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return b.userCount
}

// Stopped is closed when the ruler of the battle has returned.
func (b *Battle) Stopped() <-chan struct{} {
	return b.stopped
}

// BattlePool is the fixed set of battle slots.
type BattlePool struct {
	mtx     sync.Mutex
	battles [wire.UserCnt]*Battle
}

func (bp *BattlePool) Allocate(newArena func() *arena.Arena) (*Battle, error) {
	bp.mtx.Lock()
	defer bp.mtx.Unlock()

	for i, b := range bp.battles {
		if b != nil {
			continue
		}
		b = &Battle{
			ID:        i,
			allocated: true,
			arena:     newArena(),
			intents:   make(chan arena.Intent, intentQueueSize),
			done:      make(chan struct{}),
			stopped:   make(chan struct{}),
			logger:    logger.With(zap.Int("battle_id", i)),
		}
		bp.battles[i] = b
		arenaBattles.Add(1)
		return b, nil
	}
	return nil, ErrBattleExhausted
}

func (bp *BattlePool) Get(id int) *Battle {
	if id < 0 || wire.UserCnt <= id {
		return nil
	}
	bp.mtx.Lock()
	defer bp.mtx.Unlock()
	return bp.battles[id]
}

func (bp *BattlePool) release(b *Battle) {
	bp.mtx.Lock()
	defer bp.mtx.Unlock()
	if bp.battles[b.ID] == b {
		bp.battles[b.ID] = nil
		arenaBattles.Add(-1)
	}
	close(b.done)
}

func (bp *BattlePool) Active() []*Battle {
	bp.mtx.Lock()
	defer bp.mtx.Unlock()
	var ret []*Battle
	for _, b := range bp.battles {
		if b != nil {
			ret = append(ret, b)
		}
	}
	return ret
}

// joinBattle makes s a Live combatant in b. The caller owns sv.mtx.
func (sv *Server) joinBattle(s *Session, b *Battle, inviter int) {
	b.mtx.Lock()
	pos := b.arena.Join(s.ID)
	b.userCount++
	b.mtx.Unlock()

	s.State = SessionInBattle
	s.BattleID = b.ID
	s.InviterID = inviter
	s.logger.Info("join battle", zap.Int("battle_id", b.ID), zap.Any("pos", pos))
}

// leaveBattle removes s from its battle and deallocates the battle when s
// was the last combatant. The caller owns sv.mtx.
func (sv *Server) leaveBattle(s *Session) {
	b := sv.battles.Get(s.BattleID)
	s.State = SessionLoggedIn
	s.BattleID = -1
	s.InviterID = -1
	sv.forgetInviter(s)
	if b == nil {
		return
	}

	b.mtx.Lock()
	if b.arena.Combatants[s.ID].State != arena.Unjoined {
		b.arena.Leave(s.ID)
		b.userCount--
	}
	left := b.userCount
	if left == 0 {
		b.allocated = false
	}
	b.mtx.Unlock()

	s.logger.Info("quit battle", zap.Int("battle_id", b.ID), zap.Int("left", left))
	if 0 < left {
		for i := range sv.sessions {
			o := &sv.sessions[i]
			if o.State == SessionInBattle && o.BattleID == b.ID {
				o.Send(wire.NewFriendMessage(wire.CodeUserQuitBattle, s.Name))
			}
		}
		return
	}

	sv.battles.release(b)
	b.logger.Info("battle deallocated")
	for i := range sv.sessions {
		o := &sv.sessions[i]
		if o.State == SessionWaitingForBattle && o.BattleID == b.ID {
			o.State = SessionLoggedIn
			o.BattleID = -1
			o.InviterID = -1
			o.SendCode(wire.CodeBattleDisbanded)
		}
	}
}

// forgetInviter unbinds every session that was invited by s so that a
// later holder of the slot gets no notices on their behalf.
// The caller owns sv.mtx.
func (sv *Server) forgetInviter(s *Session) {
	for i := range sv.sessions {
		if o := &sv.sessions[i]; o != s && o.InviterID == s.ID {
			o.InviterID = -1
		}
	}
}

// inviterOf returns the session that invited s while it is still in the
// battle s was invited to. The caller owns sv.mtx.
func (sv *Server) inviterOf(s *Session) *Session {
	if s.InviterID < 0 || len(sv.sessions) <= s.InviterID {
		return nil
	}
	inviter := &sv.sessions[s.InviterID]
	if inviter.State != SessionInBattle || inviter.BattleID != s.BattleID {
		return nil
	}
	return inviter
}

// rejectInvite drops the pending invitation of s and tells the inviter.
// The caller owns sv.mtx.
func (sv *Server) rejectInvite(s *Session) {
	if inviter := sv.inviterOf(s); inviter != nil {
		inviter.Send(wire.NewFriendMessage(wire.CodeFriendRejectBattle, s.Name))
	}
	s.State = SessionLoggedIn
	s.BattleID = -1
	s.InviterID = -1
}

// invite asks the session called target to join the battle of s.
// The caller owns sv.mtx.
func (sv *Server) invite(s *Session, b *Battle, target string) {
	t := sv.findByName(target)
	switch {
	case t == s:
		s.SendCode(wire.CodeInvitationSent)
		return
	case t == nil:
		s.Send(wire.NewFriendMessage(wire.CodeFriendNotLogin, target))
		return
	case t.State == SessionInBattle:
		s.Send(wire.NewFriendMessage(wire.CodeFriendAlreadyInBattle, target))
		return
	case t.State == SessionWaitingForBattle && t.BattleID != b.ID:
		sv.rejectInvite(t)
	}

	t.State = SessionWaitingForBattle
	t.BattleID = b.ID
	t.InviterID = s.ID
	t.Send(wire.NewFriendMessage(wire.CodeInviteToBattle, s.Name))
	s.SendCode(wire.CodeInvitationSent)
	s.logger.Info("invite", zap.String("target", target), zap.Int("battle_id", b.ID))
}

// enqueueIntent hands a movement or fire request to the ruler of b.
func (sv *Server) enqueueIntent(b *Battle, in arena.Intent) {
	select {
	case b.intents <- in:
	default:
		b.logger.Debug("intent queue full", zap.Int("session_id", in.Session))
	}
}

func (sv *Server) startRuler(b *Battle) {
	go sv.runRuler(b)
}

// runRuler drives one battle until it is deallocated.
func (sv *Server) runRuler(b *Battle) {
	defer close(b.stopped)

	t := sv.clock.NewTicker(sv.tick)
	defer t.Stop()

	b.logger.Info("ruler start")
	defer b.logger.Info("ruler exit")

	for {
		select {
		case <-b.done:
			return
		case <-t.C():
			if !sv.tickBattle(b) {
				return
			}
		}
	}
}

type outgoing struct {
	session int
	msg     *wire.ServerMessage
}

// tickBattle runs one cycle of b and sends its events and frames.
// It returns false once the battle is gone.
func (sv *Server) tickBattle(b *Battle) bool {
	start := time.Now()

	b.mtx.Lock()
	if !b.allocated {
		b.mtx.Unlock()
		return false
	}

	var events []arena.Event
drain:
	for {
		select {
		case in := <-b.intents:
			events = append(events, b.arena.Apply(in)...)
		default:
			break drain
		}
	}
	events = append(events, b.arena.Tick()...)

	outs := make([]outgoing, 0, len(events)+wire.UserCnt)
	for _, ev := range events {
		outs = append(outs, outgoing{ev.Session, wire.NewServerMessage(ev.Code)})
	}
	for id := range b.arena.Combatants {
		if b.arena.Combatants[id].State == arena.Unjoined {
			continue
		}
		msg := wire.NewServerMessage(wire.CodeBattleInformation)
		msg.Frame = b.arena.Frame(id)
		outs = append(outs, outgoing{id, msg})
	}
	b.mtx.Unlock()

	sv.mtx.Lock()
	for _, o := range outs {
		s := &sv.sessions[o.session]
		if s.State == SessionInBattle && s.BattleID == b.ID {
			s.Send(o.msg)
		}
	}
	sv.mtx.Unlock()

	if ms := time.Since(start).Milliseconds(); arenaTickMaxMs.Value() < ms {
		arenaTickMaxMs.Set(ms)
	}
	return true
}
