package main

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"arenasv/arenasv/arena"
	"arenasv/arenasv/wire"
)

// Handler serves one client command. A negative return closes the connection.
type Handler func(*Server, *Session, *wire.ClientMessage) int

var defaultHandlers = map[wire.CmdID]Handler{}

func register(id wire.CmdID, f Handler) interface{} {
	defaultHandlers[id] = f
	return nil
}

func (sv *Server) dispatch(s *Session, msg *wire.ClientMessage) int {
	f, ok := sv.handlers[msg.Command]
	if !ok {
		s.logger.Debug("unknown command", zap.Stringer("cmd", msg.Command))
		return 0
	}
	return f(sv, s, msg)
}

var _ = register(wire.CmdQuit, func(sv *Server, s *Session, m *wire.ClientMessage) int {
	s.logger.Info("quit")
	return -1
})

var _ = register(wire.CmdRegister, func(sv *Server, s *Session, m *wire.ClientMessage) int {
	name := normalizeName(m.Name)
	if name == "" {
		s.SendCode(wire.CodeRegisterFail)
		return 0
	}
	err := getDB().RegisterUser(name, m.Password)
	switch errors.Cause(err) {
	case nil:
		s.logger.Info("user registered", zap.String("user", name))
		s.SendCode(wire.CodeRegisterSuccess)
	case ErrUserExists:
		s.SendCode(wire.CodeYouHaveRegistered)
	default:
		s.logger.Warn("register failed", zap.String("user", name), zap.Error(err))
		s.SendCode(wire.CodeRegisterFail)
	}
	return 0
})

var _ = register(wire.CmdLogin, func(sv *Server, s *Session, m *wire.ClientMessage) int {
	name := normalizeName(m.Name)
	code := sv.Login(s, name, m.Password)
	s.logger.Info("login", zap.String("user", name), zap.Stringer("result", code))
	s.SendCode(code)
	if code == wire.CodeLoginFailDupUserID {
		return -1
	}
	return 0
})

var _ = register(wire.CmdLogout, func(sv *Server, s *Session, m *wire.ClientMessage) int {
	if code := sv.Logout(s); code != wire.CodeSayNothing {
		s.SendCode(code)
	}
	return 0
})

var _ = register(wire.CmdFetchAllUsers, func(sv *Server, s *Session, m *wire.ClientMessage) int {
	sv.mtx.Lock()
	msg := sv.usersTable(wire.CodeAllUsersInfo, nil)
	sv.mtx.Unlock()
	s.Send(msg)
	return 0
})

var _ = register(wire.CmdFetchAllFriends, func(sv *Server, s *Session, m *wire.ClientMessage) int {
	sv.mtx.Lock()
	defer sv.mtx.Unlock()
	if !s.built() {
		s.SendCode(wire.CodeYouHaveNotLogin)
		return 0
	}
	s.Send(sv.usersTable(wire.CodeAllFriendsInfo, s))
	return 0
})

var _ = register(wire.CmdLaunchBattle, func(sv *Server, s *Session, m *wire.ClientMessage) int {
	sv.mtx.Lock()
	defer sv.mtx.Unlock()

	switch s.State {
	case SessionInBattle:
		s.SendCode(wire.CodeYoureAlreadyInBattle)
		return 0
	case SessionWaitingForBattle:
		sv.rejectInvite(s)
	case SessionLoggedIn:
	default:
		s.SendCode(wire.CodeYouHaveNotLogin)
		return 0
	}

	b, err := sv.battles.Allocate(sv.newArena)
	if err != nil {
		s.logger.Warn("launch battle failed", zap.Error(err))
		s.SendCode(wire.CodeLaunchBattleFail)
		return 0
	}
	sv.joinBattle(s, b, s.ID)
	s.SendCode(wire.CodeLaunchBattleSuccess)
	sv.startRuler(b)

	if target := normalizeName(m.Name); target != "" {
		sv.invite(s, b, target)
	}
	return 0
})

var _ = register(wire.CmdQuitBattle, func(sv *Server, s *Session, m *wire.ClientMessage) int {
	sv.mtx.Lock()
	defer sv.mtx.Unlock()
	if s.State != SessionInBattle {
		s.SendCode(wire.CodeYoureNotInBattle)
		return 0
	}
	sv.leaveBattle(s)
	return 0
})

var _ = register(wire.CmdAcceptBattle, func(sv *Server, s *Session, m *wire.ClientMessage) int {
	sv.mtx.Lock()
	defer sv.mtx.Unlock()

	switch s.State {
	case SessionInBattle:
		s.SendCode(wire.CodeYoureAlreadyInBattle)
		return 0
	case SessionWaitingForBattle:
	default:
		s.SendCode(wire.CodeNobodyInviteYou)
		return 0
	}

	b := sv.battles.Get(s.BattleID)
	if b == nil || !b.Allocated() {
		s.State = SessionLoggedIn
		s.BattleID = -1
		s.InviterID = -1
		s.SendCode(wire.CodeBattleDisbanded)
		return 0
	}

	inviter := sv.inviterOf(s)
	sv.joinBattle(s, b, s.InviterID)
	if inviter != nil {
		inviter.Send(wire.NewFriendMessage(wire.CodeFriendAcceptBattle, s.Name))
	}
	return 0
})

var _ = register(wire.CmdRejectBattle, func(sv *Server, s *Session, m *wire.ClientMessage) int {
	sv.mtx.Lock()
	defer sv.mtx.Unlock()
	if s.State != SessionWaitingForBattle {
		s.SendCode(wire.CodeNobodyInviteYou)
		return 0
	}
	sv.rejectInvite(s)
	return 0
})

var _ = register(wire.CmdInviteUser, func(sv *Server, s *Session, m *wire.ClientMessage) int {
	sv.mtx.Lock()
	defer sv.mtx.Unlock()
	if s.State != SessionInBattle {
		s.SendCode(wire.CodeYoureNotInBattle)
		return 0
	}
	b := sv.battles.Get(s.BattleID)
	if b == nil {
		s.SendCode(wire.CodeYoureNotInBattle)
		return 0
	}
	sv.invite(s, b, normalizeName(m.Name))
	return 0
})

var _ = register(wire.CmdSendMessage, func(sv *Server, s *Session, m *wire.ClientMessage) int {
	sv.mtx.Lock()
	defer sv.mtx.Unlock()
	if !s.built() {
		s.SendCode(wire.CodeYouHaveNotLogin)
		return 0
	}

	chat := wire.NewChatMessage(s.Name, m.Message)
	target := normalizeName(m.Name)
	if target == "" {
		sv.broadcastFriends(s, chat)
		return 0
	}
	t := sv.findByName(target)
	if t == nil {
		s.Send(wire.NewFriendMessage(wire.CodeFriendNotLogin, target))
		return 0
	}
	t.Send(chat)
	return 0
})

func battleIntentHandler(sv *Server, s *Session, m *wire.ClientMessage) int {
	in, ok := arena.IntentOf(s.ID, m.Command)
	if !ok {
		return 0
	}

	sv.mtx.Lock()
	var b *Battle
	if s.State == SessionInBattle {
		b = sv.battles.Get(s.BattleID)
	}
	sv.mtx.Unlock()

	if b == nil {
		s.SendCode(wire.CodeYoureNotInBattle)
		return 0
	}
	sv.enqueueIntent(b, in)
	return 0
}

var _ = register(wire.CmdMoveUp, battleIntentHandler)
var _ = register(wire.CmdMoveDown, battleIntentHandler)
var _ = register(wire.CmdMoveLeft, battleIntentHandler)
var _ = register(wire.CmdMoveRight, battleIntentHandler)
var _ = register(wire.CmdFire, battleIntentHandler)
var _ = register(wire.CmdFireUp, battleIntentHandler)
var _ = register(wire.CmdFireDown, battleIntentHandler)
var _ = register(wire.CmdFireLeft, battleIntentHandler)
var _ = register(wire.CmdFireRight, battleIntentHandler)

var _ = register(wire.CmdFatal, func(sv *Server, s *Session, m *wire.ClientMessage) int {
	s.logger.Warn("fatal shutdown requested")
	sv.FatalShutdown()
	return -1
})
