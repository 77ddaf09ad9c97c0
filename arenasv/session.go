package main

import (
	"unicode/utf8"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/text/width"

	"arenasv/arenasv/wire"
)

var ErrSessionExhausted = errors.New("no free session")

type SessionState uint8

// The values match the all-users table on the wire.
const (
	SessionUnused SessionState = iota
	SessionNotLoggedIn
	SessionLoggedIn
	SessionInBattle
	SessionWaitingForBattle
)

func (st SessionState) String() string {
	switch st {
	case SessionUnused:
		return "Unused"
	case SessionNotLoggedIn:
		return "NotLoggedIn"
	case SessionLoggedIn:
		return "LoggedIn"
	case SessionInBattle:
		return "InBattle"
	case SessionWaitingForBattle:
		return "WaitingForBattle"
	}
	return "Unknown"
}

// Outbox receives the server messages of one session.
// Send must not block.
type Outbox interface {
	Send(msg *wire.ServerMessage)
	Close() error
}

// Session is one connection slot. Every field is guarded by Server.mtx.
type Session struct {
	ID        int
	Name      string
	State     SessionState
	BattleID  int
	InviterID int

	out    Outbox
	logger *zap.Logger
}

// built reports whether the session holds a logged in name.
func (s *Session) built() bool {
	return s.State == SessionLoggedIn ||
		s.State == SessionWaitingForBattle ||
		s.State == SessionInBattle
}

func (s *Session) Send(msg *wire.ServerMessage) {
	if s.out != nil {
		s.out.Send(msg)
	}
}

func (s *Session) SendCode(code wire.Code) {
	s.Send(wire.NewServerMessage(code))
}

// normalizeName folds full width characters and trims the name so that
// it fits a wire name field.
func normalizeName(name string) string {
	name = width.Fold.String(name)
	n := wire.UsernameSize - 1
	if len(name) <= n {
		return name
	}
	for 0 < n && !utf8.RuneStart(name[n]) {
		n--
	}
	return name[:n]
}

// AllocateSession claims a free slot for a new connection.
func (sv *Server) AllocateSession(out Outbox) (*Session, error) {
	sv.mtx.Lock()
	defer sv.mtx.Unlock()

	for i := range sv.sessions {
		s := &sv.sessions[i]
		if s.State != SessionUnused {
			continue
		}
		*s = Session{
			ID:        i,
			State:     SessionNotLoggedIn,
			BattleID:  -1,
			InviterID: -1,
			out:       out,
			logger:    logger.With(zap.Int("session_id", i)),
		}
		arenaSessions.Add(1)
		return s, nil
	}
	return nil, ErrSessionExhausted
}

// FindByName looks up a logged in session.
func (sv *Server) FindByName(name string) *Session {
	sv.mtx.Lock()
	defer sv.mtx.Unlock()
	return sv.findByName(name)
}

func (sv *Server) findByName(name string) *Session {
	if name == "" {
		return nil
	}
	for i := range sv.sessions {
		s := &sv.sessions[i]
		if s.built() && s.Name == name {
			return s
		}
	}
	return nil
}

// ReleaseSession frees the slot of a closed connection. A session still
// in a battle leaves it first and friends are told it logged out.
func (sv *Server) ReleaseSession(s *Session) {
	sv.mtx.Lock()
	defer sv.mtx.Unlock()

	if s.State == SessionUnused {
		return
	}
	sv.signOff(s)
	s.logger.Info("session released")
	*s = Session{ID: s.ID, BattleID: -1, InviterID: -1}
	arenaSessions.Add(-1)
}

// signOff drops the battle bindings of a built session and announces its
// logout. The caller owns sv.mtx.
func (sv *Server) signOff(s *Session) {
	if !s.built() {
		return
	}
	switch s.State {
	case SessionInBattle:
		sv.leaveBattle(s)
	case SessionWaitingForBattle:
		sv.rejectInvite(s)
	}
	sv.broadcastFriends(s, wire.NewFriendMessage(wire.CodeFriendLogout, s.Name))
	s.State = SessionNotLoggedIn
	s.Name = ""
	s.logger = logger.With(zap.Int("session_id", s.ID))
}

// Login binds name to s. Name uniqueness and the password check happen
// under one lock so two connections cannot log in with the same name.
func (sv *Server) Login(s *Session, name, password string) wire.Code {
	sv.mtx.Lock()
	defer sv.mtx.Unlock()

	if s.built() {
		return wire.CodeYouHaveLogined
	}
	if other := sv.findByName(name); other != nil {
		return wire.CodeLoginFailDupUserID
	}
	code := authenticate(getDB(), name, password)
	if code != wire.CodeLoginSuccess {
		return code
	}
	s.Name = name
	s.State = SessionLoggedIn
	s.BattleID = -1
	s.InviterID = -1
	s.logger = logger.With(zap.Int("session_id", s.ID), zap.String("name", name))
	sv.broadcastFriends(s, wire.NewFriendMessage(wire.CodeFriendLogin, name))
	return code
}

// Logout returns s to NotLoggedIn. The connection stays open.
func (sv *Server) Logout(s *Session) wire.Code {
	sv.mtx.Lock()
	defer sv.mtx.Unlock()

	if !s.built() {
		return wire.CodeYouHaveNotLogin
	}
	sv.signOff(s)
	return wire.CodeSayNothing
}

// broadcastFriends sends msg to every logged in session except from.
func (sv *Server) broadcastFriends(from *Session, msg *wire.ServerMessage) {
	for i := range sv.sessions {
		s := &sv.sessions[i]
		if s != from && s.built() {
			s.Send(msg)
		}
	}
}

type SessionInfo struct {
	ID       int    `json:"id"`
	Name     string `json:"name,omitempty"`
	State    string `json:"state"`
	BattleID int    `json:"battle_id"`
}

// Snapshot lists the sessions that are in use.
func (sv *Server) Snapshot() []SessionInfo {
	sv.mtx.Lock()
	defer sv.mtx.Unlock()

	var ret []SessionInfo
	for i := range sv.sessions {
		s := &sv.sessions[i]
		if s.State == SessionUnused {
			continue
		}
		ret = append(ret, SessionInfo{ID: s.ID, Name: s.Name, State: s.State.String(), BattleID: s.BattleID})
	}
	return ret
}

// usersTable renders logged in sessions at their session index.
// The caller owns sv.mtx.
func (sv *Server) usersTable(code wire.Code, except *Session) *wire.ServerMessage {
	msg := wire.NewServerMessage(code)
	for i := range sv.sessions {
		s := &sv.sessions[i]
		if s == except || !s.built() {
			continue
		}
		msg.Users[i] = wire.UserEntry{Name: s.Name, State: uint8(s.State)}
	}
	return msg
}
