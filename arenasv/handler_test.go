package main

import (
	"testing"
	"time"

	"arenasv/arenasv/arena"
	"arenasv/arenasv/wire"
)

func loggedIn(t *testing.T, sv *Server, name string) *testClient {
	c := newTestClient(t, sv)
	c.login(name)
	return c
}

func TestLogin_Outcomes(t *testing.T) {
	sv := newTestServer()
	must(t, getDB().RegisterUser("login_u1", "right"))

	tests := []struct {
		name     string
		user     string
		password string
		want     wire.Code
	}{
		{"unknown user", "login_nobody", "x", wire.CodeLoginFailUnregistered},
		{"wrong password", "login_u1", "wrong", wire.CodeLoginFailErrorPassword},
		{"success", "login_u1", "right", wire.CodeLoginSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, sv)
			ret := sv.dispatch(c.s, &wire.ClientMessage{Command: wire.CmdLogin, Name: tt.user, Password: tt.password})
			assertEq(t, 0, ret)
			assertEq(t, []wire.Code{tt.want}, c.out.codes())
		})
	}
}

func TestLogin_Duplicate(t *testing.T) {
	sv := newTestServer()
	a := loggedIn(t, sv, "alice")

	b := newTestClient(t, sv)
	ret := sv.dispatch(b.s, &wire.ClientMessage{Command: wire.CmdLogin, Name: "alice", Password: "pw"})
	assertEq(t, -1, ret)
	assertEq(t, []wire.Code{wire.CodeLoginFailDupUserID}, b.out.codes())
	assertEq(t, SessionNotLoggedIn, b.state())
	assertEq(t, SessionLoggedIn, a.state())
	assertEq(t, a.s, sv.FindByName("alice"))

	ret = sv.dispatch(a.s, &wire.ClientMessage{Command: wire.CmdLogin, Name: "alice", Password: "pw"})
	assertEq(t, 0, ret)
	assertEq(t, []wire.Code{wire.CodeYouHaveLogined}, a.out.codes())
}

func TestLogin_FriendNotices(t *testing.T) {
	sv := newTestServer()
	a := loggedIn(t, sv, "alice")
	b := loggedIn(t, sv, "bob")

	msgs := a.out.take()
	assertEq(t, 1, len(msgs))
	assertEq(t, wire.CodeFriendLogin, msgs[0].Code)
	assertEq(t, "bob", msgs[0].FriendName)

	assertEq(t, 0, b.do(wire.CmdLogout, ""))
	assertEq(t, SessionNotLoggedIn, b.state())
	msgs = a.out.take()
	assertEq(t, 1, len(msgs))
	assertEq(t, wire.CodeFriendLogout, msgs[0].Code)
	assertEq(t, "bob", msgs[0].FriendName)

	assertEq(t, 0, b.do(wire.CmdLogout, ""))
	assertEq(t, []wire.Code{wire.CodeYouHaveNotLogin}, b.out.codes())
	b.login("bob")
}

func TestRegister(t *testing.T) {
	sv := newTestServer()
	c := newTestClient(t, sv)

	register := func(name string) []wire.Code {
		sv.dispatch(c.s, &wire.ClientMessage{Command: wire.CmdRegister, Name: name, Password: "pw"})
		return c.out.codes()
	}
	assertEq(t, []wire.Code{wire.CodeRegisterSuccess}, register("reg_user"))
	assertEq(t, []wire.Code{wire.CodeYouHaveRegistered}, register("reg_user"))
	assertEq(t, []wire.Code{wire.CodeYouHaveRegistered}, register("ｒｅｇ_ｕｓｅｒ"))
	assertEq(t, []wire.Code{wire.CodeRegisterFail}, register(""))
	assertEq(t, []wire.Code{wire.CodeRegisterFail}, register("reg\nuser"))

	sv.dispatch(c.s, &wire.ClientMessage{Command: wire.CmdRegister, Name: "reg_nl", Password: "x\nreg_x"})
	assertEq(t, []wire.Code{wire.CodeRegisterFail}, c.out.codes())
}

func TestInviteAccept(t *testing.T) {
	sv := newTestServer()
	a := loggedIn(t, sv, "alice")
	b := loggedIn(t, sv, "bob")
	a.out.take()

	assertEq(t, 0, a.do(wire.CmdLaunchBattle, "bob"))
	assertEq(t, []wire.Code{wire.CodeLaunchBattleSuccess, wire.CodeInvitationSent}, a.out.codes())
	assertEq(t, SessionInBattle, a.state())
	assertEq(t, SessionWaitingForBattle, b.state())

	msgs := b.out.take()
	assertEq(t, 1, len(msgs))
	assertEq(t, wire.CodeInviteToBattle, msgs[0].Code)
	assertEq(t, "alice", msgs[0].FriendName)

	assertEq(t, 0, b.do(wire.CmdAcceptBattle, ""))
	assertEq(t, SessionInBattle, b.state())
	assertEq(t, SessionInBattle, a.state())
	msgs = a.out.take()
	assertEq(t, 1, len(msgs))
	assertEq(t, wire.CodeFriendAcceptBattle, msgs[0].Code)
	assertEq(t, "bob", msgs[0].FriendName)

	bt := a.battle()
	assertEq(t, bt, b.battle())
	assertEq(t, 2, bt.UserCount())

	assertEq(t, 0, b.do(wire.CmdAcceptBattle, ""))
	assertEq(t, []wire.Code{wire.CodeYoureAlreadyInBattle}, b.out.codes())
	assertEq(t, 0, a.do(wire.CmdLaunchBattle, ""))
	assertEq(t, []wire.Code{wire.CodeYoureAlreadyInBattle}, a.out.codes())
}

func TestInvite_Errors(t *testing.T) {
	sv := newTestServer()
	a := loggedIn(t, sv, "alice")
	b := loggedIn(t, sv, "bob")
	c := loggedIn(t, sv, "carol")
	a.out.take()
	b.out.take()

	assertEq(t, 0, c.do(wire.CmdInviteUser, "alice"))
	assertEq(t, []wire.Code{wire.CodeYoureNotInBattle}, c.out.codes())
	assertEq(t, 0, c.do(wire.CmdAcceptBattle, ""))
	assertEq(t, []wire.Code{wire.CodeNobodyInviteYou}, c.out.codes())
	assertEq(t, 0, c.do(wire.CmdRejectBattle, ""))
	assertEq(t, []wire.Code{wire.CodeNobodyInviteYou}, c.out.codes())

	// solo battle
	assertEq(t, 0, b.do(wire.CmdLaunchBattle, "bob"))
	assertEq(t, []wire.Code{wire.CodeLaunchBattleSuccess, wire.CodeInvitationSent}, b.out.codes())

	assertEq(t, 0, a.do(wire.CmdLaunchBattle, "nobody"))
	msgs := a.out.take()
	assertEq(t, 2, len(msgs))
	assertEq(t, wire.CodeLaunchBattleSuccess, msgs[0].Code)
	assertEq(t, wire.CodeFriendNotLogin, msgs[1].Code)
	assertEq(t, "nobody", msgs[1].FriendName)

	assertEq(t, 0, a.do(wire.CmdInviteUser, "bob"))
	msgs = a.out.take()
	assertEq(t, 1, len(msgs))
	assertEq(t, wire.CodeFriendAlreadyInBattle, msgs[0].Code)
	assertEq(t, SessionInBattle, b.state())
	assertEq(t, 0, len(b.out.take()))
}

func TestInvite_Reject(t *testing.T) {
	sv := newTestServer()
	a := loggedIn(t, sv, "alice")
	b := loggedIn(t, sv, "bob")
	a.out.take()

	a.do(wire.CmdLaunchBattle, "bob")
	a.out.take()
	b.out.take()

	assertEq(t, 0, b.do(wire.CmdRejectBattle, ""))
	assertEq(t, SessionLoggedIn, b.state())
	msgs := a.out.take()
	assertEq(t, 1, len(msgs))
	assertEq(t, wire.CodeFriendRejectBattle, msgs[0].Code)
	assertEq(t, "bob", msgs[0].FriendName)
	assertEq(t, 1, a.battle().UserCount())
}

func TestInvite_SecondInvitationRejectsFirst(t *testing.T) {
	sv := newTestServer()
	a := loggedIn(t, sv, "alice")
	b := loggedIn(t, sv, "bob")
	c := loggedIn(t, sv, "carol")
	a.out.take()
	b.out.take()

	a.do(wire.CmdLaunchBattle, "carol")
	b.do(wire.CmdLaunchBattle, "carol")
	a.out.take()
	b.out.take()

	msgs := c.out.take()
	assertEq(t, 2, len(msgs))
	assertEq(t, "alice", msgs[0].FriendName)
	assertEq(t, "bob", msgs[1].FriendName)

	assertEq(t, 0, c.do(wire.CmdAcceptBattle, ""))
	assertEq(t, b.battle(), c.battle())
	assertEq(t, 2, b.battle().UserCount())
	assertEq(t, 1, a.battle().UserCount())
}

func TestInvite_AutoRejectNotifiesFirstInviter(t *testing.T) {
	sv := newTestServer()
	a := loggedIn(t, sv, "alice")
	b := loggedIn(t, sv, "bob")
	loggedIn(t, sv, "carol")
	a.out.take()
	b.out.take()

	a.do(wire.CmdLaunchBattle, "carol")
	a.out.take()
	b.do(wire.CmdLaunchBattle, "carol")

	msgs := a.out.take()
	assertEq(t, 1, len(msgs))
	assertEq(t, wire.CodeFriendRejectBattle, msgs[0].Code)
	assertEq(t, "carol", msgs[0].FriendName)
}

func TestInvite_Chain(t *testing.T) {
	sv := newTestServer()
	a := loggedIn(t, sv, "alice")
	b := loggedIn(t, sv, "bob")
	c := loggedIn(t, sv, "carol")

	a.do(wire.CmdLaunchBattle, "bob")
	b.do(wire.CmdAcceptBattle, "")
	b.do(wire.CmdInviteUser, "carol")
	a.out.take()
	b.out.take()

	msgs := c.out.take()
	last := msgs[len(msgs)-1]
	assertEq(t, wire.CodeInviteToBattle, last.Code)
	assertEq(t, "bob", last.FriendName)

	c.do(wire.CmdAcceptBattle, "")
	assertEq(t, SessionInBattle, c.state())
	assertEq(t, 3, a.battle().UserCount())
	msgs = b.out.take()
	assertEq(t, 1, len(msgs))
	assertEq(t, wire.CodeFriendAcceptBattle, msgs[0].Code)
	assertEq(t, 0, len(a.out.take()))
}

func TestInvite_ReclaimedInviterSlot(t *testing.T) {
	sv := newTestServer()
	a := loggedIn(t, sv, "alice")
	b := loggedIn(t, sv, "bob")
	c := loggedIn(t, sv, "carol")

	a.do(wire.CmdLaunchBattle, "carol")
	c.do(wire.CmdAcceptBattle, "")
	a.do(wire.CmdInviteUser, "bob")
	bt := c.battle()

	sv.ReleaseSession(a.s)
	d := loggedIn(t, sv, "dora")
	assertEq(t, a.s.ID, d.s.ID)
	b.out.take()
	c.out.take()

	assertEq(t, 0, b.do(wire.CmdAcceptBattle, ""))
	assertEq(t, SessionInBattle, b.state())
	assertEq(t, bt, b.battle())
	assertEq(t, 2, bt.UserCount())
	assertEq(t, 0, len(d.out.take()))
	assertEq(t, 0, len(c.out.take()))
}

func TestInvite_SameBattleTwice(t *testing.T) {
	sv := newTestServer()
	a := loggedIn(t, sv, "alice")
	b := loggedIn(t, sv, "bob")
	a.do(wire.CmdLaunchBattle, "bob")
	a.out.take()
	b.out.take()

	a.do(wire.CmdInviteUser, "bob")
	assertEq(t, []wire.Code{wire.CodeInvitationSent}, a.out.codes())
	assertEq(t, SessionWaitingForBattle, b.state())
	assertEq(t, []wire.Code{wire.CodeInviteToBattle}, b.out.codes())

	b.do(wire.CmdAcceptBattle, "")
	assertEq(t, []wire.Code{wire.CodeFriendAcceptBattle}, a.out.codes())
}

func TestQuitBattle(t *testing.T) {
	sv := newTestServer()
	a := loggedIn(t, sv, "alice")
	b := loggedIn(t, sv, "bob")
	a.do(wire.CmdLaunchBattle, "bob")
	b.do(wire.CmdAcceptBattle, "")
	bt := a.battle()
	a.out.take()

	b.do(wire.CmdQuitBattle, "")
	assertEq(t, SessionLoggedIn, b.state())
	assertEq(t, 1, bt.UserCount())
	assertEq(t, true, bt.Allocated())
	msgs := a.out.take()
	assertEq(t, 1, len(msgs))
	assertEq(t, wire.CodeUserQuitBattle, msgs[0].Code)
	assertEq(t, "bob", msgs[0].FriendName)

	b.do(wire.CmdQuitBattle, "")
	assertEq(t, []wire.Code{wire.CodeYoureNotInBattle}, b.out.codes())
}

func TestQuitBattle_LastLeavesDeallocates(t *testing.T) {
	sv := newTestServer()
	a := loggedIn(t, sv, "alice")
	c := loggedIn(t, sv, "carol")
	a.do(wire.CmdLaunchBattle, "carol")
	bt := a.battle()
	c.out.take()

	a.do(wire.CmdQuitBattle, "")
	assertEq(t, 0, bt.UserCount())
	assertEq(t, false, bt.Allocated())
	assertEq(t, (*Battle)(nil), sv.battles.Get(bt.ID))

	select {
	case <-bt.Stopped():
	case <-time.After(time.Second):
		t.Fatal("ruler did not stop")
	}

	// carol was still waiting on the invitation
	assertEq(t, SessionLoggedIn, c.state())
	assertEq(t, []wire.Code{wire.CodeBattleDisbanded}, c.out.codes())
	c.do(wire.CmdAcceptBattle, "")
	assertEq(t, []wire.Code{wire.CodeNobodyInviteYou}, c.out.codes())
}

func TestLaunchBattle_PoolExhausted(t *testing.T) {
	sv := newTestServer()
	var clients []*testClient
	for i := 0; i < wire.UserCnt; i++ {
		c := loggedIn(t, sv, "pool_"+string(rune('a'+i)))
		clients = append(clients, c)
	}
	for _, c := range clients[:wire.UserCnt-1] {
		c.do(wire.CmdLaunchBattle, "")
	}

	// fill the last slot from outside the session pool
	_, err := sv.battles.Allocate(sv.newArena)
	must(t, err)

	last := clients[wire.UserCnt-1]
	last.out.take()
	last.do(wire.CmdLaunchBattle, "")
	assertEq(t, []wire.Code{wire.CodeLaunchBattleFail}, last.out.codes())
	assertEq(t, SessionLoggedIn, last.state())
}

func TestSendMessage(t *testing.T) {
	sv := newTestServer()
	a := loggedIn(t, sv, "alice")
	b := loggedIn(t, sv, "bob")
	c := loggedIn(t, sv, "carol")
	a.out.take()
	b.out.take()

	a.say("", "hello all")
	assertEq(t, 0, len(a.out.take()))
	for _, o := range []*testClient{b, c} {
		msgs := o.out.take()
		assertEq(t, 1, len(msgs))
		assertEq(t, wire.CodeFriendMessage, msgs[0].Code)
		assertEq(t, "alice", msgs[0].From)
		assertEq(t, "hello all", msgs[0].Text)
	}

	a.say("bob", "psst")
	msgs := b.out.take()
	assertEq(t, 1, len(msgs))
	assertEq(t, "psst", msgs[0].Text)
	assertEq(t, 0, len(c.out.take()))

	a.say("dave", "hi")
	msgs = a.out.take()
	assertEq(t, 1, len(msgs))
	assertEq(t, wire.CodeFriendNotLogin, msgs[0].Code)
	assertEq(t, "dave", msgs[0].FriendName)

	n := newTestClient(t, sv)
	n.say("", "anyone")
	assertEq(t, []wire.Code{wire.CodeYouHaveNotLogin}, n.out.codes())
}

func TestFetchUsers(t *testing.T) {
	sv := newTestServer()
	a := loggedIn(t, sv, "alice")
	b := loggedIn(t, sv, "bob")
	newTestClient(t, sv)
	a.do(wire.CmdLaunchBattle, "")
	a.out.take()

	a.do(wire.CmdFetchAllUsers, "")
	msgs := a.out.take()
	assertEq(t, 1, len(msgs))
	assertEq(t, wire.CodeAllUsersInfo, msgs[0].Code)
	assertEq(t, wire.UserEntry{Name: "alice", State: wire.UserStateBattle}, msgs[0].Users[a.s.ID])
	assertEq(t, wire.UserEntry{Name: "bob", State: wire.UserStateLogin}, msgs[0].Users[b.s.ID])
	assertEq(t, wire.UserEntry{}, msgs[0].Users[2])

	b.do(wire.CmdFetchAllFriends, "")
	msgs = b.out.take()
	assertEq(t, wire.CodeAllFriendsInfo, msgs[0].Code)
	assertEq(t, wire.UserEntry{}, msgs[0].Users[b.s.ID])
	assertEq(t, "alice", msgs[0].Users[a.s.ID].Name)
}

func TestBattleIntent_NotInBattle(t *testing.T) {
	sv := newTestServer()
	a := loggedIn(t, sv, "alice")
	for _, cmd := range []wire.CmdID{wire.CmdMoveUp, wire.CmdFire, wire.CmdFireLeft} {
		assertEq(t, 0, a.do(cmd, ""))
	}
	assertEq(t, []wire.Code{wire.CodeYoureNotInBattle, wire.CodeYoureNotInBattle, wire.CodeYoureNotInBattle}, a.out.codes())
}

func TestUnknownCommandIgnored(t *testing.T) {
	sv := newTestServer()
	a := loggedIn(t, sv, "alice")
	assertEq(t, 0, a.do(wire.CmdEnd, ""))
	assertEq(t, 0, a.do(0xEE, ""))
	assertEq(t, 0, len(a.out.take()))
	assertEq(t, SessionLoggedIn, a.state())
}

func TestQuitCommand(t *testing.T) {
	sv := newTestServer()
	a := loggedIn(t, sv, "alice")
	assertEq(t, -1, a.do(wire.CmdQuit, ""))
}

func TestBattle_ShotOverTheWire(t *testing.T) {
	sv := newTestServer()
	a := loggedIn(t, sv, "alice")
	b := loggedIn(t, sv, "bob")
	a.do(wire.CmdLaunchBattle, "bob")
	b.do(wire.CmdAcceptBattle, "")
	a.out.take()
	b.out.take()

	bt := a.battle()
	bt.mtx.Lock()
	for i := range bt.arena.Items {
		bt.arena.Items[i] = arena.Item{}
	}
	bt.arena.Place(a.s.ID, wire.Pos{X: 5, Y: 5}, arena.Right)
	bt.arena.Place(b.s.ID, wire.Pos{X: 6, Y: 5}, arena.Left)
	bt.mtx.Unlock()

	a.do(wire.CmdFire, "")
	assertEq(t, true, sv.tickBattle(bt))

	bt.mtx.Lock()
	life := bt.arena.Combatants[b.s.ID].Life
	bt.mtx.Unlock()
	assertEq(t, wire.InitLife-1, life)

	var shot, frames int
	for _, m := range b.out.take() {
		switch m.Code {
		case wire.CodeYouAreShot:
			shot++
		case wire.CodeBattleInformation:
			frames++
			assertEq(t, uint8(b.s.ID), m.Frame.Index)
			assertEq(t, uint8(wire.InitLife-1), m.Frame.Life)
			assertEq(t, wire.Pos{X: 5, Y: 5}, m.Frame.Positions[a.s.ID])
			for i, k := range m.Frame.ItemKinds {
				if k == wire.ItemBullet {
					t.Fatalf("bullet %d still on the field", i)
				}
			}
		}
	}
	assertEq(t, 1, shot)
	assertEq(t, 1, frames)

	msgs := a.out.take()
	assertEq(t, 1, len(msgs))
	assertEq(t, uint8(wire.InitBullets-1), msgs[0].Frame.Ammo)
}

func TestBattle_RulerTicksWithClock(t *testing.T) {
	sv := newTestServer()
	clock := sv.clock.(*arena.ManualClock)
	a := loggedIn(t, sv, "alice")
	a.do(wire.CmdLaunchBattle, "")
	a.out.take()

	if !clock.WaitTicker(time.Second) {
		t.Fatal("ruler did not start")
	}
	clock.Step()
	clock.Step()

	// the second Step returns once the first tick has been handled
	deadline := time.Now().Add(time.Second)
	for {
		frames := 0
		for _, m := range a.out.take() {
			if m.Code == wire.CodeBattleInformation {
				frames++
			}
		}
		if 0 < frames {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no battle frame")
		}
		time.Sleep(10 * time.Millisecond)
	}

	bt := a.battle()
	a.do(wire.CmdQuitBattle, "")
	select {
	case <-bt.Stopped():
	case <-time.After(time.Second):
		t.Fatal("ruler did not stop")
	}
	assertEq(t, false, sv.tickBattle(bt))
}

func TestFatalShutdown(t *testing.T) {
	sv := newTestServer()
	exitCode := make(chan int, 1)
	sv.exit = func(code int) { exitCode <- code }
	a := loggedIn(t, sv, "alice")
	b := loggedIn(t, sv, "bob")
	a.out.take()

	assertEq(t, -1, b.do(wire.CmdFatal, ""))
	assertEq(t, 3, <-exitCode)
	for _, c := range []*testClient{a, b} {
		assertEq(t, []wire.Code{wire.CodeFatal}, c.out.codes())
		assertEq(t, true, c.out.isClosed())
	}
}
