package wire

import (
	"bytes"
	"io"
	"reflect"
	"runtime"
	"testing"
	"testing/iotest"

	"github.com/pkg/errors"
)

func must(tb testing.TB, err error) {
	if err != nil {
		pc, file, line, _ := runtime.Caller(1)
		name := runtime.FuncForPC(pc).Name()
		tb.Fatalf("In %s:%d %s\nerr:%vn", file, line, name, err)
	}
}

func assertEq(tb testing.TB, expected, actual interface{}) {
	ok := reflect.DeepEqual(expected, actual)
	if !ok {
		pc, file, line, _ := runtime.Caller(1)
		name := runtime.FuncForPC(pc).Name()
		tb.Fatalf("In %s:%d %s\nexpected: %#v \nactual: %#v\n", file, line, name, expected, actual)
	}
}

func TestSizes(t *testing.T) {
	assertEq(t, 53, ClientMessageSize)
	assertEq(t, 789, ServerMessageSize)
	assertEq(t, 255, MaxItem)
}

func TestClientMessage_Layout(t *testing.T) {
	tests := []struct {
		name string
		msg  ClientMessage
		want func(buf []byte)
	}{
		{
			name: "login with password",
			msg:  ClientMessage{Command: CmdLogin, Name: "alice", Password: "secret"},
			want: func(buf []byte) {
				assertEq(t, byte(CmdLogin), buf[0])
				assertEq(t, []byte("alice\x00"), buf[1:7])
				assertEq(t, []byte("secret\x00"), buf[13:20])
			},
		},
		{
			name: "chat message",
			msg:  ClientMessage{Command: CmdSendMessage, Name: "bob", Message: "hello"},
			want: func(buf []byte) {
				assertEq(t, byte(CmdSendMessage), buf[0])
				assertEq(t, []byte("hello\x00"), buf[13:19])
			},
		},
		{
			name: "name is truncated to keep a terminator",
			msg:  ClientMessage{Command: CmdLogin, Name: "abcdefghijklmnop"},
			want: func(buf []byte) {
				assertEq(t, []byte("abcdefghijk\x00"), buf[1:13])
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := tt.msg.MarshalBinary()
			must(t, err)
			assertEq(t, ClientMessageSize, len(buf))
			tt.want(buf)
		})
	}
}

func TestClientMessage_Unmarshal(t *testing.T) {
	buf := make([]byte, ClientMessageSize)
	buf[0] = byte(CmdRegister)
	copy(buf[1:], "carol")
	copy(buf[13:], "pw")

	var m ClientMessage
	must(t, m.UnmarshalBinary(buf))
	assertEq(t, CmdRegister, m.Command)
	assertEq(t, "carol", m.Name)
	assertEq(t, "pw", m.Password)
	assertEq(t, "pw", m.Message)

	err := m.UnmarshalBinary(buf[:10])
	assertEq(t, ErrInvalidSize, errors.Cause(err))
}

func TestServerMessage_RoundTrip(t *testing.T) {
	frame := &ServerMessage{Code: CodeBattleInformation}
	frame.Frame.Life = 4
	frame.Frame.Index = 2
	frame.Frame.Ammo = 11
	for i := range frame.Frame.Positions {
		frame.Frame.Positions[i] = NoPos
	}
	frame.Frame.Positions[2] = Pos{X: 5, Y: 6}
	frame.Frame.ItemKinds[0] = ItemBullet
	frame.Frame.ItemPositions[0] = Pos{X: 7, Y: 8}
	frame.Frame.ItemKinds[MaxItem-1] = ItemMagma
	frame.Frame.ItemPositions[MaxItem-1] = Pos{X: 59, Y: 15}

	users := &ServerMessage{Code: CodeAllUsersInfo}
	users.Users[0] = UserEntry{Name: "alice", State: UserStateLogin}
	users.Users[9] = UserEntry{Name: "bob", State: UserStateBattle}

	tests := []struct {
		name string
		msg  *ServerMessage
	}{
		{"say nothing", NewServerMessage(CodeLoginSuccess)},
		{"friend", NewFriendMessage(CodeInviteToBattle, "alice")},
		{"chat", NewChatMessage("alice", "good game")},
		{"users", users},
		{"frame", frame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := tt.msg.MarshalBinary()
			must(t, err)
			assertEq(t, ServerMessageSize, len(buf))
			var got ServerMessage
			must(t, got.UnmarshalBinary(buf))
			assertEq(t, *tt.msg, got)
		})
	}
}

func TestServerMessage_FrameOffsets(t *testing.T) {
	m := &ServerMessage{Code: CodeBattleInformation}
	m.Frame.Life = 1
	m.Frame.Index = 3
	m.Frame.Ammo = 9
	m.Frame.Positions[1] = Pos{X: 10, Y: 11}
	m.Frame.ItemKinds[2] = ItemBloodVial
	m.Frame.ItemPositions[2] = Pos{X: 20, Y: 12}

	buf, err := m.MarshalBinary()
	must(t, err)
	assertEq(t, byte(CodeBattleInformation), buf[0])
	assertEq(t, []byte{1, 3, 9}, buf[1:4])
	assertEq(t, []byte{10, 11}, buf[6:8])
	assertEq(t, ItemBloodVial, buf[24+2])
	assertEq(t, []byte{20, 12}, buf[279+4:279+6])
}

func TestServerMessage_String(t *testing.T) {
	assertEq(t, `ServerMessage{Code: CodeFriendLogin, FriendName: "bob"}`, NewFriendMessage(CodeFriendLogin, "bob").String())
	assertEq(t, `ServerMessage{Code: Code(0x80)}`, NewServerMessage(0x80).String())
	assertEq(t, `ClientMessage{Command: CmdID(0xff), Name: ""}`, (&ClientMessage{Command: 0xff}).String())
}

func TestReadClientMessage_Partial(t *testing.T) {
	src := &ClientMessage{Command: CmdMoveLeft, Name: "dave"}
	var b bytes.Buffer
	must(t, WriteClientMessage(&b, src))

	got, err := ReadClientMessage(iotest.OneByteReader(&b))
	must(t, err)
	assertEq(t, CmdMoveLeft, got.Command)
	assertEq(t, "dave", got.Name)
}

func TestReadClientMessage_Truncated(t *testing.T) {
	r := bytes.NewReader(make([]byte, ClientMessageSize-1))
	_, err := ReadClientMessage(r)
	assertEq(t, io.EOF, errors.Cause(err))
}

type zeroWriter struct{}

func (zeroWriter) Write(p []byte) (int, error) { return 0, nil }

type halfWriter struct {
	bytes.Buffer
}

func (w *halfWriter) Write(p []byte) (int, error) {
	if 1 < len(p) {
		p = p[:len(p)/2]
	}
	return w.Buffer.Write(p)
}

func TestWriteServerMessage(t *testing.T) {
	err := WriteServerMessage(zeroWriter{}, NewServerMessage(CodeQuit))
	assertEq(t, ErrShortTransfer, errors.Cause(err))

	w := &halfWriter{}
	must(t, WriteServerMessage(w, NewFriendMessage(CodeFriendLogout, "erin")))
	got, err := ReadServerMessage(&w.Buffer)
	must(t, err)
	assertEq(t, CodeFriendLogout, got.Code)
	assertEq(t, "erin", got.FriendName)
}
