package wire

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
)

var ErrInvalidSize = errors.New("invalid message size")

// ClientMessage is sent from the client to the server.
// Message and Password share the same bytes on the wire, and the
// password wins when both are set.
type ClientMessage struct {
	Command  CmdID
	Name     string
	Message  string
	Password string
}

func (m *ClientMessage) String() string {
	return fmt.Sprintf(`ClientMessage{Command: %v, Name: %q}`, m.Command, m.Name)
}

func (m *ClientMessage) MarshalBinary() ([]byte, error) {
	buf := make([]byte, ClientMessageSize)
	buf[0] = byte(m.Command)
	putString(buf[1:1+UsernameSize], m.Name)
	union := buf[1+UsernameSize:]
	if m.Password != "" {
		putString(union[:PasswordSize], m.Password)
	} else {
		putString(union, m.Message)
	}
	return buf, nil
}

func (m *ClientMessage) UnmarshalBinary(data []byte) error {
	if len(data) != ClientMessageSize {
		return errors.Wrapf(ErrInvalidSize, "client message %d bytes", len(data))
	}
	m.Command = CmdID(data[0])
	m.Name = getString(data[1 : 1+UsernameSize])
	union := data[1+UsernameSize:]
	m.Message = getString(union)
	m.Password = getString(union[:PasswordSize])
	return nil
}

type UserEntry struct {
	Name  string
	State uint8
}

// BattleFrame is the per-recipient snapshot broadcast after each tick.
// Life, Index and Ammo belong to the recipient.
type BattleFrame struct {
	Life          uint8
	Index         uint8
	Ammo          uint8
	Positions     [UserCnt]Pos
	ItemKinds     [MaxItem]uint8
	ItemPositions [MaxItem]Pos
}

// ServerMessage is sent from the server to the client. Only the fields
// of the arm selected by Code.Payload() travel on the wire.
type ServerMessage struct {
	Code       Code
	FriendName string
	Users      [UserCnt]UserEntry
	Frame      BattleFrame
	From       string
	Text       string
}

func NewServerMessage(code Code) *ServerMessage {
	return &ServerMessage{Code: code}
}

func NewFriendMessage(code Code, friendName string) *ServerMessage {
	return &ServerMessage{Code: code, FriendName: friendName}
}

func NewChatMessage(from, text string) *ServerMessage {
	return &ServerMessage{Code: CodeFriendMessage, From: from, Text: text}
}

func (m *ServerMessage) String() string {
	switch m.Code.Payload() {
	case PayloadFriend:
		return fmt.Sprintf(`ServerMessage{Code: %v, FriendName: %q}`, m.Code, m.FriendName)
	case PayloadChat:
		return fmt.Sprintf(`ServerMessage{Code: %v, From: %q, Text: %q}`, m.Code, m.From, m.Text)
	case PayloadFrame:
		return fmt.Sprintf(`ServerMessage{Code: %v, Index: %d, Life: %d, Ammo: %d}`,
			m.Code, m.Frame.Index, m.Frame.Life, m.Frame.Ammo)
	}
	return fmt.Sprintf(`ServerMessage{Code: %v}`, m.Code)
}

func (m *ServerMessage) MarshalBinary() ([]byte, error) {
	buf := make([]byte, ServerMessageSize)
	buf[0] = byte(m.Code)
	body := buf[1:]

	switch m.Code.Payload() {
	case PayloadFriend:
		putString(body[:UsernameSize], m.FriendName)
	case PayloadUsers:
		for i, u := range m.Users {
			e := body[i*userEntrySize : (i+1)*userEntrySize]
			putString(e[:UsernameSize], u.Name)
			e[UsernameSize] = u.State
		}
	case PayloadFrame:
		f := &m.Frame
		body[0] = f.Life
		body[1] = f.Index
		body[2] = f.Ammo
		off := 3
		for _, p := range f.Positions {
			body[off], body[off+1] = p.X, p.Y
			off += 2
		}
		off += copy(body[off:], f.ItemKinds[:])
		for _, p := range f.ItemPositions {
			body[off], body[off+1] = p.X, p.Y
			off += 2
		}
	case PayloadChat:
		putString(body[:UsernameSize], m.From)
		putString(body[UsernameSize:UsernameSize+MsgSize], m.Text)
	}
	return buf, nil
}

func (m *ServerMessage) UnmarshalBinary(data []byte) error {
	if len(data) != ServerMessageSize {
		return errors.Wrapf(ErrInvalidSize, "server message %d bytes", len(data))
	}
	*m = ServerMessage{Code: Code(data[0])}
	body := data[1:]

	switch m.Code.Payload() {
	case PayloadFriend:
		m.FriendName = getString(body[:UsernameSize])
	case PayloadUsers:
		for i := range m.Users {
			e := body[i*userEntrySize : (i+1)*userEntrySize]
			m.Users[i] = UserEntry{Name: getString(e[:UsernameSize]), State: e[UsernameSize]}
		}
	case PayloadFrame:
		f := &m.Frame
		f.Life, f.Index, f.Ammo = body[0], body[1], body[2]
		off := 3
		for i := range f.Positions {
			f.Positions[i] = Pos{X: body[off], Y: body[off+1]}
			off += 2
		}
		off += copy(f.ItemKinds[:], body[off:off+MaxItem])
		for i := range f.ItemPositions {
			f.ItemPositions[i] = Pos{X: body[off], Y: body[off+1]}
			off += 2
		}
	case PayloadChat:
		m.From = getString(body[:UsernameSize])
		m.Text = getString(body[UsernameSize : UsernameSize+MsgSize])
	}
	return nil
}

// putString copies s into a NUL padded field. The last byte is always zero.
func putString(dst []byte, s string) {
	n := copy(dst[:len(dst)-1], s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func getString(src []byte) string {
	if i := bytes.IndexByte(src, 0); 0 <= i {
		src = src[:i]
	}
	return string(src)
}
