package arena

import "arenasv/arenasv/wire"

type IntentKind uint8

const (
	IntentMove IntentKind = iota
	IntentFire
	IntentTurnFire
)

// Intent is a movement or fire request queued by a connection for the next tick.
type Intent struct {
	Session int
	Kind    IntentKind
	Dir     Direction
}

// IntentOf maps a battle command to its intent. ok is false for other commands.
func IntentOf(session int, cmd wire.CmdID) (in Intent, ok bool) {
	in.Session = session
	switch cmd {
	case wire.CmdMoveUp:
		in.Kind, in.Dir = IntentMove, Up
	case wire.CmdMoveDown:
		in.Kind, in.Dir = IntentMove, Down
	case wire.CmdMoveLeft:
		in.Kind, in.Dir = IntentMove, Left
	case wire.CmdMoveRight:
		in.Kind, in.Dir = IntentMove, Right
	case wire.CmdFire:
		in.Kind = IntentFire
	case wire.CmdFireUp:
		in.Kind, in.Dir = IntentTurnFire, Up
	case wire.CmdFireDown:
		in.Kind, in.Dir = IntentTurnFire, Down
	case wire.CmdFireLeft:
		in.Kind, in.Dir = IntentTurnFire, Left
	case wire.CmdFireRight:
		in.Kind, in.Dir = IntentTurnFire, Right
	default:
		return in, false
	}
	return in, true
}
