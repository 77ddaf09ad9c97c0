package wire

// Sizes shared with the terminal client. Every message sort has a fixed size,
// so there is no length prefix on the stream.
const (
	UsernameSize = 12
	PasswordSize = UsernameSize
	MsgSize      = 40
	UserCnt      = 10

	BattleW = 60
	BattleH = 16

	InitBullets        = 12
	MaxBullets         = 24
	BulletsPerMagazine = 5

	InitLife     = 5
	MaxLife      = 20
	LifePerVial  = 3
	MagmaCharges = 8
	MaxOther     = 15

	MaxItem = UserCnt*MaxBullets + MaxOther
)

const (
	ClientMessageSize = 1 + UsernameSize + MsgSize
	ServerMessageSize = 1 + frameSize

	userEntrySize = UsernameSize + 1
	frameSize     = 3 + 2*UserCnt + MaxItem + 2*MaxItem
)

// Session states as they appear in the all-users table.
const (
	UserStateUnused       uint8 = 0
	UserStateNotLogin     uint8 = 1
	UserStateLogin        uint8 = 2
	UserStateBattle       uint8 = 3
	UserStateWaitToBattle uint8 = 4
)

// Item kinds in a battle frame. Grass and End are reserved.
const (
	ItemNone      uint8 = 0
	ItemMagazine  uint8 = 1
	ItemMagma     uint8 = 2
	ItemGrass     uint8 = 3
	ItemBloodVial uint8 = 4
	ItemEnd       uint8 = 5
	ItemBullet    uint8 = 6
)

// Pos is a grid cell. Coordinates outside the arena mean "not on the field".
type Pos struct {
	X uint8
	Y uint8
}

// NoPos marks a combatant that is not live in a battle frame.
var NoPos = Pos{X: 0xFF, Y: 0xFF}

func (p Pos) InArena() bool {
	return p.X < BattleW && p.Y < BattleH
}
