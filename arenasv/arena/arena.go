package arena

import (
	"fmt"
	"math/rand"

	"arenasv/arenasv/wire"
)

// State is the participation of one session in a battle.
type State uint8

const (
	Unjoined State = iota
	Live
	Witness
	Dead
)

func (s State) String() string {
	switch s {
	case Unjoined:
		return "Unjoined"
	case Live:
		return "Live"
	case Witness:
		return "Witness"
	case Dead:
		return "Dead"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

type Direction uint8

const (
	Up Direction = iota
	Down
	Left
	Right
)

func (d Direction) step(p wire.Pos) (int, int) {
	x, y := int(p.X), int(p.Y)
	switch d {
	case Up:
		y--
	case Down:
		y++
	case Left:
		x--
	case Right:
		x++
	}
	return x, y
}

const (
	// BulletSteps is how many cells a bullet travels per tick.
	// Collisions are resolved after every step.
	BulletSteps = 2

	// Below this many pickups one spawns every tick.
	lowWatermark = 5

	// One in spawnOdds ticks spawns a pickup above the watermark.
	spawnOdds = 16
)

type Combatant struct {
	State  State
	Life   int
	Ammo   int
	Pos    wire.Pos
	Facing Direction
}

type Item struct {
	Kind    uint8
	Pos     wire.Pos
	Dir     Direction
	Owner   int
	Charges int
}

func (it *Item) used() bool { return it.Kind != wire.ItemNone }

func (it *Item) pickup() bool { return it.used() && it.Kind != wire.ItemBullet }

// Event is a notice for one combatant produced while applying an intent or a tick.
type Event struct {
	Session int
	Code    wire.Code
}

// Arena is the simulation state of one battle. Combatants are indexed by
// session id. It is not safe for concurrent use.
type Arena struct {
	Combatants [wire.UserCnt]Combatant
	Items      [wire.MaxItem]Item
	Ticks      int

	rnd    *rand.Rand
	events []Event
}

func New(rnd *rand.Rand) *Arena {
	return &Arena{rnd: rnd}
}

func (a *Arena) emit(id int, code wire.Code) {
	a.events = append(a.events, Event{Session: id, Code: code})
}

func (a *Arena) flush() []Event {
	ev := a.events
	a.events = nil
	return ev
}

// Joined counts combatants that are not Unjoined.
func (a *Arena) Joined() int {
	n := 0
	for i := range a.Combatants {
		if a.Combatants[i].State != Unjoined {
			n++
		}
	}
	return n
}

// Join puts the session on the field as a fresh Live combatant at a random free cell.
func (a *Arena) Join(id int) wire.Pos {
	pos := a.freeCell()
	a.Combatants[id] = Combatant{
		State:  Live,
		Life:   wire.InitLife,
		Ammo:   wire.InitBullets,
		Pos:    pos,
		Facing: Right,
	}
	return pos
}

// Leave takes the session off the field. Its bullets in flight stay and
// lose their owner.
func (a *Arena) Leave(id int) {
	a.Combatants[id] = Combatant{}
	for i := range a.Items {
		if it := &a.Items[i]; it.Kind == wire.ItemBullet && it.Owner == id {
			it.Owner = -1
		}
	}
}

// Place moves a combatant to an exact cell. Out of arena cells are ignored.
func (a *Arena) Place(id int, pos wire.Pos, facing Direction) {
	if !pos.InArena() {
		return
	}
	a.Combatants[id].Pos = pos
	a.Combatants[id].Facing = facing
}

func (a *Arena) occupied(p wire.Pos) bool {
	for i := range a.Combatants {
		c := &a.Combatants[i]
		if c.State == Live && c.Pos == p {
			return true
		}
	}
	for i := range a.Items {
		if a.Items[i].used() && a.Items[i].Pos == p {
			return true
		}
	}
	return false
}

func (a *Arena) randomCell() wire.Pos {
	return wire.Pos{X: uint8(a.rnd.Intn(wire.BattleW)), Y: uint8(a.rnd.Intn(wire.BattleH))}
}

// freeCell picks a random cell nobody stands on. A crowded field falls
// back to any random cell.
func (a *Arena) freeCell() wire.Pos {
	for i := 0; i < wire.BattleW*wire.BattleH; i++ {
		p := a.randomCell()
		if !a.occupied(p) {
			return p
		}
	}
	return a.randomCell()
}

func (a *Arena) allocItem() (int, bool) {
	for i := range a.Items {
		if !a.Items[i].used() {
			return i, true
		}
	}
	return -1, false
}

func (a *Arena) freeItem(i int) {
	a.Items[i] = Item{}
}

func (a *Arena) move(id int, d Direction) {
	c := &a.Combatants[id]
	c.Facing = d
	x, y := d.step(c.Pos)
	if 0 <= x && x < wire.BattleW && 0 <= y && y < wire.BattleH {
		c.Pos = wire.Pos{X: uint8(x), Y: uint8(y)}
	}
}

func (a *Arena) fire(id int) {
	c := &a.Combatants[id]
	if c.Ammo <= 0 {
		a.emit(id, wire.CodeYourMagazineIsEmpty)
		return
	}
	i, ok := a.allocItem()
	if !ok {
		a.emit(id, wire.CodeLoginFailServerLimits)
		return
	}
	a.Items[i] = Item{Kind: wire.ItemBullet, Pos: c.Pos, Dir: c.Facing, Owner: id}
	c.Ammo--
}

// Apply runs one intent for its combatant. Intents from a non Live
// combatant are dropped.
func (a *Arena) Apply(in Intent) []Event {
	if in.Session < 0 || wire.UserCnt <= in.Session {
		return nil
	}
	if a.Combatants[in.Session].State != Live {
		return nil
	}
	switch in.Kind {
	case IntentMove:
		a.move(in.Session, in.Dir)
	case IntentTurnFire:
		a.Combatants[in.Session].Facing = in.Dir
		a.fire(in.Session)
	case IntentFire:
		a.fire(in.Session)
	}
	return a.flush()
}

func (a *Arena) stepBullets() {
	for i := range a.Items {
		it := &a.Items[i]
		if it.Kind != wire.ItemBullet {
			continue
		}
		x, y := it.Dir.step(it.Pos)
		if x < 0 || wire.BattleW <= x || y < 0 || wire.BattleH <= y {
			a.freeItem(i)
			continue
		}
		it.Pos = wire.Pos{X: uint8(x), Y: uint8(y)}
	}
}

func (a *Arena) collide() {
	for i := range a.Items {
		it := &a.Items[i]
		if it.Kind != wire.ItemBullet {
			continue
		}
		for id := range a.Combatants {
			c := &a.Combatants[id]
			if c.State != Live || id == it.Owner || c.Pos != it.Pos {
				continue
			}
			c.Life = clamp(c.Life-1, 0, wire.MaxLife)
			a.emit(id, wire.CodeYouAreShot)
			a.freeItem(i)
			break
		}
	}
}

func (a *Arena) pickup() {
	for id := range a.Combatants {
		c := &a.Combatants[id]
		if c.State != Live {
			continue
		}
		for i := range a.Items {
			it := &a.Items[i]
			if !it.pickup() || it.Pos != c.Pos {
				continue
			}
			switch it.Kind {
			case wire.ItemBloodVial:
				c.Life = clamp(c.Life+wire.LifePerVial, 0, wire.MaxLife)
				a.freeItem(i)
				a.emit(id, wire.CodeYouGotBloodVial)
			case wire.ItemMagma:
				c.Life = clamp(c.Life-1, 0, wire.MaxLife)
				it.Charges--
				if it.Charges <= 0 {
					a.freeItem(i)
				}
				a.emit(id, wire.CodeYouAreTrappedInMagma)
			case wire.ItemMagazine:
				c.Ammo = clamp(c.Ammo+wire.BulletsPerMagazine, 0, wire.MaxBullets)
				a.freeItem(i)
				a.emit(id, wire.CodeYouGotMagazine)
			}
		}
	}
}

func (a *Arena) reap() {
	for id := range a.Combatants {
		if a.Combatants[id].State == Dead {
			a.Combatants[id].State = Witness
		}
	}
	for id := range a.Combatants {
		c := &a.Combatants[id]
		if c.State == Live && c.Life <= 0 {
			c.State = Dead
			a.emit(id, wire.CodeYouAreDead)
		}
	}
}

// Pickups counts items on the field that are not bullets.
func (a *Arena) Pickups() int {
	n := 0
	for i := range a.Items {
		if a.Items[i].pickup() {
			n++
		}
	}
	return n
}

var spawnKinds = [...]uint8{wire.ItemMagazine, wire.ItemMagma, wire.ItemBloodVial}

func (a *Arena) spawn() {
	n := a.Pickups()
	if wire.MaxOther <= n {
		return
	}
	if lowWatermark <= n && a.rnd.Intn(spawnOdds) != 0 {
		return
	}
	i, ok := a.allocItem()
	if !ok {
		return
	}
	it := Item{Kind: spawnKinds[a.rnd.Intn(len(spawnKinds))], Pos: a.freeCell(), Owner: -1}
	if it.Kind == wire.ItemMagma {
		it.Charges = wire.MagmaCharges
	}
	a.Items[i] = it
}

// Tick advances the battle by one cycle. Intents for this tick must be
// applied before calling it.
func (a *Arena) Tick() []Event {
	for s := 0; s < BulletSteps; s++ {
		a.stepBullets()
		a.collide()
	}
	a.pickup()
	a.reap()
	a.spawn()
	a.Ticks++
	return a.flush()
}

// Frame renders the snapshot sent to combatant id.
func (a *Arena) Frame(id int) wire.BattleFrame {
	var f wire.BattleFrame
	me := &a.Combatants[id]
	f.Life = uint8(me.Life)
	f.Index = uint8(id)
	f.Ammo = uint8(me.Ammo)
	for i := range a.Combatants {
		c := &a.Combatants[i]
		if c.State == Live {
			f.Positions[i] = c.Pos
		} else {
			f.Positions[i] = wire.NoPos
		}
	}
	for i := range a.Items {
		it := &a.Items[i]
		if it.used() {
			f.ItemKinds[i] = it.Kind
			f.ItemPositions[i] = it.Pos
		} else {
			f.ItemPositions[i] = wire.NoPos
		}
	}
	return f
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if hi < v {
		return hi
	}
	return v
}
