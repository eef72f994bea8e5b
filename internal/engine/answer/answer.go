// Package answer manages the fixed-width slot array a player types into:
// leftmost gap-fill insertion, cursor-targeted deletion, and the continuous
// full-but-wrong check that applies an instant penalty and clears the board.
package answer

import (
	"strings"
	"unicode"
)

// allowedChars is the extended alphanumeric alphabet answers are written in.
const allowedChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789ÈÉÊÄËÏÖÜÀÁÂÃÇÑÕÚÛÝ"

const emptySlot = rune(0)

// Machine holds the round-local input state for one question. All mutating
// transitions are no-ops while the answer is locked or the round timer is
// not running; the timer is consulted through the injected running func.
type Machine struct {
	key       []rune
	slots     []rune
	cursor    int
	locked    bool
	penalties int
	running   func() bool
}

// New builds a machine for the given answer key. The slot width is the key
// length. running reports whether the round timer is still live.
func New(answerKey string, running func() bool) *Machine {
	key := []rune(strings.ToUpper(answerKey))
	if running == nil {
		running = func() bool { return true }
	}
	return &Machine{
		key:     key,
		slots:   make([]rune, len(key)),
		running: running,
	}
}

// Insert writes ch (case-normalized upper) into the first empty slot. It
// returns true when the mutation triggered a full-but-wrong penalty.
func (m *Machine) Insert(ch rune) bool {
	if !m.active() {
		return false
	}
	ch = unicode.ToUpper(ch)
	if !strings.ContainsRune(allowedChars, ch) {
		return false
	}
	gap := m.firstEmpty()
	if gap == len(m.slots) {
		return false
	}
	m.slots[gap] = ch
	m.autoCursor()
	return m.penaltyCheck()
}

// Delete clears the slot under the cursor if filled, otherwise the nearest
// filled slot scanning leftward from the cursor. No-op when nothing is found.
func (m *Machine) Delete() {
	if !m.active() {
		return
	}
	target := -1
	if m.cursor < len(m.slots) && m.slots[m.cursor] != emptySlot {
		target = m.cursor
	} else {
		for i := m.cursor - 1; i >= 0; i-- {
			if m.slots[i] != emptySlot {
				target = i
				break
			}
		}
	}
	if target == -1 {
		return
	}
	m.slots[target] = emptySlot
	m.autoCursor()
}

// MoveCursor shifts the cursor by delta, clamped to [0, width]. Manual
// placement is only a hint for the next Insert/Delete; any array mutation
// re-derives the cursor.
func (m *Machine) MoveCursor(delta int) {
	if !m.active() {
		return
	}
	m.SetCursor(m.cursor + delta)
}

// SetCursor places the cursor, clamped to [0, width].
func (m *Machine) SetCursor(pos int) {
	if !m.active() {
		return
	}
	if pos < 0 {
		pos = 0
	}
	if pos > len(m.slots) {
		pos = len(m.slots)
	}
	m.cursor = pos
}

// Validate is the explicit submit action. It succeeds only when the joined
// slots exactly equal the answer key, locking the machine; the caller stops
// the timer and invokes the privileged scoring operation. A false return
// means the surface shows a corrective message and takes no transition.
func (m *Machine) Validate() bool {
	if !m.active() {
		return false
	}
	if m.Joined() != string(m.key) {
		return false
	}
	m.locked = true
	return true
}

// LockTimeout locks the machine when the round timer expires. Lock-on-timeout
// takes priority over any concurrently pending full-but-wrong check.
func (m *Machine) LockTimeout() {
	m.locked = true
}

// Joined returns the current slot contents as a string, gaps skipped.
func (m *Machine) Joined() string {
	var b strings.Builder
	for _, r := range m.slots {
		if r != emptySlot {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Slots returns a display copy of the slot array, "" for empty slots.
func (m *Machine) Slots() []string {
	out := make([]string, len(m.slots))
	for i, r := range m.slots {
		if r != emptySlot {
			out[i] = string(r)
		}
	}
	return out
}

func (m *Machine) Cursor() int    { return m.cursor }
func (m *Machine) Locked() bool   { return m.locked }
func (m *Machine) Penalties() int { return m.penalties }
func (m *Machine) Width() int     { return len(m.slots) }

func (m *Machine) active() bool {
	return !m.locked && len(m.slots) > 0 && m.running()
}

func (m *Machine) firstEmpty() int {
	for i, r := range m.slots {
		if r == emptySlot {
			return i
		}
	}
	return len(m.slots)
}

func (m *Machine) autoCursor() {
	m.cursor = m.firstEmpty()
}

// penaltyCheck fires after every array mutation: a fully filled array that
// does not match the key costs one penalty and clears the board.
func (m *Machine) penaltyCheck() bool {
	if m.firstEmpty() != len(m.slots) {
		return false
	}
	if m.Joined() == string(m.key) {
		return false
	}
	m.penalties++
	for i := range m.slots {
		m.slots[i] = emptySlot
	}
	m.cursor = 0
	return true
}
