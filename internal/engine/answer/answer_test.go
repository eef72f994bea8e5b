package answer_test

import (
	"testing"

	"cluehunt-service/internal/engine/answer"
)

func alwaysRunning() bool { return true }

func TestInsertFillsLeftmostGap(t *testing.T) {
	m := answer.New("PARIS", alwaysRunning)

	m.Insert('a')
	m.Insert('B')

	slots := m.Slots()
	want := []string{"A", "B", "", "", ""}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("slot %d = %q, want %q", i, slots[i], want[i])
		}
	}
	if m.Cursor() != 2 {
		t.Fatalf("cursor = %d, want 2", m.Cursor())
	}
}

func TestInsertRejectsDisallowedChars(t *testing.T) {
	m := answer.New("AB", alwaysRunning)
	m.Insert('!')
	m.Insert(' ')
	if m.Joined() != "" {
		t.Fatalf("expected no insertion, got %q", m.Joined())
	}
	m.Insert('é')
	if m.Joined() != "É" {
		t.Fatalf("accented letters must normalize upper, got %q", m.Joined())
	}
}

func TestDeleteAtCursorThenLeftwardScan(t *testing.T) {
	m := answer.New("PARIS", alwaysRunning)
	for _, ch := range "PAR" {
		m.Insert(ch)
	}

	// Cursor on a filled slot: targeted delete.
	m.SetCursor(1)
	m.Delete()
	if got := m.Slots()[1]; got != "" {
		t.Fatalf("slot 1 should be cleared, got %q", got)
	}
	// Array changed, cursor re-derived to first empty slot.
	if m.Cursor() != 1 {
		t.Fatalf("cursor = %d, want 1", m.Cursor())
	}

	// Cursor on an empty slot: scan leftward for the nearest filled one.
	m.SetCursor(4)
	m.Delete()
	if got := m.Slots()[2]; got != "" {
		t.Fatalf("slot 2 should be cleared by leftward scan, got %q", got)
	}
}

func TestDeleteOnEmptyBoardIsNoop(t *testing.T) {
	m := answer.New("ABC", alwaysRunning)
	m.Delete()
	if m.Joined() != "" || m.Cursor() != 0 {
		t.Fatalf("delete on empty board mutated state")
	}
}

func TestMoveCursorClamps(t *testing.T) {
	m := answer.New("ABC", alwaysRunning)
	m.MoveCursor(-2)
	if m.Cursor() != 0 {
		t.Fatalf("cursor = %d, want 0", m.Cursor())
	}
	m.MoveCursor(10)
	if m.Cursor() != 3 {
		t.Fatalf("cursor = %d, want 3 (width)", m.Cursor())
	}
}

func TestFullButWrongAppliesOnePenaltyAndClears(t *testing.T) {
	m := answer.New("PARIS", alwaysRunning)
	var penalty bool
	for _, ch := range "PARIX" {
		penalty = m.Insert(ch)
	}
	if !penalty {
		t.Fatalf("expected penalty on final insert")
	}
	if m.Penalties() != 1 {
		t.Fatalf("penalties = %d, want 1", m.Penalties())
	}
	if m.Joined() != "" {
		t.Fatalf("board should be cleared, got %q", m.Joined())
	}
	if m.Cursor() != 0 {
		t.Fatalf("cursor = %d, want 0", m.Cursor())
	}
}

func TestExactAnswerDoesNotPenalize(t *testing.T) {
	m := answer.New("PARIS", alwaysRunning)
	for _, ch := range "PARIS" {
		if m.Insert(ch) {
			t.Fatalf("penalty fired on correct answer")
		}
	}
	if m.Penalties() != 0 {
		t.Fatalf("penalties = %d, want 0", m.Penalties())
	}
	if !m.Validate() {
		t.Fatalf("validate should succeed on exact match")
	}
	if !m.Locked() {
		t.Fatalf("validate should lock the machine")
	}
}

func TestValidateRejectsPartialAnswer(t *testing.T) {
	m := answer.New("PARIS", alwaysRunning)
	m.Insert('P')
	if m.Validate() {
		t.Fatalf("validate must fail on partial answer")
	}
	if m.Locked() {
		t.Fatalf("failed validate must not lock")
	}
}

func TestMutationsNoopWhenLockedOrStopped(t *testing.T) {
	running := true
	m := answer.New("AB", func() bool { return running })

	running = false
	m.Insert('A')
	if m.Joined() != "" {
		t.Fatalf("insert while timer stopped mutated state")
	}

	running = true
	m.Insert('A')
	m.LockTimeout()
	m.Insert('B')
	m.Delete()
	if m.Joined() != "A" {
		t.Fatalf("mutations while locked changed state, got %q", m.Joined())
	}
}
