package session

// timerReconciler predicts the visible countdown between authoritative
// snapshots. The server owns phase transitions; this only smooths the
// displayed number, and drift is corrected at the next snapshot.
type timerReconciler struct {
	remaining int
}

// reset reseeds the countdown from a snapshot's remaining milliseconds.
func (t *timerReconciler) reset(remainingMs int64) {
	if remainingMs < 0 {
		remainingMs = 0
	}
	t.remaining = int(remainingMs / 1000)
}

// tick decrements one second, floored at zero. It reports whether the
// displayed value changed.
func (t *timerReconciler) tick() bool {
	if t.remaining <= 0 {
		return false
	}
	t.remaining--
	return true
}
