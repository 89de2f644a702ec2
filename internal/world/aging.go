package world

import "time"

// agingBudget bounds how much wall-clock time one AllMapsAged call may
// spend before yielding back to the cycle loop.
const agingBudget = 10 * time.Millisecond

// AllMapsAged advances the cooperative aging sweep. Each call ages maps
// at the persistent cursor until either the sweep is complete or the
// 10 ms budget is spent. It returns true when a full sweep over all
// maps has finished (cursor reset for the next sweep), false when the
// sweep must be resumed on a later call.
//
// The sweep length is snapshotted when a sweep starts, so maps inserted
// mid-sweep keep cursor indices valid and are first visited by the
// following sweep.
func (w *WorldMap) AllMapsAged() bool {
	start := time.Now()

	if w.ageCursor == 0 {
		w.sweepLen = len(w.maps)
	}

	for w.ageCursor < w.sweepLen {
		w.maps[w.ageCursor].Age()
		w.ageCursor++
		if time.Since(start) >= agingBudget {
			break
		}
	}

	if w.ageCursor < w.sweepLen {
		return false
	}

	w.ageCursor = 0
	return true
}
