package status

import "fmt"

// validate checks three state invariants on every write (state=complete iff
// every task is done, state=failed iff some task failed, current set iff
// state=running), plus lastUpdated monotonicity against the previous
// snapshot. prev may be nil for the very first write of a job. The contents
// of the files lists (bare filenames vs. paths) are not checked.
//
// Grounded on the teacher's pkg/config validation style (a pure function
// returning a descriptive error, run before a value is accepted) —
// pkg/config/errors.go's ValidationError / validate() pair.
func validate(next, prev *Snapshot) error {
	allDone := true
	anyFailed := false
	for _, t := range next.Tasks {
		if t.State != TaskDone {
			allDone = false
		}
		if t.State == TaskFailed {
			anyFailed = true
		}
	}

	if (next.State == JobComplete) != allDone {
		return fmt.Errorf("state=complete iff all tasks done (state=%s, allDone=%v)", next.State, allDone)
	}
	if (next.State == JobFailed) != anyFailed {
		return fmt.Errorf("state=failed iff some task failed (state=%s, anyFailed=%v)", next.State, anyFailed)
	}
	if (next.Current != nil) != (next.State == JobRunning) {
		return fmt.Errorf("current non-nil iff state=running (state=%s, current=%v)", next.State, next.Current)
	}

	if prev != nil && next.LastUpdated.Before(prev.LastUpdated) {
		return fmt.Errorf("lastUpdated must be monotonically non-decreasing (prev=%s, next=%s)",
			prev.LastUpdated, next.LastUpdated)
	}

	return nil
}
