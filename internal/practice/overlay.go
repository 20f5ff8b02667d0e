// Package practice implements the practice overlay: a mode in which any
// exercise may be attempted without touching real progress.
package practice

import "sync"

// Mode is the overlay state
type Mode int

const (
	Real Mode = iota
	Practice
)

func (m Mode) String() string {
	if m == Practice {
		return "practice"
	}
	return "real"
}

// Restorer answers questions about real progress when leaving practice
type Restorer interface {
	// IsUnlocked reports unlock state under the real completed set
	IsUnlocked(exerciseID int) bool
	SavedCode(exerciseID int) (string, bool)
	PristineCode(exerciseID int) string
	HighestUnlocked() (int, bool)
}

// Source names the step of the restore chain that produced a Restored
type Source string

const (
	FromSnapshot Source = "snapshot"
	FromCurrent  Source = "current"
	FromHighest  Source = "highest"
)

// Snapshot is the real-mode position saved on entering practice
type Snapshot struct {
	ExerciseID int
	Code       string
}

// Restored is where the learner lands after leaving practice
type Restored struct {
	ExerciseID int
	Code       string
	Source     Source
}

// Overlay tracks the practice mode and its snapshot
type Overlay struct {
	mu       sync.Mutex
	restorer Restorer
	mode     Mode
	snapshot *Snapshot
}

// NewOverlay creates an overlay in Real mode
func NewOverlay(r Restorer) *Overlay {
	return &Overlay{restorer: r}
}

// Mode returns the current mode
func (o *Overlay) Mode() Mode {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mode
}

// Active reports whether practice mode is on
func (o *Overlay) Active() bool {
	return o.Mode() == Practice
}

// Snapshot returns the saved real-mode position while in practice
func (o *Overlay) Snapshot() (Snapshot, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.snapshot == nil {
		return Snapshot{}, false
	}
	return *o.snapshot, true
}

// Enter saves the current exercise and its draft, then switches to practice
// and returns the pristine code of the current exercise. Entering while
// already in practice changes nothing and returns false.
func (o *Overlay) Enter(currentID int, code string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.mode == Practice {
		return "", false
	}
	o.snapshot = &Snapshot{ExerciseID: currentID, Code: code}
	o.mode = Practice
	return o.restorer.PristineCode(currentID), true
}

// Exit returns to real mode. The landing exercise is, in order: the snapshot
// if still unlocked, the current exercise if unlocked, or the highest
// unlocked exercise. The snapshot is discarded.
func (o *Overlay) Exit(currentID int) (Restored, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.mode != Practice {
		return Restored{}, false
	}
	snap := o.snapshot
	o.snapshot = nil
	o.mode = Real

	if snap != nil && o.restorer.IsUnlocked(snap.ExerciseID) {
		return Restored{ExerciseID: snap.ExerciseID, Code: snap.Code, Source: FromSnapshot}, true
	}
	if o.restorer.IsUnlocked(currentID) {
		return Restored{ExerciseID: currentID, Code: o.codeFor(currentID), Source: FromCurrent}, true
	}
	id, ok := o.restorer.HighestUnlocked()
	if !ok && snap != nil {
		id = snap.ExerciseID
	}
	return Restored{ExerciseID: id, Code: o.codeFor(id), Source: FromHighest}, true
}

// Discard leaves practice without restoring anything
func (o *Overlay) Discard() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.snapshot = nil
	o.mode = Real
}

func (o *Overlay) codeFor(id int) string {
	if code, ok := o.restorer.SavedCode(id); ok {
		return code
	}
	return o.restorer.PristineCode(id)
}
