package pipeline

import "fmt"

// Phase is a state of the pipeline state machine.
type Phase int

const (
	Init Phase = iota
	Validate
	ResolveSource
	EditManifest
	Install
	ApplyMutations
	RunGenerators
	PostInstall
	Finalize
	Done
	Failed
)

var phaseNames = [...]string{
	Init:           "INIT",
	Validate:       "VALIDATE",
	ResolveSource:  "RESOLVE_SOURCE",
	EditManifest:   "EDIT_MANIFEST",
	Install:        "INSTALL",
	ApplyMutations: "APPLY_MUTATIONS",
	RunGenerators:  "RUN_GENERATORS",
	PostInstall:    "POST_INSTALL",
	Finalize:       "FINALIZE",
	Done:           "DONE",
	Failed:         "FAILED",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Terminal reports whether p ends the run.
func (p Phase) Terminal() bool {
	return p == Done || p == Failed
}

// StepRecord is a step that completed.
type StepRecord struct {
	Phase       Phase
	Description string
}

// State is the progress of one run.
type State struct {
	Phase     Phase        // Current phase; Done or Failed once the run ends
	Completed []StepRecord // Steps that finished, in order
	Trace     []Phase      // Phases entered, in order
	Err       error        // The fatal error when Phase is Failed

	done map[Phase]bool
}

func newState() *State {
	return &State{Phase: Init, done: make(map[Phase]bool)}
}

// PhaseCompleted reports whether every step of p finished.
func (s *State) PhaseCompleted(p Phase) bool {
	return s.done[p]
}

// Entered reports whether the run reached p, whether or not it completed.
func (s *State) Entered(p Phase) bool {
	for _, t := range s.Trace {
		if t == p {
			return true
		}
	}
	return false
}

func (s *State) enter(p Phase) {
	s.Phase = p
	s.Trace = append(s.Trace, p)
}

func (s *State) complete(p Phase) {
	s.done[p] = true
}

func (s *State) record(p Phase, description string) {
	s.Completed = append(s.Completed, StepRecord{Phase: p, Description: description})
}

func (s *State) fail(err error) {
	s.Phase = Failed
	s.Err = err
}
