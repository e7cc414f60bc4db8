package model

// DeletionAttempt records one step of the deletion cascade.
type DeletionAttempt struct {
	Strategy      string `json:"strategy"`
	Succeeded     bool   `json:"succeeded"`
	FailureReason string `json:"reason,omitempty"`
}

// DeletionResult is the structured outcome of a session. User-visible
// failure is always reported through this type, never as a raw error.
type DeletionResult struct {
	Target             TargetResource    `json:"-"`
	Succeeded          bool              `json:"succeeded"`
	Attempts           []DeletionAttempt `json:"attempts"`
	Owners             []LockOwner       `json:"-"`
	Restarts           []ReleaseAction   `json:"-"`
	Leftovers          []string          `json:"leftovers,omitempty"` // Data moved out of the target that is still on disk
	ManualInstructions string            `json:"manualInstructions,omitempty"`
}

// LastAttempt returns the final recorded attempt, if any.
func (r *DeletionResult) LastAttempt() (DeletionAttempt, bool) {
	if len(r.Attempts) == 0 {
		return DeletionAttempt{}, false
	}
	return r.Attempts[len(r.Attempts)-1], true
}

// Record appends an attempt.
func (r *DeletionResult) Record(strategy string, err error) DeletionAttempt {
	a := DeletionAttempt{Strategy: strategy, Succeeded: err == nil}
	if err != nil {
		a.FailureReason = err.Error()
	}
	r.Attempts = append(r.Attempts, a)
	return a
}
