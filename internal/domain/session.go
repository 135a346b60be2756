package domain

import "time"

type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
)

type Pending string

const (
	PendingNone       Pending = ""
	PendingInitial    Pending = "initial"
	PendingRegenerate Pending = "regenerate"
)

// SessionView is the coordinator state of one browser session.
type SessionView struct {
	Phase   Phase           `json:"phase"`
	Record  *BusinessRecord `json:"record,omitempty"`
	Pending Pending         `json:"pending,omitempty"`

	// Name and Location echo the submitted form while the initial generation is pending.
	Name     string `json:"name,omitempty"`
	Location string `json:"location,omitempty"`

	// Seq increments on every transition; a generation only resolves into the
	// view it was started from.
	Seq       uint64    `json:"seq"`
	UpdatedAt time.Time `json:"updated_at"`
}

func IdleView() SessionView { return SessionView{Phase: PhaseIdle} }

func (v SessionView) Loading() bool { return v.Phase == PhaseLoading }
