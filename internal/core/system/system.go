package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: drain observer join/subscribe/leave queues
	PhasePreUpdate               // 1: reserved
	PhaseUpdate                  // 2: bot movement
	PhasePostUpdate              // 3: interest tracking
	PhaseOutput                  // 4: dispatch events, flush outboxes
	PhasePersist                 // 5: journal + batch save
	PhaseCleanup                 // 6: destroy queued entities
)

var phaseNames = [...]string{"input", "pre_update", "update", "post_update", "output", "persist", "cleanup"}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// System is the interface every ECS system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
