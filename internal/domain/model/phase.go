package model

// Phase is one step of the session cycle.
type Phase string

const (
	PhaseBoot      Phase = "BOOT"
	PhaseTitle     Phase = "TITLE"
	PhaseTutorial  Phase = "TUTORIAL"
	PhaseCountdown Phase = "COUNTDOWN"
	PhasePlay      Phase = "PLAY"
	PhaseResult    Phase = "RESULT"
	PhaseRecommend Phase = "RECOMMEND"
	PhasePhoto     Phase = "PHOTO"
	PhaseRanking   Phase = "RANKING"
)

// Phases lists every phase in cycle order, BOOT first.
var Phases = []Phase{
	PhaseBoot, PhaseTitle, PhaseTutorial, PhaseCountdown, PhasePlay,
	PhaseResult, PhaseRecommend, PhasePhoto, PhaseRanking,
}

// Ordinal returns the 1-based cycle position, or 0 for an unknown phase.
func (p Phase) Ordinal() int {
	for i, v := range Phases {
		if v == p {
			return i + 1
		}
	}
	return 0
}

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool { return p.Ordinal() > 0 }

func (p Phase) String() string { return string(p) }
