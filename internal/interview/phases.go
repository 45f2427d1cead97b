package interview

// Phase is the conversation stage of a live interview.
type Phase string

const (
	PhaseGreeting  Phase = "greeting"
	PhaseIntro     Phase = "intro"
	PhaseDeepDive  Phase = "deep_dive"
	PhaseCrossExam Phase = "cross_exam"
	PhaseClosing   Phase = "closing"
	PhaseCompleted Phase = "completed"
)

func (p Phase) String() string { return string(p) }

// Terminal reports whether no further questions can be asked.
func (p Phase) Terminal() bool { return p == PhaseCompleted }
