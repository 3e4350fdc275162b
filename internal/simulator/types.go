package simulator

// StepOutcome reports what happened during one Step call, for
// embedders to render or inspect (spec §6).
type StepOutcome struct {
	Progress          float64
	WeldingSet        []string
	CompletedThisTick []int
	IsComplete        bool
	Warnings          []string
}
