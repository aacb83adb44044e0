// Package session holds the per-user pipeline state and enforces its stage rules.
package session

import "fmt"

// Step is a pipeline stage. Steps are ordered and 1-based.
type Step int

const (
	StepUpload   Step = 1
	StepChunk    Step = 2
	StepEmbed    Step = 3
	StepRetrieve Step = 4
)

// FirstStep and LastStep bound navigation.
const (
	FirstStep = StepUpload
	LastStep  = StepRetrieve
)

func (s Step) String() string {
	switch s {
	case StepUpload:
		return "upload"
	case StepChunk:
		return "chunk"
	case StepEmbed:
		return "embed"
	case StepRetrieve:
		return "retrieve"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Valid reports whether s names a real stage.
func (s Step) Valid() bool {
	return s >= FirstStep && s <= LastStep
}
