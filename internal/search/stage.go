package search

import "fmt"

// Stage is a step of answering one question.
type Stage int

const (
	StageValidating Stage = iota
	StageEmbedding
	StageRetrieving
	StageRanking
	StageGenerating
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageValidating:
		return "validating"
	case StageEmbedding:
		return "embedding"
	case StageRetrieving:
		return "retrieving"
	case StageRanking:
		return "ranking"
	case StageGenerating:
		return "generating"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// StageError is the terminal failure of a question. It unwraps to the cause,
// so errors.Is sees the models error kinds through it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage.String() + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }
