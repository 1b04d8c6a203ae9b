package pipeline

import (
	"errors"
	"fmt"
)

// Stage names a step of a pipeline run. Ranking is pure and has no
// failure stage.
type Stage string

const (
	StageConfig    Stage = "config"
	StageFetch     Stage = "fetch"
	StageBuildRows Stage = "build_rows"
	StagePublish   Stage = "publish"
)

// StageError reports which stage ended a run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ErrRunInProgress is returned when a run is requested while another is
// still going.
var ErrRunInProgress = errors.New("a pipeline run is already in progress")

// FailedStage returns the stage that produced err, or "" if err did not
// come from a stage.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
