package retrieval

import "fmt"

// Stages reported by RetrievalError.
const (
	StageCount   = "count"
	StageFetch   = "fetch"
	StageEmbed   = "embed"
	StageVector  = "vector_search"
	StageKeyword = "keyword_search"
)

// RetrievalError wraps an unrecovered failure of one Retrieve stage.
// errors.Is still sees the underlying cause.
type RetrievalError struct {
	Stage string
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed at %s: %v", e.Stage, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

func stageErr(stage string, err error) *RetrievalError {
	return &RetrievalError{Stage: stage, Err: err}
}
