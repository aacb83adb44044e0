package session

import "github.com/bull/rag-studio/internal/apperr"

// Precondition errors. All map to a 409 response.
var (
	ErrNoDocument          = apperr.New(apperr.KindConflict, "upload a document first")
	ErrNoChunks            = apperr.New(apperr.KindConflict, "chunk the document first")
	ErrNoVectorStore       = apperr.New(apperr.KindConflict, "embed the chunks first")
	ErrAtLastStep          = apperr.New(apperr.KindConflict, "already at the last step")
	ErrAtFirstStep         = apperr.New(apperr.KindConflict, "already at the first step")
	ErrJumpForward         = apperr.New(apperr.KindConflict, "can only jump to the current or an earlier step")
	ErrEmbeddingInProgress = apperr.New(apperr.KindConflict, "an embedding run is already in progress for these chunks")
	ErrStaleResult         = apperr.New(apperr.KindConflict, "embedding result discarded: the chunks changed while it was running")
)

// Lookup errors.
var (
	ErrSessionNotFound = apperr.New(apperr.KindNotFound, "session not found")
	ErrTooManySessions = apperr.New(apperr.KindResourceLimit, "too many active sessions")
	ErrInvalidStep     = apperr.New(apperr.KindInvalidInput, "step must be between 1 and 4")
)
