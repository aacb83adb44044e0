package session

import (
	"slices"
	"sync"
	"time"

	"github.com/bull/rag-studio/internal/apperr"
	"github.com/bull/rag-studio/internal/chunker"
	"github.com/bull/rag-studio/internal/extract"
	"github.com/bull/rag-studio/internal/markdown"
	"github.com/bull/rag-studio/internal/vectorstore"
)

// ChunkOutcome describes a chunking run applied to the session.
type ChunkOutcome struct {
	Count     int            `json:"count"`
	Truncated bool           `json:"truncated"`
	Config    chunker.Config `json:"chunkConfig"`
	Version   uint64         `json:"version"`
}

// Navigation describes a completed step change.
type Navigation struct {
	From Step `json:"from"`
	To   Step `json:"to"`
	// Chunked is set when entering the step triggered a chunking run.
	Chunked *ChunkOutcome `json:"chunked,omitempty"`
	// ChunkErr is a failed chunking auto-run. Navigation still happened.
	ChunkErr error `json:"-"`
	// NeedsEmbedding is set when the new step expects an embedding auto-run.
	NeedsEmbedding bool `json:"needsEmbedding"`
}

// Ticket tags an embedding run with the chunk-set version it was issued against.
type Ticket struct {
	Version uint64
	Chunks  []string
}

// Session is one user's pipeline: a Document, its Chunks under a ChunkConfig,
// the Vector Store built from them, and the current step.
//
// Every chunk-set change bumps version. Embedding results carry the version they
// were issued against and are dropped when it no longer matches.
type Session struct {
	mu      sync.Mutex
	id      string
	chunker *chunker.Chunker
	now     func() time.Time

	createdAt time.Time
	updatedAt time.Time

	doc       *extract.Document
	config    chunker.Config
	chunks    []string
	truncated bool
	store     *vectorstore.Store
	step      Step

	version         uint64
	inFlight        bool
	inFlightVersion uint64
}

func newSession(id string, c *chunker.Chunker, now func() time.Time) *Session {
	t := now()
	return &Session{
		id:        id,
		chunker:   c,
		now:       now,
		createdAt: t,
		updatedAt: t,
		config:    chunker.DefaultConfig(),
		step:      StepUpload,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// SetDocument replaces the Document and chunks it with the current config.
// Downstream chunks and vectors from the previous document are discarded.
func (s *Session) SetDocument(doc *extract.Document) (*ChunkOutcome, error) {
	if doc == nil {
		return nil, apperr.New(apperr.KindInvalidInput, "no document provided")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc = doc
	s.clearChunksLocked()
	outcome, err := s.rechunkLocked()
	s.settleLocked()
	s.touchLocked()
	return outcome, err
}

// Configure clamps cfg and stores it. With a Document loaded the chunks are rebuilt,
// which invalidates the Vector Store. An unchanged config is a no-op.
func (s *Session) Configure(cfg chunker.Config) (chunker.Config, *ChunkOutcome, error) {
	cfg = cfg.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg == s.config && (s.doc == nil || len(s.chunks) > 0) {
		return cfg, nil, nil
	}

	s.config = cfg
	s.touchLocked()
	if s.doc == nil {
		return cfg, nil, nil
	}

	outcome, err := s.rechunkLocked()
	s.settleLocked()
	return cfg, outcome, err
}

// Rechunk rebuilds the chunks from the loaded Document.
func (s *Session) Rechunk() (*ChunkOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return nil, ErrNoDocument
	}
	outcome, err := s.rechunkLocked()
	s.settleLocked()
	s.touchLocked()
	return outcome, err
}

// BeginEmbed reserves the embedding slot for the current chunk set.
// A second run for the same chunk set is rejected until the first completes or aborts.
func (s *Session) BeginEmbed() (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.chunks) == 0 {
		return Ticket{}, ErrNoChunks
	}
	if s.inFlight && s.inFlightVersion == s.version {
		return Ticket{}, ErrEmbeddingInProgress
	}

	s.inFlight = true
	s.inFlightVersion = s.version
	return Ticket{Version: s.version, Chunks: slices.Clone(s.chunks)}, nil
}

// CompleteEmbed installs vectors as the Vector Store if the ticket is still current.
// A stale ticket returns ErrStaleResult and leaves the session untouched.
func (s *Session) CompleteEmbed(t Ticket, vectors [][]float32) (*vectorstore.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseLocked(t)
	if t.Version != s.version {
		return nil, ErrStaleResult
	}

	store, err := vectorstore.Build(s.chunks, vectors)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, err, "embedding result does not match the chunks")
	}

	s.store = store
	s.touchLocked()
	return store, nil
}

// AbortEmbed releases the embedding slot after a failed run. Prior state is kept.
func (s *Session) AbortEmbed(t Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked(t)
}

// Next advances one step if the current step's output exists.
// Entering step 2 without chunks runs the chunker.
func (s *Session) Next() (*Navigation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.canAdvanceLocked(); err != nil {
		return nil, err
	}

	nav := &Navigation{From: s.step, To: s.step + 1}
	s.step = nav.To
	s.autoRunLocked(nav)
	s.touchLocked()
	return nav, nil
}

// Back moves one step back. No state is discarded.
func (s *Session) Back() (*Navigation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step <= FirstStep {
		return nil, ErrAtFirstStep
	}

	nav := &Navigation{From: s.step, To: s.step - 1}
	s.step = nav.To
	s.autoRunLocked(nav)
	s.touchLocked()
	return nav, nil
}

// JumpTo moves to target, which must not be ahead of the current step, and discards
// the state owned by target and every later step:
//
//	1: document, chunks, vector store
//	2: chunks, vector store
//	3: vector store
//	4: nothing
func (s *Session) JumpTo(target Step) (*Navigation, error) {
	if !target.Valid() {
		return nil, ErrInvalidStep
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if target > s.step {
		return nil, ErrJumpForward
	}

	nav := &Navigation{From: s.step, To: target}
	switch target {
	case StepUpload:
		s.doc = nil
		s.clearChunksLocked()
	case StepChunk:
		s.clearChunksLocked()
	case StepEmbed:
		s.store = nil
	}

	s.step = target
	s.autoRunLocked(nav)
	s.touchLocked()
	return nav, nil
}

// Reset discards everything and restores the default config at step 1.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc = nil
	s.clearChunksLocked()
	s.config = chunker.DefaultConfig()
	s.step = StepUpload
	s.touchLocked()
}

// NeedsEmbedding reports whether chunks exist without a Vector Store and no run is pending.
func (s *Session) NeedsEmbedding() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.needsEmbeddingLocked()
}

// Step returns the current step.
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Document returns the loaded document, or nil.
func (s *Session) Document() *extract.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Config returns the current chunk config.
func (s *Session) Config() chunker.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// Chunks returns a copy of the current chunks.
func (s *Session) Chunks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.chunks)
}

// Store returns the current Vector Store, or nil. Stores are immutable.
func (s *Session) Store() *vectorstore.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store
}

// Version returns the chunk-set version.
func (s *Session) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// DocumentInfo is the Document summary shown in a Status.
type DocumentInfo struct {
	Name    string             `json:"name"`
	Size    int64              `json:"size"`
	Outline []markdown.Heading `json:"outline,omitempty"`
}

// Status is a point-in-time view of a session without bulk data.
type Status struct {
	ID                  string         `json:"id"`
	Step                Step           `json:"currentStep"`
	StepName            string         `json:"stepName"`
	CanAdvance          bool           `json:"canAdvance"`
	Document            *DocumentInfo  `json:"document"`
	ChunkConfig         chunker.Config `json:"chunkConfig"`
	ChunkCount          int            `json:"chunkCount"`
	Truncated           bool           `json:"truncated"`
	VectorCount         int            `json:"vectorCount"`
	Dimension           int            `json:"dimension"`
	EmbeddingInProgress bool           `json:"embeddingInProgress"`
	Version             uint64         `json:"version"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}

// Status returns a summary of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		ID:                  s.id,
		Step:                s.step,
		StepName:            s.step.String(),
		CanAdvance:          s.canAdvanceLocked() == nil,
		ChunkConfig:         s.config,
		ChunkCount:          len(s.chunks),
		Truncated:           s.truncated,
		VectorCount:         s.store.Len(),
		Dimension:           s.store.Dimension(),
		EmbeddingInProgress: s.inFlight && s.inFlightVersion == s.version,
		Version:             s.version,
		CreatedAt:           s.createdAt,
		UpdatedAt:           s.updatedAt,
	}
	if s.doc != nil {
		st.Document = &DocumentInfo{Name: s.doc.Name, Size: s.doc.Size, Outline: s.doc.Outline}
	}
	return st
}

// FileInfo names the exported source file.
type FileInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Export is the full session snapshot offered for download.
type Export struct {
	File        *FileInfo           `json:"file"`
	Text        string              `json:"text"`
	Chunks      []string            `json:"chunks"`
	ChunkConfig chunker.Config      `json:"chunkConfig"`
	Embeddings  [][]float32         `json:"embeddings"`
	VectorStore []vectorstore.Entry `json:"vectorStore"`
	CurrentStep Step                `json:"currentStep"`
	ExportedAt  time.Time           `json:"exportedAt"`
}

// Export returns a deep snapshot of the session.
func (s *Session) Export() Export {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp := Export{
		Chunks:      slices.Clone(s.chunks),
		ChunkConfig: s.config,
		Embeddings:  [][]float32{},
		VectorStore: []vectorstore.Entry{},
		CurrentStep: s.step,
		ExportedAt:  s.now(),
	}
	if exp.Chunks == nil {
		exp.Chunks = []string{}
	}
	if s.doc != nil {
		exp.File = &FileInfo{Name: s.doc.Name, Size: s.doc.Size}
		exp.Text = s.doc.Text
	}
	if s.store.Len() > 0 {
		exp.VectorStore = s.store.Entries()
		for _, e := range exp.VectorStore {
			exp.Embeddings = append(exp.Embeddings, e.Embedding)
		}
	}
	return exp
}

func (s *Session) rechunkLocked() (*ChunkOutcome, error) {
	res, err := s.chunker.Chunk(s.doc.Text, s.config)
	if err != nil {
		return nil, err
	}

	s.chunks = res.Chunks
	s.truncated = res.Truncated
	s.store = nil
	s.version++

	return &ChunkOutcome{
		Count:     len(res.Chunks),
		Truncated: res.Truncated,
		Config:    res.Config,
		Version:   s.version,
	}, nil
}

func (s *Session) clearChunksLocked() {
	if len(s.chunks) > 0 || s.store != nil {
		s.version++
	}
	s.chunks = nil
	s.truncated = false
	s.store = nil
}

func (s *Session) canAdvanceLocked() error {
	switch s.step {
	case StepUpload:
		if s.doc == nil {
			return ErrNoDocument
		}
	case StepChunk:
		if len(s.chunks) == 0 {
			return ErrNoChunks
		}
	case StepEmbed:
		if s.store.Len() == 0 {
			return ErrNoVectorStore
		}
	default:
		return ErrAtLastStep
	}
	return nil
}

// autoRunLocked chunks on entering step 2 and flags embedding on entering step 3.
func (s *Session) autoRunLocked(nav *Navigation) {
	switch s.step {
	case StepChunk:
		if s.doc != nil && len(s.chunks) == 0 {
			nav.Chunked, nav.ChunkErr = s.rechunkLocked()
		}
	case StepEmbed:
		nav.NeedsEmbedding = s.needsEmbeddingLocked()
	}
}

func (s *Session) needsEmbeddingLocked() bool {
	if len(s.chunks) == 0 || s.store.Len() > 0 {
		return false
	}
	return !(s.inFlight && s.inFlightVersion == s.version)
}

// settleLocked pulls the step back when an invalidation removed the data it depends on.
func (s *Session) settleLocked() {
	if s.step >= StepRetrieve && s.store.Len() == 0 {
		s.step = StepEmbed
	}
	if s.step >= StepEmbed && len(s.chunks) == 0 {
		s.step = StepChunk
	}
	if s.step >= StepChunk && s.doc == nil {
		s.step = StepUpload
	}
}

func (s *Session) releaseLocked(t Ticket) {
	if s.inFlight && s.inFlightVersion == t.Version {
		s.inFlight = false
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
}

// idleBefore reports whether the session was last touched before cutoff and
// has no embedding run in flight.
func (s *Session) idleBefore(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.inFlight && s.updatedAt.Before(cutoff)
}

func (s *Session) touchLocked() {
	s.updatedAt = s.now()
}
