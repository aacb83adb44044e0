package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bull/rag-studio/internal/apperr"
	"github.com/bull/rag-studio/internal/chunker"
	"github.com/bull/rag-studio/internal/extract"
	"github.com/bull/rag-studio/internal/github"
	"github.com/bull/rag-studio/internal/metrics"
	"github.com/bull/rag-studio/internal/session"
)

// StepResult reports a session mutation and any auto-run it triggered.
type StepResult struct {
	Session    session.Status        `json:"session"`
	Navigation *session.Navigation   `json:"navigation,omitempty"`
	Chunked    *session.ChunkOutcome `json:"chunked,omitempty"`
	Embedded   bool                  `json:"embedded"`
	// AutoRunError is a failed automatic chunking or embedding run.
	// The mutation itself succeeded.
	AutoRunError string `json:"autoRunError,omitempty"`
	Warning      string `json:"warning,omitempty"`
}

// CreateSession starts a new session.
func (p *Pipeline) CreateSession() (session.Status, error) {
	s, err := p.sessions.Create()
	if err != nil {
		return session.Status{}, err
	}
	p.metrics.SetSessions(p.sessions.Len())
	p.logger.Info("session created", zap.String("session_id", s.ID()))
	return s.Status(), nil
}

// ListSessions returns every live session, oldest first.
func (p *Pipeline) ListSessions() []session.Status {
	return p.sessions.List()
}

// SessionStatus returns the status of one session.
func (p *Pipeline) SessionStatus(id string) (session.Status, error) {
	s, err := p.sessions.Get(id)
	if err != nil {
		return session.Status{}, err
	}
	return s.Status(), nil
}

// DeleteSession drops a session.
func (p *Pipeline) DeleteSession(id string) error {
	if err := p.sessions.Delete(id); err != nil {
		return err
	}
	p.metrics.SetSessions(p.sessions.Len())
	p.logger.Info("session deleted", zap.String("session_id", id))
	return nil
}

// ResetSession clears a session back to step 1 with default config.
func (p *Pipeline) ResetSession(id string) (session.Status, error) {
	s, err := p.sessions.Get(id)
	if err != nil {
		return session.Status{}, err
	}
	s.Reset()
	return s.Status(), nil
}

// LoadDocument extracts an upload and makes it the session's Document.
func (p *Pipeline) LoadDocument(ctx context.Context, requestKey, id string, up extract.Upload) (*StepResult, error) {
	s, err := p.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	doc, err := p.extractor.Extract(ctx, up)
	if err != nil {
		return nil, err
	}
	return p.setDocument(ctx, requestKey, s, doc)
}

// LoadGitHubDocument fetches a repository file and makes it the session's Document.
func (p *Pipeline) LoadGitHubDocument(ctx context.Context, requestKey, id string, src github.Source) (*StepResult, error) {
	if p.fetcher == nil {
		return nil, apperr.New(apperr.KindUpstream, "loading documents from GitHub is not configured")
	}
	s, err := p.sessions.Get(id)
	if err != nil {
		return nil, err
	}

	fetched, err := p.fetcher.FetchDoc(ctx, src)
	if err != nil {
		return nil, err
	}
	doc, err := p.extractor.FromText(fetched.Name, fetched.Content)
	if err != nil {
		return nil, err
	}

	p.logger.Info("loaded document from github",
		zap.String("session_id", id),
		zap.String("url", fetched.URL),
		zap.String("sha", fetched.SHA),
	)
	return p.setDocument(ctx, requestKey, s, doc)
}

// LoadText makes raw text the session's Document.
func (p *Pipeline) LoadText(ctx context.Context, requestKey, id, name, text string) (*StepResult, error) {
	s, err := p.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	doc, err := p.extractor.FromText(name, text)
	if err != nil {
		return nil, err
	}
	return p.setDocument(ctx, requestKey, s, doc)
}

func (p *Pipeline) setDocument(ctx context.Context, requestKey string, s *session.Session, doc *extract.Document) (*StepResult, error) {
	outcome, err := s.SetDocument(doc)
	if err != nil {
		return nil, err
	}

	res := &StepResult{Chunked: outcome}
	p.recordChunked(s, outcome, res)
	p.settle(ctx, requestKey, s, res)

	p.logger.Info("document loaded",
		zap.String("session_id", s.ID()),
		zap.String("file", doc.Name),
		zap.Int64("bytes", doc.Size),
	)
	return res, nil
}

// Configure stores a new chunk config, re-chunking a loaded Document.
func (p *Pipeline) Configure(ctx context.Context, requestKey, id string, cfg chunker.Config) (*StepResult, error) {
	s, err := p.sessions.Get(id)
	if err != nil {
		return nil, err
	}

	_, outcome, err := s.Configure(cfg)
	if err != nil {
		return nil, err
	}

	res := &StepResult{Chunked: outcome}
	p.recordChunked(s, outcome, res)
	p.settle(ctx, requestKey, s, res)
	return res, nil
}

// Rechunk rebuilds the session's chunks from its Document.
func (p *Pipeline) Rechunk(ctx context.Context, requestKey, id string) (*StepResult, error) {
	s, err := p.sessions.Get(id)
	if err != nil {
		return nil, err
	}

	outcome, err := s.Rechunk()
	if err != nil {
		return nil, err
	}

	res := &StepResult{Chunked: outcome}
	p.recordChunked(s, outcome, res)
	p.settle(ctx, requestKey, s, res)
	return res, nil
}

// EmbedSession embeds the session's current chunks and installs the Vector Store.
// A failure keeps the previous Vector Store.
func (p *Pipeline) EmbedSession(ctx context.Context, requestKey, id string) (*StepResult, error) {
	s, err := p.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	if err := p.embedSession(ctx, requestKey, s); err != nil {
		return nil, err
	}
	return &StepResult{Session: s.Status(), Embedded: true}, nil
}

// Next advances the session one step, running chunking or embedding on entry as needed.
func (p *Pipeline) Next(ctx context.Context, requestKey, id string) (*StepResult, error) {
	return p.navigate(ctx, requestKey, id, (*session.Session).Next)
}

// Back moves the session one step back.
func (p *Pipeline) Back(ctx context.Context, requestKey, id string) (*StepResult, error) {
	return p.navigate(ctx, requestKey, id, (*session.Session).Back)
}

// JumpTo moves the session to an earlier or current step, discarding that step's state.
func (p *Pipeline) JumpTo(ctx context.Context, requestKey, id string, step session.Step) (*StepResult, error) {
	return p.navigate(ctx, requestKey, id, func(s *session.Session) (*session.Navigation, error) {
		return s.JumpTo(step)
	})
}

func (p *Pipeline) navigate(ctx context.Context, requestKey, id string, move func(*session.Session) (*session.Navigation, error)) (*StepResult, error) {
	s, err := p.sessions.Get(id)
	if err != nil {
		return nil, err
	}

	nav, err := move(s)
	if err != nil {
		return nil, err
	}

	res := &StepResult{Navigation: nav, Chunked: nav.Chunked}
	if nav.ChunkErr != nil {
		res.AutoRunError = apperr.Message(nav.ChunkErr)
	}
	p.recordChunked(s, nav.Chunked, res)
	p.settle(ctx, requestKey, s, res)

	p.logger.Debug("session navigated",
		zap.String("session_id", id),
		zap.Stringer("from", nav.From),
		zap.Stringer("to", nav.To),
	)
	return res, nil
}

// Ask answers a question against the session's Vector Store. k <= 0 uses the default.
func (p *Pipeline) Ask(ctx context.Context, requestKey, id, query string, k int) (*AskResult, error) {
	s, err := p.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	store := s.Store()
	if store.Len() == 0 {
		return nil, session.ErrNoVectorStore
	}
	apiKey, err := p.credentials.Resolve(requestKey)
	if err != nil {
		return nil, err
	}
	return p.ask(ctx, apiKey, store, query, k)
}

// Search ranks the session's chunks against query without answering. k <= 0 uses the default.
func (p *Pipeline) Search(ctx context.Context, requestKey, id, query string, k int) ([]Hit, error) {
	s, err := p.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	store := s.Store()
	if store.Len() == 0 {
		return nil, session.ErrNoVectorStore
	}
	apiKey, err := p.credentials.Resolve(requestKey)
	if err != nil {
		return nil, err
	}
	hits, _, err := p.search(ctx, apiKey, store, query, k)
	return hits, err
}

// SessionKeywords suggests queries from the session's chunks.
func (p *Pipeline) SessionKeywords(id string) ([]string, error) {
	s, err := p.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	return p.keywords.Extract(s.Chunks()), nil
}

// Export returns a full snapshot of a session.
func (p *Pipeline) Export(id string) (session.Export, error) {
	s, err := p.sessions.Get(id)
	if err != nil {
		return session.Export{}, err
	}
	return s.Export(), nil
}

// embedSession runs one versioned embedding cycle without holding the session lock
// across the upstream call.
func (p *Pipeline) embedSession(ctx context.Context, requestKey string, s *session.Session) error {
	apiKey, err := p.credentials.Resolve(requestKey)
	if err != nil {
		return err
	}

	ticket, err := s.BeginEmbed()
	if err != nil {
		return err
	}

	vectors, err := p.embedder.GenerateEmbeddings(ctx, apiKey, ticket.Chunks)
	if err != nil {
		s.AbortEmbed(ticket)
		p.metrics.RecordEmbedding(metrics.ResultError, len(ticket.Chunks))
		p.logger.Warn("session embedding failed",
			zap.String("session_id", s.ID()),
			zap.Uint64("version", ticket.Version),
			zap.Error(err),
		)
		return err
	}

	if _, err := s.CompleteEmbed(ticket, vectors); err != nil {
		if errors.Is(err, session.ErrStaleResult) {
			p.metrics.RecordEmbedding(metrics.ResultStale, len(ticket.Chunks))
			p.logger.Info("discarded stale embedding result",
				zap.String("session_id", s.ID()),
				zap.Uint64("version", ticket.Version),
			)
		} else {
			p.metrics.RecordEmbedding(metrics.ResultError, len(ticket.Chunks))
		}
		return err
	}

	p.metrics.RecordEmbedding(metrics.ResultOK, len(ticket.Chunks))
	p.logger.Info("session embedded",
		zap.String("session_id", s.ID()),
		zap.Uint64("version", ticket.Version),
		zap.Int("vectors", len(vectors)),
	)
	return nil
}

// settle runs the embedding auto-run when the session sits at step 3 without a
// Vector Store, then fills in the final status.
func (p *Pipeline) settle(ctx context.Context, requestKey string, s *session.Session, res *StepResult) {
	if s.Step() == session.StepEmbed && s.NeedsEmbedding() {
		if err := p.embedSession(ctx, requestKey, s); err != nil {
			res.AutoRunError = apperr.Message(err)
		} else {
			res.Embedded = true
		}
	}
	res.Session = s.Status()
}

func (p *Pipeline) recordChunked(s *session.Session, outcome *session.ChunkOutcome, res *StepResult) {
	if outcome == nil {
		return
	}
	p.metrics.RecordChunking(outcome.Count, outcome.Truncated)
	if outcome.Truncated {
		res.Warning = fmt.Sprintf("the chunk ceiling of %d was reached, remaining text was dropped", outcome.Count)
		p.logger.Warn("chunk ceiling reached",
			zap.String("session_id", s.ID()),
			zap.Int("chunks", outcome.Count),
		)
	}
}
