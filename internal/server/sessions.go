package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bull/rag-studio/internal/chunker"
	"github.com/bull/rag-studio/internal/github"
	"github.com/bull/rag-studio/internal/session"
)

// ConfigRequest is the body of PUT /sessions/:id/config.
type ConfigRequest struct {
	ChunkSize json.RawMessage `json:"chunkSize"`
	Overlap   json.RawMessage `json:"overlap"`
}

// TextRequest is the body of POST /sessions/:id/document/text.
type TextRequest struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// JumpRequest is the body of POST /sessions/:id/jump.
type JumpRequest struct {
	Step int `json:"step"`
}

// AskRequest is the body of POST /sessions/:id/ask. TopK <= 0 uses the default.
type AskRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"topK"`
}

// SessionsResponse lists live sessions.
type SessionsResponse struct {
	Sessions []session.Status `json:"sessions"`
	Count    int              `json:"count"`
}

func (s *Server) handleCreateSession(c echo.Context) error {
	st, err := s.pipeline.CreateSession()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, st)
}

func (s *Server) handleListSessions(c echo.Context) error {
	list := s.pipeline.ListSessions()
	return c.JSON(http.StatusOK, SessionsResponse{Sessions: list, Count: len(list)})
}

func (s *Server) handleGetSession(c echo.Context) error {
	st, err := s.pipeline.SessionStatus(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	if err := s.pipeline.DeleteSession(c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleResetSession(c echo.Context) error {
	st, err := s.pipeline.ResetSession(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) handleSessionDocument(c echo.Context) error {
	up, err := s.readUpload(c)
	if err != nil {
		return err
	}
	res, err := s.pipeline.LoadDocument(c.Request().Context(), requestKey(c), c.Param("id"), up)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleSessionGitHubDocument(c echo.Context) error {
	var src github.Source
	if err := bind(c, &src); err != nil {
		return err
	}
	res, err := s.pipeline.LoadGitHubDocument(c.Request().Context(), requestKey(c), c.Param("id"), src)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleSessionText(c echo.Context) error {
	var req TextRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	name := req.Name
	if name == "" {
		name = "document.txt"
	}
	res, err := s.pipeline.LoadText(c.Request().Context(), requestKey(c), c.Param("id"), name, req.Text)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleSessionConfig(c echo.Context) error {
	var req ConfigRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	// Absent fields keep the session's current values.
	st, err := s.pipeline.SessionStatus(c.Param("id"))
	if err != nil {
		return err
	}
	cfg := chunker.Config{
		ChunkSize: intParam(req.ChunkSize, st.ChunkConfig.ChunkSize),
		Overlap:   intParam(req.Overlap, st.ChunkConfig.Overlap),
	}
	res, err := s.pipeline.Configure(c.Request().Context(), requestKey(c), c.Param("id"), cfg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleSessionRechunk(c echo.Context) error {
	res, err := s.pipeline.Rechunk(c.Request().Context(), requestKey(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleSessionEmbed(c echo.Context) error {
	res, err := s.pipeline.EmbedSession(c.Request().Context(), requestKey(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleSessionNext(c echo.Context) error {
	res, err := s.pipeline.Next(c.Request().Context(), requestKey(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleSessionBack(c echo.Context) error {
	res, err := s.pipeline.Back(c.Request().Context(), requestKey(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleSessionJump(c echo.Context) error {
	var req JumpRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := s.pipeline.JumpTo(c.Request().Context(), requestKey(c), c.Param("id"), session.Step(req.Step))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleSessionAsk(c echo.Context) error {
	var req AskRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := s.pipeline.Ask(c.Request().Context(), requestKey(c), c.Param("id"), req.Query, req.TopK)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleSessionKeywords(c echo.Context) error {
	words, err := s.pipeline.SessionKeywords(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, KeywordsResponse{Keywords: words})
}

// handleSessionExport serves the session snapshot as a downloadable JSON file.
func (s *Server) handleSessionExport(c echo.Context) error {
	exp, err := s.pipeline.Export(c.Param("id"))
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", exportFilename(exp.ExportedAt)))
	return c.JSON(http.StatusOK, exp)
}

func exportFilename(at time.Time) string {
	return "rag-session-" + at.UTC().Format(time.RFC3339) + ".json"
}
