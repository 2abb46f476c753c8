package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/finaccosolutions/vbastudio/internal/domain/projects"
)

type projectBody struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Artifact    string        `json:"artifact"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Messages    []messageBody `json:"messages,omitempty"`
}

type messageBody struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type summaryBody struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	MessageCount int64     `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toProjectBody(proj *projects.Project, msgs []projects.Message) projectBody {
	body := projectBody{
		ID:          proj.ID,
		Title:       proj.Title,
		Description: proj.Description,
		Artifact:    proj.Artifact,
		CreatedAt:   proj.CreatedAt,
		UpdatedAt:   proj.UpdatedAt,
	}
	for _, m := range msgs {
		body.Messages = append(body.Messages, messageBody{
			ID:        m.ID,
			Seq:       m.Seq,
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	return body
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	proj, err := s.projects.Create(r.Context(), userID(r.Context()), body.Title, body.Description)
	switch {
	case errors.Is(err, projects.ErrEmptyTitle):
		writeError(w, http.StatusBadRequest, "empty_title", "title is required")
	case err != nil:
		s.internalError(w, "create project", err)
	default:
		writeJSON(w, http.StatusCreated, toProjectBody(proj, nil))
	}
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.projects.List(r.Context(), userID(r.Context()))
	if err != nil {
		s.internalError(w, "list projects", err)
		return
	}

	out := make([]summaryBody, 0, len(summaries))
	for _, sum := range summaries {
		out = append(out, summaryBody{
			ID:           sum.ID,
			Title:        sum.Title,
			Description:  sum.Description,
			MessageCount: sum.MessageCount,
			UpdatedAt:    sum.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	uid := userID(r.Context())
	id := chi.URLParam(r, "id")

	proj, err := s.projects.Get(r.Context(), uid, id)
	if err != nil {
		s.projectError(w, "get project", err)
		return
	}
	msgs, err := s.projects.Transcript(r.Context(), uid, id)
	if err != nil {
		s.projectError(w, "get transcript", err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectBody(proj, msgs))
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	err := s.projects.Delete(r.Context(), userID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.projectError(w, "delete project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAppendMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	msg, err := s.projects.AppendMessage(r.Context(),
		userID(r.Context()), chi.URLParam(r, "id"), body.Role, body.Content)
	switch {
	case errors.Is(err, projects.ErrEmptyContent):
		writeError(w, http.StatusBadRequest, "empty_content", "content is required")
	case errors.Is(err, projects.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, "invalid_role", "role must be user or assistant")
	case err != nil:
		s.projectError(w, "append message", err)
	default:
		writeJSON(w, http.StatusCreated, messageBody{
			ID:        msg.ID,
			Seq:       msg.Seq,
			Role:      msg.Role,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		})
	}
}

func (s *Server) handleSetArtifact(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Artifact string `json:"artifact"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	err := s.projects.SetArtifact(r.Context(),
		userID(r.Context()), chi.URLParam(r, "id"), body.Artifact)
	if err != nil {
		s.projectError(w, "set artifact", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) projectError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, projects.ErrNotFound) {
		writeError(w, http.StatusNotFound, "project_not_found", "project not found")
		return
	}
	s.internalError(w, op, err)
}
