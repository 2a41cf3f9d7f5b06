package task

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/workledger/workledger/internal/auth"
	"github.com/workledger/workledger/pkg/cerr"
)

// Server exposes the task operations over JSON. Handlers hand their result
// to the response receiver installed by cerr's middleware, which owns
// serialization and error mapping.
type Server struct {
	service *Service
}

func NewServer(service *Service) *Server {
	return &Server{service: service}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Post("/tasks", s.handleCreateTask)
	r.Get("/tasks", s.handleListTasks)
	r.Get("/tasks/{taskID}", s.handleGetTask)
	r.Get("/tasks/{taskID}/history", s.handleGetHistory)
	r.Put("/tasks/{taskID}/assignments", s.handleAssign)
	r.Put("/tasks/{taskID}/assignments/main", s.handleChangeMainAssignee)
	r.Post("/tasks/{taskID}/progress", s.handleUpdateProgress)
	r.Post("/tasks/{taskID}/tick", s.handleTickComplete)
	r.Post("/tasks/{taskID}/tick/revert", s.handleRevertTick)
	r.Post("/tasks/{taskID}/status", s.handleTransitionStatus)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := auth.PrincipalFromContext(ctx)
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	rec, err := s.service.CreateTask(ctx, p, req)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponseStatus(ctx, http.StatusCreated, rec)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := auth.PrincipalFromContext(ctx)
	q := r.URL.Query()
	filter := Filter{
		AssigneeID: q.Get("assignee_id"),
		Status:     StatusName(q.Get("status")),
		Priority:   Priority(q.Get("priority")),
		Search:     q.Get("search"),
	}
	summaries, err := s.service.ListTasks(ctx, p, filter)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"tasks": summaries})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := auth.PrincipalFromContext(ctx)
	detail, err := s.service.GetTaskDetail(ctx, p, chi.URLParam(r, "taskID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, detail)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := auth.PrincipalFromContext(ctx)
	histories, err := s.service.QueryHistory(ctx, p, chi.URLParam(r, "taskID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"histories": histories})
}

type assignRequest struct {
	UserIDs        []string `json:"user_ids"`
	MainAssigneeID string   `json:"main_assignee_id"`
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := auth.PrincipalFromContext(ctx)
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	rec, err := s.service.Assign(ctx, p, chi.URLParam(r, "taskID"), req.UserIDs, req.MainAssigneeID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, rec)
}

type changeMainRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleChangeMainAssignee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := auth.PrincipalFromContext(ctx)
	var req changeMainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	rec, err := s.service.ChangeMainAssignee(ctx, p, chi.URLParam(r, "taskID"), req.UserID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, rec)
}

type updateProgressRequest struct {
	PercentageComplete   int    `json:"percentage_complete"`
	MilestoneDescription string `json:"milestone_description"`
}

func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := auth.PrincipalFromContext(ctx)
	var req updateProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	rec, err := s.service.UpdateProgress(ctx, p, chi.URLParam(r, "taskID"),
		req.PercentageComplete, req.MilestoneDescription)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, rec)
}

func (s *Server) handleTickComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := auth.PrincipalFromContext(ctx)
	rec, err := s.service.TickComplete(ctx, p, chi.URLParam(r, "taskID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, rec)
}

func (s *Server) handleRevertTick(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := auth.PrincipalFromContext(ctx)
	rec, err := s.service.RevertTick(ctx, p, chi.URLParam(r, "taskID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, rec)
}

type transitionRequest struct {
	Status      StatusName `json:"status"`
	Description string     `json:"description"`
}

func (s *Server) handleTransitionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := auth.PrincipalFromContext(ctx)
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	rec, err := s.service.TransitionStatus(ctx, p, chi.URLParam(r, "taskID"), req.Status, req.Description)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, rec)
}
