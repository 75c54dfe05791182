package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/ohss-collector/internal/model"
	"github.com/sells-group/ohss-collector/internal/normalize"
	"github.com/sells-group/ohss-collector/internal/store"
)

type healthResponse struct {
	Status    string               `json:"status"`
	Timestamp time.Time            `json:"timestamp"`
	Database  databaseHealth       `json:"database"`
	Sources   []model.HealthRecord `json:"sources,omitempty"`
}

type databaseHealth struct {
	Connected bool   `json:"connected"`
	Message   string `json:"message,omitempty"`
}

type listResponse[T any] struct {
	Count int `json:"count"`
	Data  []T `json:"data"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", Timestamp: s.now().UTC()}

	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	if err := s.reader.Ping(ctx); err != nil {
		resp.Status = "unhealthy"
		resp.Database.Message = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Database = databaseHealth{Connected: true, Message: "connected"}

	// Source health is best effort; a failed lookup still reports the
	// database as reachable.
	sources, err := s.reader.LatestHealth(ctx)
	if err != nil {
		zap.L().Warn("api: latest health", zap.Error(err))
	} else {
		resp.Sources = sources
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleArrests(w http.ResponseWriter, r *http.Request) {
	serveList(w, r, "arrests", s.reader.ListArrests)
}

func (s *Server) handleDetentions(w http.ResponseWriter, r *http.Request) {
	serveList(w, r, "detentions", s.reader.ListDetentions)
}

func (s *Server) handleRemovals(w http.ResponseWriter, r *http.Request) {
	serveList(w, r, "removals", s.reader.ListRemovals)
}

func serveList[T any](w http.ResponseWriter, r *http.Request, name string, list func(context.Context, store.RecordFilter) ([]T, error)) {
	f, err := recordFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	rows, err := list(ctx, f)
	if err != nil {
		zap.L().Error("api: list failed", zap.String("resource", name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to query " + name, Detail: err.Error()})
		return
	}
	if rows == nil {
		rows = []T{}
	}
	writeJSON(w, http.StatusOK, listResponse[T]{Count: len(rows), Data: rows})
}

func (s *Server) handleNationalAggregate(w http.ResponseWriter, r *http.Request) {
	s.serveAggregate(w, r, "")
}

func (s *Server) handleStateAggregate(w http.ResponseWriter, r *http.Request) {
	code := normalize.StateCode(model.String(chi.URLParam(r, "state")))
	if code == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "state is required"})
		return
	}
	s.serveAggregate(w, r, *code)
}

func (s *Server) serveAggregate(w http.ResponseWriter, r *http.Request, state string) {
	start, end, err := window(r, s.now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	agg, err := s.reader.Aggregate(ctx, state, start, end)
	if err != nil {
		zap.L().Error("api: aggregate failed", zap.String("state", state), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to aggregate", Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}
