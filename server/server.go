// server exposes the database over a JSON HTTP API. It runs queries, records
// them in the query history and serves history and analytics.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Lava-10/queryCraft/db"
	"github.com/Lava-10/queryCraft/history"
	"github.com/Lava-10/queryCraft/trace"
)

type app struct {
	db      *db.DB
	history *history.Store
	logger  *slog.Logger
}

// New returns the API handler.
func New(d *db.DB, h *history.Store, logger *slog.Logger) http.Handler {
	a := &app{db: d, history: h, logger: logger}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/query", a.handleQuery)
	mux.HandleFunc("POST /api/query/pipeline", a.handlePipeline)
	mux.HandleFunc("GET /api/history", a.handleGetHistory)
	mux.HandleFunc("POST /api/history", a.handleAddHistory)
	mux.HandleFunc("PATCH /api/history/{id}/favorite", a.handleToggleFavorite)
	mux.HandleFunc("DELETE /api/history/{id}", a.handleDeleteHistory)
	mux.HandleFunc("GET /api/analytics", a.handleAnalytics)
	return a.withCORS(a.withLogging(mux))
}

type queryRequest struct {
	Query string `json:"query"`
	Args  []any  `json:"args"`
}

type queryResponse struct {
	Columns       []string `json:"columns"`
	Rows          [][]any  `json:"rows"`
	RowsAffected  int      `json:"rowsAffected"`
	ExecutionTime float64  `json:"executionTime"`
}

type errorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

func (a *app) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeQuery(w, r)
	if !ok {
		return
	}
	res, err := a.db.Run(req.Query, req.Args...)
	if err != nil {
		a.history.Add(req.Query, 0, err)
		resp := errorResponse{Error: err.Error()}
		var pe *db.PipelineError
		if errors.As(err, &pe) {
			resp.Stage = string(pe.Stage)
			resp.Error = pe.Err.Error()
		}
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}
	a.history.Add(req.Query, res.Duration, nil)
	rows := make([][]any, 0, len(res.Rows))
	for _, row := range res.Rows {
		vs := make([]any, 0, len(row))
		for _, v := range row {
			vs = append(vs, v.Any())
		}
		rows = append(rows, vs)
	}
	columns := res.Columns
	if columns == nil {
		columns = []string{}
	}
	writeJSON(w, http.StatusOK, queryResponse{
		Columns:       columns,
		Rows:          rows,
		RowsAffected:  res.RowsAffected,
		ExecutionTime: millis(res.Duration),
	})
}

func (a *app) handlePipeline(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeQuery(w, r)
	if !ok {
		return
	}
	b, err := trace.Marshal(trace.Run(a.db, req.Query, req.Args...))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// decodeQuery reads a query request. Numbers in args keep their integer form
// so they bind to INTEGER placeholders.
func (a *app) decodeQuery(w http.ResponseWriter, r *http.Request) (*queryRequest, bool) {
	req := &queryRequest{}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON"})
		return nil, false
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query is required"})
		return nil, false
	}
	for i, arg := range req.Args {
		n, ok := arg.(json.Number)
		if !ok {
			continue
		}
		if iv, err := n.Int64(); err == nil {
			req.Args[i] = iv
			continue
		}
		fv, err := n.Float64()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid number %s", n)})
			return nil, false
		}
		req.Args[i] = fv
	}
	return req, true
}

type entryResponse struct {
	ID            string    `json:"id"`
	Query         string    `json:"query"`
	Kind          string    `json:"kind"`
	ExecutionTime float64   `json:"executionTime"`
	Timestamp     time.Time `json:"timestamp"`
	IsFavorite    bool      `json:"isFavorite"`
	Error         string    `json:"error,omitempty"`
}

func toEntryResponse(e history.Entry) entryResponse {
	return entryResponse{
		ID:            e.ID.String(),
		Query:         e.Query,
		Kind:          string(e.Kind),
		ExecutionTime: millis(e.ExecutionTime),
		Timestamp:     e.Timestamp,
		IsFavorite:    e.Favorite,
		Error:         e.Error,
	}
}

func (a *app) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	entries := a.history.List()
	resp := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

type addHistoryRequest struct {
	Query string `json:"query"`
	// ExecutionTime is in milliseconds.
	ExecutionTime float64 `json:"executionTime"`
}

func (a *app) handleAddHistory(w http.ResponseWriter, r *http.Request) {
	var req addHistoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON"})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query is required"})
		return
	}
	d := time.Duration(req.ExecutionTime * float64(time.Millisecond))
	e := a.history.Add(req.Query, d, nil)
	writeJSON(w, http.StatusCreated, map[string]string{"id": e.ID.String()})
}

func (a *app) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	e, err := a.history.ToggleFavorite(id)
	if err != nil {
		writeHistoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true, "isFavorite": e.Favorite})
}

func (a *app) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := a.history.Delete(id); err != nil {
		writeHistoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func writeHistoryError(w http.ResponseWriter, err error) {
	if errors.Is(err, history.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

type slowQuery struct {
	Query         string    `json:"query"`
	ExecutionTime float64   `json:"executionTime"`
	Timestamp     time.Time `json:"timestamp"`
}

type queryType struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type performanceTrend struct {
	Date       string  `json:"date"`
	AvgTime    float64 `json:"avgTime"`
	QueryCount int     `json:"queryCount"`
}

type analyticsResponse struct {
	TotalQueries         int                `json:"totalQueries"`
	AverageExecutionTime float64            `json:"averageExecutionTime"`
	SlowestQueries       []slowQuery        `json:"slowestQueries"`
	QueryTypes           []queryType        `json:"queryTypes"`
	PerformanceTrends    []performanceTrend `json:"performanceTrends"`
}

func (a *app) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	an := a.history.Analytics(time.Now())
	resp := analyticsResponse{
		TotalQueries:         an.TotalQueries,
		AverageExecutionTime: millis(an.AverageExecutionTime),
		SlowestQueries:       []slowQuery{},
		QueryTypes:           []queryType{},
		PerformanceTrends:    []performanceTrend{},
	}
	for _, e := range an.SlowestQueries {
		resp.SlowestQueries = append(resp.SlowestQueries, slowQuery{
			Query:         e.Query,
			ExecutionTime: millis(e.ExecutionTime),
			Timestamp:     e.Timestamp,
		})
	}
	for _, k := range an.QueryTypes {
		resp.QueryTypes = append(resp.QueryTypes, queryType{Type: string(k.Kind), Count: k.Count})
	}
	for _, t := range an.PerformanceTrends {
		resp.PerformanceTrends = append(resp.PerformanceTrends, performanceTrend{
			Date:       t.Date,
			AvgTime:    millis(t.AverageExecutionTime),
			QueryCount: t.QueryCount,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (a *app) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.logger.Info(
			"request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// withCORS allows the browser frontend to call the API from another origin.
func (a *app) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
