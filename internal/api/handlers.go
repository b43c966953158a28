package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/readiness-engine/internal/engine"
	"github.com/sells-group/readiness-engine/internal/export"
	"github.com/sells-group/readiness-engine/internal/input"
	"github.com/sells-group/readiness-engine/internal/model"
	"github.com/sells-group/readiness-engine/internal/priority"
	"github.com/sells-group/readiness-engine/internal/scoring"
	"github.com/sells-group/readiness-engine/internal/store"
)

const (
	defaultListLimit   = 50
	defaultReplayLimit = 100
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Store().Ping(r.Context()); err != nil {
		zap.L().Warn("api: health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// assess accepts one company or a {"companies": [...]} list. A single
// company returns its assessment; a list runs as a batch.
func (s *Server) assess(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	companies, err := input.Parse(body, true)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if len(companies) == 0 {
		writeBadRequest(w, "no companies in request")
		return
	}

	reason := model.ReasonAssessmentCompleted
	if v := r.URL.Query().Get("reason"); v != "" {
		if reason, err = model.ParseSnapshotReason(v); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if len(companies) == 1 {
		a, err := s.engine.Assess(r.Context(), companies[0], reason)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
		return
	}

	res, err := s.engine.AssessBatch(r.Context(), companies, reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) runDrift(w http.ResponseWriter, r *http.Request) {
	var req engine.DriftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.PeriodStart.IsZero() && req.PeriodEnd.IsZero() {
		req.PeriodStart, req.PeriodEnd = engine.MonthPeriod(s.now())
	}
	if err := input.NormalizeTasks(req.Tasks); err != nil {
		writeError(w, r, err)
		return
	}

	out, err := s.engine.RunDrift(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if out.Skipped {
		status = http.StatusOK
	}
	writeJSON(w, status, out)
}

type priorityRequest struct {
	Tasks []model.Task `json:"tasks"`
}

func (s *Server) rankTasks(w http.ResponseWriter, r *http.Request) {
	var req priorityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if err := input.NormalizeTasks(req.Tasks); err != nil {
		writeError(w, r, err)
		return
	}
	ranked, err := priority.SortTasks(req.Tasks)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": ranked})
}

type statusRequest struct {
	Status model.ResolutionStatus `json:"status"`
}

func (s *Server) updateSignal(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.Status == "" {
		writeBadRequest(w, "status is required")
		return
	}
	sig, err := s.engine.UpdateSignalStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

func (s *Server) dlqCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.engine.Store().CountDLQ(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (s *Server) dlqReplay(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, defaultReplayLimit)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	res, err := s.engine.ReplayDeadLetters(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) listCompanies(w http.ResponseWriter, r *http.Request) {
	ids, err := s.engine.Store().ListCompanies(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"companies": ids})
}

func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, defaultListLimit)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	snaps, err := s.engine.Store().ListSnapshots(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if snaps == nil {
		snaps = []model.ValuationSnapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps})
}

func (s *Server) latestSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Store().LatestSnapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) signalsDisplay(w http.ResponseWriter, r *http.Request) {
	d, err := s.engine.SignalsDisplay(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) listDriftReports(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, defaultListLimit)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	reports, err := s.engine.Store().ListDriftReports(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if reports == nil {
		reports = []model.DriftReport{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"drift_reports": reports})
}

func (s *Server) getWeights(w http.ResponseWriter, r *http.Request) {
	weights, err := s.engine.ResolveWeights(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"weights": weights})
}

func (s *Server) putWeights(w http.ResponseWriter, r *http.Request) {
	var weights scoring.Weights
	if err := decodeJSON(r, &weights); err != nil {
		writeBadRequest(w, "invalid weights: "+err.Error())
		return
	}
	if err := weights.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := s.engine.Store().SetWeights(r.Context(), chi.URLParam(r, "id"), weights); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"weights": weights})
}

func (s *Server) exportWorkbook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	st := s.engine.Store()

	snaps, err := st.ListSnapshots(ctx, id, 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(snaps) == 0 {
		writeError(w, r, eris.Wrapf(store.ErrNotFound, "api: no snapshots for %s", id))
		return
	}
	reports, err := st.ListDriftReports(ctx, id, 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sigs, err := st.ListSignals(ctx, store.SignalFilter{CompanyID: id})
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, id))
	if err := export.Write(w, export.Data{Snapshots: snaps, Reports: reports, Signals: sigs}); err != nil {
		zap.L().Error("api: export workbook", zap.String("company_id", id), zap.Error(err))
	}
}
