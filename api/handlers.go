/*
handlers.go - HTTP API handlers for the team agenda

PURPOSE:
  Exposes the agenda Service via REST API. Handles HTTP request/response
  and JSON serialization, and delegates every decision to the Service.

ENDPOINTS:
  Directory:
    GET    /api/employees                 List the directory
    GET    /api/employees/{number}        Look up one employee ("7" finds "007")
    GET    /api/teams                     Distinct team names

  Reservations:
    GET    /api/reservations              Snapshot, optionally ?date=
    POST   /api/reservations              Admit one reservation
    GET    /api/days/{date}               Who is out on a day
    GET    /api/days/{date}/preview       Would ?employee= be admitted

  Views:
    GET    /api/calendar                  Month grid (?year&month&team&full_only)
    GET    /api/reports/monthly           Team report (?year&month&format)

  Admin (X-Admin-Password):
    POST   /api/admin/import/reservations Bulk load history (?mode&format)
    POST   /api/admin/import/employees    Bulk load directory (?mode&format)
    GET    /api/admin/diagnostics         Table overview

ERROR HANDLING:
  Errors are returned as JSON with a stable code:
  - 400: invalid_date, unknown_kind, schema_mismatch, unsupported_format
  - 404: employee_not_found
  - 409: day_full, team_conflict, race_detected
  - 503: storage_unavailable
  race_detected means the row WAS written; the response carries it.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - agenda/service.go: Business operations
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/warp/agenda/agenda"
	"github.com/warp/agenda/generic"
	"github.com/warp/agenda/logger"
	"github.com/warp/agenda/tabular"
)

// MaxUploadBytes caps import request bodies.
const MaxUploadBytes = 10 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *agenda.Service

	log           logger.Logger
	clock         generic.Clock
	adminPassword string
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithAdminPassword enables the admin routes. Empty keeps them closed.
func WithAdminPassword(p string) HandlerOption {
	return func(h *Handler) { h.adminPassword = p }
}

// WithHandlerLogger sets the logger used for unexpected errors.
func WithHandlerLogger(l logger.Logger) HandlerOption {
	return func(h *Handler) { h.log = l }
}

// WithHandlerClock sets the clock used for default report months.
func WithHandlerClock(c generic.Clock) HandlerOption {
	return func(h *Handler) { h.clock = c }
}

// NewHandler creates a new handler over svc.
func NewHandler(svc *agenda.Service, opts ...HandlerOption) *Handler {
	h := &Handler{
		Service: svc,
		log:     logger.Nop(),
		clock:   generic.SystemClock{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// DIRECTORY HANDLERS
// =============================================================================

// ListEmployees returns the directory in table order.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	emps, err := h.Service.Employees(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTOs(emps))
}

// GetEmployee resolves a number, alias included.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Service.Employee(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// ListTeams returns the distinct teams.
func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.Service.Teams(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if teams == nil {
		teams = []string{}
	}
	writeJSON(w, http.StatusOK, teams)
}

// =============================================================================
// RESERVATION HANDLERS
// =============================================================================

// ListReservations returns the snapshot, or one day of it with ?date=.
func (h *Handler) ListReservations(w http.ResponseWriter, r *http.Request) {
	if date := r.URL.Query().Get("date"); date != "" {
		view, err := h.Service.Day(r.Context(), date)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toReservationDTOs(view.Reservations))
		return
	}
	snap, err := h.Service.Reservations(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTOs(snap))
}

// CreateReservation admits one reservation.
func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req AdmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "invalid_body", err)
		return
	}
	if strings.TrimSpace(req.EmployeeNumber) == "" {
		writeError(w, http.StatusBadRequest, "employee_number is required", "invalid_body", nil)
		return
	}

	res, err := h.Service.Admit(r.Context(), agenda.AdmitRequest{
		EmployeeNumber: req.EmployeeNumber,
		Date:           req.Date,
		Kind:           req.Kind,
	})
	if err != nil {
		if generic.WasWritten(err) {
			dto := toReservationDTO(res)
			writeJSON(w, http.StatusConflict, ErrorResponse{
				Error:       err.Error(),
				Code:        agenda.OutcomeRaceDetected,
				Reservation: &dto,
			})
			return
		}
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReservationDTO(res))
}

// GetDay lists one day.
func (h *Handler) GetDay(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.Day(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDayDTO(view))
}

// PreviewDay answers whether ?employee= could book the day right now.
func (h *Handler) PreviewDay(w http.ResponseWriter, r *http.Request) {
	number := r.URL.Query().Get("employee")
	if strings.TrimSpace(number) == "" {
		writeError(w, http.StatusBadRequest, "employee query parameter is required", "invalid_query", nil)
		return
	}

	view, err := h.Service.Preview(r.Context(), number, chi.URLParam(r, "date"))
	if err != nil && !generic.IsConflict(err) {
		h.fail(w, r, err)
		return
	}
	dto := PreviewDTO{Allowed: err == nil, Outcome: agenda.Outcome(err), Day: toDayDTO(view)}
	if err != nil {
		dto.Message = err.Error()
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// VIEW HANDLERS
// =============================================================================

// GetCalendar renders the month grid.
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, month, ok := monthOf(h.clock.Now(), q.Get("year"), q.Get("month"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid year or month", "invalid_query", nil)
		return
	}
	fullOnly, _ := strconv.ParseBool(q.Get("full_only"))

	cal, err := h.Service.Calendar(r.Context(), agenda.CalendarQuery{
		Year:     year,
		Month:    month,
		Team:     strings.TrimSpace(q.Get("team")),
		FullOnly: fullOnly,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCalendarDTO(cal))
}

// GetMonthlyReport returns the report as JSON, or as a download for
// format=xlsx (all sheets) and format=csv (team summary).
func (h *Handler) GetMonthlyReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, month, ok := monthOf(h.clock.Now(), q.Get("year"), q.Get("month"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid year or month", "invalid_query", nil)
		return
	}
	format := tabular.FormatJSON
	if f := q.Get("format"); f != "" {
		var err error
		if format, err = tabular.ParseFormat(f); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	rep, err := h.Service.MonthlyReport(r.Context(), year, month)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	switch format {
	case tabular.FormatJSON:
		writeJSON(w, http.StatusOK, toMonthlyReportDTO(rep))
	case tabular.FormatXLSX:
		attachment(w, format, rep.Filename("xlsx"))
		if err := tabular.WriteXLSX(w, rep.Sheets()); err != nil {
			h.log.Error(r.Context(), "write report", logger.Error(err))
		}
	case tabular.FormatCSV:
		attachment(w, format, rep.Filename("csv"))
		if err := tabular.WriteCSV(w, rep.TeamSheet()); err != nil {
			h.log.Error(r.Context(), "write report", logger.Error(err))
		}
	default:
		h.fail(w, r, fmt.Errorf("%w: %s reports", tabular.ErrUnsupportedFormat, format))
	}
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ImportReservations loads a history file into the agenda table.
func (h *Handler) ImportReservations(w http.ResponseWriter, r *http.Request) {
	frame, mode, ok := h.readImport(w, r)
	if !ok {
		return
	}
	result, err := h.Service.ImportReservations(r.Context(), frame, mode)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ImportEmployees loads a directory file into the employees table.
func (h *Handler) ImportEmployees(w http.ResponseWriter, r *http.Request) {
	frame, mode, ok := h.readImport(w, r)
	if !ok {
		return
	}
	result, err := h.Service.ImportEmployees(r.Context(), frame, mode)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Diagnostics shows both tables without the cache.
func (h *Handler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	d, err := h.Service.Diagnostics(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDiagnosticsDTO(d))
}

// readImport decodes the uploaded file. The body is either the raw file
// or a multipart form with a "file" field. The format comes from ?format=,
// then from the uploaded file name, then from ?filename=.
func (h *Handler) readImport(w http.ResponseWriter, r *http.Request) (tabular.Frame, agenda.ImportMode, bool) {
	q := r.URL.Query()
	mode, err := agenda.ParseImportMode(q.Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid import mode", "invalid_query", err)
		return tabular.Frame{}, "", false
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	body, filename := io.Reader(r.Body), q.Get("filename")
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Missing upload", "invalid_body", err)
			return tabular.Frame{}, "", false
		}
		defer file.Close()
		body, filename = file, header.Filename
	}

	var format tabular.Format
	if f := q.Get("format"); f != "" {
		format, err = tabular.ParseFormat(f)
	} else {
		format, err = tabular.FormatFromFilename(filename)
	}
	if err != nil {
		h.fail(w, r, err)
		return tabular.Frame{}, "", false
	}

	frame, err := tabular.Decode(body, format)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload too large", "too_large", nil)
			return tabular.Frame{}, "", false
		}
		writeError(w, http.StatusBadRequest, "Could not read upload", "invalid_body", err)
		return tabular.Frame{}, "", false
	}
	return frame, mode, true
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, code string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func attachment(w http.ResponseWriter, f tabular.Format, filename string) {
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
}

// fail maps a domain error to its status and code.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var missing *generic.SchemaMismatchError
	switch {
	case errors.As(err, &missing):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "schema_mismatch", Details: missing.Missing})
	case errors.Is(err, tabular.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, err.Error(), "unsupported_format", nil)
	case generic.IsClientError(err), generic.IsConflict(err),
		errors.Is(err, generic.ErrEmployeeNotFound):
		writeError(w, statusOf(err), err.Error(), agenda.Outcome(err), nil)
	case errors.Is(err, generic.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Storage unavailable, try again", agenda.OutcomeUnavailable, err)
	default:
		h.log.Error(r.Context(), "unhandled error", logger.String("path", r.URL.Path), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error", "internal", err)
	}
}

func statusOf(err error) int {
	switch {
	case generic.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, generic.ErrEmployeeNotFound):
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	return n, err == nil
}
