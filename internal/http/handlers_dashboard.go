package http

import (
	"bytes"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"expensebook/internal/core"
	"expensebook/internal/export"
	applog "expensebook/internal/log"
)

type summaryResponse struct {
	Total      core.Money            `json:"total"`
	Categories map[string]core.Money `json:"categories"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := summaryResponse{
		Total:      s.ledger.TotalAmount(),
		Categories: s.ledger.CategoriesReport(),
	}
	s.mu.Unlock()

	NewJSONResponse().JSON(resp).Write(w)
}

func (s *Server) handleBudgetAlerts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	alerts := s.ledger.BudgetAlerts()
	s.mu.Unlock()

	NewJSONResponse().JSON(nonNil(alerts)).Write(w)
}

// handleBudgetCheck previews the warning an add of amount to category
// would raise. A null warning means the add would go through unconfirmed.
func (s *Server) handleBudgetCheck(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := sanitizeInput(q.Get("category"))
	if category == "" {
		UnprocessableEntityError(core.ErrEmptyCategory.Error()).Write(w)
		return
	}
	amount, err := core.ParseMoney(q.Get("amount"))
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	s.mu.Lock()
	warning := s.ledger.CheckBudgetOnAdd(category, amount)
	s.mu.Unlock()

	NewJSONResponse().JSON(map[string]any{"warning": warning}).Write(w)
}

// handleMonthlyReport defaults to the current month. month is 1-based and
// out-of-range values roll over into neighbouring years.
func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	params := ParseMonthParams(r.URL.Query(), s.now())

	s.mu.Lock()
	report := s.ledger.MonthlyReport(params.Year, params.Month)
	s.mu.Unlock()

	NewJSONResponse().JSON(report).Write(w)
}

func (s *Server) handleWeeklyReport(w http.ResponseWriter, r *http.Request) {
	date := core.DateOf(s.now())
	if v := strings.TrimSpace(r.URL.Query().Get("date")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			BadRequestError("date must be YYYY-MM-DD").Write(w)
			return
		}
		date = d
	}

	s.mu.Lock()
	report := s.ledger.WeeklyReport(date)
	s.mu.Unlock()

	NewJSONResponse().JSON(report).Write(w)
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	months := 0
	if v := strings.TrimSpace(r.URL.Query().Get("months")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n > 120 {
			BadRequestError("months must be an integer up to 120").Write(w)
			return
		}
		months = n
	}

	s.mu.Lock()
	points := s.ledger.SpendingTrends(months)
	s.mu.Unlock()

	NewJSONResponse().JSON(points).Write(w)
}

type exportFormat struct {
	contentType string
	write       func(io.Writer, []core.Transaction) error
}

var exportFormats = map[string]exportFormat{
	".json": {export.ContentTypeJSON, export.WriteJSON},
	".csv":  {export.ContentTypeCSV, export.WriteCSV},
	".xlsx": {export.ContentTypeXLSX, export.WriteXLSX},
}

// handleExport renders the transaction log in the format named by the
// path extension. The body is buffered so a failed render still yields a
// clean 500.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	name := path.Base(r.URL.Path)
	format, ok := exportFormats[path.Ext(name)]
	if !ok {
		NotFoundError("unknown export format").Write(w)
		return
	}

	s.mu.Lock()
	txs := s.ledger.TransactionLog()
	s.mu.Unlock()

	var buf bytes.Buffer
	if err := format.write(&buf, txs); err != nil {
		s.logFailure(r, "Export failed", err, applog.OpExport)
		InternalServerError("export failed: " + err.Error()).Write(w)
		return
	}

	w.Header().Set("Content-Type", format.contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
