package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"moneytrack/internal/budget"
	"moneytrack/internal/config"
	"moneytrack/internal/core"
	"moneytrack/internal/dashboard"
	"moneytrack/internal/ledger"
	"moneytrack/internal/log"
	"moneytrack/internal/ports"
)

const themeCookie = "theme"

var templateFuncs = template.FuncMap{
	"title": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
}

type recordView struct {
	ID          string
	Description string
	Amount      string
	AmountInput string
	Type        string
}

type chartData struct {
	Labels  []string  `json:"labels"`
	Income  []float64 `json:"income"`
	Expense []float64 `json:"expense"`
}

// dashboardView is the data of the "dashboard" and "records" templates.
type dashboardView struct {
	Records       []recordView
	Count         int
	Search        string
	Income        string
	Expense       string
	Balance       string
	Trend         ledger.Trend
	BudgetLimit   string
	BudgetEnabled bool
	OverBudget    bool
	Chart         string
	Advisories    []string
	OOB           bool
}

type pageView struct {
	Theme           string
	NextTheme       string
	WidgetScriptURL string
	Dashboard       dashboardView
}

func newDashboardView(ctx context.Context, snap dashboard.Snapshot, advisories []budget.Advisory) dashboardView {
	v := dashboardView{
		Records:       make([]recordView, 0, len(snap.Records)),
		Count:         snap.Count,
		Search:        snap.Search,
		Income:        formatMoney(snap.Summary.Income),
		Expense:       formatMoney(snap.Summary.Expense),
		Balance:       formatMoney(snap.Summary.Balance),
		Trend:         snap.Summary.Trend(),
		BudgetLimit:   snap.Budget.Limit.String(),
		BudgetEnabled: snap.Budget.Enabled,
		OverBudget:    snap.Budget.Exceeded,
	}
	for _, r := range snap.Records {
		v.Records = append(v.Records, recordView{
			ID:          r.ID,
			Description: r.Description,
			Amount:      formatMoney(r.Amount),
			AmountInput: r.Amount.String(),
			Type:        r.Type.String(),
		})
	}

	chart := chartData{
		Labels:  snap.Series.Labels,
		Income:  make([]float64, snap.Series.Len()),
		Expense: make([]float64, snap.Series.Len()),
	}
	for i := range snap.Series.Labels {
		chart.Income[i] = snap.Series.Income[i].InexactFloat64()
		chart.Expense[i] = snap.Series.Expense[i].InexactFloat64()
	}
	if b, err := json.Marshal(chart); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Chart data encoding failed",
			log.FieldError, err, log.FieldOperation, log.OpRender)
		v.Advisories = append(v.Advisories, "The chart could not be drawn.")
	} else {
		v.Chart = string(b)
	}
	for _, a := range advisories {
		v.Advisories = append(v.Advisories, a.Message)
	}
	return v
}

func (s *Server) theme(r *http.Request) string {
	if c, err := r.Cookie(themeCookie); err == nil {
		switch c.Value {
		case config.ThemeLight, config.ThemeDark:
			return c.Value
		}
	}
	return s.opts.Theme
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out, err := s.dashboard.Load(ctx)
	if err != nil {
		// Render what we have; the page still works once the store is back.
		log.FromContext(ctx).WarnContext(ctx, "Dashboard refresh failed", log.FieldError, err)
	}

	theme := s.theme(r)
	next := config.ThemeDark
	if theme == config.ThemeDark {
		next = config.ThemeLight
	}
	page := pageView{
		Theme:           theme,
		NextTheme:       next,
		WidgetScriptURL: s.opts.WidgetScriptURL,
		Dashboard:       newDashboardView(ctx, s.dashboard.Snapshot(), out.Advisories),
	}
	if err != nil {
		_, msg := uiError(err)
		page.Dashboard.Advisories = append(page.Dashboard.Advisories, msg)
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", page); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Index template execution failed",
			log.FieldError, err, log.FieldOperation, log.OpRender)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleUIAdd(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		BadRequestError("Invalid form submission").Write(w)
		return
	}
	typ, err := core.ParseType(formValue(r, "type"))
	if err != nil {
		s.uiFailure(w, r, err)
		return
	}
	out, err := s.dashboard.Add(r.Context(), formValue(r, "description"), formValue(r, "amount"), typ)
	if err != nil {
		s.uiFailure(w, r, err)
		return
	}
	b := NewHTMXResponse().
		TriggerFormReset().
		TriggerSuccessNotification("Transaction added")
	s.renderDashboard(w, r, b, out, string(ports.OpCreated), out.ID)
}

func (s *Server) handleUIEdit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.uiFailure(w, r, err)
		return
	}
	if err := parseForm(w, r); err != nil {
		BadRequestError("Invalid form submission").Write(w)
		return
	}
	amount, err := core.ParseAmount(formValue(r, "amount"))
	if err != nil {
		s.uiFailure(w, r, err)
		return
	}
	out, err := s.dashboard.Edit(r.Context(), id, formValue(r, "description"), amount)
	if err != nil {
		s.uiFailure(w, r, err)
		return
	}
	s.renderDashboard(w, r, NewHTMXResponse().TriggerSuccessNotification("Transaction updated"), out, string(ports.OpUpdated), id)
}

func (s *Server) handleUIDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.uiFailure(w, r, err)
		return
	}
	out, err := s.dashboard.Remove(r.Context(), id)
	if err != nil {
		s.uiFailure(w, r, err)
		return
	}
	s.renderDashboard(w, r, NewHTMXResponse().TriggerSuccessNotification("Transaction deleted"), out, string(ports.OpDeleted), id)
}

// handleUIBudget applies the limit first and then the switch, the order in
// which a user edits the form.
func (s *Server) handleUIBudget(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		BadRequestError("Invalid form submission").Write(w)
		return
	}
	limit, err := formAmount(r, "limit")
	if err != nil {
		s.uiFailure(w, r, err)
		return
	}
	first := s.dashboard.SetBudget(limit)
	second := s.dashboard.SetBudgetEnabled(formBool(r, "enabled"))
	out := dashboard.Outcome{Advisories: append(first.Advisories, second.Advisories...)}
	s.renderDashboard(w, r, NewHTMXResponse().TriggerSuccessNotification("Budget updated"), out, "", "")
}

// handleUISearch only changes the listed records, so it renders just the list.
func (s *Server) handleUISearch(w http.ResponseWriter, r *http.Request) {
	s.dashboard.SetSearch(sanitizeInput(r.URL.Query().Get("q")))
	view := newDashboardView(r.Context(), s.dashboard.Snapshot(), nil)

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "records", view); err != nil {
		s.templateFailure(w, r, err)
		return
	}
	NewHTMXResponse().BodyHTML(buf.Bytes()).Write(w)
}

func (s *Server) handleUITheme(w http.ResponseWriter, r *http.Request) {
	next := config.ThemeDark
	if s.theme(r) == config.ThemeDark {
		next = config.ThemeLight
	}
	http.SetCookie(w, &http.Cookie{
		Name:     themeCookie,
		Value:    next,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	NewHTMXResponse().Header("HX-Refresh", "true").Status(http.StatusNoContent).Write(w)
}

// renderDashboard writes the dashboard partial plus an out-of-band copy of
// the record list.
func (s *Server) renderDashboard(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, out dashboard.Outcome, op, id string) {
	view := newDashboardView(r.Context(), s.dashboard.Snapshot(), out.Advisories)

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "dashboard", view); err != nil {
		s.templateFailure(w, r, err)
		return
	}
	view.OOB = true
	if err := s.templates.ExecuteTemplate(&buf, "records", view); err != nil {
		s.templateFailure(w, r, err)
		return
	}
	if op != "" {
		b.TriggerTransactionsChanged(op, id)
	}
	b.TriggerAdvisories(out.Advisories).BodyHTML(buf.Bytes()).Write(w)
}

func (s *Server) uiFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := uiError(err)
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Dashboard action failed", log.FieldError, err)
	} else {
		logger.DebugContext(r.Context(), "Dashboard action rejected", log.FieldError, err)
	}
	ErrorResponse(status, msg).Write(w)
}

func (s *Server) templateFailure(w http.ResponseWriter, r *http.Request, err error) {
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
		log.FieldError, err, log.FieldOperation, log.OpRender)
	InternalServerError("Could not render the dashboard").Write(w)
}

// uiError is errorStatus with friendlier text for validation failures.
func uiError(err error) (int, string) {
	status, msg := errorStatus(err)
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		return status, "Invalid " + ve.Field + ": " + ve.Reason
	}
	if status == http.StatusBadRequest && errors.Is(err, core.ErrValidation) {
		// Remote API validation failures carry the server's text.
		return status, err.Error()
	}
	return status, msg
}
