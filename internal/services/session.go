package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dlow/portfolio-dashboard/internal/models"
	log "github.com/sirupsen/logrus"
)

// Session states. A new upload moves any state back to loading; derived data
// becomes visible only on the transition to ready.
type SessionState string

const (
	StateIdle    SessionState = "idle"
	StateLoading SessionState = "loading"
	StateReady   SessionState = "ready"
	StateFailed  SessionState = "failed"
)

var (
	// ErrNotReady is returned by query methods while no analysis has
	// completed yet (idle or loading).
	ErrNotReady = errors.New("analysis not ready")
	// ErrSessionFailed is returned after an unrecoverable pipeline failure.
	ErrSessionFailed = errors.New("analysis failed")
	// ErrHoldingNotFound is returned for a symbol outside the holdings set.
	ErrHoldingNotFound = errors.New("holding not found")
)

// sessionData is one immutable analysis snapshot. The pipeline builds it as a
// private draft and publishes it with a single pointer swap, so readers see
// either the previous complete snapshot or the new one, never a mix.
type sessionData struct {
	adjusted    map[string][]models.AdjustedTrade
	positions   map[string]*models.Position
	valuation   CurrentValuation
	series      []models.ValuationPoint
	audits      []models.SplitAudit
	report      NormalizeReport
	unavailable map[string]bool
	computedAt  time.Time
}

type session struct {
	state      SessionState
	failReason string
	generation uint64
	data       *sessionData
}

// SessionManager owns one analysis session per user identity and runs the
// pipeline (normalize, adjust, aggregate, value) as a background task per
// upload. Query methods are pure reads of the last published snapshot.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*session

	source    PriceSource
	adjuster  *SplitAdjuster
	valuer    *Valuer
	converter *CurrencyConverter

	// now is replaceable in tests.
	now func() time.Time
}

// NewSessionManager creates a new SessionManager
func NewSessionManager(source PriceSource, converter *CurrencyConverter) *SessionManager {
	return &SessionManager{
		sessions:  make(map[string]*session),
		source:    source,
		adjuster:  NewSplitAdjuster(source),
		valuer:    NewValuer(source, converter),
		converter: converter,
		now:       time.Now,
	}
}

// StartAnalysis begins (or restarts) the analysis pipeline for a user. The
// previous snapshot, if any, keeps serving readers until the new run
// publishes; a run superseded by a later upload discards its result.
func (m *SessionManager) StartAnalysis(userID string, rows []models.RawTradeRow) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if !ok {
		s = &session{state: StateIdle}
		m.sessions[userID] = s
	}
	s.generation++
	gen := s.generation
	s.state = StateLoading
	s.failReason = ""
	m.mu.Unlock()

	log.Infof("starting analysis for user %s: %d rows", userID, len(rows))
	go m.run(userID, gen, rows)
}

func (m *SessionManager) run(userID string, gen uint64, rows []models.RawTradeRow) {
	ctx := context.Background()
	now := m.now()

	trades, report := NormalizeTrades(rows, now)
	if report.Accepted == 0 {
		m.publishFailure(userID, gen, "no valid trades found in the uploaded files")
		return
	}

	adjusted, audits, splitGaps := m.adjuster.Adjust(ctx, trades)
	positions := AggregatePositions(adjusted)

	valuation := m.valuer.ValueCurrent(ctx, positions, now)
	series, seriesGaps := m.valuer.HistoricalSeries(ctx, adjusted, positions, now)

	unavailable := make(map[string]bool)
	for sym := range splitGaps {
		unavailable[sym] = true
	}
	for sym := range valuation.Unavailable {
		unavailable[sym] = true
	}
	for sym := range seriesGaps {
		unavailable[sym] = true
	}

	draft := &sessionData{
		adjusted:    adjusted,
		positions:   positions,
		valuation:   valuation,
		series:      series,
		audits:      audits,
		report:      report,
		unavailable: unavailable,
		computedAt:  now,
	}

	if m.publish(userID, gen, draft) {
		log.Infof("analysis ready for user %s: %d holdings, %d rejects, %d symbols with data gaps",
			userID, len(positions), report.Rejected, len(unavailable))
	} else {
		log.Infof("discarding superseded analysis for user %s (generation %d)", userID, gen)
	}
}

// publish swaps the draft in iff this run is still the latest upload.
func (m *SessionManager) publish(userID string, gen uint64, draft *sessionData) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok || s.generation != gen {
		return false
	}
	s.data = draft
	s.state = StateReady
	s.failReason = ""
	return true
}

func (m *SessionManager) publishFailure(userID string, gen uint64, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok || s.generation != gen {
		return
	}
	s.state = StateFailed
	s.failReason = reason
	log.Errorf("analysis failed for user %s: %s", userID, reason)
}

// Status reports the session state. It never blocks on pipeline work.
func (m *SessionManager) Status(userID string) models.LoadingStatusResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[userID]
	if !ok {
		return models.LoadingStatusResponse{}
	}
	return models.LoadingStatusResponse{
		LoadingComplete: s.state == StateReady,
		Failed:          s.state == StateFailed,
		Error:           s.failReason,
	}
}

// snapshot returns the current published data or the state-mapped error.
func (m *SessionManager) snapshot(userID string) (*sessionData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[userID]
	if !ok {
		return nil, ErrNotReady
	}
	switch s.state {
	case StateReady:
		return s.data, nil
	case StateFailed:
		return nil, ErrSessionFailed
	default:
		return nil, ErrNotReady
	}
}

// FailureReason returns the human-readable reason after a failure.
func (m *SessionManager) FailureReason(userID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.sessions[userID]; ok {
		return s.failReason
	}
	return ""
}

// Summary returns the portfolio overview.
func (m *SessionManager) Summary(userID string) (models.PortfolioSummaryResponse, error) {
	data, err := m.snapshot(userID)
	if err != nil {
		return models.PortfolioSummaryResponse{}, err
	}
	return data.valuation.Summary, nil
}

// Holdings returns the per-symbol holdings view with XIRR.
func (m *SessionManager) Holdings(userID string) (models.HoldingsResponse, error) {
	data, err := m.snapshot(userID)
	if err != nil {
		return models.HoldingsResponse{}, err
	}
	return models.HoldingsResponse{
		Holdings:            data.valuation.Holdings,
		TotalPortfolioValue: data.valuation.TotalValueUSD,
	}, nil
}

// HoldingDetail returns one holding with its adjusted trade history.
func (m *SessionManager) HoldingDetail(userID, symbol string) (models.HoldingDetailResponse, error) {
	data, err := m.snapshot(userID)
	if err != nil {
		return models.HoldingDetailResponse{}, err
	}

	holding, ok := data.valuation.Holdings[symbol]
	if !ok {
		return models.HoldingDetailResponse{}, ErrHoldingNotFound
	}

	trades := data.adjusted[symbol]
	detail := models.HoldingDetailResponse{
		HoldingInfo:  holding,
		TradeHistory: trades,
		TotalTrades:  len(trades),
	}
	if len(trades) > 0 {
		detail.FirstPurchase = trades[0].Date.Format("2006-01-02")
		detail.LastTrade = trades[len(trades)-1].Date.Format("2006-01-02")
	}
	return detail, nil
}

// ValueSeries returns the historical portfolio value in the requested
// currency (USD or SGD).
func (m *SessionManager) ValueSeries(userID, currency string) (models.ValueSeriesResponse, error) {
	data, err := m.snapshot(userID)
	if err != nil {
		return models.ValueSeriesResponse{}, err
	}

	resp := models.ValueSeriesResponse{
		Dates:  make([]string, 0, len(data.series)),
		Values: make([]float64, 0, len(data.series)),
	}
	for _, p := range data.series {
		resp.Dates = append(resp.Dates, p.Date.Format("2006-01-02"))
		if currency == "SGD" {
			resp.Values = append(resp.Values, p.ValueSGD)
		} else {
			resp.Values = append(resp.Values, p.ValueUSD)
		}
	}
	return resp, nil
}

// SplitReport returns the split-analysis view.
func (m *SessionManager) SplitReport(userID string) (models.SplitReportResponse, error) {
	data, err := m.snapshot(userID)
	if err != nil {
		return models.SplitReportResponse{}, err
	}

	resp := models.SplitReportResponse{
		TotalSplits: len(data.audits),
		Splits:      data.audits,
		ChartData: models.SplitChartData{
			Symbols:      make([]string, 0, len(data.audits)),
			BeforePrices: make([]float64, 0, len(data.audits)),
			AfterPrices:  make([]float64, 0, len(data.audits)),
			Ratios:       make([]float64, 0, len(data.audits)),
		},
	}

	affected := make(map[string]bool)
	for _, a := range data.audits {
		affected[a.Symbol] = true
		resp.TradesAdjusted += a.TradesAdjusted
		resp.ChartData.Symbols = append(resp.ChartData.Symbols, a.Symbol)
		resp.ChartData.BeforePrices = append(resp.ChartData.BeforePrices, a.PriceBefore)
		resp.ChartData.AfterPrices = append(resp.ChartData.AfterPrices, a.PriceAfter)
		resp.ChartData.Ratios = append(resp.ChartData.Ratios, a.Ratio)
	}
	resp.AffectedStocks = len(affected)

	return resp, nil
}

// UnavailableSymbols lists symbols with provider data gaps, sorted.
func (m *SessionManager) UnavailableSymbols(userID string) ([]string, error) {
	data, err := m.snapshot(userID)
	if err != nil {
		return nil, err
	}
	symbols := make([]string, 0, len(data.unavailable))
	for sym := range data.unavailable {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// RefreshPrices refetches current quotes for the session's holdings in the
// background and publishes a revalued snapshot. The historical series and
// split data are unchanged by a price refresh.
func (m *SessionManager) RefreshPrices(userID string) error {
	m.mu.RLock()
	s, ok := m.sessions[userID]
	if !ok || s.state != StateReady {
		m.mu.RUnlock()
		if ok && s.state == StateFailed {
			return ErrSessionFailed
		}
		return ErrNotReady
	}
	gen := s.generation
	data := s.data
	m.mu.RUnlock()

	go func() {
		ctx := context.Background()
		for symbol := range data.positions {
			m.source.InvalidateQuote(symbol)
		}
		valuation := m.valuer.ValueCurrent(ctx, data.positions, m.now())

		refreshed := *data
		refreshed.valuation = valuation
		refreshed.computedAt = m.now()

		if m.publish(userID, gen, &refreshed) {
			log.Infof("price refresh completed for user %s", userID)
		}
	}()

	return nil
}

// Clear drops the user's session entirely.
func (m *SessionManager) Clear(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}
