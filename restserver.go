package lem

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gridmarket/lem/account"
	"github.com/gridmarket/lem/accounting"
	"github.com/gridmarket/lem/build"
	"github.com/gridmarket/lem/metrics"
	"github.com/gridmarket/lem/order"
	"github.com/gridmarket/lem/venue/matching"
	"github.com/rs/cors"
)

const (
	// restShutdownTimeout is the time we give open REST requests to
	// finish on shutdown.
	restShutdownTimeout = 5 * time.Second

	// maxBookSize is the maximum size of an order book submitted for a
	// dry run clearing.
	maxBookSize = 4 << 20
)

// restServerConfig contains everything the REST API serves.
type restServerConfig struct {
	// Listen is the address to listen on.
	Listen string

	// CORSOrigins are the origins allowed to query the API. No CORS
	// headers are sent if empty.
	CORSOrigins []string

	// Engine clears submitted books without settling them.
	Engine *matching.Engine

	// Ledger holds the accounts of all participants.
	Ledger *account.Ledger

	// Metrics provides the cached rounds and their statistics.
	Metrics metrics.Manager

	// Market is the running market.
	Market *Market

	// Interval is the length of a trading interval.
	Interval time.Duration
}

// restServer is a read-only JSON API on top of the market. Besides the
// recorded rounds and accounts it allows clearing a book without settling
// it.
type restServer struct {
	cfg *restServerConfig

	listener net.Listener
	server   *http.Server

	wg sync.WaitGroup
}

// newRestServer creates a new REST server for the given config.
func newRestServer(cfg *restServerConfig) *restServer {
	return &restServer{
		cfg: cfg,
	}
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// router returns the handler of all API routes.
func (s *restServer) router() http.Handler {
	r := gin.New()
	r.Use(requestLogger(), recovery())

	r.GET("/health", s.health)

	api := r.Group("/v1")
	api.GET("/market", s.market)
	api.GET("/rounds", s.rounds)
	api.GET("/rounds/:seq", s.round)
	api.GET("/accounts", s.accounts)
	api.GET("/accounts/:participant", s.account)
	api.GET("/summary", s.summary)
	api.GET("/metrics", s.windowMetrics)
	api.POST("/clear", s.clear)

	if len(s.cfg.CORSOrigins) == 0 {
		return r
	}

	return cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(r)
}

// Start starts listening for REST requests.
func (s *restServer) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("unable to listen on %v: %w", s.cfg.Listen,
			err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		err := s.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			restLog.Errorf("REST server stopped: %v", err)
		}
	}()

	restLog.Infof("REST API listening on %v", listener.Addr())

	return nil
}

// Stop gracefully shuts down the REST server.
func (s *restServer) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(
		context.Background(), restShutdownTimeout,
	)
	defer cancel()

	err := s.server.Shutdown(ctx)
	s.wg.Wait()

	return err
}

// Addr returns the address the server listens on.
func (s *restServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

func (s *restServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *restServer) market(c *gin.Context) {
	m := s.cfg.Market

	var exhausted bool
	select {
	case <-m.Done():
		exhausted = true
	default:
	}

	c.JSON(http.StatusOK, &MarketResponse{
		Version:       build.Version(),
		Engine:        s.cfg.Engine.Config().String(),
		Interval:      s.cfg.Interval,
		NextInterval:  m.Interval(),
		ClearingStart: m.ClearingStart(),
		Failures:      m.Failures(),
		Exhausted:     exhausted,
	})
}

// rounds returns the recorded rounds in the order they were cleared. The
// optional limit query parameter restricts the response to the latest ones.
func (s *restServer) rounds(c *gin.Context) {
	entries, err := s.cfg.Metrics.GetRounds(c.Request.Context())
	if err != nil {
		abortWithError(c, http.StatusInternalServerError,
			"ROUNDS_UNAVAILABLE", err)
		return
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			abortWithError(c, http.StatusBadRequest,
				"INVALID_REQUEST", fmt.Errorf("invalid limit %q",
					limitStr))
			return
		}
		if limit < len(entries) {
			entries = entries[len(entries)-limit:]
		}
	}

	resp := make([]RoundResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, newRoundResponse(entry))
	}

	c.JSON(http.StatusOK, resp)
}

// round returns a single round by its sequence number, or the latest one.
func (s *restServer) round(c *gin.Context) {
	entries, err := s.cfg.Metrics.GetRounds(c.Request.Context())
	if err != nil {
		abortWithError(c, http.StatusInternalServerError,
			"ROUNDS_UNAVAILABLE", err)
		return
	}

	entry, err := findRound(entries, c.Param("seq"))
	if err != nil {
		abortWithError(c, http.StatusNotFound, "ROUND_NOT_FOUND", err)
		return
	}

	c.JSON(http.StatusOK, newRoundResponse(entry))
}

// findRound looks up a round by its sequence number. The sequence "latest"
// returns the most recently recorded round.
func findRound(entries []*accounting.RoundEntry,
	seqStr string) (*accounting.RoundEntry, error) {

	if seqStr == "latest" {
		if len(entries) == 0 {
			return nil, fmt.Errorf("no rounds recorded yet")
		}
		return entries[len(entries)-1], nil
	}

	seq, err := strconv.ParseUint(seqStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid sequence %q", seqStr)
	}
	for _, entry := range entries {
		if entry.Sequence == seq {
			return entry, nil
		}
	}

	return nil, fmt.Errorf("round %d not found", seq)
}

func (s *restServer) accounts(c *gin.Context) {
	accounts := s.cfg.Ledger.Snapshot()

	resp := make([]AccountResponse, 0, len(accounts))
	for _, acct := range accounts {
		resp = append(resp, newAccountResponse(acct))
	}

	c.JSON(http.StatusOK, resp)
}

func (s *restServer) account(c *gin.Context) {
	id := order.ParticipantID(c.Param("participant"))
	acct, err := s.cfg.Ledger.Account(id)
	switch {
	case errors.Is(err, account.ErrAccountNotFound):
		abortWithError(c, http.StatusNotFound, "ACCOUNT_NOT_FOUND", err)
		return

	case err != nil:
		abortWithError(c, http.StatusInternalServerError,
			"ACCOUNT_UNAVAILABLE", err)
		return
	}

	c.JSON(http.StatusOK, newAccountResponse(acct))
}

// summary aggregates all rounds within the optional start and end query
// parameters, given in RFC 3339 format.
func (s *restServer) summary(c *gin.Context) {
	start, err := parseTimeQuery(c, "start")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	end, err := parseTimeQuery(c, "end")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}

	report, err := accounting.CreateReport(&accounting.Config{
		Start:     start,
		End:       end,
		GetRounds: s.cfg.Metrics.GetRounds,
	})
	if err != nil {
		abortWithError(c, http.StatusInternalServerError,
			"ROUNDS_UNAVAILABLE", err)
		return
	}

	stats, err := metrics.GenerateRoundMetric(report.RoundEntries)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError,
			"METRICS_UNAVAILABLE", err)
		return
	}

	c.JSON(http.StatusOK, newSummaryResponse(
		start, end, report.Summarize(), stats,
	))
}

// windowMetrics returns the round statistics of all configured trailing
// windows.
func (s *restServer) windowMetrics(c *gin.Context) {
	windows, err := s.cfg.Metrics.GenerateRoundMetrics(
		c.Request.Context(),
	)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError,
			"METRICS_UNAVAILABLE", err)
		return
	}

	resp := make([]WindowMetricResponse, 0, len(windows))
	for _, window := range s.cfg.Metrics.GetTimeDurations() {
		if m, ok := windows[window]; ok {
			resp = append(resp, newWindowMetricResponse(window, m))
		}
	}

	c.JSON(http.StatusOK, resp)
}

// clear clears the submitted book with the engine of the market without
// settling or recording it. The book is accepted as JSON or YAML. The merged
// curve is included if the curve query parameter is true.
func (s *restServer) clear(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxBookSize)
	book, err := order.DecodeBook(body)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_BOOK", err)
		return
	}

	result, err := s.cfg.Engine.Clear(book.Bids, book.Offers)
	if err != nil {
		var validationErr *order.ValidationError
		if errors.As(err, &validationErr) {
			abortWithError(c, http.StatusBadRequest, "INVALID_ORDER",
				err)
			return
		}

		abortWithError(c, http.StatusUnprocessableEntity,
			"CLEARING_FAILED", err)
		return
	}

	withCurve, _ := strconv.ParseBool(c.Query("curve"))
	c.JSON(http.StatusOK, NewClearingResponse(result, withCurve))
}

// parseTimeQuery parses an optional RFC 3339 query parameter.
func parseTimeQuery(c *gin.Context, key string) (time.Time, error) {
	value := c.Query(key)
	if value == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s time %q: %w", key,
			value, err)
	}

	return t, nil
}

// abortWithError writes the error response and stops the handler chain.
func abortWithError(c *gin.Context, status int, code string, err error) {
	c.AbortWithStatusJSON(status, &ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: err.Error(),
		},
	})
}

// requestLogger logs every request with its status and latency.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		restLog.Debugf("%s %s %d %v", c.Request.Method,
			c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// recovery turns a panicking handler into an internal error response.
func recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		restLog.Errorf("Recovered from panic in %s %s: %v",
			c.Request.Method, c.Request.URL.Path, recovered)

		abortWithError(c, http.StatusInternalServerError,
			"INTERNAL_ERROR", fmt.Errorf("an unexpected error "+
				"occurred"))
	})
}
