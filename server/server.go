package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Nuklai/nuklai-contracts-bitcoin-form/fetcher"
	"github.com/Nuklai/nuklai-contracts-bitcoin-form/metrics"
	feedertypes "github.com/Nuklai/nuklai-contracts-bitcoin-form/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/atomic"
)

const (
	maxBodySize     = 1 << 14
	shutdownTimeout = 5 * time.Second
)

// CommitFunc persists the instance after a mutating call, nonces holds the last accepted nonce per signer
type CommitFunc func(nonces map[common.Address]uint64) error

// Server exposes one fetcher instance over http
type Server struct {
	logger  feedertypes.LoggerInf
	conf    feedertypes.ServerConfig
	chainID string
	fetcher fetcher.F
	commit  CommitFunc

	registry *prometheus.Registry
	metrics  *metrics.Metrics
	limiter  *rateLimiter
	upgrader websocket.Upgrader

	// serializes mutating calls and guards nonces
	locker *sync.Mutex
	nonces map[common.Address]uint64

	running     *atomic.Bool
	subscribers *atomic.Int32

	// closed once a commit fails, the in-memory instance is then ahead of its record
	halted   chan struct{}
	haltOnce *sync.Once
	haltErr  *atomic.Error
}

func New(logger feedertypes.LoggerInf, conf feedertypes.ServerConfig, chainID string, f fetcher.F, nonces map[common.Address]uint64, commit CommitFunc) *Server {
	if nonces == nil {
		nonces = make(map[common.Address]uint64)
	}
	registry := prometheus.NewRegistry()
	s := &Server{
		logger:      logger,
		conf:        conf,
		chainID:     chainID,
		fetcher:     f,
		commit:      commit,
		registry:    registry,
		metrics:     metrics.NewMetrics("", registry),
		limiter:     newRateLimiter(conf.RateLimit, conf.Burst),
		locker:      new(sync.Mutex),
		nonces:      nonces,
		running:     atomic.NewBool(false),
		subscribers: atomic.NewInt32(0),
		halted:      make(chan struct{}),
		haltOnce:    new(sync.Once),
		haltErr:     atomic.NewError(nil),
	}
	s.metrics.SetPrice(f.CoinPrice(), f.Decimals(), f.Fetched())
	return s
}

// Handler returns the router of the server
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.limiter.middleware)
	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/coin-price", s.handleCoinPrice).Methods(http.MethodGet)
	v1.HandleFunc("/fetched", s.handleFetched).Methods(http.MethodGet)
	v1.HandleFunc("/price-source", s.handlePriceSource).Methods(http.MethodGet)
	v1.HandleFunc("/roles", s.handleRoles).Methods(http.MethodGet)
	v1.HandleFunc("/nonce/{address}", s.handleNonce).Methods(http.MethodGet)
	v1.HandleFunc("/tx", s.handleTx).Methods(http.MethodPost)
	v1.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

// Halted returns the commit error which stopped the server, nil while it accepts calls
func (s *Server) Halted() error {
	return s.haltErr.Load()
}

func (s *Server) halt(err error) {
	s.haltOnce.Do(func() {
		s.haltErr.Store(err)
		close(s.halted)
	})
}

// Start serves until ctx is done or a commit fails, it returns immediately with an error when the server is already running
func (s *Server) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("server is already running")
	}
	defer s.running.Store(false)

	srv := &http.Server{
		Addr:              s.conf.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("start serving", "listen", s.conf.Listen)
		errCh <- srv.ListenAndServe()
	}()
	shutdown := func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		return shutdown()
	case <-s.halted:
		s.logger.Error("shutting down server, instance is no longer persisted", "error", s.haltErr.Load())
		if err := shutdown(); err != nil {
			s.logger.Error("failed to shut down server", "error", err)
		}
		return s.haltErr.Load()
	}
}

func (s *Server) handleCoinPrice(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.fetcher.PriceInfo())
}

func (s *Server) handleFetched(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"fetched": s.fetcher.Fetched()})
}

func (s *Server) handlePriceSource(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, sourceResponse{
		Address:  s.fetcher.PriceSourceAddress().Hex(),
		CoinPair: s.fetcher.CoinPair(),
		Decimals: s.fetcher.Decimals(),
	})
}

func (s *Server) handleRoles(w http.ResponseWriter, _ *http.Request) {
	ac := s.fetcher.Access()
	writeJSON(w, http.StatusOK, rolesResponse{
		Administrator: ac.Administrator().Hex(),
		Forwarder:     ac.Forwarder().Hex(),
		Renounced:     ac.Renounced(),
	})
}

func (s *Server) handleNonce(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addr) {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: fmt.Sprintf("invalid address:%s", addr), Code: "InvalidArgument"})
		return
	}
	s.locker.Lock()
	nonce := s.nonces[common.HexToAddress(addr)]
	s.locker.Unlock()
	writeJSON(w, http.StatusOK, map[string]uint64{"nonce": nonce})
}

func (s *Server) handleTx(w http.ResponseWriter, r *http.Request) {
	call := &SignedCall{}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(call); err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: err.Error(), Code: "InvalidArgument"})
		return
	}
	if err := call.validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: err.Error(), Code: "InvalidArgument"})
		return
	}
	caller, err := call.Signer(s.chainID, s.fetcher.PriceSourceAddress())
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errResponse{Error: err.Error(), Code: "InvalidSignature"})
		return
	}

	s.locker.Lock()
	defer s.locker.Unlock()
	if err := s.haltErr.Load(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errResponse{Error: fmt.Sprintf("server halted, error:%v", err), Code: "Halted"})
		return
	}
	if last := s.nonces[caller]; call.Nonce <= last {
		writeJSON(w, http.StatusConflict, errResponse{Error: fmt.Sprintf("nonce too low, got:%d, last:%d", call.Nonce, last), Code: "NonceTooLow"})
		return
	}
	// the nonce is spent whatever the outcome of the call
	s.nonces[caller] = call.Nonce

	err = s.execute(r.Context(), call, caller)
	if commitErr := s.persist(); commitErr != nil {
		s.logger.Error("failed to persist instance, halting", "method", call.Method, "caller", caller.Hex(), "error", commitErr)
		s.halt(commitErr)
		writeJSON(w, http.StatusInternalServerError, errResponse{Error: commitErr.Error(), Code: "PersistFailed"})
		return
	}
	if err != nil {
		s.logger.Info("call rejected", "method", call.Method, "caller", caller.Hex(), "nonce", call.Nonce, "error", err)
		status, resp := errorResponse(err)
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusOK, txResponse{Method: call.Method, Caller: caller.Hex(), Nonce: call.Nonce})
}

func (s *Server) execute(ctx context.Context, call *SignedCall, caller common.Address) error {
	ac := s.fetcher.Access()
	var err error
	switch call.Method {
	case MethodTransferAdministrator:
		err = ac.TransferAdministrator(caller, call.argAddress())
	case MethodRenounceAdministrator:
		err = ac.RenounceAdministrator(caller)
	case MethodSetForwarder:
		err = ac.SetForwarder(caller, call.argAddress())
	case MethodFetchPrice:
		err = s.fetcher.FetchPrice(ctx, caller)
		s.metrics.SetPrice(s.fetcher.CoinPrice(), s.fetcher.Decimals(), s.fetcher.Fetched())
	default:
		err = errUnknownMethod
	}
	switch {
	case err == nil:
		s.metrics.ObserveCall(call.Method, metrics.ResultOK)
	case isRejection(err):
		s.metrics.ObserveCall(call.Method, metrics.ResultRejected)
	default:
		s.metrics.ObserveCall(call.Method, metrics.ResultFailed)
	}
	return err
}

func (s *Server) persist() error {
	if s.commit == nil {
		return nil
	}
	nonces := make(map[common.Address]uint64, len(s.nonces))
	for addr, nonce := range s.nonces {
		nonces[addr] = nonce
	}
	return s.commit(nonces)
}

func isRejection(err error) bool {
	return errors.Is(err, feedertypes.ErrNotAuthorized) ||
		errors.Is(err, feedertypes.ErrNotForwarder) ||
		errors.Is(err, feedertypes.ErrAlreadyFetched) ||
		errors.Is(err, feedertypes.ErrInvalidArgument)
}

func errorResponse(err error) (int, errResponse) {
	var (
		notForwarder   *feedertypes.NotForwarderError
		alreadyFetched *feedertypes.AlreadyFetchedError
	)
	switch {
	case errors.As(err, &notForwarder):
		return http.StatusForbidden, errResponse{
			Error:    err.Error(),
			Code:     "NotForwarder",
			Expected: notForwarder.Expected.Hex(),
			Actual:   notForwarder.Actual.Hex(),
		}
	case errors.As(err, &alreadyFetched):
		return http.StatusConflict, errResponse{
			Error:    err.Error(),
			Code:     "AlreadyFetched",
			CoinPair: alreadyFetched.CoinPair,
			Price:    alreadyFetched.Price.String(),
		}
	case errors.Is(err, feedertypes.ErrNotAuthorized):
		return http.StatusForbidden, errResponse{Error: err.Error(), Code: "NotAuthorized"}
	case errors.Is(err, feedertypes.ErrInvalidArgument):
		return http.StatusBadRequest, errResponse{Error: err.Error(), Code: "InvalidArgument"}
	default:
		return http.StatusBadGateway, errResponse{Error: err.Error(), Code: "SourceFailure"}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
