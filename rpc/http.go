package rpc

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"custodia/native/custody"
	"custodia/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20

	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
)

// RPCRequest is a JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      interface{}       `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

// RPCResponse is a JSON-RPC 2.0 response envelope.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError carries a JSON-RPC error code and message.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Server exposes the custody engine over JSON-RPC. Mutating methods are
// serialized through a single mutex; the engine's reentrancy guard would
// otherwise reject concurrent top-level calls.
type Server struct {
	engine     *custody.Engine
	manualFeed *custody.ManualFeed
	authToken  string
	logger     *slog.Logger

	mu sync.Mutex

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// NewServer constructs a server over the engine. manualFeed may be nil when
// the oracle runs in http mode; authToken guards privileged methods and is
// read from CUSTODIA_RPC_TOKEN when empty.
func NewServer(engine *custody.Engine, manualFeed *custody.ManualFeed, authToken string) *Server {
	token := strings.TrimSpace(authToken)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("CUSTODIA_RPC_TOKEN"))
	}
	return &Server{
		engine:     engine,
		manualFeed: manualFeed,
		authToken:  token,
		logger:     slog.Default(),
		limiters:   make(map[string]*rate.Limiter),
	}
}

// Start blocks serving RPC traffic on addr.
func (s *Server) Start(addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return server.ListenAndServe()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required")
		return
	}
	if !s.allow(clientIP(r)) {
		writeError(w, http.StatusTooManyRequests, nil, codeServerError, "rate limit exceeded")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	var req RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload")
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported JSON-RPC version")
		return
	}
	if s.logger != nil {
		s.logger.Debug("rpc request", slog.String("method", req.Method), slog.String("client", clientIP(r)))
	}
	s.dispatch(w, r, &req)
}

func (s *Server) allow(client string) bool {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	limiter, ok := s.limiters[client]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(50), 100)
		s.limiters[client] = limiter
	}
	return limiter.Allow()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return false
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	return strings.TrimSpace(header[len(prefix):]) == s.authToken
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(RPCResponse{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	})
}

// writeEngineError maps engine failures onto JSON-RPC error codes. Input
// validation failures are invalid params; everything else, limit rejections
// included, surfaces as a server error with the engine's message.
func writeEngineError(w http.ResponseWriter, id interface{}, operation string, err error) {
	observability.Custody().RecordError(operation, rejectionReason(err))
	switch {
	case errors.Is(err, custody.ErrUnauthorized):
		writeError(w, http.StatusForbidden, id, codeUnauthorized, err.Error())
	case errors.Is(err, custody.ErrAmountZero),
		errors.Is(err, custody.ErrValueMismatch),
		errors.Is(err, custody.ErrZeroAddress),
		errors.Is(err, custody.ErrUnknownAsset):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error())
	default:
		writeError(w, http.StatusBadRequest, id, codeServerError, err.Error())
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, custody.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, custody.ErrWithdrawLimitExceeded):
		return "limit"
	case errors.Is(err, custody.ErrBankCapacityExceeded):
		return "capacity"
	case errors.Is(err, custody.ErrInsufficientBalance):
		return "balance"
	case errors.Is(err, custody.ErrInvalidOraclePrice),
		errors.Is(err, custody.ErrStaleOracleData),
		errors.Is(err, custody.ErrInvalidOracleDecimals):
		return "oracle"
	case errors.Is(err, custody.ErrReentrancy):
		return "reentrancy"
	case errors.Is(err, custody.ErrNativeTransferFailed),
		errors.Is(err, custody.ErrTokenTransferFailed):
		return "transfer"
	default:
		return "invalid_input"
	}
}
