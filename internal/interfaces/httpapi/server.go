package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"encwallet/internal/application"
	"encwallet/internal/domain"
	"encwallet/internal/paillier"

	"github.com/ethereum/go-ethereum/common"
)

const maxBodyBytes = 1 << 20

// defaultDisplayDecimals applies to /decrypt requests that do not name the
// token's decimals.
const defaultDisplayDecimals = 18

const maxPageSize = 100

type HistoryReader interface {
	Page(ctx context.Context, query application.HistoryQuery) (domain.TransactionPage, error)
}

type TokenDirectory interface {
	List(ctx context.Context) ([]domain.TokenInfo, error)
	Get(ctx context.Context, address common.Address) (domain.TokenInfo, error)
}

type BalanceReader interface {
	Decrypted(ctx context.Context, token, account common.Address) (domain.Balance, error)
	Decrypt(ctx context.Context, ciphertext string, decimals uint8) (domain.DecryptedAmount, error)
}

type TransferPreparer interface {
	Prepare(ctx context.Context, req application.TransferRequest) (domain.TxRequest, error)
}

type DeployPreparer interface {
	Prepare(ctx context.Context, req application.DeployRequest) (domain.TxRequest, error)
}

type RPCStatus interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

type Services struct {
	History     HistoryReader
	Tokens      TokenDirectory
	Balances    BalanceReader
	Transfers   TransferPreparer
	Deployments DeployPreparer
	PublicKey   *paillier.PublicKey
}

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type Server struct {
	services  Services
	rpc       RPCStatus
	metrics   *Metrics
	buildInfo BuildInfo
}

func NewServer(services Services, rpc RPCStatus, metrics *Metrics, buildInfo BuildInfo) (*Server, error) {
	if services.History == nil || services.Tokens == nil || services.Balances == nil ||
		services.Transfers == nil || services.Deployments == nil || services.PublicKey == nil || rpc == nil {
		return nil, errors.New("http server dependencies must not be nil")
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Server{services: services, rpc: rpc, metrics: metrics, buildInfo: buildInfo}, nil
}

func (s *Server) Metrics() *Metrics {
	return s.metrics
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	route := func(pattern, name string, handler http.HandlerFunc) {
		mux.HandleFunc(pattern, s.metrics.Instrument(name, handler))
	}
	route("GET /healthz", "healthz", s.handleHealth)
	route("GET /readyz", "readyz", s.handleReady)
	route("GET /version", "version", s.handleVersion)
	route("GET /publickey", "publickey", s.handlePublicKey)
	route("GET /tokens", "tokens", s.handleTokens)
	route("GET /tokens/{address}", "token", s.handleToken)
	route("GET /tokens/{address}/balance", "balance", s.handleBalance)
	route("GET /transactions", "transactions", s.handleTransactions)
	route("POST /decrypt", "decrypt", s.handleDecrypt)
	route("POST /transfers", "transfers", s.handleTransfer)
	route("POST /deployments", "deployments", s.handleDeploy)
	mux.Handle("GET /metrics", s.metrics.Handler())
	return withRequestID(mux)
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := s.rpc.LatestBlockNumber(ctx); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, errorBody{Error: "rpc not ready", Retryable: true})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.buildInfo)
}

func (s *Server) handlePublicKey(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"n": paillier.FormatHex(s.services.PublicKey.N),
		"g": paillier.FormatHex(s.services.PublicKey.G),
	})
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.services.Tokens.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tokens)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	token, err := application.ParseAddress("token", r.PathValue("address"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	info, err := s.services.Tokens.Get(r.Context(), token)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	token, err := application.ParseAddress("token", r.PathValue("address"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	account, err := application.ParseAddress("account", r.URL.Query().Get("account"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	balance, err := s.services.Balances.Decrypted(r.Context(), token, account)
	if err != nil {
		s.observeDecryptError(err)
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, balance)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	query, err := parseHistoryQuery(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	page, err := s.services.History.Page(r.Context(), query)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

type decryptRequest struct {
	Ciphertext string `json:"ciphertext"`
	Decimals   *int   `json:"decimals,omitempty"`
}

func (s *Server) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	var req decryptRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	decimals := defaultDisplayDecimals
	if req.Decimals != nil {
		decimals = *req.Decimals
	}
	if decimals < 0 || decimals > application.MaxDecimals {
		respondError(w, r, fmt.Errorf("%w: decimals must be between 0 and %d", domain.ErrMalformedInput, application.MaxDecimals))
		return
	}
	amount, err := s.services.Balances.Decrypt(r.Context(), req.Ciphertext, uint8(decimals))
	if err != nil {
		s.observeDecryptError(err)
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, amount)
}

type transferRequest struct {
	Token  string `json:"token"`
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var body transferRequest
	if err := decodeBody(w, r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	token, err := application.ParseAddress("token", body.Token)
	if err != nil {
		respondError(w, r, err)
		return
	}
	to, err := application.ParseAddress("recipient", body.To)
	if err != nil {
		respondError(w, r, err)
		return
	}
	from, err := optionalAddress("sender", body.From)
	if err != nil {
		respondError(w, r, err)
		return
	}
	tx, err := s.services.Transfers.Prepare(r.Context(), application.TransferRequest{Token: token, From: from, To: to, Amount: body.Amount})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

type deployRequest struct {
	From          string `json:"from,omitempty"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	Decimals      int    `json:"decimals"`
	InitialSupply string `json:"initial_supply"`
}

func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	var body deployRequest
	if err := decodeBody(w, r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	from, err := optionalAddress("sender", body.From)
	if err != nil {
		respondError(w, r, err)
		return
	}
	tx, err := s.services.Deployments.Prepare(r.Context(), application.DeployRequest{
		From:          from,
		Name:          body.Name,
		Symbol:        body.Symbol,
		Decimals:      body.Decimals,
		InitialSupply: body.InitialSupply,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

func (s *Server) observeDecryptError(err error) {
	if errors.Is(err, domain.ErrDecryption) || errors.Is(err, domain.ErrUnsupportedOperation) || errors.Is(err, domain.ErrMalformedInput) {
		s.metrics.IncDecryptFailure()
	}
}

func parseHistoryQuery(r *http.Request) (application.HistoryQuery, error) {
	values := r.URL.Query()
	account, err := application.ParseAddress("account", values.Get("account"))
	if err != nil {
		return application.HistoryQuery{}, err
	}
	token, err := application.ParseAddress("token", values.Get("token"))
	if err != nil {
		return application.HistoryQuery{}, err
	}
	page, err := parseIntParam(values.Get("page"), "page")
	if err != nil {
		return application.HistoryQuery{}, err
	}
	pageSize, err := parseIntParam(values.Get("page_size"), "page_size")
	if err != nil {
		return application.HistoryQuery{}, err
	}
	if pageSize > maxPageSize {
		return application.HistoryQuery{}, fmt.Errorf("%w: page_size must be at most %d", domain.ErrMalformedInput, maxPageSize)
	}
	filter, err := application.ParseHistoryFilter(values.Get("filter"))
	if err != nil {
		return application.HistoryQuery{}, err
	}
	return application.HistoryQuery{
		Account:  account,
		Token:    token,
		Page:     page,
		PageSize: pageSize,
		Filter:   filter,
		Search:   values.Get("search"),
	}, nil
}

func parseIntParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%w: invalid %s", domain.ErrMalformedInput, name)
	}
	return value, nil
}

func optionalAddress(field, raw string) (common.Address, error) {
	if raw == "" {
		return common.Address{}, nil
	}
	return application.ParseAddress(field, raw)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrMalformedInput, err)
	}
	return nil
}

type errorBody struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrMalformedInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnsupportedOperation):
		return http.StatusNotImplemented
	case errors.Is(err, domain.ErrDecryption):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNetwork), errors.Is(err, domain.ErrReconstruction):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "request_id", RequestID(r.Context()), "status", status, "err", err)
	}
	respondJSON(w, status, errorBody{Error: err.Error(), Retryable: domain.Retryable(err) || errors.Is(err, context.DeadlineExceeded)})
}
