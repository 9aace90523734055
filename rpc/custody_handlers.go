package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"custodia/native/custody"
)

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	switch req.Method {
	case "custody_deposit":
		s.mutate(w, req, s.handleDeposit)
	case "custody_withdraw":
		s.mutate(w, req, s.handleWithdraw)
	case "custody_recoverFunds":
		s.privileged(w, r, req, s.handleRecoverFunds)
	case "custody_setNativePerTxCap":
		s.privileged(w, r, req, s.handleSetNativePerTxCap)
	case "custody_grantRole":
		s.privileged(w, r, req, s.handleGrantRole)
	case "custody_revokeRole":
		s.privileged(w, r, req, s.handleRevokeRole)
	case "custody_setOracleRound":
		s.privileged(w, r, req, s.handleSetOracleRound)
	case "custody_reconcile":
		s.privileged(w, r, req, s.handleReconcile)
	case "custody_getBalance":
		s.handleGetBalance(w, req)
	case "custody_getBalanceInAccountingUnits":
		s.handleGetAccountingBalance(w, req)
	case "custody_getBankBalance":
		s.handleGetBankBalance(w, req)
	case "custody_getRemainingCapacity":
		s.handleGetRemainingCapacity(w, req)
	case "custody_getNativePerTxCap":
		s.handleGetNativePerTxCap(w, req)
	case "custody_getCounters":
		s.handleGetCounters(w, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method))
	}
}

// mutate serializes handlers that change engine state.
func (s *Server) mutate(w http.ResponseWriter, req *RPCRequest, handler func(http.ResponseWriter, *RPCRequest)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	handler(w, req)
}

// privileged requires the bearer token before serializing the handler.
func (s *Server) privileged(w http.ResponseWriter, r *http.Request, req *RPCRequest, handler func(http.ResponseWriter, *RPCRequest)) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "missing or invalid bearer token")
		return
	}
	s.mutate(w, req, handler)
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected a single params object, got %d", len(req.Params))
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount is required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

type balanceResult struct {
	Asset   string `json:"asset"`
	Balance string `json:"balance"`
}

type depositParams struct {
	Caller   string `json:"caller"`
	Asset    string `json:"asset"`
	Amount   string `json:"amount"`
	Attached string `json:"attached"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, req *RPCRequest) {
	var params depositParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := custody.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	var attached *big.Int
	if strings.TrimSpace(params.Attached) != "" {
		attached, err = parseAmount(params.Attached)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
			return
		}
	}
	balance, err := s.engine.Deposit(caller, params.Asset, amount, attached)
	if err != nil {
		writeEngineError(w, req.ID, "deposit", err)
		return
	}
	writeResult(w, req.ID, balanceResult{Asset: params.Asset, Balance: balance.String()})
}

type withdrawParams struct {
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, req *RPCRequest) {
	var params withdrawParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := custody.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	balance, err := s.engine.Withdraw(caller, params.Asset, amount)
	if err != nil {
		writeEngineError(w, req.ID, "withdraw", err)
		return
	}
	writeResult(w, req.ID, balanceResult{Asset: params.Asset, Balance: balance.String()})
}

type recoverParams struct {
	Caller     string `json:"caller"`
	User       string `json:"user"`
	Asset      string `json:"asset"`
	NewBalance string `json:"newBalance"`
}

func (s *Server) handleRecoverFunds(w http.ResponseWriter, req *RPCRequest) {
	var params recoverParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := custody.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	user, err := custody.ParseAddress(params.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	newBalance, err := parseAmount(params.NewBalance)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	old, err := s.engine.RecoverFunds(caller, user, params.Asset, newBalance)
	if err != nil {
		writeEngineError(w, req.ID, "recoverFunds", err)
		return
	}
	writeResult(w, req.ID, map[string]string{
		"asset":      params.Asset,
		"oldBalance": old.String(),
		"newBalance": newBalance.String(),
	})
}

type setCapParams struct {
	Caller string `json:"caller"`
	Cap    string `json:"cap"`
}

func (s *Server) handleSetNativePerTxCap(w http.ResponseWriter, req *RPCRequest) {
	var params setCapParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := custody.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	var cap *big.Int
	if strings.TrimSpace(params.Cap) != "" {
		cap, err = parseAmount(params.Cap)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
			return
		}
	}
	if err := s.engine.SetNativePerTxCap(caller, cap); err != nil {
		writeEngineError(w, req.ID, "setNativePerTxCap", err)
		return
	}
	writeResult(w, req.ID, map[string]string{"cap": s.engine.NativePerTxCap().String()})
}

type roleParams struct {
	Caller string `json:"caller"`
	Role   string `json:"role"`
	Target string `json:"target"`
}

func (s *Server) roleChange(w http.ResponseWriter, req *RPCRequest, apply func(caller [20]byte, role custody.Role, target [20]byte) error) {
	var params roleParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := custody.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	target, err := custody.ParseAddress(params.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	role := custody.Role(strings.TrimSpace(params.Role))
	if role != custody.RoleAdmin && role != custody.RoleManager {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("unknown role %q", params.Role))
		return
	}
	if err := apply(caller, role, target); err != nil {
		writeEngineError(w, req.ID, "roleChange", err)
		return
	}
	writeResult(w, req.ID, map[string]string{"role": string(role), "target": params.Target})
}

func (s *Server) handleGrantRole(w http.ResponseWriter, req *RPCRequest) {
	s.roleChange(w, req, s.engine.Roles().Grant)
}

func (s *Server) handleRevokeRole(w http.ResponseWriter, req *RPCRequest) {
	s.roleChange(w, req, s.engine.Roles().Revoke)
}

type oracleRoundParams struct {
	RoundID         uint64 `json:"roundId"`
	Price           string `json:"price"`
	StartedAt       int64  `json:"startedAt"`
	UpdatedAt       int64  `json:"updatedAt"`
	AnsweredInRound uint64 `json:"answeredInRound"`
	Decimals        uint8  `json:"decimals"`
}

func (s *Server) handleSetOracleRound(w http.ResponseWriter, req *RPCRequest) {
	if s.manualFeed == nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "oracle is not in manual mode")
		return
	}
	var params oracleRoundParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	price, err := parseAmount(params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	s.manualFeed.SetRound(custody.RoundData{
		RoundID:         params.RoundID,
		Price:           price,
		StartedAt:       params.StartedAt,
		UpdatedAt:       params.UpdatedAt,
		AnsweredInRound: params.AnsweredInRound,
		Decimals:        params.Decimals,
	})
	writeResult(w, req.ID, map[string]uint64{"roundId": params.RoundID})
}

func (s *Server) handleReconcile(w http.ResponseWriter, req *RPCRequest) {
	report, err := s.engine.Reconcile()
	if err != nil {
		writeEngineError(w, req.ID, "reconcile", err)
		return
	}
	writeResult(w, req.ID, map[string]string{
		"holdings":     report.Holdings.String(),
		"trackedTotal": report.TrackedTotal.String(),
		"delta":        report.Delta.String(),
	})
}

type accountParams struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
}

func (s *Server) handleGetBalance(w http.ResponseWriter, req *RPCRequest) {
	var params accountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	account, err := custody.ParseAddress(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	balance, err := s.engine.Balance(account, params.Asset)
	if err != nil {
		writeEngineError(w, req.ID, "getBalance", err)
		return
	}
	writeResult(w, req.ID, balanceResult{Asset: params.Asset, Balance: balance.String()})
}

func (s *Server) handleGetAccountingBalance(w http.ResponseWriter, req *RPCRequest) {
	var params accountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	account, err := custody.ParseAddress(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	amount, err := s.engine.BalanceInAccountingUnits(account, params.Asset)
	if err != nil {
		writeEngineError(w, req.ID, "getBalance", err)
		return
	}
	writeResult(w, req.ID, map[string]string{
		"asset":   params.Asset,
		"balance": amount.BigInt().String(),
		"display": amount.String(),
	})
}

func (s *Server) handleGetBankBalance(w http.ResponseWriter, req *RPCRequest) {
	held, err := s.engine.BankBalance()
	if err != nil {
		writeEngineError(w, req.ID, "getBankBalance", err)
		return
	}
	writeResult(w, req.ID, map[string]string{"holdings": held.String()})
}

func (s *Server) handleGetRemainingCapacity(w http.ResponseWriter, req *RPCRequest) {
	remaining, err := s.engine.RemainingCapacity()
	if err != nil {
		writeEngineError(w, req.ID, "getRemainingCapacity", err)
		return
	}
	writeResult(w, req.ID, map[string]string{"remaining": remaining.String()})
}

func (s *Server) handleGetNativePerTxCap(w http.ResponseWriter, req *RPCRequest) {
	writeResult(w, req.ID, map[string]string{"cap": s.engine.NativePerTxCap().String()})
}

func (s *Server) handleGetCounters(w http.ResponseWriter, req *RPCRequest) {
	deposits, err := s.engine.DepositCount()
	if err != nil {
		writeEngineError(w, req.ID, "getCounters", err)
		return
	}
	withdrawals, err := s.engine.WithdrawCount()
	if err != nil {
		writeEngineError(w, req.ID, "getCounters", err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"deposits": deposits, "withdrawals": withdrawals})
}
