package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"escrowd/crypto"
	"escrowd/escrow"
	"escrowd/observability"
)

const (
	codeEscrowInvalidParams = -32021
	codeEscrowNotFound      = -32022
	codeEscrowForbidden     = -32023
	codeEscrowConflict      = -32024
	codeEscrowInternal      = -32025
)

type escrowInitiateParams struct {
	Buyer  string `json:"buyer"`
	Seller string `json:"seller"`
	Amount string `json:"amount"`
}

type escrowDepositParams struct {
	ID    *uint64 `json:"id"`
	From  string  `json:"from"`
	Value string  `json:"value"`
}

type escrowActorParams struct {
	ID     *uint64 `json:"id"`
	Caller string  `json:"caller"`
}

type escrowIDParams struct {
	ID *uint64 `json:"id"`
}

type balanceParams struct {
	Address string `json:"address"`
}

type escrowInitiateResult struct {
	ID uint64 `json:"id"`
}

type escrowJSON struct {
	ID             uint64 `json:"id"`
	Buyer          string `json:"buyer"`
	Seller         string `json:"seller"`
	Amount         string `json:"amount"`
	BuyerApproved  bool   `json:"buyerApproved"`
	SellerApproved bool   `json:"sellerApproved"`
	State          string `json:"state"`
	CreatedAt      int64  `json:"createdAt"`
}

type balanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

func (s *Server) handleEscrowInitiate(w http.ResponseWriter, req *RPCRequest) {
	var params escrowInitiateParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	buyer, err := parseAddress(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	seller, err := parseAddress(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := s.engine.Initiate(buyer, seller, amount)
	if err != nil {
		writeEscrowError(w, req, err)
		return
	}
	writeResult(w, req.ID, escrowInitiateResult{ID: id})
}

func (s *Server) handleEscrowDeposit(w http.ResponseWriter, req *RPCRequest) {
	var params escrowDepositParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	if params.ID == nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", "id required")
		return
	}
	from, err := parseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	value, err := parsePositiveBigInt(params.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.Deposit(*params.ID, from, value); err != nil {
		writeEscrowError(w, req, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleEscrowComplete(w http.ResponseWriter, req *RPCRequest) {
	s.handleEscrowTransition(w, req, s.engine.Complete)
}

func (s *Server) handleEscrowCancel(w http.ResponseWriter, req *RPCRequest) {
	s.handleEscrowTransition(w, req, s.engine.Cancel)
}

func (s *Server) handleEscrowTransition(w http.ResponseWriter, req *RPCRequest, fn func(uint64, [20]byte) error) {
	var params escrowActorParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	if params.ID == nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", "id required")
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := fn(*params.ID, caller); err != nil {
		writeEscrowError(w, req, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleEscrowGet(w http.ResponseWriter, req *RPCRequest) {
	var params escrowIDParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	if params.ID == nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", "id required")
		return
	}
	esc, err := s.engine.Get(*params.ID)
	if err != nil {
		writeEscrowError(w, req, err)
		return
	}
	writeResult(w, req.ID, formatEscrowJSON(esc))
}

func (s *Server) handleGetBalance(w http.ResponseWriter, req *RPCRequest) {
	var params balanceParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	acc, err := s.ledger.GetAccount(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeEscrowInternal, "internal_error", err.Error())
		return
	}
	writeResult(w, req.ID, balanceResult{
		Address: crypto.MustNewAddress(addr[:]).String(),
		Balance: acc.Balance.String(),
		Nonce:   acc.Nonce,
	})
}

func decodeSingleParam(w http.ResponseWriter, req *RPCRequest, out interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", "exactly one parameter object expected")
		return false
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return false
	}
	return true
}

func parseAddress(addr string) ([20]byte, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return [20]byte{}, fmt.Errorf("address required")
	}
	decoded, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return [20]byte{}, err
	}
	return decoded.Raw(), nil
}

func parsePositiveBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount")
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func formatEscrowJSON(esc *escrow.Escrow) escrowJSON {
	amount := "0"
	if esc.Amount != nil {
		amount = esc.Amount.String()
	}
	return escrowJSON{
		ID:             esc.ID,
		Buyer:          crypto.MustNewAddress(esc.Buyer[:]).String(),
		Seller:         crypto.MustNewAddress(esc.Seller[:]).String(),
		Amount:         amount,
		BuyerApproved:  esc.BuyerApproved,
		SellerApproved: esc.SellerApproved,
		State:          esc.State.String(),
		CreatedAt:      esc.CreatedAt,
	}
}

func writeEscrowError(w http.ResponseWriter, req *RPCRequest, err error) {
	if err == nil {
		return
	}
	status := http.StatusInternalServerError
	code := codeEscrowInternal
	message := "internal_error"
	switch {
	case errors.Is(err, escrow.ErrNotFound):
		status = http.StatusNotFound
		code = codeEscrowNotFound
		message = "not_found"
	case errors.Is(err, escrow.ErrUnauthorized):
		status = http.StatusForbidden
		code = codeEscrowForbidden
		message = "forbidden"
	case errors.Is(err, escrow.ErrSelfDealing):
		status = http.StatusBadRequest
		code = codeEscrowInvalidParams
		message = "self_dealing"
	case errors.Is(err, escrow.ErrInvalidAmount):
		status = http.StatusBadRequest
		code = codeEscrowInvalidParams
		message = "invalid_amount"
	case errors.Is(err, escrow.ErrInvalidState):
		status = http.StatusConflict
		code = codeEscrowConflict
		message = "invalid_state"
	case errors.Is(err, escrow.ErrAlreadyApproved):
		status = http.StatusConflict
		code = codeEscrowConflict
		message = "already_approved"
	case errors.Is(err, escrow.ErrTransferFailed):
		status = http.StatusInternalServerError
		code = codeEscrowInternal
		message = "transfer_failed"
	}
	observability.RPCMetrics().ObserveError(req.Method, message)
	writeError(w, status, req.ID, code, message, err.Error())
}
