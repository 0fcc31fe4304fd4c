package transfers_http

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tokentransfer/internal/app/transfer"
	"tokentransfer/internal/domain"
)

const codeInvalidRequest = "INVALID_REQUEST"

type TransferHandler struct {
	service transfer.Service
	logger  *zap.Logger
}

func NewTransferHandler(s transfer.Service, l *zap.Logger) *TransferHandler {
	return &TransferHandler{service: s, logger: l}
}

type RegisterMintRequest struct {
	Mint      string `json:"mint"`
	Authority string `json:"authority"`
	Decimals  uint8  `json:"decimals"`
	Supply    uint64 `json:"supply"`
}

type TransferResponse struct {
	TransferID         string    `json:"transfer_id"`
	Mint               string    `json:"mint"`
	From               string    `json:"from"`
	To                 string    `json:"to"`
	SourceAccount      string    `json:"source_account"`
	DestinationAccount string    `json:"destination_account"`
	Amount             uint64    `json:"amount"`
	UIAmount           string    `json:"ui_amount,omitempty"`
	SourceBalance      *uint64   `json:"source_balance,omitempty"`
	DestinationBalance *uint64   `json:"destination_balance,omitempty"`
	DestinationCreated bool      `json:"destination_created"`
	Stage              string    `json:"stage,omitempty"`
	OccurredAt         time.Time `json:"occurred_at"`
}

type HoldingResponse struct {
	Address     string `json:"address"`
	Owner       string `json:"owner"`
	Mint        string `json:"mint"`
	Exists      bool   `json:"exists"`
	Balance     uint64 `json:"balance"`
	UIAmount    string `json:"ui_amount"`
	Decimals    uint8  `json:"decimals"`
	RentDeposit uint64 `json:"rent_deposit"`
}

type MintResponse struct {
	Mint             string `json:"mint"`
	Authority        string `json:"authority"`
	Decimals         uint8  `json:"decimals"`
	AuthorityAccount string `json:"authority_account"`
	Supply           uint64 `json:"supply"`
	UISupply         string `json:"ui_supply"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (h *TransferHandler) CreateTransferHandler(w http.ResponseWriter, r *http.Request) {
	var payload domain.InstructionPayload
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		h.logger.Warn("Invalid request body for CreateTransfer", zap.Error(err))
		renderError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return
	}

	signed, err := payload.Decode()
	if err != nil {
		h.renderTransferError(w, err)
		return
	}

	receipt, err := h.service.Transfer(r.Context(), signed)
	if err != nil {
		h.renderTransferError(w, err)
		return
	}

	resp := newTransferResponse(receipt.Event, receipt.Mint)
	resp.SourceBalance = &receipt.Source.Balance
	resp.DestinationBalance = &receipt.Destination.Balance
	resp.DestinationCreated = receipt.DestinationCreated
	resp.Stage = string(receipt.Stage)

	w.Header().Set("Location", "/transfers/"+receipt.TransferID)
	renderJSON(w, http.StatusCreated, resp)
}

func (h *TransferHandler) GetTransferHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	event, err := h.service.GetTransfer(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrTransferNotFound) {
			renderError(w, http.StatusNotFound, "NOT_FOUND", "transfer not found")
			return
		}
		h.logger.Error("Failed to get transfer", zap.String("transfer_id", id), zap.Error(err))
		renderError(w, http.StatusInternalServerError, string(domain.CodeLedgerFailure), "internal server error")
		return
	}
	renderJSON(w, http.StatusOK, newTransferResponse(event, nil))
}

func (h *TransferHandler) GetHoldingHandler(w http.ResponseWriter, r *http.Request) {
	owner, err := domain.ParseKey("owner", chi.URLParam(r, "owner"))
	if err != nil {
		renderError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	mint, err := domain.ParseKey("mint", chi.URLParam(r, "mint"))
	if err != nil {
		renderError(w, http.StatusBadRequest, string(domain.CodeInvalidMint), err.Error())
		return
	}

	holding, err := h.service.Holding(r.Context(), owner, mint)
	if err != nil {
		if errors.Is(err, domain.ErrMintNotFound) {
			renderError(w, http.StatusNotFound, string(domain.CodeInvalidMint), "mint not found")
			return
		}
		h.logger.Error("Failed to get holding account", zap.String("owner", owner.String()), zap.String("mint", mint.String()), zap.Error(err))
		renderError(w, http.StatusInternalServerError, string(domain.CodeLedgerFailure), "internal server error")
		return
	}

	resp := HoldingResponse{
		Address:  holding.Address.String(),
		Owner:    holding.Owner.String(),
		Mint:     holding.Mint.Address.String(),
		Exists:   holding.Exists(),
		Balance:  holding.Balance(),
		UIAmount: UIAmount(holding.Balance(), holding.Mint.Decimals),
		Decimals: holding.Mint.Decimals,
	}
	if holding.Account != nil {
		resp.RentDeposit = holding.Account.RentDeposit
	}
	renderJSON(w, http.StatusOK, resp)
}

func (h *TransferHandler) RegisterMintHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterMintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for RegisterMint", zap.Error(err))
		renderError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return
	}
	mint, err := domain.ParseKey("mint", req.Mint)
	if err != nil {
		renderError(w, http.StatusBadRequest, string(domain.CodeInvalidMint), err.Error())
		return
	}
	authority, err := domain.ParseKey("authority", req.Authority)
	if err != nil {
		renderError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	m, account, err := h.service.RegisterMint(r.Context(), transfer.MintGenesis{
		Mint:      mint,
		Authority: authority,
		Decimals:  req.Decimals,
		Supply:    req.Supply,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMintAlreadyExists):
			renderError(w, http.StatusConflict, "MINT_EXISTS", "mint already exists")
		case errors.Is(err, domain.ErrInvalidMint), errors.Is(err, domain.ErrInvalidRequest):
			renderError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		default:
			h.logger.Error("Failed to register mint", zap.String("mint", mint.String()), zap.Error(err))
			renderError(w, http.StatusInternalServerError, string(domain.CodeLedgerFailure), "internal server error")
		}
		return
	}

	renderJSON(w, http.StatusCreated, MintResponse{
		Mint:             m.Address.String(),
		Authority:        m.Authority.String(),
		Decimals:         m.Decimals,
		AuthorityAccount: account.Address.String(),
		Supply:           account.Balance,
		UISupply:         UIAmount(account.Balance, m.Decimals),
	})
}

func (h *TransferHandler) renderTransferError(w http.ResponseWriter, err error) {
	code, ok := domain.CodeOf(err)
	if !ok {
		if errors.Is(err, domain.ErrInvalidRequest) {
			renderError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
			return
		}
		code = domain.CodeLedgerFailure
	}
	status := StatusForCode(code)
	if status == http.StatusInternalServerError {
		h.logger.Error("Transfer failed", zap.Error(err))
		renderError(w, status, string(code), "internal server error")
		return
	}
	renderError(w, status, string(code), err.Error())
}

// StatusForCode maps the transfer taxonomy onto HTTP statuses.
func StatusForCode(code domain.ErrorCode) int {
	switch code {
	case domain.CodeInvalidAmount, domain.CodeInvalidMint, domain.CodeAddressMismatch:
		return http.StatusBadRequest
	case domain.CodeUnauthorized:
		return http.StatusUnauthorized
	case domain.CodeInsufficientFunds:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// UIAmount renders a base-unit amount with the mint's decimals.
func UIAmount(amount uint64, decimals uint8) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals)).String()
}

func newTransferResponse(event *domain.TransferEvent, mint *domain.Mint) TransferResponse {
	resp := TransferResponse{
		TransferID:         event.TransferID,
		Mint:               event.Mint.String(),
		From:               event.From.String(),
		To:                 event.To.String(),
		SourceAccount:      event.SourceAccount.String(),
		DestinationAccount: event.DestinationAccount.String(),
		Amount:             event.Amount,
		OccurredAt:         event.OccurredAt,
	}
	if mint != nil {
		resp.UIAmount = UIAmount(event.Amount, mint.Decimals)
	}
	return resp
}

func renderJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func renderError(w http.ResponseWriter, status int, code, message string) {
	renderJSON(w, status, ErrorResponse{Error: message, Code: code})
}
