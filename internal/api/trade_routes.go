package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kjannette/papertrade-backend/internal/fees"
	"github.com/kjannette/papertrade-backend/internal/models"
	"github.com/kjannette/papertrade-backend/internal/trading"
	"github.com/shopspring/decimal"
)

type executeResponse struct {
	Message string          `json:"message"`
	ID      int64           `json:"id"`
	Ref     string          `json:"ref"`
	Charges fees.Breakdown  `json:"charges"`
	Balance decimal.Decimal `json:"balance"`
}

type exitResponse struct {
	Message string          `json:"message"`
	Charges fees.Breakdown  `json:"charges"`
	Balance decimal.Decimal `json:"balance"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	policy, ok := s.policy(w, r)
	if !ok {
		return
	}

	var order trading.Order
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&order); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	exec, err := s.trader.ExecuteTrade(r.Context(), policy, order)
	if err != nil {
		s.writeTradeError(w, r, "trade execution", err)
		return
	}

	writeJSON(w, http.StatusCreated, executeResponse{
		Message: "Trade executed",
		ID:      exec.Trade.ID,
		Ref:     exec.Trade.Ref,
		Charges: exec.Charges,
		Balance: exec.Balance,
	})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	policy, ok := s.policy(w, r)
	if !ok {
		return
	}

	positions, err := s.trader.Portfolio(r.Context(), policy)
	if err != nil {
		s.writeTradeError(w, r, "portfolio", err)
		return
	}
	writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	policy, ok := s.policy(w, r)
	if !ok {
		return
	}

	trades, err := s.trader.RecentTrades(r.Context(), policy, parseLimit(r, trading.DefaultTradeLimit))
	if err != nil {
		s.writeTradeError(w, r, "trade history", err)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	policy, ok := s.policy(w, r)
	if !ok {
		return
	}

	summary, err := s.trader.AccountSummary(r.Context(), policy)
	if err != nil {
		s.writeTradeError(w, r, "account", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleExit(w http.ResponseWriter, r *http.Request) {
	policy, ok := s.policy(w, r)
	if !ok {
		return
	}

	price, err := parseDecimal(r, "price", true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	quantity, err := parseDecimal(r, "quantity", false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	symbol := strings.ToUpper(r.PathValue("symbol"))
	exec, err := s.trader.ExitPosition(r.Context(), policy, symbol, price, quantity)
	if err != nil {
		s.writeTradeError(w, r, "exit position", err)
		return
	}

	writeJSON(w, http.StatusOK, exitResponse{
		Message: fmt.Sprintf("Exited %s position", symbol),
		Charges: exec.Charges,
		Balance: exec.Balance,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	policy, ok := s.policy(w, r)
	if !ok {
		return
	}

	res, err := s.trader.ResetAccount(r.Context(), policy)
	if err != nil {
		s.writeTradeError(w, r, "account reset", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	policy, ok := s.policy(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	price, err := parseDecimal(r, "price", true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	quantity, err := parseDecimal(r, "quantity", true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	breakdown, err := s.trader.EstimateCharges(policy,
		models.Side(q.Get("side")), models.ProductType(q.Get("product_type")), price, quantity)
	if err != nil {
		s.writeTradeError(w, r, "charge estimate", err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}
