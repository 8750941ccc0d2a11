package api

import (
	"errors"
	"net/http"

	"github.com/kjannette/papertrade-backend/internal/strategy"
	"github.com/kjannette/papertrade-backend/internal/trading"
)

func (s *Server) handleStrategyRun(w http.ResponseWriter, r *http.Request) {
	policy, ok := s.policy(w, r)
	if !ok {
		return
	}
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "strategy runner not configured")
		return
	}

	quantity, err := parseDecimal(r, "quantity", false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.runner.Run(r.Context(), policy, r.PathValue("symbol"), quantity)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, strategy.ErrNotEnoughData):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case trading.IsBusinessError(err), errors.Is(err, trading.ErrPersistence):
		s.writeTradeError(w, r, "strategy run", err)
	default:
		// candle source trouble
		s.log.WithError(err).Warn("strategy run failed")
		writeError(w, http.StatusBadGateway, err.Error())
	}
}
