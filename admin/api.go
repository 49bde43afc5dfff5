// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/orbitforge/worldmarket/econ"
)

// defaultTaxLogLimit bounds a tax log listing when the request does not say.
const defaultTaxLogLimit = 50

// writeJSON marshals the provided interface and writes the bytes to the
// ResponseWriter. The response code is assumed to be StatusOK.
func writeJSON(w http.ResponseWriter, thing interface{}) {
	writeJSONWithStatus(w, thing, http.StatusOK)
}

// writeJSONWithStatus marshals the provided interface and writes the bytes to
// the ResponseWriter with the specified response code.
func writeJSONWithStatus(w http.ResponseWriter, thing interface{}, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(thing); err != nil {
		log.Errorf("JSON encode error: %v", err)
	}
}

func uint32Param(r *http.Request, key string) (uint32, error) {
	v, err := strconv.ParseUint(chi.URLParam(r, key), 10, 32)
	return uint32(v), err
}

// apiPing is the handler for the '/ping' API request.
func (_ *Server) apiPing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, "pong")
}

// apiMarkets is the handler for the '/markets' API request.
func (s *Server) apiMarkets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.core.Markets())
}

// apiMarketInfo is the handler for the '/market/{marketID}' API request.
func (s *Server) apiMarketInfo(w http.ResponseWriter, r *http.Request) {
	mkt, err := uint32Param(r, marketIDKey)
	if err != nil {
		http.Error(w, "invalid market id", http.StatusBadRequest)
		return
	}
	for _, info := range s.core.Markets() {
		if info.ID == econ.MarketID(mkt) {
			writeJSON(w, info)
			return
		}
	}
	http.Error(w, fmt.Sprintf("unknown market %d", mkt), http.StatusBadRequest)
}

// priceResult is the response body for price feed queries.
type priceResult struct {
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
	Known    bool    `json:"known"`
}

// apiMarketPrice is the handler for the '/market/{marketID}/price/{itemDef}'
// API request.
func (s *Server) apiMarketPrice(w http.ResponseWriter, r *http.Request) {
	mkt, err := uint32Param(r, marketIDKey)
	if err != nil {
		http.Error(w, "invalid market id", http.StatusBadRequest)
		return
	}
	def, err := uint32Param(r, itemDefKey)
	if err != nil {
		http.Error(w, "invalid item def", http.StatusBadRequest)
		return
	}
	avg, ok, err := s.core.MarketAverage(r.Context(), econ.MarketID(mkt), econ.ItemDefID(def))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, &priceResult{Price: avg.Price, Quantity: avg.Quantity, Known: ok})
}

// apiWorldPrice is the handler for the '/worldprice/{itemDef}' API request.
func (s *Server) apiWorldPrice(w http.ResponseWriter, r *http.Request) {
	def, err := uint32Param(r, itemDefKey)
	if err != nil {
		http.Error(w, "invalid item def", http.StatusBadRequest)
		return
	}
	avg, ok, err := s.core.WorldAverage(r.Context(), econ.ItemDefID(def))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, &priceResult{Price: avg.Price, Quantity: avg.Quantity, Known: ok})
}

// apiTaxLog is the handler for the '/taxlog/{baseID}?n=N' API request.
func (s *Server) apiTaxLog(w http.ResponseWriter, r *http.Request) {
	base, err := uint32Param(r, baseIDKey)
	if err != nil {
		http.Error(w, "invalid base id", http.StatusBadRequest)
		return
	}
	s.writeTaxLog(w, r, econ.BaseID(base))
}

// apiMarketTaxLog is the handler for the '/market/{marketID}/taxlog?n=N' API
// request. It serves the audit log of the market's docking base.
func (s *Server) apiMarketTaxLog(w http.ResponseWriter, r *http.Request) {
	mkt, err := uint32Param(r, marketIDKey)
	if err != nil {
		http.Error(w, "invalid market id", http.StatusBadRequest)
		return
	}
	for _, info := range s.core.Markets() {
		if info.ID == econ.MarketID(mkt) {
			s.writeTaxLog(w, r, info.BaseID)
			return
		}
	}
	http.Error(w, fmt.Sprintf("unknown market %d", mkt), http.StatusBadRequest)
}

func (s *Server) writeTaxLog(w http.ResponseWriter, r *http.Request, base econ.BaseID) {
	limit := defaultTaxLogLimit
	if nStr := r.URL.Query().Get("n"); nStr != "" {
		n, err := strconv.Atoi(nStr)
		if err != nil || n <= 0 {
			http.Error(w, fmt.Sprintf("invalid limit %q", nStr), http.StatusBadRequest)
			return
		}
		limit = n
	}
	changes, err := s.core.TaxLog(r.Context(), base, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, changes)
}

// apiSetTax is the handler for the '/market/{marketID}/tax?rate=R' API
// request. This is the operator override; player-issued changes go through
// the market aggregate with role checks and audit logging.
func (s *Server) apiSetTax(w http.ResponseWriter, r *http.Request) {
	mkt, err := uint32Param(r, marketIDKey)
	if err != nil {
		http.Error(w, "invalid market id", http.StatusBadRequest)
		return
	}
	rateStr := r.URL.Query().Get("rate")
	rate, err := strconv.ParseFloat(rateStr, 64)
	if err != nil || rate < 0 || rate > 1 {
		http.Error(w, fmt.Sprintf("invalid tax rate %q", rateStr), http.StatusBadRequest)
		return
	}
	if err := s.core.SetMarketTax(r.Context(), econ.MarketID(mkt), rate); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	log.Infof("admin set market %d tax rate to %.4f", mkt, rate)
	writeJSON(w, "ok")
}

// apiTreasury is the handler for the '/treasury' API request.
func (s *Server) apiTreasury(w http.ResponseWriter, r *http.Request) {
	bal, err := s.core.TreasuryBalance(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, &struct {
		Balance int64 `json:"balance"`
	}{bal})
}
