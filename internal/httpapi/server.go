// Package httpapi exposes the query adapter over HTTP: three
// resolution routes plus a summary /stats endpoint, matching the JSON
// shape of spec.md §6.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/lgaroche/monique-indexer/internal/commit"
	"github.com/lgaroche/monique-indexer/internal/common"
	"github.com/lgaroche/monique-indexer/internal/monicerr"
	"github.com/lgaroche/monique-indexer/internal/query"
)

// Server serves the read-only query surface.
type Server struct {
	adapter *query.Adapter
	engine  *commit.Engine
}

// New returns a Server backed by adapter for lookups and engine for
// the /stats endpoint's head summary.
func New(adapter *query.Adapter, engine *commit.Engine) *Server {
	return &Server{adapter: adapter, engine: engine}
}

// Handler builds the chi router: CORS-open for read-only GETs, per the
// query surface being safe to expose broadly.
func (s *Server) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))
	mux.Get("/index/{i}", s.handleByIndex)
	mux.Get("/address/{a}", s.handleByAddress)
	mux.Get("/monic/{m}", s.handleByMonic)
	mux.Get("/stats", s.handleStats)
	return mux
}

// ListenAndServe binds addr and serves until the listener errors or ctx
// is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	server := &http.Server{Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		server.Close()
	}()
	return server.Serve(listener)
}

type resultJSON struct {
	Index   string `json:"index"`
	Monic   string `json:"monic"`
	Address string `json:"address"`
}

func writeResult(w http.ResponseWriter, res query.Result) {
	writeJSON(w, http.StatusOK, resultJSON{
		Index:   strconv.FormatUint(res.Index, 10),
		Monic:   res.Monic,
		Address: res.Address.Hex(),
	})
}

type errorJSON struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, monicerr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, monicerr.ErrInvalidMonic), errors.Is(err, monicerr.ErrInvalidChecksum), errors.Is(err, monicerr.ErrUnknown):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorJSON{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleByIndex(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseUint(chi.URLParam(r, "i"), 10, 64)
	if err != nil {
		writeError(w, monicerr.ErrInvalidMonic)
		return
	}
	res, err := s.adapter.ByIndex(r.Context(), index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeResult(w, res)
}

func (s *Server) handleByAddress(w http.ResponseWriter, r *http.Request) {
	addr, err := common.HexToAddress(chi.URLParam(r, "a"))
	if err != nil {
		writeError(w, monicerr.ErrInvalidMonic)
		return
	}
	res, err := s.adapter.ByAddress(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeResult(w, res)
}

func (s *Server) handleByMonic(w http.ResponseWriter, r *http.Request) {
	res, err := s.adapter.ByMonic(r.Context(), chi.URLParam(r, "m"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeResult(w, res)
}

type statsJSON struct {
	LastBlock       uint64 `json:"last_block"`
	UniqueAddresses uint64 `json:"unique_addresses"`
	NextIndex       uint64 `json:"next_index"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := query.LoadStats(r.Context(), s.engine)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsJSON{
		LastBlock:       stats.LastBlock,
		UniqueAddresses: stats.UniqueAddresses,
		NextIndex:       stats.NextIndex,
	})
}
