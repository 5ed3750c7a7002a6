package acquire

import (
	"encoding/json"
	"go/types"
	"net/http"

	"github.jpl.nasa.gov/bdube/simsync/server"
	"goji.io/pat"
)

// HTTPWrapper exposes an orchestrator over HTTP
type HTTPWrapper struct {
	// Orchestrator is the wrapped instance
	*Orchestrator

	// RouteTable maps routes to methods
	RouteTable server.RouteTable
}

// NewHTTPWrapper returns a new wrapper with the route table populated
func NewHTTPWrapper(o *Orchestrator) HTTPWrapper {
	w := HTTPWrapper{Orchestrator: o}
	w.RouteTable = server.RouteTable{
		pat.Get("/state"):       w.GetState,
		pat.Get("/config"):      w.GetConfig,
		pat.Get("/last-result"): w.GetLastResult,
		pat.Post("/run"):        w.StartRun,
		pat.Post("/abort"):      w.AbortRun,
	}
	return w
}

// RT makes HTTPWrapper conform to server.HTTPer
func (h HTTPWrapper) RT() server.RouteTable {
	return h.RouteTable
}

// GetState returns the orchestrator state as a string on a GET request
func (h HTTPWrapper) GetState(w http.ResponseWriter, r *http.Request) {
	hp := server.HumanPayload{T: types.String, String: h.Orchestrator.State().String()}
	hp.EncodeAndRespond(w, r)
}

// GetConfig returns the acquisition configuration as json
func (h HTTPWrapper) GetConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(h.Orchestrator.Config())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// GetLastResult returns the most recent run result; 404 before the first run
// has finished
func (h HTTPWrapper) GetLastResult(w http.ResponseWriter, r *http.Request) {
	res, ok := h.Orchestrator.LastResult()
	if !ok {
		http.Error(w, "no run has completed yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(res)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// StartRun launches a run in the background.  409 if one is in flight.
func (h HTTPWrapper) StartRun(w http.ResponseWriter, r *http.Request) {
	err := h.Orchestrator.StartAsync()
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// AbortRun requests cancellation of the in-flight run; takes effect at the
// next loop boundary
func (h HTTPWrapper) AbortRun(w http.ResponseWriter, r *http.Request) {
	h.Orchestrator.Abort()
	w.WriteHeader(http.StatusOK)
}
