// Package server contains the HTTP plumbing shared by device wrappers:
// goji-keyed route tables and the small JSON payload types used to move
// scalars between client and server.
package server

import (
	"encoding/json"
	"fmt"
	"go/types"
	"log"
	"net/http"

	"goji.io"
)

// RouteTable maps goji patterns to HTTP handlers
type RouteTable map[goji.Pattern]http.HandlerFunc

// Endpoints lists the patterns in the table as strings
func (rt RouteTable) Endpoints() []string {
	routes := make([]string, 0, len(rt))
	for p := range rt {
		if s, ok := p.(fmt.Stringer); ok {
			routes = append(routes, s.String())
		}
	}
	return routes
}

// Bind attaches every route in the table to the mux
func (rt RouteTable) Bind(m *goji.Mux) {
	for p, h := range rt {
		m.HandleFunc(p, h)
	}
}

// HTTPer is a type which exposes an HTTP route table
type HTTPer interface {
	RT() RouteTable
}

// FloatT is a struct with a single f64 field, used for json requests/responses
type FloatT struct {
	F64 float64 `json:"f64"`
}

// IntT is a struct with a single int field, used for json requests/responses
type IntT struct {
	Int int `json:"int"`
}

// BoolT is a struct with a single bool field, used for json requests/responses
type BoolT struct {
	Bool bool `json:"bool"`
}

// StrT is a struct with a single str field, used for json requests/responses
type StrT struct {
	Str string `json:"str"`
}

// HumanPayload is a struct that bundles a basic type with its kind, so that
// one handler tail can return any scalar as json
type HumanPayload struct {
	// T holds the type of data actually populated
	T types.BasicKind

	// Bool holds a boolean
	Bool bool

	// Int holds an integer
	Int int

	// Float holds a float
	Float float64

	// String holds a string
	String string
}

// EncodeAndRespond writes the payload as json of the appropriate shape
// ({"bool": ...}, {"int": ...}, and so on) with a 200 status
func (hp HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	var (
		obj interface{}
		err error
	)
	switch hp.T {
	case types.Bool:
		obj = BoolT{Bool: hp.Bool}
	case types.Int:
		obj = IntT{Int: hp.Int}
	case types.Float64:
		obj = FloatT{F64: hp.Float}
	case types.String:
		obj = StrT{Str: hp.String}
	default:
		err = fmt.Errorf("unsupported payload kind %v", hp.T)
	}
	if err == nil {
		err = json.NewEncoder(w).Encode(obj)
	}
	if err != nil {
		fstr := fmt.Sprintf("error encoding response to json %q", err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusInternalServerError)
	}
}
