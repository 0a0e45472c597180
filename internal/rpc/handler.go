// Package rpc is the request boundary: it parses the JSON-RPC-shaped inbound
// unit, resolves it through the tool registry, and serializes the result or a
// structured error back. Every response is HTTP 200; failures live in the
// error member, matching what callers of this protocol expect.
package rpc

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"analyticsgw/internal/tools"
	"analyticsgw/pkg/problems"
)

const maxBodyBytes = 1 << 20

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  map[string]any  `json:"params"`
	ID      json.RawMessage `json:"id"`
}

type errorBody struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// codeFor maps taxonomy kinds onto JSON-RPC error codes. Kinds without a
// standard code share the implementation-defined server-error code.
func codeFor(kind problems.Kind) int {
	switch kind {
	case problems.KindMethodNotFound:
		return -32601
	case problems.KindInvalidParams:
		return -32602
	case problems.KindInternal:
		return -32603
	default:
		return -32000
	}
}

// Handler serves tool calls on POST.
func Handler(reg *tools.Registry, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeParseError(w)
			return
		}
		var req request
		if err := json.Unmarshal(body, &req); err != nil || req.Method == "" {
			writeParseError(w)
			return
		}
		id := req.ID
		if id == nil {
			id = json.RawMessage("null")
		}
		res, derr := reg.Dispatch(r.Context(), tools.Call{Method: req.Method, Params: req.Params})
		out := map[string]any{"jsonrpc": "2.0", "id": id}
		if derr != nil {
			kind := problems.KindOf(derr)
			msg := "internal error"
			var pe *problems.Error
			if errors.As(derr, &pe) {
				msg = pe.Message
			}
			out["error"] = errorBody{
				Code:    codeFor(kind),
				Kind:    string(kind),
				Type:    problems.Type(kind),
				Message: msg,
			}
		} else {
			out["result"] = res
		}
		writeJSON(w, out)
	}
}

// InfoHandler serves the GET service-info document: name, status, tool list.
func InfoHandler(service string, reg *tools.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"service": service,
			"status":  "running",
			"tools":   reg.Names(),
		})
	}
}

func writeParseError(w http.ResponseWriter) {
	writeJSON(w, map[string]any{
		"jsonrpc": "2.0",
		"error": errorBody{
			Code:    -32700,
			Kind:    string(problems.KindInvalidParams),
			Type:    problems.Type(problems.KindInvalidParams),
			Message: "parse error",
		},
		"id": nil,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
