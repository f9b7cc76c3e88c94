package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/FallyxInc/cortex-behaviours/internal/service"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Details string `json:"details,omitempty"`
	Step    string `json:"step,omitempty"`
}

func statusFor(kind service.ErrorKind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports client errors with their own message and server errors
// under msg with the cause in details.
func writeError(w http.ResponseWriter, err error, msg string) {
	kind := service.KindOf(err)
	status := statusFor(kind)
	body := errorBody{Error: msg, Kind: string(kind)}

	var svcErr *service.Error
	switch {
	case status < http.StatusInternalServerError:
		body.Error = err.Error()
	case errors.As(err, &svcErr) && svcErr.Kind == service.KindPipelineStep:
		body.Step = svcErr.Step
		body.Details = svcErr.Output
		if body.Details == "" {
			body.Details = svcErr.Error()
		}
	default:
		body.Details = err.Error()
	}
	writeJSON(w, status, body)
}

func writeValidation(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Kind: string(service.KindValidation)})
}
