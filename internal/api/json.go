package api

import (
	"encoding/json"
	"net/http"

	"medtransit-route/internal/apperr"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeJSON(w, status, Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

var problemTitles = map[apperr.Kind]string{
	apperr.KindValidation:          "Validation Failed",
	apperr.KindInfeasible:          "No Feasible Route",
	apperr.KindUpstreamUnavailable: "Upstream Provider Unavailable",
	apperr.KindStateUnavailable:    "State Backend Unavailable",
	apperr.KindUnknownStop:         "Unknown Stop",
	apperr.KindDriverNotFound:      "Driver Not Found",
}

func writeAppErr(w http.ResponseWriter, instance string, err error) {
	kind := apperr.KindOf(err)
	title, ok := problemTitles[kind]
	if !ok {
		title = "Internal Error"
	}
	writeProblem(w, apperr.HTTPStatus(kind), title, err.Error(), instance)
}
