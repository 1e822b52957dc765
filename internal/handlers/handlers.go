// Package handlers exposes the services as a JSON API.
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/diewo77/medcrm/httpx"
	"github.com/diewo77/medcrm/internal/pipeline"
)

// ActorHeader names the user performing an action. Authentication is out of
// scope, so the header is trusted as given.
const ActorHeader = "X-Actor"

func actor(r *http.Request) string {
	if a := strings.TrimSpace(r.Header.Get(ActorHeader)); a != "" {
		return a
	}
	return "anonymous"
}

// sortParams reads ?sort= and ?order=.
func sortParams(r *http.Request) (string, pipeline.Order) {
	q := r.URL.Query()
	return strings.TrimSpace(q.Get("sort")), pipeline.Order(strings.ToLower(strings.TrimSpace(q.Get("order"))))
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, httpx.BadRequest("%s must be an integer", name)
	}
	return n, nil
}

func boolParam(r *http.Request, name string) (bool, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, httpx.BadRequest("%s must be a boolean", name)
	}
	return b, nil
}
