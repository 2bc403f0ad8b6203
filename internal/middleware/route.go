package middleware

import (
	"net/http"

	"github.com/gorilla/mux"
)

// UnmatchedRoute labels requests no route matched.
const UnmatchedRoute = "unmatched"

// RouteTemplate returns the path template of the matched gorilla/mux route
// (e.g. "/strategies/{strategyID}/rankings"). Requests that did not match a
// route, or that are served outside a router, return UnmatchedRoute.
func RouteTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return UnmatchedRoute
	}
	tmpl, err := route.GetPathTemplate()
	if err != nil || tmpl == "" {
		return UnmatchedRoute
	}
	return tmpl
}
