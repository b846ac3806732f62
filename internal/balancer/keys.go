// Package balancer ranks eligible candidates under one of several
// strategies (ordered / round-robin / weighted-rr / quota-aware-weighted-rr),
// skipping candidates in cooldown or rate-limit exhausted, and commits the
// route cursor for the selected candidate.
package balancer

import (
	"net/url"

	"github.com/tributary-ai/llm-router/internal/resolver"
)

// CandidateKey builds the state-store key for a candidate.
func CandidateKey(c *resolver.Candidate) string {
	return "candidate:" + url.QueryEscape(c.RequestModelID) + "@" + url.QueryEscape(string(c.TargetFormat))
}

// RouteKey builds the state-store key for a route's round-robin cursor.
func RouteKey(routeType, routeRef, sourceFormat string) string {
	return "route:" + url.QueryEscape(routeType) + ":" + url.QueryEscape(routeRef) + "@" + url.QueryEscape(sourceFormat)
}
