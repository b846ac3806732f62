package resolver

import (
	"regexp"
	"strings"
)

var aliasIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]*$`)

// parsedRef is the result of parsing a route reference string.
type parsedRef struct {
	routeType  RouteType
	providerID string
	modelID    string
	aliasID    string
}

// parseRouteRef parses a route reference string:
//   - contains "/": direct -> providerId, modelId
//   - starts with "alias:": alias, remainder is the aliasId
//   - otherwise: aliasId if it matches the alias-id pattern
//   - else: invalid
func parseRouteRef(ref string) parsedRef {
	if idx := strings.IndexByte(ref, '/'); idx >= 0 {
		return parsedRef{routeType: RouteDirect, providerID: ref[:idx], modelID: ref[idx+1:]}
	}
	if rest, ok := strings.CutPrefix(ref, "alias:"); ok {
		return parsedRef{routeType: RouteAlias, aliasID: rest}
	}
	if aliasIDPattern.MatchString(ref) {
		return parsedRef{routeType: RouteAlias, aliasID: ref}
	}
	return parsedRef{routeType: RouteUnknown}
}
