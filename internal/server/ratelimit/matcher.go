package ratelimit

import "strings"

// MatchEndpoint returns the configuration whose method matches and whose suffix ends the path.
// The longest suffix wins. GET /health is unlimited. Returns nil when nothing matches.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if path == "/health" && method == "GET" {
		return &EndpointConfig{Suffix: "/health", Method: method}
	}

	var best *EndpointConfig
	for i := range configs {
		config := &configs[i]
		if config.Method != method || !strings.HasSuffix(path, config.Suffix) {
			continue
		}
		if best == nil || len(config.Suffix) > len(best.Suffix) {
			best = config
		}
	}
	return best
}
