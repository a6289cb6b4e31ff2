package forwarder

import "strings"

// topicNameFromURI extracts the bare topic name from the
// "//host[:port]/topic" or bare "topic" forms. The host portion, when present, is
// informational only: this engine drives a single Broker Client Pool
// built from the configured default broker list, so a per-topic host
// override has nowhere else to route to; only the topic segment is used.
func topicNameFromURI(uri string) string {
	if !strings.HasPrefix(uri, "//") {
		return uri
	}
	rest := uri[2:]
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		return rest[idx+1:]
	}
	return ""
}
