package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"
)

// InfluxSink posts per-cycle stats to an external HTTP(S) endpoint using
// InfluxDB line-protocol text:
//
//	measurement,hostname=<h>,set=<i> k1=v1,k2=v2,... \n
//
// The engine only requires that stats be posted somewhere in this wire
// format; InfluxSink is one concrete, optional implementation.
type InfluxSink struct {
	URL      string
	Hostname string
	Client   *http.Client
}

// NewInfluxSink builds a sink posting to url. If url is empty the sink is
// considered unconfigured and PostStats is a no-op.
func NewInfluxSink(url string) *InfluxSink {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &InfluxSink{
		URL:      url,
		Hostname: hostname,
		Client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// PostStats encodes one measurement line and POSTs it. set identifies the
// instance or converter index the fields belong to, carried as the
// ",set=<i>" tag. A sink with an empty URL silently does nothing.
func (s *InfluxSink) PostStats(measurement string, set int, fields map[string]int64) error {
	if s == nil || s.URL == "" {
		return nil
	}
	line := encodeLine(measurement, s.Hostname, set, fields)
	req, err := http.NewRequest(http.MethodPost, s.URL, bytes.NewBufferString(line))
	if err != nil {
		return fmt.Errorf("metrics: build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("metrics: post stats: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("metrics: stats endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// encodeLine renders one InfluxDB line-protocol record with deterministic
// field ordering so tests and operators see stable output.
func encodeLine(measurement, hostname string, set int, fields map[string]int64) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%di", k, fields[k]))
	}

	return fmt.Sprintf("%s,hostname=%s,set=%d %s\n", measurement, hostname, set, strings.Join(parts, ","))
}
