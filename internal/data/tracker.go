package data

import (
	"net/url"
	"regexp"
	"strings"
)

var fourDigitPort = regexp.MustCompile(`:\d{4}$`)

// TrackerSummary aggregates all torrents announcing to one tracker host.
type TrackerSummary struct {
	Tracker    string
	Torrents   int64
	Uploaded   int64
	Downloaded int64
	Size       int64
	Ratio      float64
}

// StripPort removes a trailing four digit port (":6969") from a host.
// Hosts with no port or a port of another length are returned unchanged.
func StripPort(host string) string {
	return fourDigitPort.ReplaceAllString(host, "")
}

// TrackerHost extracts the host of an announce URL with the scheme, path
// and four digit port removed. Unparseable input yields UnknownTracker.
func TrackerHost(announce string) string {
	announce = strings.TrimSpace(announce)
	if announce == "" {
		return UnknownTracker
	}
	u, err := url.Parse(announce)
	if err != nil || u.Host == "" {
		// bare "host:port" has no scheme
		if !strings.Contains(announce, "/") {
			return StripPort(announce)
		}
		return UnknownTracker
	}
	return StripPort(u.Host)
}
