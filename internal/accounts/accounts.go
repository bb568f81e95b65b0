// Package accounts parses the credential list handed in through the
// environment: identifier-secret pairs joined by '&', each pair split on
// the first '-' only, since secrets may themselves contain dashes.
package accounts

import (
	"fmt"
	"strings"

	"github.com/copyleftdev/portalwatch/internal/outcome"
)

type Credential struct {
	Identifier string
	Secret     string
}

// Report carries the parsed credentials plus a human-readable reason for
// every discarded segment, in input order.
type Report struct {
	Credentials []Credential
	Discarded   []string
}

const pairSeparator = "-"
const listSeparator = "&"

// ParseList splits raw into credential pairs. A segment with no separator or
// with an empty side after trimming is discarded and reported, not fatal.
// An absent or empty list is a configuration error: the run has nothing to do.
func ParseList(raw string) (Report, error) {
	if strings.TrimSpace(raw) == "" {
		return Report{}, &outcome.ConfigurationError{Reason: "account list is empty"}
	}

	var rep Report
	for _, segment := range strings.Split(raw, listSeparator) {
		id, secret, found := strings.Cut(segment, pairSeparator)
		if !found {
			rep.Discarded = append(rep.Discarded, discardReason(segment, "no separator"))
			continue
		}
		id = strings.TrimSpace(id)
		secret = strings.TrimSpace(secret)
		if id == "" || secret == "" {
			rep.Discarded = append(rep.Discarded, discardReason(segment, "empty identifier or secret"))
			continue
		}
		rep.Credentials = append(rep.Credentials, Credential{Identifier: id, Secret: secret})
	}

	if len(rep.Credentials) == 0 {
		return rep, &outcome.ConfigurationError{Reason: "no well-formed account entries"}
	}
	return rep, nil
}

// discardReason truncates the offending segment so secrets never leak into
// the report in full.
func discardReason(segment, why string) string {
	const keep = 10
	trimmed := strings.TrimSpace(segment)
	if len(trimmed) > keep {
		trimmed = trimmed[:keep] + "..."
	}
	return fmt.Sprintf("skipped malformed entry %q (%s)", trimmed, why)
}
