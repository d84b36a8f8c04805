// Package pipeline orchestrates a dissemination attempt end to end: fetch
// the work snapshot, validate eligibility, derive the metadata artifact,
// build the delivery package, transmit it, and record the assigned
// location back at the registry. It owns the attempt-level error taxonomy
// and the terminal outcome vocabulary shared by the CLI, the queue worker,
// and the bulk runner.
package pipeline

import (
	"fmt"
	"sort"
)

// Platform identifies one delivery target.
type Platform string

const (
	OpenArchive    Platform = "openarchive"
	BookStream     Platform = "bookstream"
	ScholarDeposit Platform = "scholardeposit"
	ResearchVault  Platform = "researchvault"
	CrawlDirect    Platform = "crawldirect"
)

var knownPlatforms = map[Platform]struct{}{
	OpenArchive:    {},
	BookStream:     {},
	ScholarDeposit: {},
	ResearchVault:  {},
	CrawlDirect:    {},
}

// ParsePlatform validates a platform name from the CLI or a queue payload.
func ParsePlatform(name string) (Platform, error) {
	p := Platform(name)
	if _, ok := knownPlatforms[p]; !ok {
		return "", fmt.Errorf("unknown platform %q (known: %v)", name, AllPlatforms())
	}
	return p, nil
}

// AllPlatforms returns every known platform in stable order.
func AllPlatforms() []Platform {
	out := make([]Platform, 0, len(knownPlatforms))
	for p := range knownPlatforms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (p Platform) String() string { return string(p) }
