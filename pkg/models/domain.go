package models

import "fmt"

// Domain identifies the target domain a workflow certifies against.
type Domain string

const (
	DomainCore       Domain = "core"
	DomainTransport  Domain = "transport"
	DomainBanking    Domain = "banking"
	DomainHealthcare Domain = "healthcare"
)

// AllDomains lists every supported domain.
var AllDomains = []Domain{
	DomainCore,
	DomainTransport,
	DomainBanking,
	DomainHealthcare,
}

// ParseDomain validates a domain token and returns the typed value.
func ParseDomain(s string) (Domain, error) {
	for _, domain := range AllDomains {
		if Domain(s) == domain {
			return domain, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownDomain, s)
}

// defaultStagesByDomain is static configuration: the ordered stage plan a
// domain gets when the caller does not supply an explicit list. Regulated
// domains (banking, healthcare) include compliance; transport adds a
// performance stage on top of the core baseline.
var defaultStagesByDomain = map[Domain][]StageKind{
	DomainCore: {
		StageCodeQuality,
		StageSecurity,
		StageFunctional,
	},
	DomainTransport: {
		StageCodeQuality,
		StageSecurity,
		StageFunctional,
		StagePerformance,
	},
	DomainBanking: {
		StageCodeQuality,
		StageSecurity,
		StageCompliance,
		StageFunctional,
		StageE2E,
	},
	DomainHealthcare: {
		StageCodeQuality,
		StageSecurity,
		StageCompliance,
		StageFunctional,
		StageSoak,
	},
}

// DefaultStagesForDomain returns the default ordered stage plan for a domain.
// The returned slice is a copy, callers may mutate it freely.
func DefaultStagesForDomain(domain Domain) []StageKind {
	defaults, ok := defaultStagesByDomain[domain]
	if !ok {
		return nil
	}

	stages := make([]StageKind, len(defaults))
	copy(stages, defaults)

	return stages
}
