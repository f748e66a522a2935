package shaping

import (
	"fmt"
	"net/http"
	"sort"
)

// Built-in chaos scenarios: named bundles of shaping knobs. Activating one
// swaps the whole Config snapshot atomically.
var scenarios = map[string]*Config{
	"degraded-network": {
		Scenario: "degraded-network",
		Latency: LatencyConfig{
			Enabled:      true,
			Distribution: DistNormal,
			MeanMs:       400,
			StdDevMs:     150,
			MaxMs:        2000,
		},
		Bandwidth: BandwidthConfig{
			Enabled:        true,
			BytesPerSecond: 16 * 1024,
			BurstBytes:     4 * 1024,
		},
	},
	"flaky-backend": {
		Scenario: "flaky-backend",
		Faults: FaultConfig{
			Enabled:     true,
			Probability: 0.25,
			StatusCodes: []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable},
		},
		Latency: LatencyConfig{
			Enabled:      true,
			Distribution: DistUniform,
			MinMs:        100,
			MaxMs:        800,
		},
	},
	"brownout": {
		Scenario: "brownout",
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RPM:            30,
			ThrottleStatus: http.StatusServiceUnavailable,
		},
		Latency: LatencyConfig{
			Enabled:      true,
			Distribution: DistFixed,
			FixedMs:      1000,
		},
	},
}

// Scenarios lists the available scenario names.
func Scenarios() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ActivateScenario swaps in the named scenario's config.
func (e *Envelope) ActivateScenario(name string) error {
	cfg, ok := scenarios[name]
	if !ok {
		return fmt.Errorf("unknown chaos scenario %q", name)
	}
	e.SetConfig(cfg.Clone())
	return nil
}
