package cmd

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dispatch-sim/dispatch-sim/dispatch"
)

// ScenarioConfig is the YAML file layout: named scenarios keyed by name.
type ScenarioConfig struct {
	Scenarios map[string]Scenario `yaml:"scenarios"`
}

// FleetEntry declares one vehicle. A zero capacity falls back to the
// instance's vehicle_capacity.
type FleetEntry struct {
	ID       int `yaml:"id"`
	Capacity int `yaml:"capacity"`
}

// Scenario is one replay setup: solver selection, policy knobs, fleet and
// horizon. Depot overrides the instance origin when set.
type Scenario struct {
	ClusteringAlgo string `yaml:"clustering_algo"`
	RoutingAlgo    string `yaml:"routing_algo"`
	HybridAlgo     string `yaml:"hybrid_algo"`

	AvgSpeedKmh               float64 `yaml:"avg_speed_kmh"`
	DispatchDelayBuffer       float64 `yaml:"dispatch_delay_buffer_minutes"`
	SlackUsageRatio           float64 `yaml:"slack_usage_ratio"`
	UrgencyWindowMinutes      float64 `yaml:"urgency_window_minutes"`
	UrgentReadyCountThreshold int     `yaml:"urgent_ready_count_threshold"`
	GatherPending             bool    `yaml:"gather_pending"`

	Fleet          []FleetEntry    `yaml:"fleet"`
	Depot          *dispatch.Point `yaml:"depot"`
	Start          time.Time       `yaml:"start"`
	HorizonMinutes int             `yaml:"horizon_minutes"`
}

// SimulationConfig maps the scenario onto the core configuration, keeping the
// policy defaults for knobs the YAML leaves at zero.
func (s *Scenario) SimulationConfig() dispatch.SimulationConfig {
	cfg := dispatch.DefaultSimulationConfig()
	cfg.ClusteringAlgo = dispatch.ClusteringAlgorithm(s.ClusteringAlgo)
	cfg.RoutingAlgo = dispatch.RoutingAlgorithm(s.RoutingAlgo)
	cfg.HybridAlgo = dispatch.HybridAlgorithm(s.HybridAlgo)
	if s.AvgSpeedKmh > 0 {
		cfg.AvgSpeedKmh = s.AvgSpeedKmh
	}
	if s.DispatchDelayBuffer > 0 {
		cfg.DispatchDelayBufferMinutes = s.DispatchDelayBuffer
	}
	if s.SlackUsageRatio > 0 {
		cfg.SlackUsageRatio = s.SlackUsageRatio
	}
	if s.UrgencyWindowMinutes > 0 {
		cfg.UrgencyWindowMinutes = s.UrgencyWindowMinutes
	}
	if s.UrgentReadyCountThreshold > 0 {
		cfg.UrgentReadyCountThreshold = s.UrgentReadyCountThreshold
	}
	cfg.GatherPending = s.GatherPending
	return cfg
}

// GetScenario reads the YAML file and returns the named scenario.
func GetScenario(path, name string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg ScenarioConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	sc, ok := cfg.Scenarios[name]
	if !ok {
		return nil, fmt.Errorf("scenario %q not found in %s", name, path)
	}
	if len(sc.Fleet) == 0 {
		return nil, fmt.Errorf("scenario %q declares no fleet", name)
	}
	if sc.HorizonMinutes <= 0 {
		return nil, fmt.Errorf("scenario %q needs a positive horizon_minutes", name)
	}
	if sc.Start.IsZero() {
		return nil, fmt.Errorf("scenario %q needs a start instant", name)
	}
	return &sc, nil
}
