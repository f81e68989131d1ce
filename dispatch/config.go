package dispatch

import "fmt"

// ClusteringAlgorithm tokens are bit-stable wire strings.
type ClusteringAlgorithm string

const (
	ClusteringCKMeans ClusteringAlgorithm = "ckmeans"
	ClusteringGreedy  ClusteringAlgorithm = "greedy_clustering"
)

// RoutingAlgorithm tokens are bit-stable wire strings.
type RoutingAlgorithm string

const (
	RoutingBRKGA  RoutingAlgorithm = "brkga"
	RoutingGreedy RoutingAlgorithm = "greedy_routing"
)

// HybridAlgorithm tokens are bit-stable wire strings.
type HybridAlgorithm string

const (
	HybridGreedyInsertion HybridAlgorithm = "greedy_insertion"
	HybridBRKGA           HybridAlgorithm = "brkga_hybrid"
	HybridManual          HybridAlgorithm = "manual"
)

// SimulationConfig selects the solver family and carries the dispatch-policy
// knobs. Exactly one of (ClusteringAlgo + RoutingAlgo) or HybridAlgo must be
// populated.
type SimulationConfig struct {
	ClusteringAlgo ClusteringAlgorithm `json:"clustering_algo,omitempty" yaml:"clustering_algo"`
	RoutingAlgo    RoutingAlgorithm    `json:"routing_algo,omitempty" yaml:"routing_algo"`
	HybridAlgo     HybridAlgorithm     `json:"hybrid_algo,omitempty" yaml:"hybrid_algo"`

	AvgSpeedKmh                float64 `json:"avg_speed_kmh" yaml:"avg_speed_kmh"`
	DispatchDelayBufferMinutes float64 `json:"dispatch_delay_buffer_minutes" yaml:"dispatch_delay_buffer_minutes"`
	SlackUsageRatio            float64 `json:"slack_usage_ratio" yaml:"slack_usage_ratio"`
	UrgencyWindowMinutes       float64 `json:"urgency_window_minutes" yaml:"urgency_window_minutes"`
	UrgentReadyCountThreshold  int     `json:"urgent_ready_count_threshold" yaml:"urgent_ready_count_threshold"`

	// GatherPending widens orchestrator eligibility to PENDING deliveries.
	// Off by default: only READY deliveries are planned, for both the
	// two-stage and the hybrid branch.
	GatherPending bool `json:"gather_pending" yaml:"gather_pending"`
}

// DefaultSimulationConfig returns the policy defaults with no solver family
// selected.
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		AvgSpeedKmh:                50,
		DispatchDelayBufferMinutes: 5,
		SlackUsageRatio:            0.5,
		UrgencyWindowMinutes:       10,
		UrgentReadyCountThreshold:  5,
	}
}

// IsHybrid reports whether the hybrid branch is selected.
func (c SimulationConfig) IsHybrid() bool {
	return c.HybridAlgo != ""
}

// Validate checks that exactly one solver family is configured and that the
// tokens are recognized.
func (c SimulationConfig) Validate() error {
	twoStage := c.ClusteringAlgo != "" && c.RoutingAlgo != ""
	partial := (c.ClusteringAlgo != "") != (c.RoutingAlgo != "")
	switch {
	case c.IsHybrid() && (twoStage || partial):
		return fmt.Errorf("config: hybrid_algo excludes clustering_algo/routing_algo")
	case !c.IsHybrid() && !twoStage:
		return fmt.Errorf("config: provide either hybrid_algo or both clustering_algo and routing_algo")
	}
	if c.IsHybrid() {
		switch c.HybridAlgo {
		case HybridGreedyInsertion, HybridBRKGA, HybridManual:
		default:
			return fmt.Errorf("config: unknown hybrid_algo %q", c.HybridAlgo)
		}
		return nil
	}
	switch c.ClusteringAlgo {
	case ClusteringCKMeans, ClusteringGreedy:
	default:
		return fmt.Errorf("config: unknown clustering_algo %q", c.ClusteringAlgo)
	}
	switch c.RoutingAlgo {
	case RoutingBRKGA, RoutingGreedy:
	default:
		return fmt.Errorf("config: unknown routing_algo %q", c.RoutingAlgo)
	}
	return nil
}
