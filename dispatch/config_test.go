package dispatch

import "testing"

func TestSimulationConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SimulationConfig)
		wantErr bool
	}{
		{
			name:   "two-stage pair",
			mutate: func(c *SimulationConfig) { c.ClusteringAlgo = ClusteringCKMeans; c.RoutingAlgo = RoutingBRKGA },
		},
		{
			name:   "hybrid only",
			mutate: func(c *SimulationConfig) { c.HybridAlgo = HybridGreedyInsertion },
		},
		{
			name:    "nothing selected",
			mutate:  func(c *SimulationConfig) {},
			wantErr: true,
		},
		{
			name:    "clustering without routing",
			mutate:  func(c *SimulationConfig) { c.ClusteringAlgo = ClusteringGreedy },
			wantErr: true,
		},
		{
			name: "hybrid plus two-stage",
			mutate: func(c *SimulationConfig) {
				c.HybridAlgo = HybridManual
				c.ClusteringAlgo = ClusteringGreedy
				c.RoutingAlgo = RoutingGreedy
			},
			wantErr: true,
		},
		{
			name: "hybrid plus partial two-stage",
			mutate: func(c *SimulationConfig) {
				c.HybridAlgo = HybridBRKGA
				c.RoutingAlgo = RoutingGreedy
			},
			wantErr: true,
		},
		{
			name:    "unknown hybrid token",
			mutate:  func(c *SimulationConfig) { c.HybridAlgo = "simulated_annealing" },
			wantErr: true,
		},
		{
			name: "unknown clustering token",
			mutate: func(c *SimulationConfig) {
				c.ClusteringAlgo = "dbscan"
				c.RoutingAlgo = RoutingBRKGA
			},
			wantErr: true,
		},
		{
			name: "unknown routing token",
			mutate: func(c *SimulationConfig) {
				c.ClusteringAlgo = ClusteringCKMeans
				c.RoutingAlgo = "lkh"
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSimulationConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSimulationConfig_Defaults(t *testing.T) {
	cfg := DefaultSimulationConfig()
	if cfg.AvgSpeedKmh != 50 {
		t.Errorf("AvgSpeedKmh: got %v, want 50", cfg.AvgSpeedKmh)
	}
	if cfg.DispatchDelayBufferMinutes != 5 {
		t.Errorf("DispatchDelayBufferMinutes: got %v, want 5", cfg.DispatchDelayBufferMinutes)
	}
	if cfg.SlackUsageRatio != 0.5 {
		t.Errorf("SlackUsageRatio: got %v, want 0.5", cfg.SlackUsageRatio)
	}
	if cfg.UrgencyWindowMinutes != 10 {
		t.Errorf("UrgencyWindowMinutes: got %v, want 10", cfg.UrgencyWindowMinutes)
	}
	if cfg.UrgentReadyCountThreshold != 5 {
		t.Errorf("UrgentReadyCountThreshold: got %d, want 5", cfg.UrgentReadyCountThreshold)
	}
	if cfg.GatherPending {
		t.Error("GatherPending must default to off")
	}
}

func TestSimulationConfig_IsHybrid(t *testing.T) {
	cfg := DefaultSimulationConfig()
	if cfg.IsHybrid() {
		t.Error("empty config must not be hybrid")
	}
	cfg.HybridAlgo = HybridManual
	if !cfg.IsHybrid() {
		t.Error("config with hybrid_algo must be hybrid")
	}
}
