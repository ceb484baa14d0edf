package tracker

// Config holds configuration for the collector.
type Config struct {
	// UpstreamURL is the base URL of the simulation backend API.
	UpstreamURL string `mapstructure:"upstream_url" default:"https://panel.simrail.eu:8084"`
	// PollIntervalSeconds is the delay between poll cycles.
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds" default:"5"`
	// MaxParallelSaves bounds how many entities are persisted at once
	// within a single cycle's task scope.
	MaxParallelSaves int `mapstructure:"max_parallel_saves" default:"8"`
	// TimeoutSeconds is the per-request timeout against the upstream API.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"15"`
}
