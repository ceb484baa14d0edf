package archive

// Config holds configuration for the snapshot archive exporter.
type Config struct {
	// Enabled toggles the exporter as a whole.
	Enabled bool `mapstructure:"enabled" default:"true"`
	// Prefix is the object key prefix timestamped dumps are written under.
	Prefix string `mapstructure:"prefix" default:"dumps"`
	// IntervalSeconds is the delay between periodic dumps.
	IntervalSeconds int `mapstructure:"interval_seconds" default:"900"`
	// RetentionCount is the number of timestamped dumps kept after pruning.
	RetentionCount int `mapstructure:"retention_count" default:"24"`
}
