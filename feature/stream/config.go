package stream

// Config holds configuration for the internal frame stream.
type Config struct {
	// ListenAddr is where the collector serves the frame streams.
	ListenAddr string `mapstructure:"listen_addr" default:":7011"`
	// URL is the base URL consumers dial, e.g. "ws://localhost:7011".
	URL string `mapstructure:"url" default:"ws://localhost:7011"`
	// SessionBuffer is the per-session outbound frame buffer; a session
	// falling this far behind is disconnected.
	SessionBuffer int `mapstructure:"session_buffer" default:"256"`
	// RetryDelayMS is the initial reconnect delay of the subscriber.
	RetryDelayMS int `mapstructure:"retry_delay_ms" default:"500"`
	// RetryMaxDelayMS caps the exponential reconnect backoff.
	RetryMaxDelayMS int `mapstructure:"retry_max_delay_ms" default:"30000"`
}
