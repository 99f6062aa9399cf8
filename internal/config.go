package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host string `env:"HOST"`
	Port int    `env:"PORT,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`

	// Outbound queue size of each session; the router never blocks on a
	// full queue, it drops instead.
	ConnectionBufferSize int `env:"CONNECTION_BUFFER_SIZE,required=true"`
	// Capacity of the observability event channel.
	BufferSize int `env:"BUFFER_SIZE,required=true"`

	LimitMessages    *int          `env:"LIMIT_MESSAGES"`
	MaxContentLength int           `env:"MAX_CONTENT_LENGTH,required=true"`
	RecentFeedSize   int           `env:"RECENT_FEED_SIZE,required=true"`
	SearchLimit      int           `env:"SEARCH_LIMIT,required=true"`
	CharReplacement  string        `env:"CHARACTER_REPLACEMENT,required=true"`
	SendTimeout      time.Duration `env:"SEND_TIMEOUT,required=true"`
	MetricInterval   time.Duration `env:"METRIC_INTERVAL,required=true"`
	LatencyThreshold time.Duration `env:"LATENCY_THRESHOLD,required=true"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`

	DebugPort int `env:"DEBUG_PORT"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
