package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host      string `env:"HOST,default=0.0.0.0"`
	Port      int    `env:"PORT,default=8080"`
	DebugPort int    `env:"DEBUG_PORT,default=8081"`
	LogLevel  string `env:"LOG_LEVEL,default=INFO"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`

	// The embedded bus binds NatsHost; port -1 picks a free one.
	NatsHost string `env:"NATS_HOST,default=127.0.0.1"`
	NatsPort int    `env:"NATS_PORT,default=-1"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	BufferSize           int           `env:"BUFFER_SIZE,default=64"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=16"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=2s"`
	StatsInterval        time.Duration `env:"STATS_INTERVAL,default=15s"`

	// QueueTTL zero keeps waiting users queued forever.
	QueueTTL        time.Duration `env:"QUEUE_TTL,default=2m"`
	JanitorInterval time.Duration `env:"JANITOR_INTERVAL,default=30s"`

	LimitMessages    *int `env:"LIMIT_MESSAGES"`
	MaxContentLength int  `env:"MAX_CONTENT_LENGTH,default=500"`
	RevealThreshold  int  `env:"REVEAL_THRESHOLD,default=50"`

	CharReplacement string `env:"CHARACTER_REPLACEMENT,default=*"`

	// Comma separated lists; see SplitList.
	BroadcastRooms string `env:"BROADCAST_ROOMS,default=lobby"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS,default=*"`

	RequestsPerMinute      int `env:"REQUESTS_PER_MINUTE,default=300"`
	TokenRequestsPerMinute int `env:"TOKEN_REQUESTS_PER_MINUTE,default=30"`
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

// SplitList turns a comma separated variable into its entries,
// trimming whitespace and dropping empties.
func SplitList(raw string) []string {
	var items []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}
