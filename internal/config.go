package internal

import (
	"fmt"
	"time"
)

type Config struct {
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=5s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	HealthInterval       time.Duration `env:"HEALTH_INTERVAL,default=30s"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	UploadDir            string        `env:"UPLOAD_DIR,default=uploads"`
	PublicBaseURL        string        `env:"PUBLIC_BASE_URL,default=http://localhost:8080"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
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
