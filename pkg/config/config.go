package config

import (
	"errors"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/trelay/trelay/pkg/util"
)

const defaultMetricsEndpoint = "https://hsp-prod.rockshore.net/api/v1/serviceMetrics"
const defaultDetailsEndpoint = "https://hsp-prod.rockshore.net/api/v1/serviceDetails"

const defaultCacheDirectory = "logs"
const defaultCacheMaxSizeMB = 300
const defaultDetailFanout = 4

// Credentials are forwarded to the HSP API as-is and never inspected.
type Credentials struct {
	Email    string
	Password string
}

// Config is built once at startup and passed into constructors explicitly.
type Config struct {
	RailCredentials Credentials

	MetricsEndpoint string
	DetailsEndpoint string

	CacheDirectory string
	CacheMaxSizeMB int

	StationCodesPath string

	// DetailFanout bounds concurrent serviceDetails lookups. 1 means
	// sequential processing.
	DetailFanout int

	OpenAIKey string

	RedisAddress  string
	RedisPassword string
	RedisDatabase int
}

// Load assembles the configuration from a .env file (if present) and the
// process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded environment from .env file")
	}

	env := util.GetEnvironmentVariables()

	config := &Config{
		RailCredentials: Credentials{
			Email:    env["TRELAY_RAIL_EMAIL"],
			Password: env["TRELAY_RAIL_PASSWORD"],
		},

		MetricsEndpoint: defaultMetricsEndpoint,
		DetailsEndpoint: defaultDetailsEndpoint,

		CacheDirectory: defaultCacheDirectory,
		CacheMaxSizeMB: defaultCacheMaxSizeMB,

		StationCodesPath: env["TRELAY_STATION_CODES"],

		DetailFanout: defaultDetailFanout,

		OpenAIKey: env["TRELAY_OPENAI_KEY"],

		RedisAddress:  env["TRELAY_REDIS_ADDRESS"],
		RedisPassword: env["TRELAY_REDIS_PASSWORD"],
	}

	if env["TRELAY_HSP_METRICS_ENDPOINT"] != "" {
		config.MetricsEndpoint = env["TRELAY_HSP_METRICS_ENDPOINT"]
	}

	if env["TRELAY_HSP_DETAILS_ENDPOINT"] != "" {
		config.DetailsEndpoint = env["TRELAY_HSP_DETAILS_ENDPOINT"]
	}

	if env["TRELAY_CACHE_DIRECTORY"] != "" {
		config.CacheDirectory = env["TRELAY_CACHE_DIRECTORY"]
	}

	if env["TRELAY_CACHE_MAX_SIZE_MB"] != "" {
		n, err := strconv.Atoi(env["TRELAY_CACHE_MAX_SIZE_MB"])
		if err != nil {
			return nil, err
		}
		config.CacheMaxSizeMB = n
	}

	if env["TRELAY_DETAIL_FANOUT"] != "" {
		n, err := strconv.Atoi(env["TRELAY_DETAIL_FANOUT"])
		if err != nil {
			return nil, err
		}
		if n < 1 {
			n = 1
		}
		config.DetailFanout = n
	}

	if env["TRELAY_REDIS_DATABASE"] != "" {
		n, err := strconv.Atoi(env["TRELAY_REDIS_DATABASE"])
		if err != nil {
			return nil, err
		}
		config.RedisDatabase = n
	}

	return config, nil
}

// RequireCredentials returns an error when the HSP credentials are missing.
// Commands that talk to the upstream API call this before doing any work.
func (c *Config) RequireCredentials() error {
	if c.RailCredentials.Email == "" || c.RailCredentials.Password == "" {
		return errors.New("TRELAY_RAIL_EMAIL and TRELAY_RAIL_PASSWORD must be set")
	}

	return nil
}
