// Package config loads operator-tunable thresholds from a bundled
// YAML defaults file, then lets environment variables override any
// field, matching the layering of the original service's pydantic
// Settings class.
package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds every operator-tunable value the optimizer and
// re-routing subsystem read at runtime.
type Config struct {
	GoogleMapsAPIKey  string `yaml:"-"`
	RedisURL          string `yaml:"-"`
	DatabaseURL       string `yaml:"-"`
	LogLevel          string `yaml:"-"`

	MaxStopsPerRoute          int     `yaml:"maxStopsPerRoute"`
	MatrixTTLSeconds          int     `yaml:"matrixTTLSeconds"`
	SolverWallClockSeconds    int     `yaml:"solverWallClockSeconds"`
	RouteBudgetMinutes        int     `yaml:"routeBudgetMinutes"`
	SlackMinutes              int     `yaml:"slackMinutes"`
	DelayThresholdMinutes     float64 `yaml:"delayThresholdMinutes"`
	TrafficIncreaseRatio      float64 `yaml:"trafficIncreaseRatio"`
	MinRerouteIntervalSeconds int     `yaml:"minRerouteIntervalSeconds"`
	DriverStateTTLSeconds     int     `yaml:"driverStateTTLSeconds"`
	MatrixFetchTimeoutSeconds int     `yaml:"matrixFetchTimeoutSeconds"`
}

// Load parses the bundled defaults, then overlays environment
// variables. It never fails on missing env vars — only a malformed
// bundled YAML file (a build-time defect) returns an error.
func Load() (*Config, error) {
	c := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, c); err != nil {
		return nil, err
	}

	c.GoogleMapsAPIKey = os.Getenv("GOOGLE_MAPS_API_KEY")
	c.RedisURL = firstNonEmpty(os.Getenv("REDIS_URL"), redisURLFromParts())
	c.DatabaseURL = os.Getenv("DATABASE_URL")
	c.LogLevel = orDefault(os.Getenv("LOG_LEVEL"), "INFO")

	overrideInt(&c.MaxStopsPerRoute, "MAX_STOPS_PER_ROUTE")
	overrideInt(&c.MatrixTTLSeconds, "REDIS_TTL_SECONDS")
	overrideInt(&c.SolverWallClockSeconds, "MAX_OPTIMIZATION_SECONDS")
	overrideInt(&c.RouteBudgetMinutes, "ROUTE_BUDGET_MINUTES")
	overrideInt(&c.SlackMinutes, "SLACK_MINUTES")
	overrideFloat(&c.DelayThresholdMinutes, "DELAY_THRESHOLD_MINUTES")
	overrideFloat(&c.TrafficIncreaseRatio, "TRAFFIC_INCREASE_RATIO")
	overrideInt(&c.MinRerouteIntervalSeconds, "MIN_REROUTE_INTERVAL_SECONDS")
	overrideInt(&c.DriverStateTTLSeconds, "DRIVER_STATE_TTL_SECONDS")
	overrideInt(&c.MatrixFetchTimeoutSeconds, "MATRIX_FETCH_TIMEOUT_SECONDS")

	return c, nil
}

func redisURLFromParts() string {
	host := orDefault(os.Getenv("REDIS_HOST"), "localhost")
	port := orDefault(os.Getenv("REDIS_PORT"), "6379")
	return "redis://" + host + ":" + port
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func overrideInt(dst *int, env string) {
	v := os.Getenv(env)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func overrideFloat(dst *float64, env string) {
	v := os.Getenv(env)
	if v == "" {
		return
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = f
	}
}
