package metrics

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Tinyptr metric keys
const (
	KEY_ALLOCATE_LATENCY     = "tinyptr_allocate_latency"
	KEY_DEREFERENCE_LATENCY  = "tinyptr_dereference_latency"
	KEY_ALLOCATES            = "tinyptr_allocates"
	KEY_ALLOCATE_FAILURES    = "tinyptr_allocate_failures"
	KEY_DEREFERENCES         = "tinyptr_dereferences"
	KEY_DEREFERENCE_FAILURES = "tinyptr_dereference_failures"
	KEY_FREES                = "tinyptr_frees"
	KEY_FREE_FAILURES        = "tinyptr_free_failures"
	KEY_LIVE_ENTRIES         = "tinyptr_live_entries"
	KEY_POINTER_BITS         = "tinyptr_pointer_bits"
)

// Tinyptr tag keys
const (
	TAG_TABLE_KIND     = "table_kind"
	TAG_VALUE_FIXED    = "fixed"
	TAG_VALUE_VARIABLE = "variable"

	TagEnv     = "env"
	TagService = "service"
)

var (
	statsDClient    = getDefaultClient()
	samplingRate    = 0.1
	telegrafAddress = "localhost:8125"
	appName         = ""
	initialized     = false
	once            sync.Once

	// When false, all Timing/Count/Incr/Gauge calls are no-ops (zero allocations).
	// Controlled by TINYPTR_METRICS_ENABLED env var ("true"/"1" to enable).
	metricsEnabled = loadMetricsEnabled()
)

func loadMetricsEnabled() bool {
	v := os.Getenv("TINYPTR_METRICS_ENABLED")
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1"
}

// Init initializes the metrics client
func Init() {
	if initialized {
		log.Debug().Msgf("Metrics already initialized!")
		return
	}
	once.Do(func() {
		var err error
		samplingRate = viper.GetFloat64("APP_METRIC_SAMPLING_RATE")
		appName = viper.GetString("APP_NAME")
		globalTags := getGlobalTags()

		statsDClient, err = statsd.New(
			telegrafAddress,
			statsd.WithTags(globalTags),
		)

		if err != nil {
			log.Panic().Err(err).Msg("StatsD client initialization failed")
		}
		log.Info().Msgf("Metrics client initialized with telegraf address - %s, global tags - %v, and "+
			"sampling rate - %f, tinyptr metrics enabled - %v", telegrafAddress, globalTags, samplingRate, metricsEnabled)
		initialized = true
	})
}

func getDefaultClient() *statsd.Client {
	client, _ := statsd.New("localhost:8125")
	return client
}

func getGlobalTags() []string {
	env := viper.GetString("APP_ENV")
	if len(env) == 0 {
		log.Warn().Msg("APP_ENV is not set")
	}
	service := viper.GetString("APP_NAME")
	if len(service) == 0 {
		log.Warn().Msg("APP_NAME is not set")
	}
	return []string{
		TagAsString(TagEnv, env),
		TagAsString(TagService, service),
	}
}

// Timing sends timing information. No-op when metrics are disabled.
func Timing(name string, value time.Duration, tags []string) {
	if !metricsEnabled {
		return
	}
	tags = append(tags, TagAsString(TagService, appName))
	err := statsDClient.Timing(name, value, tags, samplingRate)
	if err != nil {
		log.Warn().Err(err).Msg("Error occurred while doing statsd timing")
	}
}

// Count increases metric counter by value. No-op when metrics are disabled.
func Count(name string, value int64, tags []string) {
	if !metricsEnabled {
		return
	}
	tags = append(tags, TagAsString(TagService, appName))
	err := statsDClient.Count(name, value, tags, samplingRate)
	if err != nil {
		log.Warn().Err(err).Msg("Error occurred while doing statsd count")
	}
}

// Incr increases metric counter by 1. No-op when metrics are disabled.
func Incr(name string, tags []string) {
	if !metricsEnabled {
		return
	}
	Count(name, 1, tags)
}

// Gauge sets a gauge value. No-op when metrics are disabled.
func Gauge(name string, value float64, tags []string) {
	if !metricsEnabled {
		return
	}
	tags = append(tags, TagAsString(TagService, appName))
	err := statsDClient.Gauge(name, value, tags, samplingRate)
	if err != nil {
		log.Warn().Err(err).Msg("Error occurred while doing statsd gauge")
	}
}

// Enabled returns whether tinyptr metrics are enabled.
// Call sites should check this before allocating tags to avoid heap allocations.
func Enabled() bool {
	return metricsEnabled
}

type Tag struct {
	Key   string
	Value string
}

func NewTag(key, value string) Tag {
	return Tag{Key: key, Value: value}
}

func TagAsString(key, value string) string {
	return key + ":" + value
}

func BuildTag(tags ...Tag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, TagAsString(t.Key, t.Value))
	}
	return out
}

func GetTableKindTag(kind string) []string {
	return BuildTag(NewTag(TAG_TABLE_KIND, kind))
}
