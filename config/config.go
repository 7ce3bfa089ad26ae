// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/juju/errors"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	StoragePOSIX = "posix"
	StorageS3    = "s3"
	StorageGCS   = "gcs"
	StorageAzure = "azure"
)

// Config is the configuration shared by the trainer, the server and the CLI.
type Config struct {
	Dataset DatasetConfig `mapstructure:"dataset"`
	Train   TrainConfig   `mapstructure:"train"`
	Storage StorageConfig `mapstructure:"storage"`
	Server  ServerConfig  `mapstructure:"server"`
	Reload  ReloadConfig  `mapstructure:"reload"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// DatasetConfig locates playlist transactions. Path is either a CSV file or a
// sqlite://, mysql:// or postgres:// DSN.
type DatasetConfig struct {
	Path           string `mapstructure:"path" validate:"required"`
	Table          string `mapstructure:"table" validate:"required"`
	PlaylistColumn string `mapstructure:"playlist_column" validate:"required"`
	TrackColumn    string `mapstructure:"track_column" validate:"required"`
	Separator      string `mapstructure:"separator" validate:"len=1"`
}

type TrainConfig struct {
	MinSupport     float64 `mapstructure:"min_support" validate:"gt=0,lte=1"`
	MinConfidence  float64 `mapstructure:"min_confidence" validate:"gt=0,lte=1"`
	SampleSize     int     `mapstructure:"sample_size" validate:"gte=0"`
	SampleSeed     int64   `mapstructure:"sample_seed"`
	MaxItemsetSize int     `mapstructure:"max_itemset_size" validate:"gte=2,lte=24"`
	MaxLength      int     `mapstructure:"max_length" validate:"gte=0"`
	Jobs           int     `mapstructure:"jobs" validate:"gt=0"`
}

type StorageConfig struct {
	Type      string          `mapstructure:"type" validate:"oneof=posix s3 gcs azure"`
	Dir       string          `mapstructure:"dir" validate:"required_if=Type posix"`
	ModelName string          `mapstructure:"model_name" validate:"required"`
	S3        S3Config        `mapstructure:"s3"`
	GCS       GCSConfig       `mapstructure:"gcs"`
	Azure     AzureBlobConfig `mapstructure:"azure"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type AzureBlobConfig struct {
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	Endpoint         string `mapstructure:"endpoint"`
	ConnectionString string `mapstructure:"connection_string"`
	Container        string `mapstructure:"container"`
	Prefix           string `mapstructure:"prefix"`
}

type ServerConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	DefaultN int    `mapstructure:"default_n" validate:"gt=0"`
	MaxN     int    `mapstructure:"max_n" validate:"gtefield=DefaultN"`
	Version  string `mapstructure:"version"`
}

type ReloadConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type TracingConfig struct {
	EnableTracing     bool    `mapstructure:"enable_tracing"`
	Exporter          string  `mapstructure:"exporter" validate:"oneof=zipkin otlp otlphttp"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"`
	Sampler           string  `mapstructure:"sampler" validate:"oneof=always never ratio"`
	Ratio             float64 `mapstructure:"ratio" validate:"gte=0,lte=1"`
}

// NewTracerProvider creates the tracer provider of a service. Tracing is a no-op unless
// enabled.
func (config *TracingConfig) NewTracerProvider(service string) (trace.TracerProvider, error) {
	if !config.EnableTracing {
		return noop.NewTracerProvider(), nil
	}

	var (
		exporter tracesdk.SpanExporter
		err      error
	)
	switch config.Exporter {
	case "zipkin":
		exporter, err = zipkin.New(config.CollectorEndpoint)
	case "otlp":
		client := otlptracegrpc.NewClient(otlptracegrpc.WithInsecure(), otlptracegrpc.WithEndpoint(config.CollectorEndpoint))
		exporter, err = otlptrace.New(context.TODO(), client)
	case "otlphttp":
		client := otlptracehttp.NewClient(otlptracehttp.WithInsecure(), otlptracehttp.WithEndpoint(config.CollectorEndpoint))
		exporter, err = otlptrace.New(context.TODO(), client)
	default:
		return nil, errors.NotSupportedf("exporter %s", config.Exporter)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}

	var sampler tracesdk.Sampler
	switch config.Sampler {
	case "always":
		sampler = tracesdk.AlwaysSample()
	case "never":
		sampler = tracesdk.NeverSample()
	case "ratio":
		sampler = tracesdk.TraceIDRatioBased(config.Ratio)
	default:
		return nil, errors.NotSupportedf("sampler %s", config.Sampler)
	}

	return tracesdk.NewTracerProvider(
		tracesdk.WithSampler(sampler),
		tracesdk.WithBatcher(exporter),
		tracesdk.WithResource(resource.NewSchemaless(
			attribute.String("service.name", service),
		)),
	), nil
}

func GetDefaultConfig() *Config {
	return &Config{
		Dataset: DatasetConfig{
			Path:           "2023_spotify_ds1.csv",
			Table:          "playlist_tracks",
			PlaylistColumn: "pid",
			TrackColumn:    "track_name",
			Separator:      ",",
		},
		Train: TrainConfig{
			MinSupport:     0.05,
			MinConfidence:  0.5,
			SampleSize:     10000,
			SampleSeed:     42,
			MaxItemsetSize: 12,
			Jobs:           1,
		},
		Storage: StorageConfig{
			Type:      StoragePOSIX,
			Dir:       "models",
			ModelName: "recommendation_model.bin",
		},
		Server: ServerConfig{
			Host:     "127.0.0.1",
			Port:     5000,
			DefaultN: 10,
			MaxN:     100,
			Version:  "1.0",
		},
		Reload: ReloadConfig{
			Interval: 5 * time.Second,
			Timeout:  30 * time.Second,
		},
		Tracing: TracingConfig{
			Exporter: "otlp",
			Sampler:  "always",
			Ratio:    1,
		},
	}
}

// Validate checks every field against its constraints.
func (config *Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := validate.Struct(config); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fieldErr := validationErrors[0]
			return errors.NotValidf("%s (%s=%s, got %v)",
				strings.TrimPrefix(fieldErr.Namespace(), "Config."),
				fieldErr.Tag(), fieldErr.Param(), fieldErr.Value())
		}
		return errors.Trace(err)
	}
	return nil
}

func setDefault() {
	defaultConfig := GetDefaultConfig()
	// [dataset]
	viper.SetDefault("dataset.path", defaultConfig.Dataset.Path)
	viper.SetDefault("dataset.table", defaultConfig.Dataset.Table)
	viper.SetDefault("dataset.playlist_column", defaultConfig.Dataset.PlaylistColumn)
	viper.SetDefault("dataset.track_column", defaultConfig.Dataset.TrackColumn)
	viper.SetDefault("dataset.separator", defaultConfig.Dataset.Separator)
	// [train]
	viper.SetDefault("train.min_support", defaultConfig.Train.MinSupport)
	viper.SetDefault("train.min_confidence", defaultConfig.Train.MinConfidence)
	viper.SetDefault("train.sample_size", defaultConfig.Train.SampleSize)
	viper.SetDefault("train.sample_seed", defaultConfig.Train.SampleSeed)
	viper.SetDefault("train.max_itemset_size", defaultConfig.Train.MaxItemsetSize)
	viper.SetDefault("train.max_length", defaultConfig.Train.MaxLength)
	viper.SetDefault("train.jobs", defaultConfig.Train.Jobs)
	// [storage]
	viper.SetDefault("storage.type", defaultConfig.Storage.Type)
	viper.SetDefault("storage.dir", defaultConfig.Storage.Dir)
	viper.SetDefault("storage.model_name", defaultConfig.Storage.ModelName)
	// [server]
	viper.SetDefault("server.host", defaultConfig.Server.Host)
	viper.SetDefault("server.port", defaultConfig.Server.Port)
	viper.SetDefault("server.default_n", defaultConfig.Server.DefaultN)
	viper.SetDefault("server.max_n", defaultConfig.Server.MaxN)
	viper.SetDefault("server.version", defaultConfig.Server.Version)
	// [reload]
	viper.SetDefault("reload.interval", defaultConfig.Reload.Interval)
	viper.SetDefault("reload.timeout", defaultConfig.Reload.Timeout)
	// [tracing]
	viper.SetDefault("tracing.enable_tracing", defaultConfig.Tracing.EnableTracing)
	viper.SetDefault("tracing.exporter", defaultConfig.Tracing.Exporter)
	viper.SetDefault("tracing.collector_endpoint", defaultConfig.Tracing.CollectorEndpoint)
	viper.SetDefault("tracing.sampler", defaultConfig.Tracing.Sampler)
	viper.SetDefault("tracing.ratio", defaultConfig.Tracing.Ratio)
}

type configBinding struct {
	key string
	env string
}

// LoadConfig loads configuration from a TOML or YAML file. An empty path loads defaults only.
// Environment variables override file values.
func LoadConfig(path string) (*Config, error) {
	// set default config
	setDefault()

	// bind environment bindings
	bindings := []configBinding{
		{"dataset.path", "PLAYLIST_DATASET_PATH"},
		{"dataset.table", "PLAYLIST_DATASET_TABLE"},
		{"train.min_support", "PLAYLIST_TRAIN_MIN_SUPPORT"},
		{"train.min_confidence", "PLAYLIST_TRAIN_MIN_CONFIDENCE"},
		{"train.sample_size", "PLAYLIST_TRAIN_SAMPLE_SIZE"},
		{"train.sample_seed", "PLAYLIST_TRAIN_SAMPLE_SEED"},
		{"train.jobs", "PLAYLIST_TRAIN_JOBS"},
		{"storage.type", "PLAYLIST_STORAGE_TYPE"},
		{"storage.dir", "PLAYLIST_STORAGE_DIR"},
		{"storage.model_name", "PLAYLIST_STORAGE_MODEL_NAME"},
		{"storage.s3.endpoint", "PLAYLIST_S3_ENDPOINT"},
		{"storage.s3.access_key_id", "PLAYLIST_S3_ACCESS_KEY_ID"},
		{"storage.s3.secret_access_key", "PLAYLIST_S3_SECRET_ACCESS_KEY"},
		{"storage.s3.bucket", "PLAYLIST_S3_BUCKET"},
		{"storage.gcs.bucket", "PLAYLIST_GCS_BUCKET"},
		{"storage.gcs.credentials_file", "PLAYLIST_GCS_CREDENTIALS_FILE"},
		{"storage.azure.account_name", "PLAYLIST_AZURE_ACCOUNT_NAME"},
		{"storage.azure.account_key", "PLAYLIST_AZURE_ACCOUNT_KEY"},
		{"storage.azure.connection_string", "PLAYLIST_AZURE_CONNECTION_STRING"},
		{"storage.azure.container", "PLAYLIST_AZURE_CONTAINER"},
		{"server.host", "PLAYLIST_SERVER_HOST"},
		{"server.port", "PLAYLIST_SERVER_PORT"},
		{"reload.interval", "PLAYLIST_RELOAD_INTERVAL"},
		{"tracing.enable_tracing", "PLAYLIST_TRACING_ENABLE"},
		{"tracing.collector_endpoint", "PLAYLIST_TRACING_COLLECTOR_ENDPOINT"},
	}
	for _, binding := range bindings {
		if err := viper.BindEnv(binding.key, binding.env); err != nil {
			return nil, errors.Trace(err)
		}
	}

	// load config file
	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}

	// unmarshal config file
	var conf Config
	if err := viper.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}
