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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestUnmarshal(t *testing.T) {
	viper.Reset()
	data, err := os.ReadFile("config.toml.template")
	assert.NoError(t, err)
	text := string(data)
	text = strings.Replace(text, "min_support = 0.05", "min_support = 0.1", -1)
	text = strings.Replace(text, `type = "posix"`, `type = "s3"`, -1)
	text = strings.Replace(text, `bucket = ""`, `bucket = "models"`, 1)
	viper.SetConfigType("toml")
	err = viper.ReadConfig(strings.NewReader(text))
	assert.NoError(t, err)
	var config Config
	err = viper.Unmarshal(&config)
	assert.NoError(t, err)

	// [dataset]
	assert.Equal(t, "2023_spotify_ds1.csv", config.Dataset.Path)
	assert.Equal(t, "playlist_tracks", config.Dataset.Table)
	assert.Equal(t, "pid", config.Dataset.PlaylistColumn)
	assert.Equal(t, "track_name", config.Dataset.TrackColumn)
	assert.Equal(t, ",", config.Dataset.Separator)
	// [train]
	assert.Equal(t, 0.1, config.Train.MinSupport)
	assert.Equal(t, 0.5, config.Train.MinConfidence)
	assert.Equal(t, 10000, config.Train.SampleSize)
	assert.Equal(t, int64(42), config.Train.SampleSeed)
	assert.Equal(t, 12, config.Train.MaxItemsetSize)
	assert.Equal(t, 0, config.Train.MaxLength)
	assert.Equal(t, 1, config.Train.Jobs)
	// [storage]
	assert.Equal(t, StorageS3, config.Storage.Type)
	assert.Equal(t, "models", config.Storage.Dir)
	assert.Equal(t, "recommendation_model.bin", config.Storage.ModelName)
	assert.Equal(t, "models", config.Storage.S3.Bucket)
	// [server]
	assert.Equal(t, "127.0.0.1", config.Server.Host)
	assert.Equal(t, 5000, config.Server.Port)
	assert.Equal(t, 10, config.Server.DefaultN)
	assert.Equal(t, 100, config.Server.MaxN)
	assert.Equal(t, "1.0", config.Server.Version)
	// [reload]
	assert.Equal(t, 5*time.Second, config.Reload.Interval)
	assert.Equal(t, 30*time.Second, config.Reload.Timeout)
	assert.NoError(t, config.Validate())
}

func TestSetDefault(t *testing.T) {
	viper.Reset()
	setDefault()
	viper.SetConfigType("toml")
	err := viper.ReadConfig(strings.NewReader(""))
	assert.NoError(t, err)
	var config Config
	err = viper.Unmarshal(&config)
	assert.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), &config)
}

func TestBindEnv(t *testing.T) {
	viper.Reset()
	t.Setenv("PLAYLIST_DATASET_PATH", "sqlite:///tmp/playlists.db")
	t.Setenv("PLAYLIST_TRAIN_MIN_SUPPORT", "0.2")
	t.Setenv("PLAYLIST_TRAIN_MIN_CONFIDENCE", "0.7")
	t.Setenv("PLAYLIST_TRAIN_SAMPLE_SIZE", "0")
	t.Setenv("PLAYLIST_STORAGE_DIR", "/var/lib/playlist")
	t.Setenv("PLAYLIST_SERVER_PORT", "8080")
	t.Setenv("PLAYLIST_RELOAD_INTERVAL", "1m")

	config, err := LoadConfig("config.toml.template")
	assert.NoError(t, err)
	assert.Equal(t, "sqlite:///tmp/playlists.db", config.Dataset.Path)
	assert.Equal(t, 0.2, config.Train.MinSupport)
	assert.Equal(t, 0.7, config.Train.MinConfidence)
	assert.Equal(t, 0, config.Train.SampleSize)
	assert.Equal(t, "/var/lib/playlist", config.Storage.Dir)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, time.Minute, config.Reload.Interval)

	// check default values
	assert.Equal(t, 10, config.Server.DefaultN)
	assert.Equal(t, 30*time.Second, config.Reload.Timeout)
}

func TestLoadConfigYAML(t *testing.T) {
	viper.Reset()
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte("train:\n  min_support: 0.3\nreload:\n  timeout: 10s\n"), 0o644)
	assert.NoError(t, err)
	config, err := LoadConfig(path)
	assert.NoError(t, err)
	assert.Equal(t, 0.3, config.Train.MinSupport)
	assert.Equal(t, 10*time.Second, config.Reload.Timeout)
	assert.Equal(t, 0.5, config.Train.MinConfidence)

	err = os.WriteFile(path, []byte("train:\n  min_confidence: 1.5\n"), 0o644)
	assert.NoError(t, err)
	_, err = LoadConfig(path)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, GetDefaultConfig().Validate())

	cases := []func(*Config){
		func(c *Config) { c.Train.MinSupport = 0 },
		func(c *Config) { c.Train.MinSupport = 1.01 },
		func(c *Config) { c.Train.MinConfidence = -0.1 },
		func(c *Config) { c.Train.SampleSize = -1 },
		func(c *Config) { c.Train.Jobs = 0 },
		func(c *Config) { c.Train.MaxItemsetSize = 1 },
		func(c *Config) { c.Dataset.Path = "" },
		func(c *Config) { c.Dataset.Separator = ";;" },
		func(c *Config) { c.Storage.Type = "ftp" },
		func(c *Config) { c.Storage.Dir = "" },
		func(c *Config) { c.Storage.ModelName = "" },
		func(c *Config) { c.Server.MaxN = 5 },
		func(c *Config) { c.Reload.Interval = 0 },
	}
	for i, mutate := range cases {
		config := GetDefaultConfig()
		mutate(config)
		err := config.Validate()
		assert.True(t, errors.Is(err, errors.NotValid), "case %d: %v", i, err)
	}

	config := GetDefaultConfig()
	config.Train.MinSupport = 1
	config.Train.MinConfidence = 1
	assert.NoError(t, config.Validate())

	config = GetDefaultConfig()
	config.Train.MinSupport = 0
	assert.ErrorContains(t, config.Validate(), "train.min_support")
}

func TestTracingConfig(t *testing.T) {
	cfg := GetDefaultConfig().Tracing
	tp, err := cfg.NewTracerProvider("playlist-test")
	assert.NoError(t, err)
	assert.NotNil(t, tp)

	cfg.EnableTracing = true
	cfg.CollectorEndpoint = "localhost:4318"
	for _, exporter := range []string{"zipkin", "otlp", "otlphttp"} {
		cfg.Exporter = exporter
		if exporter == "zipkin" {
			cfg.CollectorEndpoint = "http://localhost:9411/api/v2/spans"
		}
		for _, sampler := range []string{"always", "never", "ratio"} {
			cfg.Sampler = sampler
			tp, err = cfg.NewTracerProvider("playlist-test")
			assert.NoError(t, err)
			assert.NotNil(t, tp)
		}
	}

	cfg.Exporter = "jaeger"
	_, err = cfg.NewTracerProvider("playlist-test")
	assert.True(t, errors.Is(err, errors.NotSupported))
	cfg.Exporter = "otlp"
	cfg.Sampler = "sometimes"
	_, err = cfg.NewTracerProvider("playlist-test")
	assert.True(t, errors.Is(err, errors.NotSupported))
}
