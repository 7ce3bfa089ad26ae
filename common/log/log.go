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

// Package log holds the process-wide zap logger shared by the trainer, the server and
// the CLI. The logger starts in development mode and is replaced once flags are parsed.
package log

import (
	"os"

	"github.com/emicklei/go-restful/v3"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timeLayout = "2006-01-02 15:04:05.999999"

var current atomic.Pointer[zap.Logger]

func init() {
	development, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	current.Store(development)
}

// Logger returns the active logger. It is safe to call while another goroutine
// replaces the logger.
func Logger() *zap.Logger {
	return current.Load()
}

// ResponseLogger tags log entries with the request id assigned by the server.
func ResponseLogger(resp *restful.Response) *zap.Logger {
	return Logger().With(zap.String("request_id", resp.Header().Get("X-Request-ID")))
}

// CloseLogger silences everything below fatal.
func CloseLogger() {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.FatalLevel)
	quiet, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	current.Store(quiet)
}

// FileOptions configure the rotated log file. An empty Path disables the file.
type FileOptions struct {
	Path       string
	MaxSize    int // megabytes
	MaxAge     int // days
	MaxBackups int
	Compress   bool
}

func AddFlags(flagSet *pflag.FlagSet) {
	flagSet.String("log-path", "", "path of log file")
	flagSet.Int("log-max-size", 100, "maximum size in megabytes of the log file")
	flagSet.Int("log-max-age", 0, "maximum number of days to retain old log files")
	flagSet.Int("log-max-backups", 0, "maximum number of old log files to retain")
	flagSet.Bool("log-compress", false, "compress rotated log files")
}

// FileOptionsFromFlags reads the flags registered by AddFlags.
func FileOptionsFromFlags(flagSet *pflag.FlagSet) FileOptions {
	var opts FileOptions
	opts.Path, _ = flagSet.GetString("log-path")
	opts.MaxSize, _ = flagSet.GetInt("log-max-size")
	opts.MaxAge, _ = flagSet.GetInt("log-max-age")
	opts.MaxBackups, _ = flagSet.GetInt("log-max-backups")
	opts.Compress, _ = flagSet.GetBool("log-compress")
	return opts
}

// NewLogger writes console lines in debug mode and JSON lines otherwise, to stdout and
// to the log file if one is configured.
func NewLogger(opts FileOptions, debug bool) *zap.Logger {
	var (
		encoderConfig zapcore.EncoderConfig
		encoder       zapcore.Encoder
		level         zapcore.Level
	)
	if debug {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
		level = zapcore.DebugLevel
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
		encoder = zapcore.NewJSONEncoder(encoderConfig)
		level = zapcore.InfoLevel
	}
	sink := zapcore.AddSync(os.Stdout)
	if opts.Path != "" {
		sink = zap.CombineWriteSyncers(sink, zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    opts.MaxSize,
			MaxAge:     opts.MaxAge,
			MaxBackups: opts.MaxBackups,
			Compress:   opts.Compress,
		}))
	}
	return zap.New(zapcore.NewCore(encoder, sink, level))
}

// SetLogger replaces the active logger according to the log flags and routes
// OpenTelemetry errors to it.
func SetLogger(flagSet *pflag.FlagSet, debug bool) {
	current.Store(NewLogger(FileOptionsFromFlags(flagSet), debug))
	otel.SetErrorHandler(GetErrorHandler())
}

// GetErrorHandler returns an OpenTelemetry error handler that logs to the active logger.
func GetErrorHandler() otel.ErrorHandler {
	return otel.ErrorHandlerFunc(func(err error) {
		Logger().Error("opentelemetry failure", zap.Error(err))
	})
}
