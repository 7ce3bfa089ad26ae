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

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/gorse-io/playlist/cmd/version"
	"github.com/gorse-io/playlist/common/log"
	"github.com/gorse-io/playlist/config"
	"github.com/gorse-io/playlist/storage/blob"
	"github.com/gorse-io/playlist/trainer"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

var trainCommand = &cobra.Command{
	Use:   "playlist-trainer",
	Short: "Mine association rules from playlists and publish the recommendation model.",
	Run: func(cmd *cobra.Command, args []string) {
		// Show version
		if showVersion, _ := cmd.PersistentFlags().GetBool("version"); showVersion {
			fmt.Println(version.BuildInfo())
			return
		}
		// setup logger
		debug, _ := cmd.PersistentFlags().GetBool("debug")
		log.SetLogger(cmd.PersistentFlags(), debug)

		// load config
		configPath, _ := cmd.PersistentFlags().GetString("config")
		log.Logger().Info("load config", zap.String("config", configPath))
		conf, err := config.LoadConfig(configPath)
		if err != nil {
			log.Logger().Fatal("failed to load config", zap.Error(err))
		}
		flags := cmd.PersistentFlags()
		if flags.Changed("dataset") {
			conf.Dataset.Path, _ = flags.GetString("dataset")
		}
		if flags.Changed("min-support") {
			conf.Train.MinSupport, _ = flags.GetFloat64("min-support")
		}
		if flags.Changed("min-confidence") {
			conf.Train.MinConfidence, _ = flags.GetFloat64("min-confidence")
		}
		if flags.Changed("sample-size") {
			conf.Train.SampleSize, _ = flags.GetInt("sample-size")
		}
		if flags.Changed("jobs") {
			conf.Train.Jobs, _ = flags.GetInt("jobs")
		}
		if flags.Changed("output-dir") {
			conf.Storage.Type = config.StoragePOSIX
			conf.Storage.Dir, _ = flags.GetString("output-dir")
		}

		// setup tracing
		tp, err := conf.Tracing.NewTracerProvider("playlist-trainer")
		if err != nil {
			log.Logger().Fatal("failed to create trace provider", zap.Error(err))
		}
		otel.SetTracerProvider(tp)
		otel.SetErrorHandler(log.GetErrorHandler())
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
		if shutdown, ok := tp.(interface{ Shutdown(context.Context) error }); ok {
			defer func() {
				if err := shutdown.Shutdown(context.Background()); err != nil {
					log.Logger().Warn("failed to flush traces", zap.Error(err))
				}
			}()
		}

		store, err := blob.Open(conf.Storage)
		if err != nil {
			log.Logger().Fatal("failed to open model store", zap.Error(err))
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		showProgress, _ := flags.GetBool("progress")
		report, err := trainer.NewTrainer(conf, store, showProgress).Train(ctx)
		if err != nil {
			log.Logger().Fatal("failed to train model", zap.Error(err))
		}
		numRules, _ := flags.GetInt("rules")
		printReport(os.Stdout, report, numRules)
	},
}

func printReport(w io.Writer, report *trainer.Report, numRules int) {
	m := report.Model
	table := tablewriter.NewWriter(w)
	table.Header("metadata", "value")
	_ = table.Bulk([][]string{
		{"version", m.Version},
		{"model date", m.CreatedAt.Format("2006-01-02T15:04:05")},
		{"dataset", m.Stats.Dataset},
		{"rows", fmt.Sprint(report.Dataset.RowsRead)},
		{"skipped rows", fmt.Sprint(report.Dataset.SkippedRows)},
		{"playlists", fmt.Sprint(m.Stats.NumPlaylists)},
		{"transactions", fmt.Sprint(m.Stats.NumTransactions)},
		{"tracks", fmt.Sprint(m.Stats.NumTracks)},
		{"min support", fmt.Sprint(m.Params.MinSupport)},
		{"min confidence", fmt.Sprint(m.Params.MinConfidence)},
		{"frequent itemsets", fmt.Sprint(m.Stats.NumItemsets)},
		{"rules", fmt.Sprint(m.Stats.NumRules)},
		{"location", report.Location},
		{"duration", report.Duration.String()},
	})
	_ = table.Render()

	rules := report.TopRules(numRules)
	if len(rules) == 0 {
		return
	}
	table = tablewriter.NewWriter(w)
	table.Header("antecedent", "consequent", "confidence", "support")
	for _, rule := range rules {
		_ = table.Append([]string{
			strings.Join(rule.Antecedent, ", "),
			strings.Join(rule.Consequent, ", "),
			fmt.Sprintf("%.4f", rule.Confidence),
			fmt.Sprintf("%.4f", rule.Support),
		})
	}
	_ = table.Render()
}

func init() {
	log.AddFlags(trainCommand.PersistentFlags())
	trainCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	trainCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	trainCommand.PersistentFlags().BoolP("version", "v", false, "playlist version")
	trainCommand.PersistentFlags().String("dataset", "", "CSV file or database DSN of playlists")
	trainCommand.PersistentFlags().Float64("min-support", 0, "minimum support of frequent itemsets")
	trainCommand.PersistentFlags().Float64("min-confidence", 0, "minimum confidence of rules")
	trainCommand.PersistentFlags().Int("sample-size", 0, "maximum number of playlists, 0 for all")
	trainCommand.PersistentFlags().Int("jobs", 1, "number of jobs for rule generation")
	trainCommand.PersistentFlags().String("output-dir", "", "directory of the model artifact")
	trainCommand.PersistentFlags().Bool("progress", true, "show progress of reading the dataset")
	trainCommand.PersistentFlags().Int("rules", 5, "number of rules in the summary")
}

func main() {
	if err := trainCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
