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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gorse-io/playlist/client"
	"github.com/gorse-io/playlist/cmd/version"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var cliCommand = &cobra.Command{
	Use:     "playlist-cli [SONG]...",
	Short:   "Get playlist recommendations from the REST server.",
	Example: `  playlist-cli "Yesterday" "Bohemian Rhapsody" "Hotel California"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
			fmt.Println(version.BuildInfo())
			return nil
		}
		if checkHealth, _ := cmd.Flags().GetBool("health"); checkHealth {
			healthy, err := health(cmd)
			if err != nil {
				return err
			}
			if !healthy {
				return errors.New("server is not healthy")
			}
		}
		if len(args) == 0 {
			return cmd.Help()
		}
		return recommend(cmd, args)
	},
}

var recommendCommand = &cobra.Command{
	Use:   "recommend SONG...",
	Short: "Recommend songs for the given songs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return recommend(cmd, args)
	},
}

var healthCommand = &cobra.Command{
	Use:   "health",
	Short: "Check the health of the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		healthy, err := health(cmd)
		if err != nil {
			return err
		}
		if !healthy {
			return errors.New("server is not healthy")
		}
		return nil
	},
}

var modelCommand = &cobra.Command{
	Use:   "model",
	Short: "Show metadata of the active model",
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := newClient(cmd).Model(context.Background())
		if err != nil {
			return errors.Trace(err)
		}
		if asJSON(cmd) {
			return printJSON(cmd.OutOrStdout(), info)
		}
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("model", "value")
		_ = table.Bulk([][]string{
			{"version", info.Version},
			{"format version", fmt.Sprint(info.FormatVersion)},
			{"model date", info.CreatedAt.Format(time.RFC3339)},
			{"published", info.PublishedAt.Format(time.RFC3339)},
			{"dataset", info.Stats.Dataset},
			{"playlists", fmt.Sprint(info.Stats.NumPlaylists)},
			{"tracks", fmt.Sprint(info.Stats.NumTracks)},
			{"frequent itemsets", fmt.Sprint(info.Stats.NumItemsets)},
			{"rules", fmt.Sprint(info.Stats.NumRules)},
			{"min support", fmt.Sprint(info.Params.MinSupport)},
			{"min confidence", fmt.Sprint(info.Params.MinConfidence)},
		})
		return errors.Trace(table.Render())
	},
}

var reloadCommand = &cobra.Command{
	Use:   "reload",
	Short: "Ask the server to reload the model",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := newClient(cmd).Reload(context.Background())
		if err != nil {
			return errors.Trace(err)
		}
		if asJSON(cmd) {
			return printJSON(cmd.OutOrStdout(), result)
		}
		if result.Reloaded {
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Model reloaded: %s\n", result.Status.ModelVersion)
		} else {
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Model unchanged: %s\n", result.Status.ModelVersion)
		}
		return errors.Trace(err)
	},
}

func newClient(cmd *cobra.Command) *client.Client {
	url, _ := cmd.Flags().GetString("url")
	timeout, _ := cmd.Flags().GetInt("timeout")
	return client.NewClient(url, time.Duration(timeout)*time.Second)
}

func asJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return errors.Trace(encoder.Encode(v))
}

func health(cmd *cobra.Command) (bool, error) {
	h, err := newClient(cmd).Health(context.Background())
	if err != nil {
		return false, errors.Annotate(err, "could not check API health")
	}
	if asJSON(cmd) {
		return h.ModelLoaded, printJSON(cmd.OutOrStdout(), h)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "API Health Check:")
	fmt.Fprintf(w, "  Status: %s\n", h.Status)
	fmt.Fprintf(w, "  Model Loaded: %v\n", h.ModelLoaded)
	fmt.Fprintf(w, "  Version: %s\n", h.Version)
	fmt.Fprintln(w)
	return h.ModelLoaded, nil
}

func recommend(cmd *cobra.Command, songs []string) error {
	n, _ := cmd.Flags().GetInt("n")
	resp, err := newClient(cmd).Recommend(context.Background(), songs, n)
	if err != nil {
		if client.IsNotReady(err) {
			return errors.Annotate(err, "the recommendation model is not available, please try again later")
		}
		return errors.Trace(err)
	}
	if asJSON(cmd) {
		return printJSON(cmd.OutOrStdout(), resp)
	}
	return printRecommendations(cmd.OutOrStdout(), resp)
}

func printRecommendations(w io.Writer, resp *client.RecommendResponse) error {
	fmt.Fprintf(w, "Server Version: %s\n", resp.Version)
	fmt.Fprintf(w, "Model Date: %s\n", resp.ModelDate.Format(time.RFC3339))
	fmt.Fprintf(w, "Number of Recommendations: %d\n\n", resp.NumRecommendations)
	if len(resp.Songs) == 0 {
		fmt.Fprintln(w, "No recommendations found for the given songs.")
		return nil
	}
	table := tablewriter.NewWriter(w)
	table.Header("#", "song", "score")
	for i, recommendation := range resp.Scores {
		_ = table.Append([]string{
			fmt.Sprint(i + 1),
			recommendation.Song,
			fmt.Sprintf("%.4f", recommendation.Score),
		})
	}
	return errors.Trace(table.Render())
}

func init() {
	cliCommand.PersistentFlags().String("url", client.DefaultEndpoint, "API endpoint URL")
	cliCommand.PersistentFlags().Int("timeout", 10, "request timeout in seconds")
	cliCommand.PersistentFlags().Bool("json", false, "print raw JSON responses")
	cliCommand.PersistentFlags().IntP("n", "n", 0, "number of recommendations, 0 for the server default")
	cliCommand.Flags().Bool("health", false, "check API health before requesting recommendations")
	cliCommand.Flags().BoolP("version", "v", false, "playlist version")
	cliCommand.AddCommand(recommendCommand, healthCommand, modelCommand, reloadCommand)
}

func main() {
	if err := cliCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
