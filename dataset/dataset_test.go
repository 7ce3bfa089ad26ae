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

package dataset

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func defaultOptions() Options {
	return Options{
		Table:          "playlist_tracks",
		PlaylistColumn: "pid",
		TrackColumn:    "track_name",
		Separator:      ",",
	}
}

func splitLines(t *testing.T, text string) [][]string {
	sc := bufio.NewScanner(strings.NewReader(text))
	lines := make([][]string, 0)
	err := ReadLines(sc, ",", func(i int, i2 []string) bool {
		lines = append(lines, i2)
		return i2[0] != "STOP"
	})
	assert.NoError(t, err)
	return lines
}

func TestReadLines(t *testing.T) {
	assert.Equal(t, [][]string{{"1", "2", "3"}, {"4", "5", "6"}},
		splitLines(t, "1,2,3\r\n4,5,6\r\n"))
	assert.Equal(t, [][]string{{"1,2", "3,4", "5,6"}, {"2,3", "4,6", "6,9"}},
		splitLines(t, "\"1,2\",\"3,4\",\"5,6\"\r\n\"2,3\",\"4,6\",\"6,9\""))
	assert.Equal(t, [][]string{{"\"1,2\",\"3,4\",\"5,6\""}, {"\"2,3\",\"4,6\",\"6,9\""}},
		splitLines(t, "\"\"\"1,2\"\",\"\"3,4\"\",\"\"5,6\"\"\"\r\n\"\"\"2,3\"\",\"\"4,6\"\",\"\"6,9\"\"\""))
	assert.Equal(t, [][]string{{"1\r\n2", "3\r\n4", "5\r\n6"}, {"2\r\n3", "4\r\n6", "6\r\n9"}},
		splitLines(t, "\"1\r\n2\",\"3\r\n4\",\"5\r\n6\"\r\n\"2\r\n3\",\"4\r\n6\",\"6\r\n9\""))
	assert.Equal(t, [][]string{{"1", "2", "3"}, {"4", "5", "6"}, {"STOP"}},
		splitLines(t, "1,2,3\r\n4,5,6\r\nSTOP\r\n7,8,9"))
}

func TestBuilder(t *testing.T) {
	builder := NewBuilder()
	builder.Add("1", "A")
	builder.Add("1", " B ")
	builder.Add("1", "A")
	builder.Add("2", "")
	builder.Add("", "C")
	builder.Add("2", "C")
	builder.Add("3", "  ")
	builder.Skip()
	dataset := builder.Build(0, 42)
	assert.Equal(t, []Transaction{{"A", "B"}, {"C"}}, dataset.Transactions)
	assert.Equal(t, Report{
		RowsRead:         8,
		SkippedRows:      4,
		Playlists:        2,
		SampledPlaylists: 2,
		Transactions:     2,
		DistinctSongs:    3,
	}, dataset.Report)
}

func TestBuilderSample(t *testing.T) {
	builder := NewBuilder()
	for i := 0; i < 100; i++ {
		builder.Add(string(rune('a'+i%26))+strings.Repeat("x", i/26), "song")
	}
	a := builder.Build(10, 42)
	b := builder.Build(10, 42)
	assert.Equal(t, 10, len(a.Transactions))
	assert.Equal(t, 10, a.Report.SampledPlaylists)
	assert.Equal(t, 100, a.Report.Playlists)
	assert.Equal(t, a, b)

	// sample size larger than the number of playlists keeps everything
	c := builder.Build(1000, 42)
	assert.Equal(t, 100, len(c.Transactions))

	// sampled playlists keep source order
	mask := sampleMask(100, 10, 7)
	assert.Equal(t, uint(10), mask.Count())
	prev := -1
	for i, ok := mask.NextSet(0); ok; i, ok = mask.NextSet(i + 1) {
		assert.Greater(t, int(i), prev)
		prev = int(i)
	}
	assert.NotEqual(t, sampleMask(100, 10, 7), sampleMask(100, 10, 8))
}

func TestLoadCSV(t *testing.T) {
	text := "\ufeffpid,artist_name,track_name\r\n" +
		"0,X,A\r\n" +
		"0,X,B\r\n" +
		"0,Y,\"C, with comma\"\r\n" +
		"1,X,A\r\n" +
		"1,Y,\r\n" +
		"2\r\n" +
		"3,Z,B\r\n" +
		"3,Z,B\r\n"
	builder, err := LoadCSV(context.Background(), strings.NewReader(text), defaultOptions())
	assert.NoError(t, err)
	dataset := builder.Build(0, 0)
	assert.Equal(t, []Transaction{{"A", "B", "C, with comma"}, {"A"}, {"B"}}, dataset.Transactions)
	assert.Equal(t, 8, dataset.Report.RowsRead)
	assert.Equal(t, 2, dataset.Report.SkippedRows)
	assert.Equal(t, 3, dataset.Report.DistinctSongs)

	// separator
	opts := defaultOptions()
	opts.Separator = ";"
	builder, err = LoadCSV(context.Background(), strings.NewReader("track_name;pid\nA;1\nB;1\n"), opts)
	assert.NoError(t, err)
	assert.Equal(t, []Transaction{{"A", "B"}}, builder.Build(0, 0).Transactions)

	// missing columns
	_, err = LoadCSV(context.Background(), strings.NewReader("playlist,track\n1,A\n"), defaultOptions())
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = LoadCSV(context.Background(), strings.NewReader(""), defaultOptions())
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestLoadCSVCancel(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("pid,track_name\n")
	for i := 0; i < 10000; i++ {
		sb.WriteString("1,A\n")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := LoadCSV(ctx, strings.NewReader(sb.String()), defaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playlists.csv")
	err := os.WriteFile(path, []byte("pid,track_name\n1,A\n1,B\n2,A\n2,B\n3,A\n4,C\n"), 0o644)
	assert.NoError(t, err)
	opts := defaultOptions()
	opts.SampleSize = 2
	opts.SampleSeed = 42
	opts.ShowProgress = true
	dataset, err := Load(context.Background(), path, opts)
	assert.NoError(t, err)
	assert.Equal(t, 2, dataset.Report.Transactions)
	assert.Equal(t, 4, dataset.Report.Playlists)

	_, err = Load(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), opts)
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestLoadSQLite(t *testing.T) {
	path := "sqlite://" + filepath.Join(t.TempDir(), "playlists.db")
	db, err := OpenDatabase(path)
	assert.NoError(t, err)
	assert.NoError(t, db.Exec("CREATE TABLE playlist_tracks (pid INTEGER, track_name TEXT)").Error)
	assert.NoError(t, db.Exec(`INSERT INTO playlist_tracks (pid, track_name) VALUES
		(1, 'A'), (1, 'B'), (2, 'A'), (2, NULL), (3, ' C '), (3, 'A')`).Error)
	client, err := db.DB()
	assert.NoError(t, err)
	assert.NoError(t, client.Close())

	assert.True(t, IsDatabase(path))
	dataset, err := Load(context.Background(), path, defaultOptions())
	assert.NoError(t, err)
	assert.Equal(t, []Transaction{{"A", "B"}, {"A"}, {"A", "C"}}, dataset.Transactions)
	assert.Equal(t, 6, dataset.Report.RowsRead)
	assert.Equal(t, 1, dataset.Report.SkippedRows)

	_, err = OpenDatabase("redis://localhost:6379")
	assert.True(t, errors.Is(err, errors.NotSupported))
}
