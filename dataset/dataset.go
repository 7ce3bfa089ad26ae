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
	"context"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/bits-and-blooms/bitset"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
)

// Transaction is the deduplicated set of songs of one playlist, sorted lexicographically.
type Transaction []string

// Options controls how playlist rows are read and sampled.
type Options struct {
	Table          string
	PlaylistColumn string
	TrackColumn    string
	Separator      string
	// SampleSize caps the number of playlists kept, 0 keeps all.
	SampleSize int
	SampleSeed int64
	// ShowProgress renders a progress bar while reading files.
	ShowProgress bool
}

// Report summarizes a load.
type Report struct {
	RowsRead         int `json:"rows_read"`
	SkippedRows      int `json:"skipped_rows"`
	Playlists        int `json:"playlists"`
	SampledPlaylists int `json:"sampled_playlists"`
	Transactions     int `json:"transactions"`
	DistinctSongs    int `json:"distinct_songs"`
}

// Dataset holds the transactions used for mining.
type Dataset struct {
	Transactions []Transaction
	Report       Report
}

// Builder groups (playlist, track) rows into playlists in first-seen order.
type Builder struct {
	index     map[string]int
	playlists []mapset.Set[string]
	rows      int
	skipped   int
}

func NewBuilder() *Builder {
	return &Builder{index: make(map[string]int)}
}

// Add appends a row. Rows with an empty playlist id or track name are skipped.
func (b *Builder) Add(playlist, track string) {
	b.rows++
	playlist = strings.TrimSpace(playlist)
	track = strings.TrimSpace(track)
	if playlist == "" || track == "" {
		b.skipped++
		return
	}
	i, exist := b.index[playlist]
	if !exist {
		i = len(b.playlists)
		b.index[playlist] = i
		b.playlists = append(b.playlists, mapset.NewThreadUnsafeSet[string]())
	}
	b.playlists[i].Add(track)
}

// Skip counts a malformed row.
func (b *Builder) Skip() {
	b.rows++
	b.skipped++
}

// Build samples playlists and converts them into transactions. The same seed always
// selects the same playlists, and selected playlists keep their source order.
func (b *Builder) Build(sampleSize int, seed int64) *Dataset {
	report := Report{
		RowsRead:    b.rows,
		SkippedRows: b.skipped,
		Playlists:   len(b.playlists),
	}
	mask := sampleMask(len(b.playlists), sampleSize, seed)
	songs := mapset.NewThreadUnsafeSet[string]()
	transactions := make([]Transaction, 0, mask.Count())
	for i, ok := mask.NextSet(0); ok; i, ok = mask.NextSet(i + 1) {
		report.SampledPlaylists++
		items := b.playlists[i].ToSlice()
		if len(items) == 0 {
			continue
		}
		sort.Strings(items)
		songs.Append(items...)
		transactions = append(transactions, items)
	}
	report.Transactions = len(transactions)
	report.DistinctSongs = songs.Cardinality()
	return &Dataset{Transactions: transactions, Report: report}
}

func sampleMask(n, sampleSize int, seed int64) *bitset.BitSet {
	mask := bitset.New(uint(n))
	if sampleSize <= 0 || sampleSize >= n {
		for i := 0; i < n; i++ {
			mask.Set(uint(i))
		}
		return mask
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	// partial Fisher-Yates
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < sampleSize; i++ {
		j := i + rng.IntN(n-i)
		perm[i], perm[j] = perm[j], perm[i]
		mask.Set(uint(perm[i]))
	}
	return mask
}

// Load reads transactions from the location in path. Database DSNs are read with SQL,
// everything else is treated as a CSV file.
func Load(ctx context.Context, path string, opts Options) (*Dataset, error) {
	var (
		builder *Builder
		err     error
	)
	if IsDatabase(path) {
		builder, err = LoadSQL(ctx, path, opts)
	} else {
		builder, err = LoadCSVFile(ctx, path, opts)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return builder.Build(opts.SampleSize, opts.SampleSeed), nil
}
