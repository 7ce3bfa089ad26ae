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
	"io"
	"os"
	"strings"

	"github.com/gorse-io/playlist/common/log"
	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

const maxLineSize = 16 * 1024 * 1024

// ReadLines parse fields of each line for csv file.
func ReadLines(sc *bufio.Scanner, sep string, handler func(int, []string) bool) error {
	lineCount := 0               // line number of current position
	fields := make([]string, 0)  // fields for current line
	builder := strings.Builder{} // string builder for current field
	quoted := false              // whether current position in quote
	for sc.Scan() {
		// read line
		line := []rune(sc.Text())
		// start of line
		if quoted {
			builder.WriteString("\r\n")
		}
		// parse line
		for i := 0; i < len(line); i++ {
			if string(line[i]) == sep && !quoted {
				// end of field
				fields = append(fields, builder.String())
				builder.Reset()
			} else if line[i] == '"' {
				if quoted {
					if i+1 >= len(line) || line[i+1] != '"' {
						// end of quoted
						quoted = false
					} else {
						i++
						builder.WriteRune('"')
					}
				} else {
					// start of quoted
					quoted = true
				}
			} else {
				builder.WriteRune(line[i])
			}
		}
		// end of line
		if !quoted {
			fields = append(fields, builder.String())
			builder.Reset()
			if !handler(lineCount, fields) {
				return nil
			}
			fields = []string{}
		}
		// increase line count
		lineCount++
	}
	return sc.Err()
}

// LoadCSV reads (playlist, track) rows from a CSV stream with a header row.
func LoadCSV(ctx context.Context, r io.Reader, opts Options) (*Builder, error) {
	sep := opts.Separator
	if sep == "" {
		sep = ","
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	builder := NewBuilder()
	playlistIndex, trackIndex := -1, -1
	var handleErr error
	err := ReadLines(sc, sep, func(i int, fields []string) bool {
		if playlistIndex < 0 {
			// header
			for j, field := range fields {
				switch strings.TrimSpace(strings.TrimPrefix(field, "\ufeff")) {
				case opts.PlaylistColumn:
					playlistIndex = j
				case opts.TrackColumn:
					trackIndex = j
				}
			}
			if playlistIndex < 0 || trackIndex < 0 {
				handleErr = errors.NotValidf("header without columns %q and %q", opts.PlaylistColumn, opts.TrackColumn)
				return false
			}
			return true
		}
		if i%4096 == 0 {
			if handleErr = ctx.Err(); handleErr != nil {
				return false
			}
		}
		if playlistIndex >= len(fields) || trackIndex >= len(fields) {
			builder.Skip()
			return true
		}
		builder.Add(fields[playlistIndex], fields[trackIndex])
		return true
	})
	if handleErr != nil {
		return nil, errors.Trace(handleErr)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	if playlistIndex < 0 {
		return nil, errors.NotValidf("empty dataset without header")
	}
	return builder, nil
}

// LoadCSVFile reads (playlist, track) rows from a CSV file.
func LoadCSVFile(ctx context.Context, path string, opts Options) (*Builder, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundf("dataset %s", path)
		}
		return nil, errors.Trace(err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Logger().Warn("failed to close dataset", zap.String("path", path), zap.Error(err))
		}
	}()
	var r io.Reader = file
	if opts.ShowProgress {
		stat, err := file.Stat()
		if err != nil {
			return nil, errors.Trace(err)
		}
		bar := progressbar.DefaultBytes(stat.Size(), "Loading playlists")
		pbReader := progressbar.NewReader(file, bar)
		r = &pbReader
		defer func() {
			_ = bar.Finish()
		}()
	}
	return LoadCSV(ctx, r, opts)
}
