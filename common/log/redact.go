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

package log

import (
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
)

const mysqlPrefix = "mysql://"

// RedactDBURL masks the credentials of a dataset DSN so that it can be logged. Paths
// and DSNs it cannot parse are returned unchanged.
func RedactDBURL(rawURL string) string {
	switch {
	case strings.HasPrefix(rawURL, mysqlPrefix):
		dsn, err := mysql.ParseDSN(strings.TrimPrefix(rawURL, mysqlPrefix))
		if err != nil {
			return rawURL
		}
		dsn.User = mask(dsn.User)
		dsn.Passwd = mask(dsn.Passwd)
		return mysqlPrefix + dsn.FormatDSN()
	case strings.Contains(rawURL, "://"):
		parsed, err := url.Parse(rawURL)
		if err != nil || parsed.User == nil {
			return rawURL
		}
		password, _ := parsed.User.Password()
		parsed.User = url.UserPassword(mask(parsed.User.Username()), mask(password))
		return parsed.String()
	default:
		return rawURL
	}
}

func mask(s string) string {
	return strings.Repeat("x", len(s))
}
