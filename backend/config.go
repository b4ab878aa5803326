// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the settings read from the environment. Command-line flags
// take precedence; Config supplies their defaults.
type Config struct {
	Addr           string        `env:"SK_ADDR"             envDefault:":8080"`
	DataDir        string        `env:"SK_DATA_DIR"         envDefault:"data"`
	AuthJWKSURL    string        `env:"SK_AUTH_JWKS_URL"`
	AuthCookieName string        `env:"SK_AUTH_COOKIE_NAME" envDefault:"scorecard_auth"`
	MasterKey      string        `env:"SK_MASTER_KEY"`
	Debug          bool          `env:"SK_DEBUG"`
	UseMockAuth    bool          `env:"SK_USE_MOCK_AUTH"`
	QueueRetention time.Duration `env:"SK_QUEUE_RETENTION"  envDefault:"168h"`
	SQLitePath     string        `env:"SK_SQLITE_PATH"`
}

// LoadConfig parses Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.QueueRetention <= 0 {
		return Config{}, fmt.Errorf("SK_QUEUE_RETENTION must be positive, got %s", cfg.QueueRetention)
	}
	return cfg, nil
}
