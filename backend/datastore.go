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
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/c2FmZQ/storage"
	"github.com/c2FmZQ/storage/crypto"
)

// ErrUnencryptedWithKey is returned when the data directory holds a master
// key but no passphrase was given.
var ErrUnencryptedWithKey = errors.New("master.key exists but no passphrase is set")

// OpenStorage opens the data directory. With a passphrase, files are
// encrypted under a master key kept in dataDir/master.key, created on first
// use. Without one, files are stored unencrypted, and a directory that
// already has a master key is refused.
func OpenStorage(dataDir, passphrase string) (*storage.Storage, error) {
	keyFile := filepath.Join(dataDir, "master.key")
	var masterKey crypto.MasterKey
	if passphrase != "" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		mk, err := crypto.ReadMasterKey([]byte(passphrase), keyFile)
		switch {
		case err == nil:
			log.Println("Loaded master encryption key.")
		case os.IsNotExist(err):
			log.Println("Initializing new master encryption key...")
			if mk, err = crypto.CreateMasterKey(); err != nil {
				return nil, fmt.Errorf("create master key: %w", err)
			}
			if err := mk.Save([]byte(passphrase), keyFile); err != nil {
				return nil, fmt.Errorf("save master key: %w", err)
			}
		default:
			return nil, fmt.Errorf("read master key: %w", err)
		}
		masterKey = mk
	} else {
		if _, err := os.Stat(keyFile); err == nil {
			return nil, fmt.Errorf("%w: refusing to open %s unencrypted", ErrUnencryptedWithKey, dataDir)
		}
		log.Println("Warning: No SK_MASTER_KEY provided. Data will be stored UNENCRYPTED.")
	}

	s := storage.New(dataDir, masterKey)
	s.EnableCompression(true)
	return s, nil
}
