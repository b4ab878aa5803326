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
	"context"
	"errors"
	"testing"

	"github.com/ttbt-io/scorecard/backend/scorecard"
)

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenStorage(dir, "correct horse")
	if err != nil {
		t.Fatalf("OpenStorage: %v", err)
	}
	game := scorecard.PersistedGame{Metadata: scorecard.GameMetadata{ID: "g1", Home: "Hawks"}}
	if err := NewGameStore(dir, s).SaveGame(ctx, game); err != nil {
		t.Fatalf("SaveGame: %v", err)
	}

	t.Run("SamePassphrase", func(t *testing.T) {
		s, err := OpenStorage(dir, "correct horse")
		if err != nil {
			t.Fatalf("OpenStorage: %v", err)
		}
		got, err := NewGameStore(dir, s).LoadGame("g1")
		if err != nil || got.Metadata.Home != "Hawks" {
			t.Errorf("LoadGame = %+v, %v", got, err)
		}
	})

	t.Run("WrongPassphrase", func(t *testing.T) {
		if _, err := OpenStorage(dir, "battery staple"); err == nil {
			t.Error("wrong passphrase accepted")
		}
	})

	t.Run("NoPassphrase", func(t *testing.T) {
		if _, err := OpenStorage(dir, ""); !errors.Is(err, ErrUnencryptedWithKey) {
			t.Errorf("OpenStorage = %v, want ErrUnencryptedWithKey", err)
		}
	})

	t.Run("Unencrypted", func(t *testing.T) {
		if _, err := OpenStorage(t.TempDir(), ""); err != nil {
			t.Errorf("OpenStorage = %v", err)
		}
	})
}
