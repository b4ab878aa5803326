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

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "scorecardctl", cmd.Use)
	assert.Contains(t, cmd.Long, "sync queue")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{{"games"}, {"events"}, {"replay"}, {"queue"}, {"queue", "list"}, {"queue", "flush"}, {"queue", "retry"}}

	for _, path := range commands {
		t.Run(path[len(path)-1], func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	t.Setenv("SK_DATA_DIR", "/var/lib/scorecard")
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	dataDirFlag := cmd.PersistentFlags().Lookup("data-dir")
	require.NotNil(t, dataDirFlag)
	assert.Equal(t, "/var/lib/scorecard", dataDirFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("sqlite"))
}

func TestQueueCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	flushCmd, _, err := cmd.Find([]string{"queue", "flush"})
	require.NoError(t, err)

	for _, name := range []string{"server", "token"} {
		f := flushCmd.InheritedFlags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, "", f.DefValue)
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, "games", "--data-dir", t.TempDir(), "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
