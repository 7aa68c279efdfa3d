package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-risk/internal/scoring"
)

func TestState_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadState(dir)
	assert.ErrorIs(t, err, ErrStateNotFound)

	require.NoError(t, SaveState(dir, State{CurrentVersion: " v2 ", PreviousVersion: "v1"}))
	state, err := LoadState(dir)
	require.NoError(t, err)
	assert.Equal(t, State{CurrentVersion: "v2", PreviousVersion: "v1"}, state)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestState_EmptyDir(t *testing.T) {
	_, err := LoadState("  ")
	assert.ErrorIs(t, err, scoring.ErrModelArtifactMissing)
	assert.ErrorIs(t, SaveState("", State{CurrentVersion: "v1"}), scoring.ErrModelArtifactMissing)
}

func TestState_MissingIsArtifactMissing(t *testing.T) {
	_, err := LoadState(t.TempDir())
	assert.ErrorIs(t, err, ErrStateNotFound)
	assert.ErrorIs(t, err, scoring.ErrModelArtifactMissing)
}

func TestState_RejectsVersionsOutsideRoot(t *testing.T) {
	dir := t.TempDir()

	for _, v := range []string{"../v1", "v1/sub", ".", ".."} {
		assert.ErrorIs(t, SaveState(dir, State{CurrentVersion: v}), scoring.ErrModelArtifactCorrupt, v)
	}
	_, err := os.Stat(filepath.Join(dir, StateName))
	assert.True(t, os.IsNotExist(err), "rejected state must not be written")

	require.NoError(t, os.WriteFile(filepath.Join(dir, StateName), []byte(`{"current_version":"../../etc"}`), 0o644))
	_, err = LoadState(dir)
	assert.ErrorIs(t, err, scoring.ErrModelArtifactCorrupt)

	_, err = ResolveVersion(dir, "")
	assert.ErrorIs(t, err, scoring.ErrModelArtifactCorrupt)
}

func TestState_Corrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), []byte("{"), 0o644))

	_, err := LoadState(dir)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrStateNotFound))

	_, err = ResolveVersion(dir, "")
	assert.True(t, errors.Is(err, scoring.ErrModelArtifactCorrupt))
}

func TestActivate(t *testing.T) {
	dir := t.TempDir()
	writeTestBundle(t, dir, "v1", testSpecYAML)
	writeTestBundle(t, dir, "v2", testSpecYAML)
	require.NoError(t, SaveState(dir, State{CurrentVersion: "v1"}))

	state, err := Activate(dir, "v2")
	require.NoError(t, err)
	assert.Equal(t, State{CurrentVersion: "v2", PreviousVersion: "v1"}, state)

	state, err = Activate(dir, "v2")
	require.NoError(t, err)
	assert.Equal(t, "v1", state.PreviousVersion, "re-activating keeps the previous version")

	_, err = Activate(dir, "v3")
	assert.True(t, errors.Is(err, scoring.ErrModelArtifactMissing))

	persisted, err := LoadState(dir)
	require.NoError(t, err)
	assert.Equal(t, "v2", persisted.CurrentVersion)
}
