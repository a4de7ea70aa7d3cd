package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Checks(t *testing.T) {
	r := Default()

	assert.True(t, r.IsDeniedSegment("orgs"))
	assert.True(t, r.IsDeniedSegment("Settings"))
	assert.False(t, r.IsDeniedSegment("some-user"))

	assert.True(t, r.IsReserved("No Assignees"))
	assert.True(t, r.IsReserved("  closed  "))
	assert.False(t, r.IsReserved("octocat"))

	assert.True(t, r.IsBot("dependa[bot]"))
	assert.True(t, r.IsBot("renovate%5Bbot%5D"))
	assert.False(t, r.IsBot("robotics-team"))

	assert.True(t, r.IsAvatarClass("avatar circle"))
	assert.True(t, r.IsAvatarClass("avatar-user"))
	assert.False(t, r.IsAvatarClass("avatar-stack"))
}

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"deniedPathSegments: [internal-only]\nhovercardPathPrefix: /people/\n",
	), 0o644))

	r, err := Load(path)
	require.NoError(t, err)

	assert.True(t, r.IsDeniedSegment("internal-only"))
	assert.False(t, r.IsDeniedSegment("orgs"))
	assert.Equal(t, "/people/", r.HovercardPathPrefix)

	// lists absent from the file keep their defaults
	assert.True(t, r.IsReserved("no assignees"))
	assert.True(t, r.IsAvatarClass("avatar"))
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(": not yaml ["), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestDigest_TracksContent(t *testing.T) {
	a := Default()
	b := Default()
	assert.Equal(t, a.Digest(), b.Digest())

	b.ReservedWords = append(b.ReservedWords, "blocked")
	assert.NotEqual(t, a.Digest(), b.Digest())
}

func TestStore_UpdateAndCurrent(t *testing.T) {
	store := NewStore(Default())

	updated := Default()
	updated.HovercardPathPrefix = "/people/"
	store.Update(updated)

	assert.Equal(t, "/people/", store.Current().HovercardPathPrefix)
}
