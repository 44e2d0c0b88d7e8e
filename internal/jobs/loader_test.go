package jobs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func writeDefinition(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoaderReadsTOMLAndYAML(t *testing.T) {
	dir := t.TempDir()

	writeDefinition(t, dir, "alpha.toml", `
[job]
id = "league-alpha"
display_name = "Alpha League"
source_url = "https://leagues.example.com/league/alpha"
priority = 2

[job.credentials]
username = "manager@example.com"
password = "secret"
`)

	writeDefinition(t, dir, "beta.yaml", `
job:
  id: league-beta
  display_name: Beta League
  source_url: https://leagues.example.com/league/beta
  priority: 1
`)

	loader := NewLoader(dir, arbor.NewLogger())
	jobs, err := loader.Load()
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	// Sorted by ascending priority.
	assert.Equal(t, "league-beta", jobs[0].ID)
	assert.Equal(t, "league-alpha", jobs[1].ID)

	require.NotNil(t, jobs[1].Credentials)
	assert.Equal(t, "manager@example.com", jobs[1].Credentials.Username)
}

func TestLoaderMultipleJobsPerFile(t *testing.T) {
	dir := t.TempDir()

	writeDefinition(t, dir, "leagues.yaml", `
jobs:
  - id: league-one
    source_url: https://leagues.example.com/league/1
    priority: 1
  - id: league-two
    source_url: https://leagues.example.com/league/2
    priority: 2
`)

	loader := NewLoader(dir, arbor.NewLogger())
	jobs, err := loader.Load()
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestLoaderSkipsInvalidDefinitions(t *testing.T) {
	dir := t.TempDir()

	// Missing required source_url.
	writeDefinition(t, dir, "invalid.toml", `
[job]
id = "no-url"
priority = 1
`)

	// Unparseable file.
	writeDefinition(t, dir, "broken.yaml", "jobs: [unclosed")

	// Valid definition survives its bad neighbors.
	writeDefinition(t, dir, "valid.toml", `
[job]
id = "league-valid"
source_url = "https://leagues.example.com/league/v"
priority = 1
`)

	loader := NewLoader(dir, arbor.NewLogger())
	jobs, err := loader.Load()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "league-valid", jobs[0].ID)
}

func TestLoaderSkipsDuplicateIDs(t *testing.T) {
	dir := t.TempDir()

	writeDefinition(t, dir, "a.toml", `
[job]
id = "league-dup"
display_name = "First"
source_url = "https://leagues.example.com/league/1"
`)
	writeDefinition(t, dir, "b.toml", `
[job]
id = "league-dup"
display_name = "Second"
source_url = "https://leagues.example.com/league/2"
`)

	loader := NewLoader(dir, arbor.NewLogger())
	jobs, err := loader.Load()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "First", jobs[0].DisplayName)
}

func TestLoaderIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()

	writeDefinition(t, dir, "notes.txt", "not a job definition")
	writeDefinition(t, dir, "league.toml", `
[job]
id = "league-1"
source_url = "https://leagues.example.com/league/1"
`)

	loader := NewLoader(dir, arbor.NewLogger())
	jobs, err := loader.Load()
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestLoaderMissingDirectory(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "does-not-exist"), arbor.NewLogger())
	_, err := loader.Load()
	require.Error(t, err)
}
