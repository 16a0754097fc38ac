package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeed_Valid(t *testing.T) {
	s, err := ParseSeed([]byte(`{"name":"e2e","data":{"t":"x"}}`))
	require.NoError(t, err)
	assert.Equal(t, "e2e", s.Name)
}

func TestParseSeed_MalformedJSON(t *testing.T) {
	_, err := ParseSeed([]byte(`{not json`))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Invalid JSON"))
}

func TestParseSeed_MissingRequiredFields(t *testing.T) {
	_, err := ParseSeed([]byte(`{"name":"e2e"}`))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Required fields missing"))
}

func TestSeedFilePattern_ExtractsJobID(t *testing.T) {
	m := SeedFilePattern.FindStringSubmatch("abc123de-seed.json")
	require.NotNil(t, m)
	assert.Equal(t, "abc123de", m[1])
}

func TestSeedFilePattern_RejectsTooShort(t *testing.T) {
	assert.Nil(t, SeedFilePattern.FindStringSubmatch("ab-seed.json"))
}

func TestManifest_MaxRefinementsFor(t *testing.T) {
	two := 2
	m := &Manifest{TaskConfig: map[string]TaskConfig{"t1": {MaxRefinements: &two}}}
	assert.Equal(t, 2, m.MaxRefinementsFor("t1", 3))
	assert.Equal(t, 3, m.MaxRefinementsFor("t2", 3))
}
