package pathfs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolver_Paths(t *testing.T) {
	r := NewResolver("/data")

	assert.Equal(t, "/data/pipeline-data/pending", r.Pending())
	assert.Equal(t, "/data/pipeline-data/pending/abc123-seed.json", r.PendingSeedPath("abc123"))
	assert.Equal(t, "/data/pipeline-data/current/abc123", r.CurrentJobDir("abc123"))
	assert.Equal(t, "/data/pipeline-data/complete/abc123", r.CompleteJobDir("abc123"))
	assert.Equal(t, filepath.Join("/data/pipeline-data/current/abc123", "tasks-status.json"), r.StatusPath(r.CurrentJobDir("abc123")))
	assert.Equal(t, filepath.Join("/data/pipeline-data/current/abc123", "files", "artifacts"), r.FilesDir(r.CurrentJobDir("abc123"), KindArtifacts))
	assert.Equal(t, "/data/pipeline-config/registry.json", r.RegistryPath())
	assert.Equal(t, "/data/pipeline-config/myslug/pipeline.json", r.PipelineManifestPath("myslug"))
}
