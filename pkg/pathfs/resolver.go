package pathfs

import "path/filepath"

// FileKind enumerates the three file buckets a task may write into.
type FileKind string

const (
	KindArtifacts FileKind = "artifacts"
	KindLogs      FileKind = "logs"
	KindTmp       FileKind = "tmp"
)

// Resolver centralizes every data-root-relative path this module touches, so
// no other package builds a path by string concatenation (spec.md §9:
// "Centralize a PathResolver(dataRoot) ... direct string concatenation is
// forbidden").
type Resolver struct {
	root string
}

// NewResolver builds a Resolver rooted at dataRoot (the directory containing
// pipeline-config/ and pipeline-data/).
func NewResolver(dataRoot string) *Resolver {
	return &Resolver{root: dataRoot}
}

func (r *Resolver) Root() string { return r.root }

func (r *Resolver) PipelineConfigDir() string { return filepath.Join(r.root, "pipeline-config") }

func (r *Resolver) RegistryPath() string {
	return filepath.Join(r.PipelineConfigDir(), "registry.json")
}

func (r *Resolver) PipelineDir(slug string) string {
	return filepath.Join(r.PipelineConfigDir(), slug)
}

func (r *Resolver) PipelineManifestPath(slug string) string {
	return filepath.Join(r.PipelineDir(slug), "pipeline.json")
}

func (r *Resolver) PipelineDataDir() string { return filepath.Join(r.root, "pipeline-data") }

func (r *Resolver) Pending() string { return filepath.Join(r.PipelineDataDir(), "pending") }

func (r *Resolver) PendingSeedPath(jobID string) string {
	return filepath.Join(r.Pending(), jobID+"-seed.json")
}

func (r *Resolver) Current() string { return filepath.Join(r.PipelineDataDir(), "current") }

func (r *Resolver) CurrentJobDir(jobID string) string { return filepath.Join(r.Current(), jobID) }

func (r *Resolver) Complete() string { return filepath.Join(r.PipelineDataDir(), "complete") }

func (r *Resolver) CompleteJobDir(jobID string) string { return filepath.Join(r.Complete(), jobID) }

func (r *Resolver) Rejected() string { return filepath.Join(r.PipelineDataDir(), "rejected") }

// SeedPath returns the seed.json location within a phase-specific job dir
// (only meaningful once a job has been promoted out of pending).
func (r *Resolver) SeedPath(jobDir string) string { return filepath.Join(jobDir, "seed.json") }

// StatusPath returns the tasks-status.json location within a phase-specific
// job dir.
func (r *Resolver) StatusPath(jobDir string) string {
	return filepath.Join(jobDir, "tasks-status.json")
}

// FilesDir returns the <jobDir>/files/<kind>/ directory for a job.
func (r *Resolver) FilesDir(jobDir string, kind FileKind) string {
	return filepath.Join(jobDir, "files", string(kind))
}

// TaskScratchDir returns a task's optional scratch directory.
func (r *Resolver) TaskScratchDir(jobDir, taskID string) string {
	return filepath.Join(jobDir, "tasks", taskID)
}

// Jail returns the root of the path jail for file reads under a job: the
// files/ directory containing artifacts/logs/tmp.
func (r *Resolver) Jail(jobDir string) string {
	return filepath.Join(jobDir, "files")
}
