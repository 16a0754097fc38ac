package runner

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/pathfs"
	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/status"
)

// jailedIO is the concrete implementation of stage.IO handed to every stage
// invocation. It enforces the path jail (spec.md §4.5) via
// pathfs.ResolveJailed and registers every successful write into the task's
// (and the job's) file lists through the status writer, so a write that
// never gets registered never becomes visible to the UI.
type jailedIO struct {
	resolver *pathfs.Resolver
	jobDir   string
	taskID   string
	writer   *status.Writer
}

func newJailedIO(resolver *pathfs.Resolver, jobDir, taskID string, writer *status.Writer) *jailedIO {
	return &jailedIO{resolver: resolver, jobDir: jobDir, taskID: taskID, writer: writer}
}

func (io *jailedIO) WriteArtifact(name string, data []byte) error {
	return io.writeAndRegister(pathfs.KindArtifacts, name, data)
}

func (io *jailedIO) WriteTmp(name string, data []byte) error {
	return io.writeAndRegister(pathfs.KindTmp, name, data)
}

func (io *jailedIO) writeAndRegister(kind pathfs.FileKind, name string, data []byte) error {
	target, err := pathfs.ResolveJailed(io.resolver.Jail(io.jobDir), string(kind), name)
	if err != nil {
		return err
	}
	if err := pathfs.AtomicWrite(target, data, 0o644); err != nil {
		return fmt.Errorf("runner: write %s: %w", name, err)
	}
	return io.register(kind, name)
}

// WriteLog appends a line to <jobDir>/files/logs/<name>, creating it if
// necessary. Logs are append-only, unlike artifacts/tmp which are whole-file
// writes, so they don't go through AtomicWrite.
func (io *jailedIO) WriteLog(name string, line string) error {
	target, err := pathfs.ResolveJailed(io.resolver.Jail(io.jobDir), string(pathfs.KindLogs), name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("runner: create log dir: %w", err)
	}
	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("runner: open log %s: %w", name, err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("runner: append log %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("runner: sync log %s: %w", name, err)
	}
	return io.register(pathfs.KindLogs, name)
}

func (io *jailedIO) register(kind pathfs.FileKind, name string) error {
	_, err := io.writer.Write(func(s *status.Snapshot) {
		appendFile(registerTarget(&s.Files, kind), name)
		if t, ok := s.Tasks[io.taskID]; ok {
			appendFile(registerTarget(&t.Files, kind), name)
		}
	})
	return err
}

// registerTarget returns a pointer to the slice field matching kind, so
// appendFile can mutate it in place regardless of whether it belongs to the
// job-level or task-level FileList.
func registerTarget(f *status.FileList, kind pathfs.FileKind) *[]string {
	switch kind {
	case pathfs.KindArtifacts:
		return &f.Artifacts
	case pathfs.KindLogs:
		return &f.Logs
	default:
		return &f.Tmp
	}
}

func appendFile(list *[]string, name string) {
	for _, existing := range *list {
		if existing == name {
			return
		}
	}
	*list = append(*list, name)
}
