package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/events"
	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/pathfs"
)

func newTestServer(t *testing.T) (*Server, *pathfs.Resolver) {
	t.Helper()
	root := t.TempDir()
	resolver := pathfs.NewResolver(root)
	require.NoError(t, os.MkdirAll(resolver.Pending(), 0o755))
	require.NoError(t, os.MkdirAll(resolver.Current(), 0o755))
	hub := events.NewHub(time.Minute, nil)
	return NewServer(resolver, hub, false, nil), resolver
}

func postSeed(t *testing.T, srv *Server, body string) *http.Response {
	t.Helper()
	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)
	resp, err := http.Post(ts.URL+"/api/upload/seed", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func TestUploadSeedHandler_FirstSubmissionSucceeds(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := postSeed(t, srv, `{"name":"e2e","data":{"t":"x"}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	assert.True(t, env.OK)
}

func TestUploadSeedHandler_DuplicateNameInPendingRejectedWith400(t *testing.T) {
	srv, _ := newTestServer(t)
	first := postSeed(t, srv, `{"name":"dup","data":{"t":"x"}}`)
	require.Equal(t, http.StatusOK, first.StatusCode)

	second := postSeed(t, srv, `{"name":"dup","data":{"t":"y"}}`)
	assert.Equal(t, http.StatusBadRequest, second.StatusCode)
	env := decodeEnvelope(t, second)
	assert.False(t, env.OK)
	assert.Contains(t, env.Message, "already exists")
}

func TestUploadSeedHandler_DuplicateNameInCurrentRejectedWith400(t *testing.T) {
	srv, resolver := newTestServer(t)

	jobDir := resolver.CurrentJobDir("j-existingjob00000000")
	require.NoError(t, os.MkdirAll(jobDir, 0o755))
	require.NoError(t, os.WriteFile(resolver.SeedPath(jobDir), []byte(`{"name":"already-running","data":{}}`), 0o644))

	resp := postSeed(t, srv, `{"name":"already-running","data":{"t":"z"}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	assert.Contains(t, env.Message, "already exists")

	entries, err := os.ReadDir(resolver.Pending())
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected seed must not be written to pending/")
}

func TestUploadSeedHandler_DistinctNamesBothSucceed(t *testing.T) {
	srv, _ := newTestServer(t)
	first := postSeed(t, srv, `{"name":"alpha","data":{}}`)
	second := postSeed(t, srv, `{"name":"beta","data":{}}`)
	assert.Equal(t, http.StatusOK, first.StatusCode)
	assert.Equal(t, http.StatusOK, second.StatusCode)
}

func TestSeedNameExists_FindsMatchInPending(t *testing.T) {
	_, resolver := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(resolver.Pending(), "j-aaaaaaaaaaaaaaaaaaaa-seed.json"), []byte(`{"name":"pending-job","data":{}}`), 0o644))

	exists, err := seedNameExists(resolver, "pending-job")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = seedNameExists(resolver, "missing-job")
	require.NoError(t, err)
	assert.False(t, exists)
}
