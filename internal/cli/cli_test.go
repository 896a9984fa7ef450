package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CaseCollector/internal/casestore"
	"CaseCollector/internal/domain"
	"CaseCollector/internal/infrastructure/storage"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("collector:\n  enabled: false\nstorage:\n  driver: file\n  dataDir: %s\nlogging:\n  level: error\n", dataDir)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path, dataDir
}

func seedPending(t *testing.T, dataDir string, ids ...string) {
	t.Helper()
	docs, err := storage.NewFileStore(dataDir)
	require.NoError(t, err)

	cases := make([]domain.CandidateCase, 0, len(ids))
	for i, id := range ids {
		cases = append(cases, domain.CandidateCase{
			ID:              id,
			Title:           "소속명탕 - 좌측 반신불수",
			Provenance:      domain.Provenance{SourceName: domain.SourceKCI},
			DataSource:      domain.DataSourceOnline,
			ConfidenceScore: 0.5 + 0.45*float64(i),
		})
	}
	_, err = casestore.New(docs).AddToPending(context.Background(), cases)
	require.NoError(t, err)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootHasSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, cmd := range NewRootCommand().Commands() {
		names = append(names, cmd.Name())
	}
	for _, want := range []string{"serve", "run", "pending", "approve", "reject", "auto-approve", "logs", "stats", "status"} {
		assert.Contains(t, names, want)
	}
}

func TestPendingListsSeededCases(t *testing.T) {
	cfgPath, dataDir := writeConfig(t)
	seedPending(t, dataDir, "online_aaa", "online_bbb")

	out, err := execute(t, "--config", cfgPath, "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "online_aaa")
	assert.Contains(t, out, "online_bbb")
	assert.Contains(t, out, "2 of 2 pending cases")
}

func TestApproveAndRejectMoveCases(t *testing.T) {
	cfgPath, dataDir := writeConfig(t)
	seedPending(t, dataDir, "online_aaa", "online_bbb")

	out, err := execute(t, "--config", cfgPath, "approve", "online_aaa")
	require.NoError(t, err)
	assert.Contains(t, out, "1 cases approved")

	out, err = execute(t, "--config", cfgPath, "reject", "online_bbb", "--reason", "duplicate report")
	require.NoError(t, err)
	assert.Contains(t, out, "1 cases rejected")

	out, err = execute(t, "--config", cfgPath, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, `"total_cases": 1`)
	assert.Contains(t, out, `"pending_cases": 0`)
	assert.Contains(t, out, `"rejected_cases": 1`)
}

func TestApproveRequiresIDs(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	_, err := execute(t, "--config", cfgPath, "approve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg(s)")
}

func TestAutoApproveUsesThreshold(t *testing.T) {
	cfgPath, dataDir := writeConfig(t)
	seedPending(t, dataDir, "online_low", "online_high")

	out, err := execute(t, "--config", cfgPath, "auto-approve", "--threshold", "0.9")
	require.NoError(t, err)
	assert.Contains(t, out, "1 cases auto-approved (threshold 0.90)")

	_, err = execute(t, "--config", cfgPath, "auto-approve", "--threshold", "1.5")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRunWithUnknownSourceIsLogged(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	out, err := execute(t, "--config", cfgPath, "run", "--source", "nowhere", "--max-articles", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "Error: unknown adapter: nowhere")

	out, err = execute(t, "--config", cfgPath, "logs", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "completed"`)
	assert.Contains(t, out, "unknown adapter: nowhere")
}

func TestRunRejectsMaxArticlesOutOfRange(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	_, err := execute(t, "--config", cfgPath, "run", "--max-articles", "500")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--max-articles")
}

func TestStatusReportsRegisteredSources(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	out, err := execute(t, "--config", cfgPath, "status")
	require.NoError(t, err)
	assert.Contains(t, out, `"enabled": false`)
	assert.Contains(t, out, domain.SourcePubMed)
}
