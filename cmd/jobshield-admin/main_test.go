package main

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureStdout(t *testing.T, fn func() error) string {
	t.Helper()

	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	require.NoError(t, fn())
	require.NoError(t, w.Close())

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func TestPrintUsageListsCommands(t *testing.T) {
	out := captureStdout(t, printUsage)
	for name := range commands() {
		assert.Contains(t, out, name)
	}
}

func TestParseMigrateFlags(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		opts, err := parseMigrateFlags(nil)
		require.NoError(t, err)
		assert.Equal(t, defaultMigrationTimeout, opts.Timeout)
	})

	t.Run("custom timeout", func(t *testing.T) {
		opts, err := parseMigrateFlags([]string{"--timeout", "90s"})
		require.NoError(t, err)
		assert.Equal(t, 90*time.Second, opts.Timeout)
	})

	t.Run("rejects non-positive timeout", func(t *testing.T) {
		_, err := parseMigrateFlags([]string{"--timeout", "0s"})
		assert.ErrorContains(t, err, "greater than zero")
	})
}

func TestParseDBResetFlags(t *testing.T) {
	opts, err := parseDBResetFlags([]string{"--yes", "--seed", "--allow-remote"})
	require.NoError(t, err)
	assert.True(t, opts.Yes)
	assert.True(t, opts.Seed)
	assert.True(t, opts.AllowRemote)
	assert.Equal(t, defaultMigrationTimeout, opts.Timeout)
}

func TestParseQueueFlags(t *testing.T) {
	t.Run("requires user", func(t *testing.T) {
		_, err := parseQueueFlags(nil)
		assert.ErrorContains(t, err, "--user is required")
	})

	t.Run("parses filters", func(t *testing.T) {
		opts, err := parseQueueFlags([]string{"--user", "u1", "--status", "failed", "--limit", "5"})
		require.NoError(t, err)
		assert.Equal(t, "u1", opts.UserID)
		assert.Equal(t, "failed", opts.Status)
		assert.Equal(t, 5, opts.Limit)
	})

	t.Run("rejects non-positive limit", func(t *testing.T) {
		_, err := parseQueueFlags([]string{"--user", "u1", "--limit", "0"})
		assert.ErrorContains(t, err, "--limit")
	})
}

func TestParseRequeueFlags(t *testing.T) {
	t.Run("requires task", func(t *testing.T) {
		_, err := parseRequeueFlags(nil)
		assert.ErrorContains(t, err, "--task is required")
	})

	t.Run("carries reason", func(t *testing.T) {
		opts, err := parseRequeueFlags([]string{"--task", "t1", "--reason", "flaky run", "--yes"})
		require.NoError(t, err)
		assert.Equal(t, "t1", opts.TaskID)
		assert.Equal(t, "flaky run", opts.Reason)
		assert.True(t, opts.Yes)
	})
}

func TestParseScoreFlags(t *testing.T) {
	_, err := parseScoreFlags(nil)
	assert.ErrorContains(t, err, "--job is required")

	opts, err := parseScoreFlags([]string{"--job", "job-1"})
	require.NoError(t, err)
	assert.Equal(t, "job-1", opts.JobID)
}

func TestIsLikelyRemoteHost(t *testing.T) {
	local := []string{"", "localhost", "127.0.0.1", "::1", "db.local", "LOCALHOST"}
	for _, host := range local {
		assert.False(t, isLikelyRemoteHost(host), "host %q should be local", host)
	}

	remote := []string{"db.example.com", "10.1.2.3", "192.168.1.50"}
	for _, host := range remote {
		assert.True(t, isLikelyRemoteHost(host), "host %q should be remote", host)
	}
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"jobshield"`, quoteIdentifier("jobshield"))
	assert.Equal(t, `"we""ird"`, quoteIdentifier(`we"ird`))
}

func TestConfirmActionSkips(t *testing.T) {
	assert.NoError(t, confirmAction(true, "anything"))
}
