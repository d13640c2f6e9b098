package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testSchemaYAML = `
collections:
  authors:
    path: "authors/{id}.md"
    fields:
      name:
        type: string
        required: true

  posts:
    path: "posts/{id}.md"
    content: true
    fields:
      title:
        type: string
        required: true
      author:
        type: ref
        target: authors
        on_delete: nullify

views:
  post_titles:
    query: "SELECT id, title FROM posts"
    materialize: false
  posts_by_author:
    query: "SELECT id, title FROM posts WHERE author = :author"
    type: query
    params:
      author:
        type: string
`

// testDataDir writes schema.yaml into a fresh temp directory and returns its
// path, ready to pass as --dir to any subcommand.
func testDataDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.yaml"), []byte(testSchemaYAML), 0o644))

	return dir
}

// runCLI invokes run() with fresh stdout/stderr buffers and returns the
// captured output alongside the exit code, without actually forking a
// subprocess.
func runCLI(args ...string) (stdout, stderr string, code int) {
	var out, errOut bytes.Buffer

	code = run(args, &out, &errOut)

	return out.String(), errOut.String(), code
}

func TestRun_NoArgs_PrintsUsage(t *testing.T) {
	stdout, stderr, code := runCLI()

	require.Equal(t, 0, code)
	require.Contains(t, stdout, "Usage: grounddb <command>")
	require.Empty(t, stderr)
}

func TestRun_UnknownCommand_ExitsTwo(t *testing.T) {
	stdout, stderr, code := runCLI("bogus")

	require.Equal(t, 2, code)
	require.Contains(t, stderr, "unknown command: bogus")
	require.Contains(t, stdout, "Usage: grounddb <command>")
}

func TestRun_Help_PrintsUsage(t *testing.T) {
	stdout, _, code := runCLI("--help")

	require.Equal(t, 0, code)
	require.Contains(t, stdout, "Commands:")
}
