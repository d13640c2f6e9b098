package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/groundlabs/grounddb"
	"github.com/groundlabs/grounddb/cmd/grounddb/internal/clix"
)

func newTestRepl(t *testing.T) (*repl, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	dir := testDataDir(t)

	s, err := grounddb.Open(context.Background(), dir, grounddb.Options{NoWatch: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	var out, errOut bytes.Buffer

	return &repl{store: s, o: clix.NewIO(&out, &errOut)}, &out, &errOut
}

func TestRepl_InsertGetDelete_RoundTrip(t *testing.T) {
	r, out, errOut := newTestRepl(t)
	ctx := context.Background()

	require.NoError(t, r.cmdInsert(ctx, []string{"authors", "id=a1", "name=Ada"}))
	require.Contains(t, out.String(), "inserted authors/a1")
	out.Reset()

	require.NoError(t, r.cmdGet(ctx, []string{"authors", "a1"}))
	require.Contains(t, out.String(), "id:         a1")
	out.Reset()

	require.NoError(t, r.cmdDelete(ctx, []string{"authors", "a1"}))
	require.Contains(t, out.String(), "deleted authors/a1")

	require.Error(t, r.cmdGet(ctx, []string{"authors", "a1"}))
	require.Empty(t, errOut.String())
}

func TestRepl_Dispatch_UnknownCommand_PrintsHint(t *testing.T) {
	r, out, _ := newTestRepl(t)

	r.dispatch(context.Background(), "frobnicate", nil)

	require.Contains(t, out.String(), "unknown command: frobnicate")
}

func TestRepl_Dispatch_FormatsStoreErrorsToStderr(t *testing.T) {
	r, _, errOut := newTestRepl(t)

	r.dispatch(context.Background(), "get", []string{"authors", "nope"})

	require.Contains(t, errOut.String(), "ERROR:NotFound:")
}

func TestRepl_SplitBody_SeparatesSetsFromBodyText(t *testing.T) {
	sets, body := splitBody([]string{"title=Hi", "--", "some", "body", "text"})

	require.Equal(t, []string{"title=Hi"}, sets)
	require.Equal(t, "some body text", body)
}

func TestRepl_SplitBody_NoSeparator(t *testing.T) {
	sets, body := splitBody([]string{"title=Hi"})

	require.Equal(t, []string{"title=Hi"}, sets)
	require.Empty(t, body)
}

func TestRepl_Completer_MatchesPrefix(t *testing.T) {
	r, _, _ := newTestRepl(t)

	matches := r.completer("de")

	require.Equal(t, []string{"delete"}, matches)
}
