package clix_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	flag "github.com/spf13/pflag"

	"github.com/groundlabs/grounddb/cmd/grounddb/internal/clix"
	"github.com/groundlabs/grounddb/internal/ground"
)

func newTestCommand() *clix.Command {
	fs := flag.NewFlagSet("widget", flag.ContinueOnError)
	name := fs.String("name", "", "widget name")

	return &clix.Command{
		Flags: fs,
		Usage: "widget <id> [flags]",
		Short: "Do a widget thing",
		Exec: func(ctx context.Context, o *clix.IO, args []string) error {
			if len(args) == 0 {
				return errors.New("missing id")
			}

			if *name == "fail" {
				return &ground.Error{Kind: ground.KindValidation, Err: errors.New("bad name")}
			}

			o.Printf("did %s with name=%s\n", args[0], *name)

			return nil
		},
	}
}

func TestCommand_Run_Success(t *testing.T) {
	var out, errOut bytes.Buffer
	o := clix.NewIO(&out, &errOut)

	code := newTestCommand().Run(context.Background(), o, []string{"--name", "ada", "w1"})

	require.Equal(t, 0, code)
	require.Contains(t, out.String(), "did w1 with name=ada")
	require.Empty(t, errOut.String())
}

func TestCommand_Run_ExecError_UsesExitCode(t *testing.T) {
	var out, errOut bytes.Buffer
	o := clix.NewIO(&out, &errOut)

	code := newTestCommand().Run(context.Background(), o, []string{"--name", "fail", "w1"})

	require.Equal(t, 1, code)
	require.Contains(t, errOut.String(), "ERROR:ValidationError:bad name")
}

func TestCommand_Run_PlainError_ExitsTwo(t *testing.T) {
	var out, errOut bytes.Buffer
	o := clix.NewIO(&out, &errOut)

	code := newTestCommand().Run(context.Background(), o, nil)

	require.Equal(t, 2, code)
	require.Contains(t, errOut.String(), "missing id")
}

func TestCommand_Run_UnknownFlag_ExitsTwo(t *testing.T) {
	var out, errOut bytes.Buffer
	o := clix.NewIO(&out, &errOut)

	code := newTestCommand().Run(context.Background(), o, []string{"--bogus"})

	require.Equal(t, 2, code)
	require.NotEmpty(t, errOut.String())
}

func TestCommand_Run_Help_PrintsUsageAndExitsZero(t *testing.T) {
	var out, errOut bytes.Buffer
	o := clix.NewIO(&out, &errOut)

	code := newTestCommand().Run(context.Background(), o, []string{"--help"})

	require.Equal(t, 0, code)
	require.Contains(t, out.String(), "Usage: grounddb widget <id> [flags]")
	require.Contains(t, out.String(), "Flags:")
	require.Empty(t, errOut.String())
}

func TestCommand_Name_IsUsagesFirstWord(t *testing.T) {
	require.Equal(t, "widget", newTestCommand().Name())
}

func TestCommand_HelpLine_IncludesUsageAndShort(t *testing.T) {
	line := newTestCommand().HelpLine()

	require.Contains(t, line, "widget <id> [flags]")
	require.Contains(t, line, "Do a widget thing")
}
