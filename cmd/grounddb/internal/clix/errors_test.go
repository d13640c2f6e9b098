package clix_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/groundlabs/grounddb/cmd/grounddb/internal/clix"
	"github.com/groundlabs/grounddb/internal/ground"
)

func TestFormatError_GroundError_UsesKindAndStripsPrefix(t *testing.T) {
	err := &ground.Error{Kind: ground.KindNotFound, Err: errors.New("no such document")}

	require.Equal(t, "ERROR:NotFound:no such document", clix.FormatError(err))
}

func TestFormatError_PlainError_TreatedAsIoError(t *testing.T) {
	err := errors.New("disk on fire")

	require.Equal(t, "ERROR:IoError:disk on fire", clix.FormatError(err))
}

func TestExitCode_Nil_IsZero(t *testing.T) {
	require.Equal(t, 0, clix.ExitCode(nil))
}

func TestExitCode_PlainError_IsTwo(t *testing.T) {
	require.Equal(t, 2, clix.ExitCode(errors.New("boom")))
}

func TestExitCode_ClassifiesGroundErrorKinds(t *testing.T) {
	cases := []struct {
		kind ground.Kind
		want int
	}{
		{ground.KindValidation, 1},
		{ground.KindPathConflict, 1},
		{ground.KindReference, 1},
		{ground.KindNotFound, 1},
		{ground.KindQuery, 1},
		{ground.KindMigrationRequired, 1},
		{ground.KindBusy, 1},
		{ground.KindSchema, 2},
		{ground.KindIO, 2},
		{ground.KindIndex, 2},
		{ground.KindCancelled, 2},
	}

	for _, tc := range cases {
		err := &ground.Error{Kind: tc.kind, Err: errors.New("x")}
		require.Equal(t, tc.want, clix.ExitCode(err), "kind=%s", tc.kind)
	}
}
