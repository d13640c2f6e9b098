package clix

import (
	"errors"
	"fmt"
	"strings"

	"github.com/groundlabs/grounddb/internal/ground"
)

// FormatError renders err as spec §6's ERROR:<KIND>:<message> line. A
// non-ground.Error (a pflag parse failure, an os.Open failure from main
// before the Store is even open) is reported under IoError, the closest
// stand-in the error taxonomy has for "something outside the documented
// Kinds".
func FormatError(err error) string {
	var gerr *ground.Error
	if errors.As(err, &gerr) {
		return fmt.Sprintf("ERROR:%s:%s", gerr.Kind, causeMessage(gerr))
	}

	return fmt.Sprintf("ERROR:%s:%s", ground.KindIO, err)
}

// causeMessage strips *ground.Error's own "Kind: " prefix since the caller
// already carries the kind in ERROR:<KIND>:.
func causeMessage(e *ground.Error) string {
	msg := e.Error()
	return strings.TrimPrefix(msg, string(e.Kind)+": ")
}

// ExitCode classifies err into spec §6's exit codes: 1 for a
// validation/conflict-shaped failure the caller can fix by retrying with
// different input or state, 2 for anything else (a system-level failure
// the caller can't simply work around).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var gerr *ground.Error
	if !errors.As(err, &gerr) {
		return 2
	}

	switch gerr.Kind {
	case ground.KindValidation, ground.KindPathConflict, ground.KindReference,
		ground.KindNotFound, ground.KindQuery, ground.KindMigrationRequired, ground.KindBusy:
		return 1
	default:
		return 2
	}
}
