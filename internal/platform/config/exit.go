package config

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// ExitFailure is the status ledger-maintenance and identity-key report when a
// run fails. Schedulers treat any other non-zero status as a crash.
const ExitFailure = 1

var (
	exitWriter io.Writer = os.Stderr
	exit                 = os.Exit
)

// Exitf ends a one-shot tool run: the message goes to stderr on its own line,
// with no log prefix, so report output on stdout stays machine-readable.
func Exitf(format string, args ...any) {
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	fmt.Fprintln(exitWriter, msg)
	exit(ExitFailure)
}
