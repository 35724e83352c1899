// Package exec runs commands on the local machine with the same
// (stdout, stderr, exit code) shape the SSH layer uses for remote commands,
// so callers handle both sides uniformly.
package exec

import (
	"io"
	"os"
	goexec "os/exec"

	"github.com/nodeprep/nodeprep/internal/errors"
)

// Local runs a command through the user's shell, streaming output to the
// provided writers. A nonzero exit status is returned as a code, not an
// error; err is reserved for failures to run the command at all.
func Local(cmd string, stdout, stderr io.Writer) (exitCode int, err error) {
	command := goexec.Command(shell(), "-c", cmd)
	command.Stdout = stdout
	command.Stderr = stderr

	runErr := command.Run()
	if runErr != nil {
		if exitErr, ok := runErr.(*goexec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return -1, errors.WrapWithCode(runErr, errors.ErrExec,
			"Couldn't run the command locally",
			"Make sure the command exists and is executable")
	}
	return 0, nil
}

// LocalCapture runs a command through the user's shell and captures its
// output instead of streaming it.
func LocalCapture(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	var outBuf, errBuf captureBuffer
	code, err := Local(cmd, &outBuf, &errBuf)
	return outBuf.data, errBuf.data, code, err
}

type captureBuffer struct {
	data []byte
}

func (b *captureBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

// shell returns the user's shell, defaulting to /bin/sh. The shell is needed
// so command strings with pipes and redirects behave as they would at a
// prompt.
func shell() string {
	if s := os.Getenv("SHELL"); s != "" {
		return s
	}
	return "/bin/sh"
}
