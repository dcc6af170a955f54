package securemem

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/term"
)

// ErrNotTerminal is returned by ReadPassword when fd is not a terminal.
var ErrNotTerminal = errors.New("not a terminal")

// ReadPassword prints prompt to out and reads a line from the terminal fd
// without echo. The result never passes through an unprotected string.
func ReadPassword(fd int, out io.Writer, prompt string) (*String, error) {
	if !term.IsTerminal(fd) {
		return nil, ErrNotTerminal
	}

	fmt.Fprint(out, prompt)
	data, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		Wipe(data)
		return nil, fmt.Errorf("read password: %w", err)
	}
	return NewStringFromBytes(data), nil
}
