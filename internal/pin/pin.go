// Package pin reads the mount pin out of band: from the SAFEFS_PIN
// environment variable when set, otherwise from the controlling terminal
// with echo disabled.
package pin

import (
	"bufio"
	"fmt"
	"os"

	"golang.org/x/term"
)

// EnvVar is the environment variable checked before prompting.
const EnvVar = "SAFEFS_PIN"

// Read returns the pin as a byte slice the caller must zero after use.
func Read() ([]byte, error) {
	if v, ok := os.LookupEnv(EnvVar); ok {
		return []byte(v), nil
	}
	fmt.Fprint(os.Stderr, "Enter the 10-digit pin code: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("pin: reading from terminal: %w", err)
		}
		return b, nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("pin: reading from stdin: %w", err)
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return []byte(line), nil
}

// Zero overwrites pin in place.
func Zero(pin []byte) {
	for i := range pin {
		pin[i] = 0
	}
}
