package bridge

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"
)

// RunAskpass is the subprocess side of the credential bridge. git invokes it
// with the prompt text as its argument; the answer is written to out for git
// to read. The callback address and handshake token come from the
// environment entries Attach injected.
func RunAskpass(prompt string, out io.Writer) error {
	addr := os.Getenv(EnvAskpassAddr)
	token := os.Getenv(EnvAskpassToken)
	if addr == "" || token == "" {
		return errors.New("askpass bridge environment not set")
	}

	conn, err := net.DialTimeout("tcp", addr, askpassIOTimeout)
	if err != nil {
		return fmt.Errorf("askpass bridge: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(askpassIOTimeout))

	if _, err := fmt.Fprintf(conn, "%s\n%s\n", token, flattenPrompt(prompt)); err != nil {
		return fmt.Errorf("askpass bridge: %w", err)
	}
	answer, err := readLine(bufio.NewReader(conn))
	if err != nil {
		return errors.New("askpass bridge: no answer")
	}
	_, err = fmt.Fprintln(out, answer)
	return err
}

// flattenPrompt keeps the prompt a single protocol line.
func flattenPrompt(prompt string) string {
	prompt = strings.ReplaceAll(prompt, "\r", " ")
	return strings.ReplaceAll(prompt, "\n", " ")
}
