// Package bridge carries prompts between git subprocesses and the
// application: an askpass callback for credential prompts and a sequence
// editor for interactive-rebase todo lists. Each bridge has an in-process
// side used by the engines and a subprocess side that git invokes through
// hidden CLI commands.
package bridge

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/githerd/githerd/internal/git"
)

// Environment entries the orchestrator injects and the subprocess side
// reads back.
const (
	EnvAskpassAddr  = "GITHERD_ASKPASS_ADDR"
	EnvAskpassToken = "GITHERD_ASKPASS_TOKEN"
)

// askpassIOTimeout bounds a single askpass exchange on both sides.
const askpassIOTimeout = 30 * time.Second

// Prompter supplies answers to git credential prompts.
type Prompter interface {
	// Username answers a username prompt. prompt is git's own text, such
	// as "Username for 'https://github.com': ".
	Username(prompt string) (string, error)

	// Password answers a password or passphrase prompt.
	Password(prompt string) (string, error)
}

// Askpass is the in-process side of the credential bridge. It listens on a
// loopback port and hands each remote command environment entries that point
// git's askpass mechanism back at this process. Answers are cached until a
// refresh or Reject discards them.
type Askpass struct {
	self     string
	prompter Prompter
	log      *slog.Logger

	mu     sync.Mutex
	ln     net.Listener
	script string
	token  string
	cache  map[string]string
}

var _ git.Credentials = (*Askpass)(nil)

// NewAskpass returns a credential bridge that routes git prompts through
// prompter. self is the githerd executable git will be pointed at. The
// listener starts on first Attach.
func NewAskpass(self string, prompter Prompter, log *slog.Logger) *Askpass {
	if log == nil {
		log = slog.Default()
	}
	return &Askpass{
		self:     self,
		prompter: prompter,
		log:      log.With("component", "askpass"),
		cache:    make(map[string]string),
	}
}

// Attach prepares one remote command attempt. It makes sure the listener and
// the askpass script exist, rotates the handshake token and returns the
// environment entries git needs to call back. done invalidates the token.
func (a *Askpass) Attach(_ context.Context, refresh bool) ([]string, func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ensureListener(); err != nil {
		return nil, nil, err
	}
	if refresh {
		a.cache = make(map[string]string)
	}
	token, err := newToken()
	if err != nil {
		return nil, nil, err
	}
	a.token = token
	env := []string{
		"GIT_ASKPASS=" + a.script,
		"SSH_ASKPASS=" + a.script,
		"SSH_ASKPASS_REQUIRE=force",
		EnvAskpassAddr + "=" + a.ln.Addr().String(),
		EnvAskpassToken + "=" + token,
	}
	done := func() {
		a.mu.Lock()
		if a.token == token {
			a.token = ""
		}
		a.mu.Unlock()
	}
	return env, done, nil
}

// Reject discards the remembered answers after a final authentication
// failure, so the next command prompts from scratch.
func (a *Askpass) Reject(_ context.Context) {
	a.mu.Lock()
	a.cache = make(map[string]string)
	a.mu.Unlock()
}

// Close stops the listener and removes the askpass script.
func (a *Askpass) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var errs []error
	if a.ln != nil {
		errs = append(errs, a.ln.Close())
		a.ln = nil
	}
	if a.script != "" {
		if err := os.Remove(a.script); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
		a.script = ""
	}
	a.token = ""
	return errors.Join(errs...)
}

// ensureListener is called with mu held.
func (a *Askpass) ensureListener() error {
	if a.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("askpass listener: %w", err)
	}
	script, err := writeAskpassScript(a.self)
	if err != nil {
		ln.Close()
		return err
	}
	a.ln = ln
	a.script = script
	go a.serve(ln)
	return nil
}

func (a *Askpass) serve(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go a.handle(conn)
	}
}

// handle serves one askpass invocation: a token line, a prompt line, the
// answer back. A bad token gets the connection closed without an answer.
func (a *Askpass) handle(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(askpassIOTimeout))

	rd := bufio.NewReader(conn)
	token, err := readLine(rd)
	if err != nil {
		return
	}
	a.mu.Lock()
	ok := a.token != "" && token == a.token
	a.mu.Unlock()
	if !ok {
		a.log.Warn("rejected askpass connection with a stale token")
		return
	}
	prompt, err := readLine(rd)
	if err != nil {
		return
	}
	answer, err := a.answer(prompt)
	if err != nil {
		a.log.Warn("credential prompt unanswered", "prompt", prompt, "error", err)
		return
	}
	fmt.Fprintln(conn, answer)
}

// answer resolves one prompt, preferring the cached value from earlier in
// the session.
func (a *Askpass) answer(prompt string) (string, error) {
	a.mu.Lock()
	cached, ok := a.cache[prompt]
	a.mu.Unlock()
	if ok {
		return cached, nil
	}

	var answer string
	var err error
	if isUsernamePrompt(prompt) {
		answer, err = a.prompter.Username(prompt)
	} else {
		answer, err = a.prompter.Password(prompt)
	}
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	a.cache[prompt] = answer
	a.mu.Unlock()
	return answer, nil
}

// isUsernamePrompt tells a username prompt from a password or passphrase
// prompt by the text git sends.
func isUsernamePrompt(prompt string) bool {
	return strings.HasPrefix(strings.ToLower(prompt), "username")
}

// writeAskpassScript writes the wrapper git execs as its askpass program.
// GIT_ASKPASS takes a bare program path with no arguments, so the subcommand
// invocation has to be wrapped in a script.
func writeAskpassScript(self string) (string, error) {
	f, err := os.CreateTemp("", "githerd-askpass-*.sh")
	if err != nil {
		return "", fmt.Errorf("askpass script: %w", err)
	}
	body := fmt.Sprintf("#!/bin/sh\nexec %s askpass \"$@\"\n", shellQuote(self))
	if _, err := f.WriteString(body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("askpass script: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("askpass script: %w", err)
	}
	if err := os.Chmod(f.Name(), 0o700); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("askpass script: %w", err)
	}
	return f.Name(), nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// newToken returns a fresh handshake token for one command attempt.
func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("handshake token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func readLine(rd *bufio.Reader) (string, error) {
	line, err := rd.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
