package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"
)

// TerminalHost connects a MonitorSession to stdin/stdout. On a TTY it uses an
// x/term line editor in raw mode; otherwise it reads plain lines, which lets
// command files be piped in.
type TerminalHost struct {
	session *MonitorSession
	in      io.Reader
	out     io.Writer
	fd      int
	color   bool

	term         *term.Terminal
	oldTermState *term.State
}

// NewTerminalHost creates a host for session on the process's stdio.
func NewTerminalHost(session *MonitorSession) *TerminalHost {
	return &TerminalHost{
		session: session,
		in:      os.Stdin,
		out:     os.Stdout,
		fd:      int(os.Stdin.Fd()),
	}
}

// Start puts the terminal in raw mode when stdin is a TTY.
func (h *TerminalHost) Start() {
	if !term.IsTerminal(h.fd) {
		return
	}
	oldState, err := term.MakeRaw(h.fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "terminal_host: failed to set raw mode: %v\n", err)
		return
	}
	h.oldTermState = oldState
	h.term = term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{h.in, h.out}, "xt> ")
	h.out = h.term
	h.color = true
}

// Stop restores the terminal state saved by Start.
func (h *TerminalHost) Stop() {
	if h.oldTermState != nil {
		_ = term.Restore(h.fd, h.oldTermState)
		h.oldTermState = nil
	}
}

// readLines feeds input lines to the returned channel until EOF.
func (h *TerminalHost) readLines() <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		if h.term != nil {
			for {
				line, err := h.term.ReadLine()
				if err != nil {
					return
				}
				lines <- line
			}
		}
		sc := bufio.NewScanner(h.in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	return lines
}

// Run reads commands until the session exits, input ends or ctx is done.
// While the machine free-runs, output is flushed periodically.
func (h *TerminalHost) Run(ctx context.Context) error {
	h.Start()
	defer h.Stop()

	h.session.ExecuteCommand(ctx, "r")
	h.PrintOutput()

	lines := h.readLines()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			h.session.ExecuteCommand(context.Background(), "stop")
			h.PrintOutput()
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if h.session.Running() {
					h.session.ExecuteCommand(ctx, "stop")
				}
				h.PrintOutput()
				return nil
			}
			exit := h.session.ExecuteCommand(ctx, line)
			h.PrintOutput()
			if exit {
				return h.session.runner.Wait()
			}
		case <-tick.C:
			h.PrintOutput()
		}
	}
}

// PrintOutput drains the session's output buffer to the terminal.
func (h *TerminalHost) PrintOutput() {
	for _, line := range h.session.DrainOutput() {
		if h.color {
			r, g, b := line.Color>>24, line.Color>>16&0xFF, line.Color>>8&0xFF
			fmt.Fprintf(h.out, "\x1b[38;2;%d;%d;%dm%s\x1b[0m\n", r, g, b, line.Text)
		} else {
			fmt.Fprintln(h.out, line.Text)
		}
	}
}
