// File: cmd/sqswatch/confirm.go
// Brief: Shared confirmation prompt for apply and delete.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

func confirmAction(ctx context.Context, in io.Reader, out io.Writer, autoApprove bool, prompt string) error {
	if autoApprove {
		return nil
	}
	if f, ok := in.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		return errors.New("refusing to proceed without confirmation; rerun with --auto-approve")
	}
	fmt.Fprint(out, strings.TrimSpace(prompt)+" Only 'yes' is accepted: ")

	reader := bufio.NewReader(in)
	readResult := make(chan struct {
		line string
		err  error
	}, 1)
	go func() {
		line, err := reader.ReadString('\n')
		readResult <- struct {
			line string
			err  error
		}{line: line, err: err}
	}()

	var line string
	var err error
	select {
	case <-ctx.Done():
		fmt.Fprintln(out)
		return ctx.Err()
	case res := <-readResult:
		line, err = res.line, res.err
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if !strings.EqualFold(strings.TrimSpace(line), "yes") {
		return errors.New("aborted")
	}
	return nil
}
