package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
)

func (cli *commandLine) stats(sessionID string) error {
	_, text, err := cli.emotionSvc.Summary(context.Background(), sessionID)
	if err != nil {
		return err
	}
	fmt.Fprint(cli.out, text)
	return nil
}

// snapshot runs the capture and preprocessing steps of one cycle, without submitting the frame.
func (cli *commandLine) snapshot(path string) error {
	ctx := context.Background()
	source, err := cli.newSource()
	if err != nil {
		return err
	}
	raw, err := source.Capture(ctx)
	if err != nil {
		return errors.Wrap(err, "capturing frame")
	}
	frame, err := cli.prep.Preprocess(ctx, raw)
	if err != nil {
		return errors.Wrap(err, "preprocessing frame")
	}
	if err := os.WriteFile(path, frame, 0o644); err != nil {
		return errors.Wrap(err, "writing snapshot")
	}
	fmt.Fprintf(cli.out, "%s: %d bytes (captured %d)\n", path, len(frame), len(raw))
	return nil
}

func (cli *commandLine) lookupStudent(query string) error {
	std, err := cli.studentSvc.Search(context.Background(), query)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s: %s <%s>\n", std.ID, std.DisplayName(), std.Email)
	return nil
}
