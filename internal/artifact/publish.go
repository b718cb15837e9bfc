package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"fixtureprep/internal/scan"
)

// SummaryPath is the object name the run summary is stored under.
const SummaryPath = "summary.json"

// ErrIncomplete reports that a published run is missing objects after upload.
var ErrIncomplete = errors.New("published run is incomplete")

// Publish uploads every file under stagedRoot to store as runID/<rel path>,
// followed by the run summary, then reads the run back to confirm every
// object landed. It returns the number of files uploaded, summary excluded.
func Publish(ctx context.Context, store Store, runID, stagedRoot string, summary []byte) (int, error) {
	n := 0
	var uploaded []string
	err := scan.Walk(stagedRoot, scan.Options{}, func(fv scan.FileVisit) error {
		if fv.IsDir {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		b, err := os.ReadFile(fv.AbsPath)
		if err != nil {
			return err
		}
		if err := store.Put(ctx, runID, fv.Path, b); err != nil {
			return fmt.Errorf("put %s: %w", fv.Path, err)
		}
		uploaded = append(uploaded, fv.Path)
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("publish %s: %w", stagedRoot, err)
	}
	if err := store.Put(ctx, runID, SummaryPath, summary); err != nil {
		return n, fmt.Errorf("publish summary: %w", err)
	}
	if err := verify(ctx, store, runID, uploaded, summary); err != nil {
		return n, fmt.Errorf("verify %s: %w", runID, err)
	}
	return n, nil
}

// verify checks that the store lists every uploaded path plus the summary,
// and that the stored summary matches what was sent.
func verify(ctx context.Context, store Store, runID string, uploaded []string, summary []byte) error {
	listed, err := store.List(ctx, runID)
	if err != nil {
		return err
	}
	for _, p := range append(uploaded, SummaryPath) {
		if !slices.Contains(listed, p) {
			return fmt.Errorf("%w: %s not listed", ErrIncomplete, p)
		}
	}
	got, err := store.Get(ctx, runID, SummaryPath)
	if err != nil {
		return fmt.Errorf("read back summary: %w", err)
	}
	if !bytes.Equal(got, summary) {
		return fmt.Errorf("%w: summary differs", ErrIncomplete)
	}
	return nil
}
