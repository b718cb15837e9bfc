package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"fixtureprep/internal/artifact"
	"fixtureprep/internal/config"
	"fixtureprep/internal/fixture"
	"fixtureprep/internal/runlog"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	log.SetOutput(stderr)
	log.SetFlags(log.LstdFlags)

	cfg, err := config.Load(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		log.Println(err)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sum, err := fixture.Run(ctx, fixture.Options{
		FixtureRoot: cfg.FixtureRoot,
		OutDir:      cfg.OutDir,
		Format:      cfg.Format,
		ClearOut:    cfg.ClearOut,
		Exclude:     cfg.Exclude,
		Workers:     cfg.Workers,
	})
	if err != nil {
		log.Println(err)
		if fixture.IsConfig(err) {
			return exitUsage
		}
		return exitError
	}

	if cfg.Artifact.Enabled {
		if err := publish(ctx, cfg.Artifact, sum); err != nil {
			log.Printf("publish: %v", err)
			return exitError
		}
	}
	if cfg.LedgerDSN != "" {
		if err := record(ctx, cfg.LedgerDSN, sum); err != nil {
			log.Printf("ledger: %v", err)
			return exitError
		}
	}

	if err := printSummary(stdout, sum, cfg.JSON); err != nil {
		log.Println(err)
		return exitError
	}
	return exitOK
}

func publish(ctx context.Context, ac config.ArtifactConfig, sum fixture.Summary) error {
	store, err := artifact.NewS3Store(artifact.S3Config{
		Endpoint:  ac.Endpoint,
		Region:    ac.Region,
		AccessKey: ac.AccessKey,
		SecretKey: ac.SecretKey,
		Bucket:    ac.Bucket,
		UseSSL:    ac.UseSSL,
	})
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	n, err := artifact.Publish(ctx, store, sum.RunID, sum.Staged, b)
	if err != nil {
		return err
	}
	url, err := store.GetURL(ctx, sum.RunID, artifact.SummaryPath)
	if err != nil {
		return err
	}
	log.Printf("published %d files to %s/%s (summary: %s)", n, ac.Bucket, sum.RunID, url)
	return nil
}

func record(ctx context.Context, dsn string, sum fixture.Summary) error {
	l, err := runlog.Open(dsn)
	if err != nil {
		return err
	}
	defer l.Close()
	return l.Record(ctx, runlog.EntryFromSummary(sum))
}

func printSummary(w io.Writer, sum fixture.Summary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	_, err := fmt.Fprintf(w, "format=%s\nstaged=%s\nurdfs=%d\nmesh_index=%d\nmesh_refs_updated=%d\nmesh_refs_unresolved=%d\nunity_nested_urdf_removed=%t\n",
		sum.Format, sum.Staged, sum.DescriptionFiles, sum.MeshIndexSize,
		sum.RefsUpdated, sum.RefsUnresolved, sum.UnityNestedRemoved)
	return err
}
