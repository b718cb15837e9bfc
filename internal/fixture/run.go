// Package fixture stages a robot-description fixture and repairs its mesh
// references.
package fixture

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"fixtureprep/internal/meshindex"
	"fixtureprep/internal/meshref"
	"fixtureprep/internal/safeio"
	"fixtureprep/internal/scan"
)

// DescriptionExt is the extension of files whose references are rewritten.
// It is matched case-sensitively: ROBOT.URDF is left alone.
const DescriptionExt = ".urdf"

// Options configures a single Run.
type Options struct {
	// FixtureRoot holds one folder per format (dae/stl/unity/mjcf).
	FixtureRoot string
	// OutDir receives the staged copy at OutDir/<format>.
	OutDir string
	Format string
	// ClearOut removes an existing staged folder before staging.
	ClearOut bool
	// Exclude skips description files matching these globs (root-relative).
	Exclude []string
	// Workers > 1 rewrites description files in parallel.
	Workers int
	// Logger defaults to log.Default().
	Logger *log.Logger
}

// FileOutcome is the rewrite result of one description file.
type FileOutcome struct {
	Path string `json:"path"`
	meshref.Outcome
}

// Summary describes a completed run.
type Summary struct {
	RunID              string        `json:"run_id"`
	Format             string        `json:"format"`
	Source             string        `json:"source"`
	Staged             string        `json:"staged"`
	DescriptionFiles   int           `json:"urdfs"`
	MeshIndexSize      int           `json:"mesh_index"`
	RefsUpdated        int           `json:"mesh_refs_updated"`
	RefsUnresolved     int           `json:"mesh_refs_unresolved"`
	UnityNestedRemoved bool          `json:"unity_nested_urdf_removed"`
	Files              []FileOutcome `json:"files"`
	StartedAt          time.Time     `json:"started_at"`
	Duration           time.Duration `json:"duration_ns"`
}

// Run stages the selected fixture and rewrites every description file in it.
// Any error aborts the run; files rewritten before the failure stay rewritten.
func Run(ctx context.Context, opts Options) (Summary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	started := time.Now()

	format, err := meshref.ParseFormat(opts.Format)
	if err != nil {
		return Summary{}, configErr("parse format", "", err)
	}
	src, staged, err := resolvePaths(opts.FixtureRoot, opts.OutDir, format)
	if err != nil {
		return Summary{}, err
	}

	if err := Stage(src, staged, opts.ClearOut); err != nil {
		return Summary{}, ioErr("stage", staged, err)
	}
	logger.Printf("staged %s -> %s", src, staged)

	fsys, err := safeio.NewSafeFS(staged)
	if err != nil {
		return Summary{}, ioErr("open staged", staged, err)
	}

	removed := false
	if format == meshref.FormatUnity {
		removed, err = RemoveUnityNested(fsys)
		if err != nil {
			return Summary{}, ioErr("unity cleanup", staged, err)
		}
		if removed {
			logger.Printf("removed nested %s", UnityNestedDescription)
		}
	}

	descs, err := scan.FilesWithExtensions(staged, []string{DescriptionExt}, scan.Options{Exclude: opts.Exclude, CaseSensitiveExt: true})
	if err != nil {
		return Summary{}, discoveryErr("discover", staged, err)
	}
	if len(descs) == 0 {
		return Summary{}, discoveryErr("discover", staged, ErrNoDescriptions)
	}

	idx, err := meshindex.Build(staged)
	if err != nil {
		return Summary{}, ioErr("index meshes", staged, err)
	}
	logger.Printf("indexed %d meshes, rewriting %d description files", idx.Len(), len(descs))

	outcomes, err := rewriteAll(ctx, fsys, idx, format, descs, opts.Workers)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		RunID:              uuid.NewString(),
		Format:             string(format),
		Source:             src,
		Staged:             staged,
		DescriptionFiles:   len(descs),
		MeshIndexSize:      idx.Len(),
		UnityNestedRemoved: removed,
		Files:              outcomes,
		StartedAt:          started,
	}
	for _, fo := range outcomes {
		sum.RefsUpdated += fo.Updated
		sum.RefsUnresolved += fo.Unresolved
		if fo.Unresolved > 0 {
			logger.Printf("%s: %d unresolved mesh references", fo.Path, fo.Unresolved)
		}
	}
	sum.Duration = time.Since(started)
	return sum, nil
}

func resolvePaths(fixtureRoot, outDir string, format meshref.Format) (src, staged string, err error) {
	src, err = filepath.Abs(filepath.Join(fixtureRoot, string(format)))
	if err != nil {
		return "", "", configErr("resolve source", fixtureRoot, err)
	}
	ok, err := isDir(src)
	if err != nil {
		return "", "", configErr("stat source", src, err)
	}
	if !ok {
		return "", "", configErr("stat source", src, ErrSourceMissing)
	}

	out, err := filepath.Abs(outDir)
	if err != nil {
		return "", "", configErr("resolve output", outDir, err)
	}
	parent := filepath.Dir(out)
	if ok, err := isDir(parent); err != nil || !ok {
		if err == nil {
			err = ErrOutputParentMissing
		}
		return "", "", configErr("stat output parent", parent, err)
	}

	staged = filepath.Join(out, string(format))
	if overlaps(src, staged) {
		return "", "", configErr("check paths", staged, ErrOverlap)
	}
	return src, staged, nil
}

func rewriteAll(ctx context.Context, fsys *safeio.SafeFS, idx meshindex.Index, format meshref.Format, descs []string, workers int) ([]FileOutcome, error) {
	r, err := meshref.NewResolver(idx, format)
	if err != nil {
		return nil, configErr("resolver", "", err)
	}
	outcomes := make([]FileOutcome, len(descs))
	rewriteOne := func(i int) error {
		if err := ctx.Err(); err != nil {
			return ioErr("rewrite", descs[i], err)
		}
		oc, err := r.RewriteFile(fsys, descs[i])
		if err != nil {
			return ioErr("rewrite", descs[i], err)
		}
		outcomes[i] = FileOutcome{Path: descs[i], Outcome: oc}
		return nil
	}

	if workers <= 1 {
		for i := range descs {
			if err := rewriteOne(i); err != nil {
				return nil, err
			}
		}
		return outcomes, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range descs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error { return rewriteOne(i) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, ioErr("rewrite", "", err)
	}
	return outcomes, nil
}
