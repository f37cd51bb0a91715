// Package engine makes a destination directory an exact mirror of a source
// directory.
//
// A run captures both trees, classifies the differences, and then applies
// them in three strictly ordered phases: removals deepest first, creations
// shallowest first, and updates. An optional verification compares the
// digests of both trees afterwards. Failures on individual paths are logged
// and skipped; only an invalid root aborts a run.
package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/olimci/foldersync/pkg/digest"
	"github.com/olimci/foldersync/pkg/logging"
	"github.com/olimci/foldersync/pkg/plan"
	"github.com/olimci/foldersync/pkg/snapshot"
	"github.com/olimci/foldersync/pkg/utils/fileutils"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// ErrOverlappingRoots is returned when source and destination are the same
// directory or one contains the other.
var ErrOverlappingRoots = errors.New("source and destination overlap")

type Phase string

const (
	PhaseScan     Phase = "scan"
	PhaseClassify Phase = "classify"
	PhaseRemove   Phase = "remove"
	PhaseCreate   Phase = "create"
	PhaseUpdate   Phase = "update"
	PhaseVerify   Phase = "verify"
	PhaseDone     Phase = "done"
)

type Options struct {
	DryRun    bool   // classify only, never touch the destination
	Verify    bool   // compare tree digests after applying
	Workers   int    // goroutines used to hash update candidates
	Algorithm string // digest algorithm, see digest.ValidateAlgorithm
}

func DefaultOptions() Options {
	return Options{
		Verify:    true,
		Workers:   1,
		Algorithm: digest.AlgorithmXXH64,
	}
}

// Failure is a single path whose operation was skipped.
type Failure struct {
	Path string
	Op   Phase
	Err  error
}

type Result struct {
	Source       string
	Destination  string
	Success      bool
	DryRun       bool
	Plan         plan.Plan
	Verified     *bool // nil when verification was disabled or skipped
	SourceDigest digest.Digest
	Skipped      []Failure
	ChangedPaths []string
	StartedAt    time.Time
	Duration     time.Duration
}

// Synchronizer runs mirror synchronizations over a filesystem.
// Concurrent calls to Synchronize on the same value are serialized.
type Synchronizer struct {
	fs     afero.Fs
	logger zerolog.Logger
	opts   Options
	hasher digest.Hasher

	mu sync.Mutex
}

func New(fs afero.Fs, logger zerolog.Logger, opts Options) (*Synchronizer, error) {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	hasher, err := digest.NewHasher(fs, opts.Algorithm)
	if err != nil {
		return nil, err
	}
	opts.Algorithm = hasher.Algorithm()

	return &Synchronizer{
		fs:     fs,
		logger: logging.Component(logger, "engine"),
		opts:   opts,
		hasher: hasher,
	}, nil
}

func (s *Synchronizer) Options() Options {
	return s.opts
}

// Synchronize makes destRoot a mirror of sourceRoot.
//
// The returned error is non-nil only for fatal conditions (invalid or
// overlapping roots, cancellation before any change was made, or a failure
// to read either tree). Once the first change has been applied the run
// always completes; per-path failures are reported in Result.Skipped.
func (s *Synchronizer) Synchronize(ctx context.Context, sourceRoot, destRoot string) (res Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res = Result{StartedAt: time.Now(), DryRun: s.opts.DryRun}
	defer func() { res.Duration = time.Since(res.StartedAt) }()

	if err := ctx.Err(); err != nil {
		return res, err
	}

	src, dst, err := s.resolveRoots(sourceRoot, destRoot)
	if err != nil {
		return res, err
	}
	res.Source, res.Destination = src, dst

	log := s.logger.With().Str("source", src).Str("destination", dst).Logger()
	log.Info().Str("phase", string(PhaseScan)).Msg("starting sync")

	srcSnap, dstSnap, err := s.scan(src, dst)
	if err != nil {
		log.Error().Err(err).Msg("sync failed")
		return res, err
	}

	p, err := s.classify(ctx, srcSnap, dstSnap, log)
	if err != nil {
		return res, err
	}
	res.Plan = p

	if s.opts.DryRun {
		log.Info().Msg("dry run, no changes applied")
		res.Success = true
		return res, nil
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	if err := s.ensureDestRoot(dst); err != nil {
		log.Error().Err(err).Msg("sync failed")
		return res, err
	}

	changes := newPathRecorder()
	for _, rel := range p.RemoveOrder() {
		err := fileutils.RemoveEntry(s.fs, snapshot.Join(dst, rel))
		s.record(&res, changes, log, PhaseRemove, rel, err)
	}
	for _, rel := range p.CreateOrder() {
		err := fileutils.CopyEntry(s.fs, snapshot.Join(src, rel), snapshot.Join(dst, rel))
		s.record(&res, changes, log, PhaseCreate, rel, err)
	}
	for _, rel := range p.UpdateOrder() {
		err := fileutils.CopyEntry(s.fs, snapshot.Join(src, rel), snapshot.Join(dst, rel))
		s.record(&res, changes, log, PhaseUpdate, rel, err)
	}
	res.ChangedPaths = changes.Paths()

	res.Success = true
	if s.opts.Verify {
		ok := s.verify(&res, src, dst, log)
		res.Verified = &ok
		res.Success = ok
	}

	if res.Success {
		log.Info().Str("phase", string(PhaseDone)).Int("skipped", len(res.Skipped)).Msg("sync successful")
	} else {
		log.Error().Str("phase", string(PhaseDone)).Int("skipped", len(res.Skipped)).Msg("sync failed")
	}
	return res, nil
}

func (s *Synchronizer) scan(src, dst string) (snapshot.Snapshot, snapshot.Snapshot, error) {
	srcSnap, err := snapshot.Capture(s.fs, src)
	if err != nil {
		return snapshot.Snapshot{}, snapshot.Snapshot{}, err
	}

	dstSnap, err := snapshot.CaptureIfExists(s.fs, dst)
	if err != nil {
		return snapshot.Snapshot{}, snapshot.Snapshot{}, err
	}

	s.logger.Debug().
		Int("source_entries", srcSnap.Len()).
		Int("destination_entries", dstSnap.Len()).
		Msg("captured snapshots")
	return srcSnap, dstSnap, nil
}

func (s *Synchronizer) classify(ctx context.Context, src, dst snapshot.Snapshot, log zerolog.Logger) (plan.Plan, error) {
	cmp := plan.DigestComparer{
		Hasher:     s.hasher,
		SourceRoot: src.Root(),
		DestRoot:   dst.Root(),
		Logger:     log,
	}

	memo, err := plan.Prehash(ctx, cmp, plan.Candidates(src, dst), s.opts.Workers)
	if err != nil {
		return plan.Plan{}, err
	}

	p := plan.Compute(src, dst, memo)
	if err := p.Validate(); err != nil {
		return plan.Plan{}, fmt.Errorf("classify: %w", err)
	}

	log.Info().
		Str("phase", string(PhaseClassify)).
		Int("create", len(p.Create)).
		Int("remove", len(p.Remove)).
		Int("update", len(p.Update)).
		Int("replace", len(p.Replace)).
		Msg("computed plan")
	log.Debug().
		Strs("create", p.Create).
		Strs("remove", p.Remove).
		Strs("update", p.Update).
		Strs("replace", p.Replace).
		Msg("plan paths")
	return p, nil
}

func (s *Synchronizer) ensureDestRoot(dst string) error {
	info, err := fileutils.Lstat(s.fs, dst)
	if err == nil {
		if info.IsDir() {
			return nil
		}
		if fileutils.IsSymlink(info) {
			if target, statErr := s.fs.Stat(dst); statErr == nil && target.IsDir() {
				return nil
			}
		}
		return &snapshot.InvalidRootError{Root: dst, Reason: "not a directory"}
	}

	if err := s.fs.MkdirAll(dst, 0o755); err != nil {
		return &snapshot.InvalidRootError{Root: dst, Reason: err.Error()}
	}
	s.logger.Info().Str("destination", dst).Msg("created destination root")
	return nil
}

func (s *Synchronizer) record(res *Result, changes *pathRecorder, log zerolog.Logger, phase Phase, rel string, err error) {
	switch {
	case err == nil:
		changes.Add(rel)
		log.Info().Str("phase", string(phase)).Str("path", rel).Msg("applied")
	case errors.Is(err, fileutils.ErrAlreadyExists):
		log.Info().Str("phase", string(phase)).Str("path", rel).Msg("directory already exists")
	case errors.Is(err, fileutils.ErrSamePath):
		log.Warn().Str("phase", string(phase)).Str("path", rel).Msg("source is the same as destination")
	case errors.Is(err, fileutils.ErrEntryVanished):
		log.Warn().Err(err).Str("phase", string(phase)).Str("path", rel).Msg("entry vanished, skipping")
		res.Skipped = append(res.Skipped, Failure{Path: rel, Op: phase, Err: err})
	default:
		log.Error().Err(err).Str("phase", string(phase)).Str("path", rel).Msg("operation failed, skipping")
		res.Skipped = append(res.Skipped, Failure{Path: rel, Op: phase, Err: err})
	}
}

func (s *Synchronizer) verify(res *Result, src, dst string, log zerolog.Logger) bool {
	log = log.With().Str("phase", string(PhaseVerify)).Logger()

	srcDigest, err := s.hasher.ForTree(src)
	if err != nil {
		log.Error().Err(err).Msg("could not hash source tree")
		return false
	}
	res.SourceDigest = srcDigest

	dstDigest, err := s.hasher.ForTree(dst)
	if err != nil {
		log.Error().Err(err).Msg("could not hash destination tree")
		return false
	}

	if !srcDigest.Equal(dstDigest) {
		log.Error().
			Str("source_digest", srcDigest.String()).
			Str("destination_digest", dstDigest.String()).
			Msg("trees differ after sync")
		return false
	}
	log.Debug().Str("digest", srcDigest.String()).Msg("trees match")
	return true
}

// resolveRoots returns both roots as absolute paths. The overlap check runs on
// their symlink-free forms.
func (s *Synchronizer) resolveRoots(sourceRoot, destRoot string) (string, string, error) {
	src, err := fileutils.AbsPath(sourceRoot)
	if err != nil {
		return "", "", &snapshot.InvalidRootError{Root: sourceRoot, Reason: err.Error()}
	}
	dst, err := fileutils.AbsPath(destRoot)
	if err != nil {
		return "", "", &snapshot.InvalidRootError{Root: destRoot, Reason: err.Error()}
	}

	realSrc, err := fileutils.ResolvePath(s.fs, src)
	if err != nil {
		return "", "", &snapshot.InvalidRootError{Root: src, Reason: err.Error()}
	}
	realDst, err := fileutils.ResolvePath(s.fs, dst)
	if err != nil {
		return "", "", &snapshot.InvalidRootError{Root: dst, Reason: err.Error()}
	}

	if within(realSrc, realDst) || within(realDst, realSrc) {
		return "", "", fmt.Errorf("%w: %s and %s", ErrOverlappingRoots, src, dst)
	}
	return src, dst, nil
}

// within reports whether path equals root or lies beneath it.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	up := ".." + string(filepath.Separator)
	return rel != ".." && !strings.HasPrefix(rel, up)
}
