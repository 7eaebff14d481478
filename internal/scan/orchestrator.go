package scan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/permscan/permscan/internal/adapter"
	"github.com/permscan/permscan/internal/checkpoint"
	"github.com/permscan/permscan/internal/classify"
	"github.com/permscan/permscan/internal/config"
	"github.com/permscan/permscan/internal/enumerate"
	"github.com/permscan/permscan/internal/model"
	"github.com/permscan/permscan/internal/resolve"
	"github.com/permscan/permscan/internal/sink"
)

// Target completion states recorded in summary rows.
const (
	// StatusDone marks a fully scanned target.
	StatusDone = "done"

	// StatusError marks a target that failed and was skipped.
	StatusError = "error"

	// StatusInterrupted marks a target cut short by cancellation. A
	// resumed run overwrites it with the final state.
	StatusInterrupted = "interrupted"
)

// RunResult reports what one scan run accomplished.
type RunResult struct {
	// RunID identifies the run. A resumed run keeps the interrupted
	// run's id.
	RunID string

	StartedAt  time.Time
	FinishedAt time.Time

	// Summaries holds one row per processed target, in input order.
	// Targets already completed by a previous run are not repeated.
	Summaries []model.SummaryRow
}

// Orchestrator drives scan runs end to end: classification, container
// walks, item enumeration, access resolution, batched output, and
// checkpointing.
type Orchestrator struct {
	cfg     *config.Config
	content adapter.ContentAdapter
	sink    sink.Sink
	ckpt    *checkpoint.Manager
	logger  *slog.Logger

	classifier *classify.Classifier
	cache      *resolve.Context
	enum       *enumerate.Enumerator
}

// New creates an Orchestrator wiring the resolver and enumerator from
// the configuration. The caller owns the sink and closes it after the
// run.
func New(cfg *config.Config, content adapter.ContentAdapter, directory adapter.DirectoryAdapter, snk sink.Sink, ckpt *checkpoint.Manager, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	cache := resolve.NewContext()
	resolver := resolve.New(content, directory, cache,
		resolve.WithMaxDepth(cfg.MaxDepth),
		resolve.WithExcludedGroups(cfg.ExcludedGroups...),
		resolve.WithLogger(logger),
	)
	enum := enumerate.New(content, resolver,
		enumerate.WithExcludedContainers(cfg.ExcludedContainers...),
		enumerate.WithIgnoredLevels(cfg.IgnoredLevels...),
		enumerate.WithIgnoredAccounts(cfg.IgnoredAccounts...),
		enumerate.WithEnumLogger(logger),
	)

	return &Orchestrator{
		cfg:        cfg,
		content:    content,
		sink:       snk,
		ckpt:       ckpt,
		logger:     logger,
		classifier: classify.New(content, logger),
		cache:      cache,
		enum:       enum,
	}
}

// Run scans the given references in order. Completed targets recorded
// in a valid checkpoint are skipped when resume is enabled. The
// returned error is non-nil only for cancellation and output-write
// failures; per-target failures are reported in the summaries.
func (o *Orchestrator) Run(ctx context.Context, refs []string) (*RunResult, error) {
	started := time.Now().UTC()

	var resume *checkpoint.Checkpoint
	if o.cfg.Resume {
		cp, err := o.ckpt.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		resume = cp
	}

	runID := uuid.NewString()
	if resume != nil && resume.RunID != "" {
		runID = resume.RunID
		o.logger.Info("resuming interrupted run",
			"runID", runID,
			"targetSequence", resume.TargetSequence,
			"containerIndex", resume.ContainerIndex,
			"lastItemID", resume.LastItemID,
		)
	}

	result := &RunResult{RunID: runID, StartedAt: started}
	for seq, ref := range refs {
		if resume != nil && seq < resume.TargetSequence {
			o.logger.Debug("skipping already completed target", "sequence", seq, "reference", ref)
			continue
		}
		if err := ctx.Err(); err != nil {
			result.FinishedAt = time.Now().UTC()
			return result, err
		}

		var cp *checkpoint.Checkpoint
		if resume != nil && seq == resume.TargetSequence {
			cp = resume
		}
		resume = nil

		// Container-scoped group ids are only meaningful within one
		// target; directory-group results stay cached for the run.
		o.cache.ResetScoped()

		summary, err := o.scanTarget(ctx, ref, seq, runID, cp)
		result.Summaries = append(result.Summaries, summary)
		if err != nil {
			result.FinishedAt = time.Now().UTC()
			return result, err
		}
	}

	if err := o.ckpt.Clear(); err != nil {
		o.logger.Warn("failed to clear checkpoint after completed run", "error", err)
	}
	result.FinishedAt = time.Now().UTC()
	return result, nil
}

// scanTarget processes one target through its phases. The returned
// error is non-nil only when the run must stop.
func (o *Orchestrator) scanTarget(ctx context.Context, ref string, seq int, runID string, cp *checkpoint.Checkpoint) (model.SummaryRow, error) {
	summary := model.SummaryRow{
		RunID:          runID,
		TargetSequence: seq,
		TargetURL:      ref,
	}

	o.logPhase(PhaseClassifying, seq, ref)
	target := o.classifier.Classify(ctx, ref, seq)
	summary.TargetKind = target.Kind.String()

	b := newBatcher()
	cur := &checkpoint.Checkpoint{RunID: runID, TargetSequence: seq}
	if cp != nil {
		cur.ItemsScanned = cp.ItemsScanned
		cur.BrokenCount = cp.BrokenCount
	}

	if target.Kind == model.TargetError {
		return o.failTarget(ctx, summary, b, seq, ref, "reference matched no classification probe")
	}

	siteURL, containers, err := o.locate(ctx, target)
	if err != nil {
		return o.failTarget(ctx, summary, b, seq, ref, err.Error())
	}
	o.logPhase(PhaseConnected, seq, ref)
	o.logger.Info("located containers", "target", ref, "containers", len(containers))

	// Groups, container rows, and container-level access are emitted
	// only on a fresh target; a resume re-enters mid item walk and the
	// earlier flushes already cover them.
	if cp == nil {
		o.emitSiteLevel(ctx, b, seq, siteURL, containers)
	}

	o.logPhase(PhaseEnumerating, seq, ref)

	startContainer := 0
	var startAfter int64
	if cp != nil {
		startContainer = cp.ContainerIndex
		startAfter = cp.LastItemID
		if startContainer > len(containers) {
			// The tree shrank since the checkpoint was written.
			startContainer = len(containers)
		}
	}

	for ci := startContainer; ci < len(containers); ci++ {
		c := containers[ci]
		afterID := int64(0)
		if ci == startContainer {
			afterID = startAfter
		}
		cur.ContainerIndex = ci
		cur.LastItemID = afterID

		pager := o.enum.NewItemPager(c.SiteURL, c.Node.Path, o.cfg.PageSize, afterID)
		for !pager.Done() {
			items, err := pager.Next(ctx)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return o.interruptTarget(ctx, summary, b, cur, ctxErr)
				}
				return o.failTarget(ctx, summary, b, seq, ref,
					fmt.Sprintf("item walk of %s failed: %v", c.Node.Path, err))
			}

			for _, item := range items {
				if err := ctx.Err(); err != nil {
					return o.interruptTarget(ctx, summary, b, cur, err)
				}

				cur.ItemsScanned++
				if item.HasUniquePermissions {
					cur.BrokenCount++
					b.add(model.BrokenItemRow{TargetSequence: seq, Item: item.BrokenItem()})
					o.emitItemAccess(ctx, b, seq, c, item)
				}
				cur.LastItemID = item.ID

				if b.size() >= o.cfg.FlushBatchSize {
					o.logPhase(PhaseFlushing, seq, ref)
					if err := o.flush(ctx, b, cur); err != nil {
						return summary, err
					}
					o.logPhase(PhaseEnumerating, seq, ref)
				}
			}
		}
	}

	o.logPhase(PhaseDone, seq, ref)
	summary.ContainerIndex = cur.ContainerIndex
	summary.ItemIndex = int(cur.LastItemID)
	summary.ItemsScanned = cur.ItemsScanned
	summary.BrokenCount = cur.BrokenCount
	summary.Status = StatusDone
	summary.FinishedAt = time.Now().UTC()
	b.add(summary)

	if err := o.finishTarget(ctx, b, runID, seq); err != nil {
		return summary, err
	}
	return summary, nil
}

// locate resolves a classified target into its owning web and the
// ordered container list the checkpoint indexes into.
func (o *Orchestrator) locate(ctx context.Context, target model.ScanTarget) (string, []enumerate.Located, error) {
	switch target.Kind {
	case model.TargetSite, model.TargetSubsite:
		includeSubsites := o.cfg.IncludeSubsites && target.Kind == model.TargetSite
		containers, err := o.enum.WalkContainers(ctx, target.URL, includeSubsites)
		if err != nil {
			return "", nil, err
		}
		return target.URL, containers, nil
	default:
		info, err := o.content.ResolveContainer(ctx, target.URL)
		if err != nil {
			return "", nil, fmt.Errorf("failed to resolve container %s: %w", target.URL, err)
		}
		return info.SiteURL, []enumerate.Located{{SiteURL: info.SiteURL, Node: info.Node}}, nil
	}
}

// emitSiteLevel buffers the target's group rows, container rows, and
// container-level access rows. Failures here degrade to warnings: the
// item walk is still worth running.
func (o *Orchestrator) emitSiteLevel(ctx context.Context, b *batcher, seq int, siteURL string, containers []enumerate.Located) {
	groups, err := o.enum.SiteGroups(ctx, siteURL)
	if err != nil {
		o.logger.Warn("failed to list permission groups", "site", siteURL, "error", err)
	}
	for _, g := range groups {
		b.add(model.GroupRow{TargetSequence: seq, Group: g})
	}

	var scopes []adapter.Scope
	var scoped []model.ContentNode
	for _, c := range containers {
		b.add(model.ContainerRow{TargetSequence: seq, Node: c.Node})
		if c.Node.HasUniquePermissions {
			scopes = append(scopes, adapter.Scope{SiteURL: c.SiteURL, ContainerPath: c.Node.Path})
			scoped = append(scoped, c.Node)
		}
	}

	for i, res := range o.enum.AccessBatch(ctx, scopes) {
		if res.Err != nil {
			o.logger.Warn("failed to resolve container access", "container", scoped[i].Path, "error", res.Err)
			continue
		}
		for _, e := range res.Entries {
			b.add(model.AccessRow{TargetSequence: seq, Scope: scoped[i], Entry: e})
		}
	}
}

// emitItemAccess buffers the effective-access rows of one broken item.
// A failed resolution costs the item its access rows, not the scan.
func (o *Orchestrator) emitItemAccess(ctx context.Context, b *batcher, seq int, c enumerate.Located, item model.ContentNode) {
	scope := adapter.Scope{SiteURL: c.SiteURL, ContainerPath: c.Node.Path, ItemID: item.ID}
	entries, err := o.enum.Access(ctx, scope)
	if err != nil {
		o.logger.Warn("failed to resolve item access",
			"container", c.Node.Path,
			"itemID", item.ID,
			"error", err,
		)
		return
	}
	for _, e := range entries {
		b.add(model.AccessRow{TargetSequence: seq, Scope: item, Entry: e})
	}
}

// flush persists the buffered rows, then the checkpoint covering them.
// Row writes always precede the checkpoint save so a crash between the
// two replays rows instead of losing them.
func (o *Orchestrator) flush(ctx context.Context, b *batcher, cur *checkpoint.Checkpoint) error {
	if err := b.flush(ctx, o.sink); err != nil {
		return fmt.Errorf("failed to flush output rows: %w", err)
	}
	if err := o.ckpt.Save(cur); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// finishTarget flushes the final rows of a completed or failed target
// and advances the checkpoint to the next target.
func (o *Orchestrator) finishTarget(ctx context.Context, b *batcher, runID string, seq int) error {
	next := &checkpoint.Checkpoint{RunID: runID, TargetSequence: seq + 1}
	return o.flush(ctx, b, next)
}

// failTarget records a per-target failure and moves the run on. The
// failed target is not retried on resume: the checkpoint advances past
// it, matching how classification failures are skipped.
func (o *Orchestrator) failTarget(ctx context.Context, summary model.SummaryRow, b *batcher, seq int, ref, msg string) (model.SummaryRow, error) {
	o.logPhase(PhaseError, seq, ref)
	o.logger.Warn("target failed, continuing with next target", "target", ref, "reason", msg)

	summary.Status = StatusError
	summary.Err = msg
	summary.FinishedAt = time.Now().UTC()
	b.add(summary)

	if err := o.finishTarget(ctx, b, summary.RunID, seq); err != nil {
		return summary, err
	}
	return summary, nil
}

// interruptTarget persists progress on cancellation. The checkpoint
// keeps pointing into this target so a resumed run re-enters where the
// walk stopped. Writes use a detached context because the run context
// is already canceled.
func (o *Orchestrator) interruptTarget(ctx context.Context, summary model.SummaryRow, b *batcher, cur *checkpoint.Checkpoint, cause error) (model.SummaryRow, error) {
	summary.ContainerIndex = cur.ContainerIndex
	summary.ItemIndex = int(cur.LastItemID)
	summary.ItemsScanned = cur.ItemsScanned
	summary.BrokenCount = cur.BrokenCount
	summary.Status = StatusInterrupted
	summary.FinishedAt = time.Now().UTC()
	b.add(summary)

	if err := o.flush(context.WithoutCancel(ctx), b, cur); err != nil {
		return summary, err
	}
	o.logger.Info("scan interrupted, progress saved",
		"target", summary.TargetURL,
		"itemsScanned", cur.ItemsScanned,
		"lastItemID", cur.LastItemID,
	)
	return summary, cause
}

func (o *Orchestrator) logPhase(p Phase, seq int, ref string) {
	o.logger.Debug("scan phase", "phase", p, "sequence", seq, "target", ref)
}

// flushOrder fixes the kind order of a flush so parent rows land
// before the rows referencing them.
var flushOrder = []model.RecordKind{
	model.RecordContainer,
	model.RecordPermissionGroup,
	model.RecordContainerAccess,
	model.RecordBrokenItem,
	model.RecordItemAccess,
	model.RecordSummary,
}

// batcher buffers output rows by kind between flushes.
type batcher struct {
	rows map[model.RecordKind][]model.Record
	n    int
}

func newBatcher() *batcher {
	return &batcher{rows: make(map[model.RecordKind][]model.Record)}
}

func (b *batcher) add(row model.Record) {
	kind := row.RecordKind()
	b.rows[kind] = append(b.rows[kind], row)
	b.n++
}

func (b *batcher) size() int { return b.n }

func (b *batcher) flush(ctx context.Context, snk sink.Sink) error {
	for _, kind := range flushOrder {
		rows := b.rows[kind]
		if len(rows) == 0 {
			continue
		}
		if err := snk.WriteBatch(ctx, kind, rows); err != nil {
			return err
		}
	}
	b.rows = make(map[model.RecordKind][]model.Record)
	b.n = 0
	return nil
}
