package classify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/permscan/permscan/internal/adapter"
	"github.com/permscan/permscan/internal/model"
)

// Classifier resolves input references into classified scan targets.
type Classifier struct {
	content adapter.ContentAdapter
	logger  *slog.Logger
}

// New creates a Classifier. A nil logger falls back to slog.Default.
func New(content adapter.ContentAdapter, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{content: content, logger: logger}
}

// Classify probes a reference and returns the classified target. The
// probe order is fixed:
//
//  1. resolve as a web; a site-collection root classifies as SITE
//  2. resolve as a container; a top-level library classifies as
//     LIBRARY, anything deeper as FOLDER
//  3. a web that resolved in step 1 but is not a root classifies as
//     SUBSITE
//
// A reference surviving no probe yields an error target. Classify
// itself never returns an error: classification failure is per-target
// data, not a batch failure.
func (c *Classifier) Classify(ctx context.Context, ref string, sequence int) model.ScanTarget {
	target := model.ScanTarget{URL: ref, Sequence: sequence, Kind: model.TargetError}

	site, siteErr := c.content.ResolveSite(ctx, ref)
	if siteErr == nil && site.IsRoot {
		target.Kind = model.TargetSite
		return target
	}

	container, containerErr := c.content.ResolveContainer(ctx, ref)
	if containerErr == nil {
		if container.ParentIsRoot {
			target.Kind = model.TargetLibrary
		} else {
			target.Kind = model.TargetFolder
		}
		return target
	}

	if siteErr == nil {
		target.Kind = model.TargetSubsite
		return target
	}

	// Both probes failed. Distinguish "does not exist" from transport
	// trouble in the log, but classify identically: skip and continue.
	if errors.Is(siteErr, adapter.ErrNotFound) && errors.Is(containerErr, adapter.ErrNotFound) {
		c.logger.Warn("reference matched no probe, skipping target",
			"reference", ref,
			"sequence", sequence,
		)
	} else {
		c.logger.Warn("classification probes failed, skipping target",
			"reference", ref,
			"sequence", sequence,
			"siteError", siteErr,
			"containerError", containerErr,
		)
	}
	return target
}
