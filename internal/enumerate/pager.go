package enumerate

import (
	"context"
	"errors"
	"fmt"

	"github.com/permscan/permscan/internal/adapter"
	"github.com/permscan/permscan/internal/model"
)

// ErrPageOrder is returned when the listing backend hands back items
// at or below the continuation id, or out of ascending order. That
// breaks the exactly-once guarantee of the walk, so the pager refuses
// to continue instead of silently duplicating or skipping items.
var ErrPageOrder = errors.New("listing page violates id order")

// ItemPager pages a container's items by continuation id. It is a
// finite, single-pass sequence: a resumed scan builds a new pager
// starting after the last checkpointed id rather than re-entering an
// exhausted one.
type ItemPager struct {
	content       adapter.ContentAdapter
	siteURL       string
	containerPath string
	pageSize      int

	// afterID is the highest item id seen so far; the next page
	// requests ids strictly greater.
	afterID int64

	done  bool
	pages int
}

// NewItemPager creates a pager over a container's items, continuing
// strictly after afterID (zero to start from the beginning).
func NewItemPager(content adapter.ContentAdapter, siteURL, containerPath string, pageSize int, afterID int64) *ItemPager {
	return &ItemPager{
		content:       content,
		siteURL:       siteURL,
		containerPath: containerPath,
		pageSize:      pageSize,
		afterID:       afterID,
	}
}

// Next returns the next page of items in ascending id order. An empty
// page means the walk is complete; subsequent calls keep returning
// empty pages.
func (p *ItemPager) Next(ctx context.Context) ([]model.ContentNode, error) {
	if p.done {
		return nil, nil
	}

	items, err := p.content.ListItems(ctx, p.siteURL, p.containerPath, p.afterID, p.pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list items after id %d: %w", p.afterID, err)
	}
	p.pages++

	last := p.afterID
	for _, item := range items {
		if item.ID <= last {
			return nil, fmt.Errorf("%w: id %d after id %d in %s", ErrPageOrder, item.ID, last, p.containerPath)
		}
		last = item.ID
	}

	if len(items) > 0 {
		p.afterID = last
	}
	if len(items) < p.pageSize {
		p.done = true
	}
	return items, nil
}

// Done reports whether the pager has seen the final page.
func (p *ItemPager) Done() bool { return p.done }

// Pages returns the number of page reads issued so far.
func (p *ItemPager) Pages() int { return p.pages }

// LastID returns the highest item id seen so far. The orchestrator
// checkpoints this value so a resume continues strictly after it.
func (p *ItemPager) LastID() int64 { return p.afterID }
