package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/permscan/permscan/internal/model"
)

// RetryPolicy bounds the backoff applied to throttled adapter calls.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the
	// first one.
	MaxAttempts int

	// InitialDelay is the first backoff interval. Later intervals
	// double, with 50% jitter to spread retries from concurrent
	// fetches.
	InitialDelay time.Duration
}

// retry runs op under the policy, retrying only throttling errors.
// Non-throttling errors and context cancellation end the attempt loop
// immediately.
func retry[T any](ctx context.Context, p RetryPolicy, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.RandomizationFactor = 0.5
	b.Multiplier = 2

	attempts := uint64(1)
	if p.MaxAttempts > 1 {
		attempts = uint64(p.MaxAttempts)
	}

	return backoff.RetryWithData(func() (T, error) {
		v, err := op()
		if err != nil && !errors.Is(err, ErrThrottled) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithContext(backoff.WithMaxRetries(b, attempts-1), ctx))
}

// RetryingContent decorates a ContentAdapter with the retry policy.
type RetryingContent struct {
	inner  ContentAdapter
	policy RetryPolicy
}

// NewRetryingContent wraps a content adapter so every call retries
// throttling errors under the given policy.
func NewRetryingContent(inner ContentAdapter, policy RetryPolicy) *RetryingContent {
	return &RetryingContent{inner: inner, policy: policy}
}

// ResolveSite implements ContentAdapter.
func (r *RetryingContent) ResolveSite(ctx context.Context, ref string) (*SiteInfo, error) {
	return retry(ctx, r.policy, func() (*SiteInfo, error) {
		return r.inner.ResolveSite(ctx, ref)
	})
}

// ResolveContainer implements ContentAdapter.
func (r *RetryingContent) ResolveContainer(ctx context.Context, ref string) (*ContainerInfo, error) {
	return retry(ctx, r.policy, func() (*ContainerInfo, error) {
		return r.inner.ResolveContainer(ctx, ref)
	})
}

// ListContainers implements ContentAdapter.
func (r *RetryingContent) ListContainers(ctx context.Context, siteURL string) ([]model.ContentNode, error) {
	return retry(ctx, r.policy, func() ([]model.ContentNode, error) {
		return r.inner.ListContainers(ctx, siteURL)
	})
}

// ListSubsites implements ContentAdapter.
func (r *RetryingContent) ListSubsites(ctx context.Context, siteURL string) ([]string, error) {
	return retry(ctx, r.policy, func() ([]string, error) {
		return r.inner.ListSubsites(ctx, siteURL)
	})
}

// ListItems implements ContentAdapter.
func (r *RetryingContent) ListItems(ctx context.Context, siteURL, containerPath string, afterID int64, pageSize int) ([]model.ContentNode, error) {
	return retry(ctx, r.policy, func() ([]model.ContentNode, error) {
		return r.inner.ListItems(ctx, siteURL, containerPath, afterID, pageSize)
	})
}

// RoleAssignments implements ContentAdapter.
func (r *RetryingContent) RoleAssignments(ctx context.Context, scope Scope) ([]model.RoleAssignment, error) {
	return retry(ctx, r.policy, func() ([]model.RoleAssignment, error) {
		return r.inner.RoleAssignments(ctx, scope)
	})
}

// SiteGroups implements ContentAdapter.
func (r *RetryingContent) SiteGroups(ctx context.Context, siteURL string) ([]model.PermissionGroup, error) {
	return retry(ctx, r.policy, func() ([]model.PermissionGroup, error) {
		return r.inner.SiteGroups(ctx, siteURL)
	})
}

// GroupMembers implements ContentAdapter.
func (r *RetryingContent) GroupMembers(ctx context.Context, siteURL, groupID string) ([]model.PrincipalRef, error) {
	return retry(ctx, r.policy, func() ([]model.PrincipalRef, error) {
		return r.inner.GroupMembers(ctx, siteURL, groupID)
	})
}

// RetryingDirectory decorates a DirectoryAdapter with the retry
// policy.
type RetryingDirectory struct {
	inner  DirectoryAdapter
	policy RetryPolicy
}

// NewRetryingDirectory wraps a directory adapter so membership fetches
// retry throttling errors under the given policy.
func NewRetryingDirectory(inner DirectoryAdapter, policy RetryPolicy) *RetryingDirectory {
	return &RetryingDirectory{inner: inner, policy: policy}
}

// GroupMembers implements DirectoryAdapter.
func (r *RetryingDirectory) GroupMembers(ctx context.Context, groupID string) ([]model.PrincipalRef, error) {
	return retry(ctx, r.policy, func() ([]model.PrincipalRef, error) {
		return r.inner.GroupMembers(ctx, groupID)
	})
}
