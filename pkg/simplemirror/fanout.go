package simplemirror

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// MirrorAll mirrors every URL as a dated (non-stable) asset. The result has
// the same length as urls; an empty string marks an index with no result.
func (m *Mirrorer) MirrorAll(ctx context.Context, urls []string) []string {
	reqs := make([]MirrorRequest, len(urls))
	for i, u := range urls {
		reqs[i] = MirrorRequest{SourceURL: u}
	}
	return m.MirrorRequests(ctx, reqs)
}

// MirrorRequests runs Mirror over reqs on at most min(workers, len(reqs))
// goroutines. Tasks are independent: each gets its own timeout, a failure or
// panic in one never cancels or affects the others.
func (m *Mirrorer) MirrorRequests(ctx context.Context, reqs []MirrorRequest) []string {
	results := make([]string, len(reqs))
	if len(reqs) == 0 {
		return results
	}

	// A plain Group rather than WithContext: no cancellation crosses workers.
	var g errgroup.Group
	g.SetLimit(min(m.workers, len(reqs)))

	for i, req := range reqs {
		g.Go(func() error {
			taskCtx, cancel := context.WithTimeout(ctx, m.taskTimeout)
			defer cancel()
			if url, ok := m.Mirror(taskCtx, req); ok {
				results[i] = url
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
