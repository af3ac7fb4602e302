package search

import (
	"context"
	"math"

	"github.com/starford/sowilo/internal/models"
)

// visitedFrom returns a visited set holding the seed ids.
func visitedFrom(seeds []models.Note) map[int64]struct{} {
	v := make(map[int64]struct{}, len(seeds))
	for _, n := range seeds {
		v[n.ID] = struct{}{}
	}
	return v
}

func typeAllowed(n *models.Note, want models.NoteType) bool {
	return want == "" || n.Type == want
}

// neighbours returns the ids adjacent to id, ignoring link direction:
// resolved outgoing targets first, then backlink sources.
func (e *Engine) neighbours(ctx context.Context, id int64) ([]int64, error) {
	out, err := e.store.GetOutgoingLinks(ctx, id)
	if err != nil {
		return nil, err
	}
	in, err := e.store.GetBacklinks(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(out)+len(in))
	for _, l := range out {
		if l.TargetID != nil {
			ids = append(ids, *l.TargetID)
		}
	}
	for _, l := range in {
		ids = append(ids, l.SourceID)
	}
	return ids, nil
}

// neighbourhood walks the undirected link graph breadth first, one hop
// frontier at a time. A note is scored 0.5/h at the hop h that first
// reaches it. Notes of other types are traversed but not returned.
func (e *Engine) neighbourhood(ctx context.Context, seeds []models.Note, hops int, typ models.NoteType) ([]Result, error) {
	visited := visitedFrom(seeds)
	frontier := make([]int64, 0, len(seeds))
	for _, n := range seeds {
		frontier = append(frontier, n.ID)
	}

	var results []Result
	for h := 1; h <= hops && len(frontier) > 0; h++ {
		var next []int64
		for _, id := range frontier {
			adj, err := e.neighbours(ctx, id)
			if err != nil {
				return nil, err
			}
			for _, nid := range adj {
				if _, seen := visited[nid]; seen {
					continue
				}
				visited[nid] = struct{}{}
				next = append(next, nid)

				n, err := e.note(ctx, nid)
				if err != nil {
					return nil, err
				}
				if n == nil || !typeAllowed(n, typ) {
					continue
				}
				results = append(results, Result{
					Note:   *n,
					Score:  neighbourhoodScore / float64(h),
					Source: MatchSource{Kind: SourceNeighbourhood, Hops: h},
				})
			}
		}
		frontier = next
	}
	return results, nil
}

// temporal adds the daily notes that link to a seed.
func (e *Engine) temporal(ctx context.Context, seeds []models.Note, typ models.NoteType) ([]Result, error) {
	visited := visitedFrom(seeds)
	var results []Result
	for _, seed := range seeds {
		back, err := e.store.GetBacklinks(ctx, seed.ID)
		if err != nil {
			return nil, err
		}
		for _, l := range back {
			if _, seen := visited[l.SourceID]; seen {
				continue
			}
			n, err := e.note(ctx, l.SourceID)
			if err != nil {
				return nil, err
			}
			if n == nil || n.Type != models.NoteTypeDaily {
				continue
			}
			visited[n.ID] = struct{}{}
			if !typeAllowed(n, typ) {
				continue
			}
			results = append(results, Result{
				Note:   *n,
				Score:  temporalScore,
				Source: MatchSource{Kind: SourceTemporal, DailyPath: n.Path},
			})
		}
	}
	return results, nil
}

// cooccurrence adds notes that share at least minShared daily references
// with a seed, scored 0.3 * min(shared/10, 1).
func (e *Engine) cooccurrence(ctx context.Context, seeds []models.Note, minShared int, typ models.NoteType) ([]Result, error) {
	visited := visitedFrom(seeds)
	var results []Result
	for _, seed := range seeds {
		co, err := e.store.GetCooccurrentNotes(ctx, seed.ID, e.fanout)
		if err != nil {
			return nil, err
		}
		for _, c := range co {
			if c.SharedCount < minShared {
				continue
			}
			if _, seen := visited[c.Note.ID]; seen {
				continue
			}
			visited[c.Note.ID] = struct{}{}
			if !typeAllowed(&c.Note, typ) {
				continue
			}
			e.notes.Add(c.Note.ID, c.Note)
			results = append(results, Result{
				Note:   c.Note,
				Score:  cooccurrenceScore * math.Min(float64(c.SharedCount)/10.0, 1.0),
				Source: MatchSource{Kind: SourceCooccurrence, SharedCount: c.SharedCount},
			})
		}
	}
	return results, nil
}
