package mcpserver

// SearchModesGuide explains the search modes and scoring to LLM consumers.
const SearchModesGuide = `# Sowilo Search Modes

Every search starts from **direct matches**: notes whose title or path
contains the query text (case-insensitive), narrowed by ` + "`note_type`" + ` and
` + "`path_prefix`" + `. Direct matches score **1.0**. An empty query matches every
note that passes the filters.

The ` + "`mode`" + ` parameter then pulls in related notes:

| Mode | Adds | Score |
|---|---|---|
| ` + "`direct`" + ` | nothing | |
| ` + "`neighbourhood`" + ` | notes up to ` + "`hops`" + ` links away, either direction | 0.5 / hop |
| ` + "`temporal`" + ` | daily notes that link to a match | 0.4 |
| ` + "`cooccurrence`" + ` | notes mentioned on the same day as a match, at least ` + "`min_shared`" + ` times | 0.3 x min(shared/10, 1) |
| ` + "`full`" + ` | neighbourhood (2 hops) + temporal + cooccurrence (min 2) | as above |

` + "`days`" + ` is accepted for the temporal mode but does not filter results.
The ` + "`note_type`" + ` filter applies to expanded notes as well.

## Ranking

1. With ` + "`temporal_boost`" + `, each score is multiplied by
   ` + "`1 + (1 - staleness) * 0.5`" + ` when the note has an activity summary.
2. A note reached several ways is listed once, with its highest score.
3. Results are sorted by score, highest first, and cut to ` + "`limit`" + `.

## Staleness

Staleness runs from 0 (referenced in a daily note recently and often) to 1.
Notes no daily note has referenced have no staleness value. Run the
` + "`reindex`" + ` tool after editing notes to refresh links and activity.
`
