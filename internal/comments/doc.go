// Package comments retrieves root-level comments for discovered
// threads, resolving the platform's "load more" continuation markers
// through batched follow-up requests.
//
// Fetching runs sequentially over one HTTP session or through a bounded
// worker pool in which every worker owns an independent session. The
// skip-unchanged optimization (Partition) avoids re-fetching threads
// whose comment count has not grown since the previous crawl.
package comments
