// Package scanner defines the shared types and interfaces of the job-posting
// signal scanner. Concrete implementations live in sibling packages:
//   - provider/jsearch fetches raw postings from the job-search API.
//   - fetcher fans queries out, merges and dedups postings.
//   - extract and rank turn posting text into ranked signals.
//   - storage/* persists scan summaries with retention.
package scanner
