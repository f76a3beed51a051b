package scanner

import "time"

// JobPosting is one normalized posting returned by a provider.
type JobPosting struct {
	Key         string   `json:"key"`
	ID          string   `json:"id,omitempty"`
	Title       string   `json:"title"`
	Company     string   `json:"company"`
	Description string   `json:"description,omitempty"`
	URL         string   `json:"url,omitempty"`
	City        string   `json:"city,omitempty"`
	State       string   `json:"state,omitempty"`
	Country     string   `json:"country,omitempty"`
	PostedEpoch *float64 `json:"posted_epoch,omitempty"`
	PostedISO   string   `json:"posted_iso,omitempty"`
}

// Label renders "<title> at <company>" for source attribution.
func (p JobPosting) Label() string {
	return p.Title + " at " + p.Company
}

// Ref returns the attribution fields extractors copy onto each signal.
func (p JobPosting) Ref() JobRef {
	return JobRef{
		Key:     p.Key,
		Label:   p.Label(),
		Company: p.Company,
		URL:     p.URL,
	}
}

// JobRef identifies the posting a signal was found in.
type JobRef struct {
	Key     string
	Label   string
	Company string
	URL     string
}

// SignalKind names one of the four extractor families.
type SignalKind string

// Signal kinds.
const (
	KindCertification SignalKind = "certifications"
	KindSkill         SignalKind = "skills"
	KindExperience    SignalKind = "experience"
	KindEducation     SignalKind = "education"
)

// ExtractedSignal is a single occurrence of a canonical signal in one posting.
type ExtractedSignal struct {
	Name     string
	FullName string
	Org      string
	JobKey   string
	JobLabel string
	Company  string
	JobURL   string
}

// NewSignal builds an ExtractedSignal attributed to job.
func NewSignal(name string, job JobRef) ExtractedSignal {
	return ExtractedSignal{
		Name:     name,
		JobKey:   job.Key,
		JobLabel: job.Label,
		Company:  job.Company,
		JobURL:   job.URL,
	}
}

// Source is a posting cited as evidence for a ranked signal.
type Source struct {
	Title   string `json:"job"`
	Company string `json:"company"`
	URL     string `json:"job_url,omitempty"`
}

// RankedSignal is the aggregated view of one canonical signal.
type RankedSignal struct {
	Name       string   `json:"name"`
	FullName   string   `json:"full_name,omitempty"`
	Org        string   `json:"org,omitempty"`
	Count      int      `json:"count"`
	Percentage float64  `json:"percentage"`
	Sources    []Source `json:"sources"`
}

// ScanRecord is the persisted summary of one completed analysis.
type ScanRecord struct {
	ID                   int64          `json:"id"`
	Timestamp            time.Time      `json:"timestamp"`
	JobTitle             string         `json:"job_title"`
	Location             string         `json:"location"`
	TimeRange            string         `json:"time_range"`
	TotalJobs            int            `json:"total_jobs"`
	JobsWithDescriptions int            `json:"jobs_with_descriptions"`
	Certs                []RankedSignal `json:"cert_data"`
}

// SaveResult reports the row id of a saved scan and how many rows retention removed.
type SaveResult struct {
	ID            int64 `json:"id"`
	PrunedByAge   int64 `json:"pruned_by_age"`
	PrunedByCount int64 `json:"pruned_by_count"`
}

// RetentionPolicy bounds scan history. Zero disables a limit.
type RetentionPolicy struct {
	MaxAgeDays int
	MaxRows    int
}

// Query is one provider search request.
type Query struct {
	Text       string
	Location   string
	DatePosted string
}

// SearchText renders the provider query string, "<title> in <location>" when
// a location is present.
func (q Query) SearchText() string {
	if q.Location == "" {
		return q.Text
	}
	return q.Text + " in " + q.Location
}
