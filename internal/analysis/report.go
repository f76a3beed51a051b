package analysis

import (
	"github.com/JakeFAU/jobsignal/internal/rank"
	"github.com/JakeFAU/jobsignal/internal/scanner"
)

// Section titles rendered above each ranked list.
const (
	CertificationsTitle = "Top Certifications"
	SkillsTitle         = "Top Technical Skills"
	ExperienceTitle     = "Experience Requirements"
	EducationTitle      = "Education Requirements"
)

// Messages returned in Response.Message.
const (
	MessageCompleted = "Job analysis completed successfully"
	MessageNoJobs    = "No jobs found for the given criteria"
)

// Request is one analysis request.
type Request struct {
	JobTitle   string   `json:"job_title"`
	Location   string   `json:"location,omitempty"`
	TimeRange  string   `json:"time_range"`
	TargetPath string   `json:"target_path,omitempty"`
	OwnedCerts []string `json:"owned_certs,omitempty"`
}

// Section is a titled ranked list.
type Section struct {
	Title string                 `json:"title"`
	Items []scanner.RankedSignal `json:"items"`
}

// SearchCriteria echoes the request back to the caller.
type SearchCriteria struct {
	JobTitle   string   `json:"job_title"`
	Location   string   `json:"location,omitempty"`
	TimeRange  string   `json:"time_range"`
	TargetPath string   `json:"target_path,omitempty"`
	OwnedCerts []string `json:"owned_certs,omitempty"`
}

// Report is the payload of a successful analysis.
type Report struct {
	Certifications       Section           `json:"certifications"`
	Skills               Section           `json:"skills"`
	Experience           Section           `json:"experience"`
	Education            Section           `json:"education"`
	TotalJobsFound       int               `json:"total_jobs_found"`
	JobsWithDescriptions int               `json:"jobs_with_descriptions"`
	QueriesUsed          []string          `json:"queries_used"`
	TitleDistribution    []rank.TitleShare `json:"title_distribution"`
	CertPairs            []rank.CertPair   `json:"cert_pairs"`
	SearchCriteria       SearchCriteria    `json:"search_criteria"`
	RunID                string            `json:"run_id"`
	ScanID               int64             `json:"scan_id,omitempty"`
	ArchiveURI           string            `json:"archive_uri,omitempty"`
}

// Response is returned by Analyzer.Analyze and served by POST /analyze-jobs.
type Response struct {
	Success      bool    `json:"success"`
	Message      string  `json:"message"`
	JobsAnalyzed int     `json:"jobs_analyzed"`
	Data         *Report `json:"data,omitempty"`
}

// CompletedEvent is published after a scan is saved.
type CompletedEvent struct {
	RunID                string   `json:"run_id"`
	ScanID               int64    `json:"scan_id"`
	JobTitle             string   `json:"job_title"`
	Location             string   `json:"location,omitempty"`
	TimeRange            string   `json:"time_range"`
	TotalJobs            int      `json:"total_jobs"`
	JobsWithDescriptions int      `json:"jobs_with_descriptions"`
	TopCertifications    []string `json:"top_certifications"`
	ArchiveURI           string   `json:"archive_uri,omitempty"`
	CompletedAt          string   `json:"completed_at"`
}
