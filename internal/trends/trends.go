// Package trends folds stored scan summaries into all-time certification
// statistics and a scan-by-scan trend table.
package trends

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/JakeFAU/jobsignal/internal/scanner"
)

// TopTrendCerts bounds how many certifications get a column in the trend table.
const TopTrendCerts = 8

// CertStat summarizes one certification across every stored scan.
type CertStat struct {
	Name             string  `json:"name"`
	FullName         string  `json:"full_name"`
	Org              string  `json:"org"`
	TotalMentions    int     `json:"total_mentions"`
	ScansAppeared    int     `json:"scans_appeared"`
	AvgPercentage    float64 `json:"avg_percentage"`
	LatestPercentage float64 `json:"latest_percentage"`
}

// TrendPoint is one scan's row in the trend table. Certs is flattened into the
// JSON object keyed by certification name.
type TrendPoint struct {
	Date     time.Time
	JobTitle string
	Jobs     int
	Certs    map[string]float64
}

// MarshalJSON renders the point as {"date","job_title","jobs",<cert>:<pct>...}.
func (p TrendPoint) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Certs)+3)
	for name, pct := range p.Certs {
		out[name] = pct
	}
	out["date"] = p.Date.UTC().Format(time.RFC3339)
	out["job_title"] = p.JobTitle
	out["jobs"] = p.Jobs
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal trend point: %w", err)
	}
	return data, nil
}

// Stats is the aggregate view served by GET /stats.
type Stats struct {
	TotalScans                int          `json:"total_scans"`
	TotalJobsScanned          int          `json:"total_jobs_scanned"`
	TotalJobsWithDescriptions int          `json:"total_jobs_with_descriptions"`
	DistinctRoles             int          `json:"distinct_roles"`
	FirstScan                 *time.Time   `json:"first_scan"`
	LatestScan                *time.Time   `json:"latest_scan"`
	AllTimeCerts              []CertStat   `json:"all_time_certs"`
	TrendData                 []TrendPoint `json:"trend_data"`
	TopCertNames              []string     `json:"top_cert_names"`
}

type certAccumulator struct {
	stat    CertStat
	pctSum  float64
	latest  time.Time
	firstAt int
}

// Aggregate computes Stats from records in any order.
func Aggregate(records []scanner.ScanRecord) Stats {
	stats := Stats{
		AllTimeCerts: []CertStat{},
		TrendData:    []TrendPoint{},
		TopCertNames: []string{},
	}
	if len(records) == 0 {
		return stats
	}

	ordered := make([]scanner.ScanRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		}
		return ordered[i].ID < ordered[j].ID
	})

	first, last := ordered[0].Timestamp, ordered[len(ordered)-1].Timestamp
	stats.FirstScan, stats.LatestScan = &first, &last
	stats.TotalScans = len(ordered)

	roles := make(map[string]struct{})
	byName := make(map[string]*certAccumulator)
	for _, rec := range ordered {
		stats.TotalJobsScanned += rec.TotalJobs
		stats.TotalJobsWithDescriptions += rec.JobsWithDescriptions
		roles[rec.JobTitle] = struct{}{}

		seen := make(map[string]struct{}, len(rec.Certs))
		for _, cert := range rec.Certs {
			if _, dup := seen[cert.Name]; dup {
				continue
			}
			seen[cert.Name] = struct{}{}
			acc, ok := byName[cert.Name]
			if !ok {
				acc = &certAccumulator{stat: CertStat{Name: cert.Name}, firstAt: len(byName)}
				byName[cert.Name] = acc
			}
			if acc.stat.FullName == "" {
				acc.stat.FullName = cert.FullName
			}
			if acc.stat.Org == "" {
				acc.stat.Org = cert.Org
			}
			acc.stat.TotalMentions += cert.Count
			acc.stat.ScansAppeared++
			acc.pctSum += cert.Percentage
			if !rec.Timestamp.Before(acc.latest) {
				acc.latest = rec.Timestamp
				acc.stat.LatestPercentage = cert.Percentage
			}
		}
	}
	stats.DistinctRoles = len(roles)

	accs := make([]*certAccumulator, 0, len(byName))
	for _, acc := range byName {
		acc.stat.AvgPercentage = round1(acc.pctSum / float64(acc.stat.ScansAppeared))
		accs = append(accs, acc)
	}
	sort.Slice(accs, func(i, j int) bool {
		a, b := accs[i].stat, accs[j].stat
		if a.AvgPercentage != b.AvgPercentage {
			return a.AvgPercentage > b.AvgPercentage
		}
		if a.TotalMentions != b.TotalMentions {
			return a.TotalMentions > b.TotalMentions
		}
		return accs[i].firstAt < accs[j].firstAt
	})
	for _, acc := range accs {
		stats.AllTimeCerts = append(stats.AllTimeCerts, acc.stat)
	}
	for i := 0; i < len(stats.AllTimeCerts) && i < TopTrendCerts; i++ {
		stats.TopCertNames = append(stats.TopCertNames, stats.AllTimeCerts[i].Name)
	}

	for _, rec := range ordered {
		point := TrendPoint{
			Date:     rec.Timestamp,
			JobTitle: rec.JobTitle,
			Jobs:     rec.JobsWithDescriptions,
			Certs:    make(map[string]float64, len(stats.TopCertNames)),
		}
		for _, name := range stats.TopCertNames {
			point.Certs[name] = 0
		}
		for _, cert := range rec.Certs {
			if _, tracked := point.Certs[cert.Name]; tracked {
				point.Certs[cert.Name] = cert.Percentage
			}
		}
		stats.TrendData = append(stats.TrendData, point)
	}
	return stats
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
