package jsearch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/JakeFAU/jobsignal/internal/scanner"
)

// Field aliases, first non-empty wins. Different JSearch plans and mirrors
// disagree on key names.
var (
	idKeys          = []string{"job_id", "id"}
	titleKeys       = []string{"job_title", "title"}
	companyKeys     = []string{"employer_name", "company_name", "company"}
	descriptionKeys = []string{"job_description", "description"}
	urlKeys         = []string{"job_apply_link", "job_url", "job_google_link", "url"}
	cityKeys        = []string{"job_city", "city"}
	stateKeys       = []string{"job_state", "state"}
	countryKeys     = []string{"job_country", "country"}
	epochKeys       = []string{"job_posted_at_timestamp", "posted_at_timestamp"}
	isoKeys         = []string{"job_posted_at_datetime_utc", "posted_at"}
)

type searchResponse struct {
	Status string           `json:"status"`
	Data   []map[string]any `json:"data"`
}

// Decode parses a search response body into postings.
func Decode(body []byte) ([]scanner.JobPosting, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var resp searchResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	postings := make([]scanner.JobPosting, 0, len(resp.Data))
	for _, raw := range resp.Data {
		if raw == nil {
			continue
		}
		postings = append(postings, normalize(raw))
	}
	return postings, nil
}

func normalize(raw map[string]any) scanner.JobPosting {
	p := scanner.JobPosting{
		ID:          firstString(raw, idKeys),
		Title:       firstString(raw, titleKeys),
		Company:     firstString(raw, companyKeys),
		Description: firstString(raw, descriptionKeys),
		URL:         firstString(raw, urlKeys),
		City:        firstString(raw, cityKeys),
		State:       firstString(raw, stateKeys),
		Country:     firstString(raw, countryKeys),
		PostedISO:   firstString(raw, isoKeys),
	}
	if v, ok := firstNumber(raw, epochKeys); ok {
		p.PostedEpoch = &v
	}
	return p
}

func firstString(raw map[string]any, keys []string) string {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func firstNumber(raw map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f, true
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
