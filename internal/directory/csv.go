package directory

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"offboarding-workflow/internal/domain"
)

const (
	headerLeaderName  = "team leader name"
	headerLeaderEmail = "team leader email"
	headerHeadName    = "chinese head name"
	headerHeadEmail   = "chinese head email"
	headerCRM         = "crm"
)

var requiredHeaders = []string{headerLeaderName, headerLeaderEmail, headerHeadName, headerHeadEmail}

// ParseCSV reads a team mapping sheet. Rows without a leader name are skipped.
func ParseCSV(r io.Reader) ([]domain.LeaderMapping, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("mapping csv is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read mapping header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		index[h] = i
	}
	for _, h := range requiredHeaders {
		if _, ok := index[h]; !ok {
			return nil, fmt.Errorf("mapping csv missing column %q", h)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	out := make([]domain.LeaderMapping, 0)
	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read mapping line %d: %w", line, err)
		}
		m := domain.LeaderMapping{
			TeamLeaderName:   field(rec, headerLeaderName),
			TeamLeaderEmail:  field(rec, headerLeaderEmail),
			ChineseHeadName:  field(rec, headerHeadName),
			ChineseHeadEmail: field(rec, headerHeadEmail),
			CRM:              field(rec, headerCRM),
		}
		if m.TeamLeaderName == "" {
			continue
		}
		if m.TeamLeaderEmail == "" {
			return nil, fmt.Errorf("mapping line %d: leader %q has no email", line, m.TeamLeaderName)
		}
		if !domain.ValidEmail(m.TeamLeaderEmail) {
			return nil, fmt.Errorf("mapping line %d: leader email %q is not a valid address", line, m.TeamLeaderEmail)
		}
		if !domain.ValidEmail(m.ChineseHeadEmail) {
			return nil, fmt.Errorf("mapping line %d: head email %q for leader %q is not a valid address", line, m.ChineseHeadEmail, m.TeamLeaderName)
		}
		out = append(out, m)
	}
	return out, nil
}
