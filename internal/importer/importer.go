// Package importer implements the bulk backfill path: delimited-text dumps
// of already-classified complaints are parsed line by line and stored
// directly, bypassing the extraction webhook.
package importer

import (
	"strconv"
	"strings"
	"time"

	"qalatransit/backend/internal/models"
	"qalatransit/backend/internal/storage"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// fieldCount is the minimum number of fields a line must yield:
// id, rawText, route, object, time, place, actor, aspect, priority,
// evidence, confidence, createdAt, updatedAt.
const fieldCount = 13

// Accepted timestamp layouts, microsecond precision first. A literal 'T'
// separator is rewritten to a space before parsing.
var timeLayouts = []string{
	"2006-01-02 15:04:05.000000 -07:00",
	"2006-01-02 15:04:05 -07:00",
}

// Result reports the outcome of one bulk import batch.
type Result struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Importer parses bulk text and persists the resulting complaints.
type Importer struct {
	Storage storage.Storage
	Logger  *zap.Logger
}

func New(s storage.Storage, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{Storage: s, Logger: logger}
}

// ImportText parses one complaint per line. A malformed line is counted as
// skipped and never aborts the batch.
func (im *Importer) ImportText(body string) Result {
	var res Result
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		c, err := parseLine(line)
		if err != nil {
			im.Logger.Warn("skipping import line", zap.Error(err))
			res.Skipped++
			continue
		}
		if err := im.Storage.SaveComplaint(c); err != nil {
			im.Logger.Warn("failed to save imported complaint", zap.Error(err))
			res.Skipped++
			continue
		}
		res.Imported++
	}
	return res
}

type parseError string

func (e parseError) Error() string { return string(e) }

// parseLine maps the positional fields of one line onto a complaint.
func parseLine(line string) (*models.Complaint, error) {
	fields := splitFields(line)
	if len(fields) < fieldCount {
		return nil, parseError("line has fewer than 13 fields")
	}

	c := &models.Complaint{CreatedBy: "system"}

	if id := nullIfEmpty(stripQuotes(fields[0])); id != nil {
		parsed, err := uuid.Parse(*id)
		if err != nil {
			return nil, err
		}
		c.ID = parsed.String()
	}
	c.RawText = nullIfEmpty(stripQuotes(fields[1]))
	c.Route = nullIfEmpty(stripQuotes(fields[2]))
	c.Object = nullIfEmpty(stripQuotes(fields[3]))
	c.Time = parseTimestamp(nullIfEmpty(stripQuotes(fields[4])))
	c.Place = nullIfEmpty(stripQuotes(fields[5]))
	c.Actor = nullIfEmpty(stripQuotes(fields[6]))
	c.Aspect = parseListLiteral(nullIfEmpty(stripQuotes(fields[7])))
	c.Priority = nullIfEmpty(stripQuotes(fields[8]))
	c.Evidence = parseListLiteral(nullIfEmpty(stripQuotes(fields[9])))
	c.Confidence = parseFloat(nullIfEmpty(stripQuotes(fields[10])))
	if t := parseTimestamp(nullIfEmpty(stripQuotes(fields[11]))); t != nil {
		c.CreatedAt = *t
	}
	if t := parseTimestamp(nullIfEmpty(stripQuotes(fields[12]))); t != nil {
		c.UpdatedAt = *t
	}
	return c, nil
}

// splitFields splits a line on commas, honouring RFC4180-style quoting plus
// brace nesting: commas inside {...} list literals never split, even
// outside quotes.
func splitFields(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	braceDepth := 0
	for _, ch := range line {
		if ch == '"' {
			inQuotes = !inQuotes
			cur.WriteRune(ch)
			continue
		}
		if !inQuotes {
			switch ch {
			case '{':
				braceDepth++
			case '}':
				braceDepth--
			case ',':
				if braceDepth == 0 {
					fields = append(fields, cur.String())
					cur.Reset()
					continue
				}
			}
		}
		cur.WriteRune(ch)
	}
	fields = append(fields, cur.String())
	return fields
}

// stripQuotes removes a single layer of surrounding double quotes.
func stripQuotes(s string) string {
	t := strings.TrimSpace(s)
	if len(t) >= 2 && strings.HasPrefix(t, `"`) && strings.HasSuffix(t, `"`) {
		return t[1 : len(t)-1]
	}
	return t
}

func nullIfEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// parseListLiteral parses a {a,b,c} array literal. The NULL token is
// dropped, an empty inner region yields an empty list, and a bare value
// becomes a single-element list.
func parseListLiteral(literal *string) pq.StringArray {
	if literal == nil {
		return pq.StringArray{}
	}
	t := strings.TrimSpace(*literal)
	if strings.HasPrefix(t, "{") && strings.HasSuffix(t, "}") {
		inner := t[1 : len(t)-1]
		if strings.TrimSpace(inner) == "" {
			return pq.StringArray{}
		}
		out := pq.StringArray{}
		for _, part := range strings.Split(inner, ",") {
			v := strings.TrimSpace(part)
			if v == "NULL" {
				continue
			}
			out = append(out, v)
		}
		return out
	}
	return pq.StringArray{t}
}

// parseTimestamp tries the known offset layouts; unparseable input yields
// nil rather than an error.
func parseTimestamp(s *string) *time.Time {
	if s == nil {
		return nil
	}
	v := strings.ReplaceAll(*s, "T", " ")
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	return nil
}

func parseFloat(s *string) *float64 {
	if s == nil {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(*s), 64)
	if err != nil {
		return nil
	}
	return &f
}
