// Package product defines the tracked-instrument descriptors and loads them
// from the tabular products file.
package product

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"fundboard/internal/staleness"
)

// DefaultTimeout bounds a single provider attempt when the ref column does
// not override it.
const DefaultTimeout = 3 * time.Second

// Descriptor is the identity and fetch policy for one tracked instrument.
// Code is opaque: leading zeros are significant and it is never parsed as a
// number.
type Descriptor struct {
	Code      string
	Name      string
	Kind      string // OTC, ETF, LOF or QDII; informational only
	Mode      string
	Providers []string
	StaleRule staleness.Rule
	Timeout   time.Duration
	Enabled   bool
}

// Defaults fills descriptor policy fields the ref column leaves unset.
type Defaults struct {
	Providers []string
	Timeout   time.Duration
}

// ConfigError reports a malformed descriptor row. Malformed rows are
// rejected outright, never silently defaulted.
type ConfigError struct {
	Line    int
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("products line %d: %s", e.Line, e.Message)
}

// LoadCSV reads descriptors from a CSV file with the columns
// code,name,kind,mode,ref,enabled. The ref column is a semicolon-separated
// key=value list; recognized keys are providers, stale_rule and timeout_s,
// unknown keys are ignored.
func LoadCSV(path string, defaults Defaults) ([]Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open products file: %w", err)
	}
	defer f.Close()
	return Parse(f, defaults)
}

// Parse reads descriptors from CSV content.
func Parse(r io.Reader, defaults Defaults) ([]Descriptor, error) {
	if defaults.Timeout <= 0 {
		defaults.Timeout = DefaultTimeout
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read products header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range []string{"code", "name"} {
		if _, ok := col[required]; !ok {
			return nil, &ConfigError{Line: 1, Message: fmt.Sprintf("missing required column %q", required)}
		}
	}

	var (
		descriptors []Descriptor
		seen        = map[string]int{}
		line        = 1
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &ConfigError{Line: line, Message: err.Error()}
		}

		field := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		code := field("code")
		if code == "" {
			return nil, &ConfigError{Line: line, Message: "empty code"}
		}
		if prev, dup := seen[code]; dup {
			return nil, &ConfigError{Line: line, Message: fmt.Sprintf("duplicate code %q (first seen on line %d)", code, prev)}
		}
		seen[code] = line

		ref := parseRef(field("ref"))

		providers := defaults.Providers
		if v, ok := ref["providers"]; ok {
			providers = splitList(v)
		}
		if len(providers) == 0 {
			return nil, &ConfigError{Line: line, Message: "empty provider list"}
		}
		if dup := firstDuplicate(providers); dup != "" {
			return nil, &ConfigError{Line: line, Message: fmt.Sprintf("duplicate provider %q in order", dup)}
		}

		rule := staleness.RuleAuto
		if v, ok := ref["stale_rule"]; ok {
			switch staleness.Rule(strings.ToLower(v)) {
			case staleness.RuleAuto:
				rule = staleness.RuleAuto
			case staleness.RuleStrict:
				rule = staleness.RuleStrict
			default:
				return nil, &ConfigError{Line: line, Message: fmt.Sprintf("unknown stale_rule %q", v)}
			}
		}

		timeout := defaults.Timeout
		if v, ok := ref["timeout_s"]; ok {
			secs, err := strconv.Atoi(v)
			if err != nil || secs <= 0 {
				return nil, &ConfigError{Line: line, Message: fmt.Sprintf("invalid timeout_s %q", v)}
			}
			timeout = time.Duration(secs) * time.Second
		}

		descriptors = append(descriptors, Descriptor{
			Code:      code,
			Name:      field("name"),
			Kind:      field("kind"),
			Mode:      field("mode"),
			Providers: providers,
			StaleRule: rule,
			Timeout:   timeout,
			Enabled:   field("enabled") == "1",
		})
	}

	return descriptors, nil
}

// parseRef splits "k1=v1;k2=v2" into a map, skipping malformed parts.
func parseRef(ref string) map[string]string {
	out := map[string]string{}
	for _, part := range strings.Split(ref, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func firstDuplicate(items []string) string {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			return item
		}
		seen[item] = struct{}{}
	}
	return ""
}
