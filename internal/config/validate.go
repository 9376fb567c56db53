package config

import (
	"fmt"
	"strings"

	"dbmigrate/internal/storage"
)

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding, addressed by a JSON-ish path.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// ConfigurationError is the run-level fatal error for a config that failed
// validation. It carries the error-severity issues.
type ConfigurationError struct {
	Issues []Issue
}

func (e *ConfigurationError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("invalid configuration: %s: %s", e.Issues[0].Path, e.Issues[0].Message)
	}
	return fmt.Sprintf("invalid configuration: %d errors", len(e.Issues))
}

// ErrorFromIssues returns a *ConfigurationError holding the error-severity
// issues, or nil if there are none.
func ErrorFromIssues(issues []Issue) error {
	var errs []Issue
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			errs = append(errs, iss)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &ConfigurationError{Issues: errs}
}

// ValidatePipeline checks a pipeline config and returns all findings.
// Callers decide whether warnings block; errors always should.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	errf := func(path, format string, a ...any) {
		issues = append(issues, Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, a...)})
	}
	warnf := func(path, format string, a ...any) {
		issues = append(issues, Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	switch p.Catalog.Kind {
	case "athena":
	case "":
		errf("catalog.kind", "must be set (supported: athena)")
	default:
		errf("catalog.kind", "unsupported kind %q (supported: athena)", p.Catalog.Kind)
	}
	if p.Catalog.Database == "" {
		errf("catalog.database", "must be set")
	}
	if p.Catalog.Kind == "athena" && p.Catalog.OutputLocation == "" && p.Catalog.Workgroup == "" {
		warnf("catalog.output_location", "empty; the workgroup must enforce a result location")
	}

	if p.Storage.Kind == "" {
		errf("storage.kind", "must be set")
	}
	if p.Storage.DSN == "" {
		errf("storage.dsn", "must be set")
	}

	if len(p.Tables) == 0 {
		errf("tables", "must not be empty")
	}
	seen := make(map[string]int, len(p.Tables))
	for i, t := range p.Tables {
		path := fmt.Sprintf("tables[%d]", i)
		if t.SourceName == "" {
			errf(path+".source_name", "must be set")
			continue
		}
		if prev, dup := seen[t.SourceName]; dup {
			errf(path+".source_name", "duplicate of tables[%d] (%q)", prev, t.SourceName)
		}
		seen[t.SourceName] = i

		target := t.TargetName
		if target == "" {
			target = t.SourceName
		}
		if !storage.ValidTableIdent(target) {
			errf(path+".target_name", "%q is not a valid table identifier", target)
		}
	}
	for i, t := range p.Tables {
		for j, dep := range t.DependsOn {
			if dep == t.SourceName {
				errf(fmt.Sprintf("tables[%d].depends_on[%d]", i, j), "table depends on itself")
				continue
			}
			if _, ok := seen[dep]; !ok {
				errf(fmt.Sprintf("tables[%d].depends_on[%d]", i, j), "unknown table %q", dep)
			}
		}
	}

	switch p.Runtime.OnFailure {
	case "", FailureAbort, FailureSkip:
	default:
		errf("runtime.on_failure", "must be %q or %q, got %q", FailureAbort, FailureSkip, p.Runtime.OnFailure)
	}
	if p.Runtime.PageSize > MaxPageSize {
		warnf("runtime.page_size", "%d exceeds the service maximum; clamped to %d", p.Runtime.PageSize, MaxPageSize)
	}
	if p.Runtime.PollInterval.Duration < 0 {
		errf("runtime.poll_interval", "must not be negative")
	}

	if p.Job != "" && strings.ContainsAny(p.Job, " \t\n") {
		warnf("job", "contains whitespace; metric tags will be awkward")
	}

	return issues
}
