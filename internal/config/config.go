// Package config defines the migration pipeline configuration and its
// validation.
//
// A pipeline config is a single JSON document: where the source tables live
// (the catalog service), where they go (the target database), which tables to
// move and in what dependency order, and runtime knobs (polling cadence,
// batch size, failure policy).
package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Pipeline is the root configuration document.
type Pipeline struct {
	Job     string  `json:"job"`
	Catalog Catalog `json:"catalog"`
	Storage Storage `json:"storage"`
	Tables  []Table `json:"tables"`
	Runtime Runtime `json:"runtime"`
}

// Catalog configures the source catalog query service.
type Catalog struct {
	// Kind selects the catalog client. "athena" is the only kind today.
	Kind string `json:"kind"`

	// Catalog is the data catalog name (Athena: usually "AwsDataCatalog").
	Catalog string `json:"catalog"`

	// Database is the catalog database holding the source tables.
	Database string `json:"database"`

	// Workgroup is optional; empty means the service default.
	Workgroup string `json:"workgroup"`

	// OutputLocation is where the service writes query results
	// (Athena: an s3:// URI). Required unless the workgroup enforces one.
	OutputLocation string `json:"output_location"`

	// Region overrides the ambient AWS region when non-empty.
	Region string `json:"region"`
}

// Storage configures the target database.
type Storage struct {
	// Kind: "postgres" | "mssql" | "sqlite".
	Kind string `json:"kind"`

	// DSN is expanded with os.ExpandEnv before use, so secrets can stay in
	// the environment.
	DSN string `json:"dsn"`

	// Pool sizing. Zero values take the backend defaults
	// (20 conns, 30s idle timeout, 20s connect timeout).
	MaxConns       int      `json:"max_conns"`
	IdleTimeout    Duration `json:"idle_timeout"`
	ConnectTimeout Duration `json:"connect_timeout"`
}

// Table names one source table to migrate.
type Table struct {
	// SourceName is the table name in the catalog database.
	SourceName string `json:"source_name"`

	// TargetName is the destination table; defaults to SourceName.
	// A single schema qualifier is allowed ("app.accounts").
	TargetName string `json:"target_name"`

	// DependsOn lists source names of tables that must load first
	// (foreign-key parents). When every table's list is empty the
	// configuration order is used as-is.
	DependsOn []string `json:"depends_on"`
}

// Runtime holds execution knobs.
type Runtime struct {
	// PollInterval between query-status probes. Default 5s.
	PollInterval Duration `json:"poll_interval"`

	// PollMaxWait bounds one query's status polling. Default 30m.
	// Zero means the default; use a negative value for unbounded.
	PollMaxWait Duration `json:"poll_max_wait"`

	// PageSize caps rows per result page. Default and maximum 1000.
	PageSize int `json:"page_size"`

	// OnFailure: "abort" stops the run at the first failed table or batch,
	// "skip" logs and moves on. Default "abort".
	OnFailure string `json:"on_failure"`
}

// Failure policy values for Runtime.OnFailure.
const (
	FailureAbort = "abort"
	FailureSkip  = "skip"
)

// Defaults applied by Normalize.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultPollMaxWait  = 30 * time.Minute
	DefaultPageSize     = 1000
	MaxPageSize         = 1000
)

// Duration is a time.Duration that unmarshals from JSON strings like "30s".
type Duration struct {
	time.Duration
}

// UnmarshalJSON accepts a Go duration string or a bare number of seconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		d.Duration = v
		return nil
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("invalid duration %s", string(b))
	}
	d.Duration = time.Duration(secs * float64(time.Second))
	return nil
}

// MarshalJSON renders the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

// Normalize fills defaulted fields in place. Call it after validation.
func Normalize(p *Pipeline) {
	for i := range p.Tables {
		if p.Tables[i].TargetName == "" {
			p.Tables[i].TargetName = p.Tables[i].SourceName
		}
	}
	if p.Runtime.PollInterval.Duration <= 0 {
		p.Runtime.PollInterval.Duration = DefaultPollInterval
	}
	if p.Runtime.PollMaxWait.Duration == 0 {
		p.Runtime.PollMaxWait.Duration = DefaultPollMaxWait
	}
	if p.Runtime.PageSize <= 0 {
		p.Runtime.PageSize = DefaultPageSize
	}
	if p.Runtime.PageSize > MaxPageSize {
		p.Runtime.PageSize = MaxPageSize
	}
	if p.Runtime.OnFailure == "" {
		p.Runtime.OnFailure = FailureAbort
	}
}
