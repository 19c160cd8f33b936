// Package runstore persists the per-run node-status/output table. The engine
// itself only needs the table in memory; the Badger-backed store additionally
// makes runs resumable by keying every record on (run id, node id).
package runstore

import (
	"context"
	"errors"
	"time"

	json "github.com/goccy/go-json"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// ErrNotFound is returned by Get when no record exists for the key.
var ErrNotFound = errors.New("runstore: record not found")

// Status mirrors a node's lifecycle state in persisted form.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusRetrying  Status = "retrying"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusAbsent    Status = "absent"
	StatusSkipped   Status = "skipped"
)

// Record is the persisted state of one node (or scatter task instance,
// which uses the parent id with an index suffix).
type Record struct {
	RunID     string          `json:"run_id"`
	NodeID    string          `json:"node_id"`
	Status    Status          `json:"status"`
	Attempts  int             `json:"attempts,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
	Error     string          `json:"error,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SetOutput stores a resolved value on the record. The cty JSON encoding
// carries dynamic type information so the value round-trips without an
// external schema.
func (r *Record) SetOutput(v cty.Value) error {
	raw, err := ctyjson.Marshal(v, cty.DynamicPseudoType)
	if err != nil {
		return err
	}
	r.Output = raw
	return nil
}

// OutputValue decodes the record's stored output value.
func (r *Record) OutputValue() (cty.Value, error) {
	if len(r.Output) == 0 {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	return ctyjson.Unmarshal(r.Output, cty.DynamicPseudoType)
}

// Store is the node-status/output table. Implementations must be safe for
// concurrent use; the executor writes from many workers at once.
type Store interface {
	Put(ctx context.Context, rec *Record) error
	Get(ctx context.Context, runID, nodeID string) (*Record, error)
	List(ctx context.Context, runID string) ([]*Record, error)
	Close() error
}
