package store

import (
	"encoding/json"
	"time"

	"github.com/goplus/spk/pkgs/spec"
)

// Record describes one installed spec.
type Record struct {
	Hash        string    `json:"hash"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Prefix      string    `json:"prefix"`
	Explicit    bool      `json:"explicit"`
	InstalledAt time.Time `json:"installed_at"`
	// Spec is the spec.yaml encoding of the DAG rooted at the record.
	Spec string `json:"spec"`
}

func (r *Record) encode() ([]byte, error) {
	return json.Marshal(r)
}

func decodeRecord(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// DAG decodes the recorded DAG.
func (r *Record) DAG() (*spec.DAG, error) {
	return spec.DecodeYAML([]byte(r.Spec))
}
