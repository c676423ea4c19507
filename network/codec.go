package network

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Decode reads a YAML network document into a Draft. The draft is not
// validated; call Build or Validate.
//
// Document shape:
//
//	name: demo
//	nodes:
//	  - {id: A, demand: -10}
//	  - {id: B, demand: 10}
//	arcs:
//	  - {u: A, v: B, capacity: 10, min_flow: 0, cost_low: 1,
//	     cost_high: 5, threshold: 5, loss_rate: 0}
func Decode(r io.Reader) (*Draft, error) {
	var d Draft
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		if err == io.EOF {
			return &d, nil
		}
		return nil, fmt.Errorf("network: decode yaml: %w", err)
	}

	return &d, nil
}

// LoadFile opens path and decodes it with Decode.
func LoadFile(path string) (*Draft, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("network: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Encode writes d as YAML.
func Encode(w io.Writer, d *Draft) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("network: encode yaml: %w", err)
	}

	return enc.Close()
}
