// Package meta provides a small bounded string map used for transaction tags
// and pending-expense recurrence attributes. Encoding is deterministic so
// stored rows compare byte-for-byte.
package meta

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
)

// Metadata is a string map with validation and stable JSON encoding.
type Metadata map[string]string

const (
	MaxPairs     = 16
	MaxKeyLen    = 48
	MaxValLen    = 256
	MaxTotalJSON = 2048
)

func New(m map[string]string) Metadata {
	if m == nil {
		return Metadata{}
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (m Metadata) Clone() Metadata {
	if m == nil {
		return Metadata{}
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (m Metadata) Validate() error {
	if len(m) > MaxPairs {
		return errors.New("metadata too many pairs")
	}
	for k, v := range m {
		if len(k) == 0 || len(k) > MaxKeyLen {
			return errors.New("metadata key too long or empty")
		}
		if len(v) > MaxValLen {
			return errors.New("metadata value too long")
		}
	}
	b, err := m.MarshalStableJSON()
	if err != nil {
		return err
	}
	if len(b) > MaxTotalJSON {
		return errors.New("metadata exceeds max json size")
	}
	return nil
}

// MarshalStableJSON returns a deterministic JSON representation with keys sorted.
func (m Metadata) MarshalStableJSON() ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, k := range keys {
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(m[k])
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
		if i < len(keys)-1 {
			buf.WriteByte(',')
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m Metadata) MarshalJSON() ([]byte, error) { return m.MarshalStableJSON() }

func (m *Metadata) UnmarshalJSON(b []byte) error {
	var tmp map[string]string
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = Metadata{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*m = New(tmp)
	return nil
}
