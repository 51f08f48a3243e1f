package market

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/2haed/cs-market/internal/models"
)

var ErrSchemaMismatch = errors.New("export schema mismatch")

const (
	fieldName = "market_hash_name"
	fieldType = "type"
)

// Schema is the field layout announced by the export index. Shard entries are
// positional arrays and must match it exactly.
type Schema struct {
	Version string
	Fields  []string

	nameIdx int
	typeIdx int
}

func NewSchema(fields []string) (*Schema, error) {
	s := &Schema{Fields: fields, nameIdx: -1, typeIdx: -1}
	for i, f := range fields {
		switch f {
		case fieldName:
			s.nameIdx = i
		case fieldType:
			s.typeIdx = i
		}
	}
	if s.nameIdx < 0 || s.typeIdx < 0 {
		return nil, fmt.Errorf("%w: format %v lacks %s or %s", ErrSchemaMismatch, fields, fieldName, fieldType)
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.Join(fields, "\x00")))
	s.Version = fmt.Sprintf("%d-%08x", len(fields), h.Sum32())
	return s, nil
}

// Decode turns one shard body into descriptors. Any entry whose length differs
// from the schema rejects the whole shard.
func (s *Schema) Decode(file string, body []byte) ([]models.ItemDescriptor, error) {
	var entries [][]json.RawMessage
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decode shard %s: %w", file, err)
	}

	out := make([]models.ItemDescriptor, 0, len(entries))
	for i, entry := range entries {
		if len(entry) != len(s.Fields) {
			return nil, fmt.Errorf("%w: shard %s entry %d has %d fields, schema %s has %d",
				ErrSchemaMismatch, file, i, len(entry), s.Version, len(s.Fields))
		}
		name := rawString(entry[s.nameIdx])
		if name == "" {
			continue
		}
		out = append(out, models.ItemDescriptor{
			MarketHashName: name,
			Type:           rawString(entry[s.typeIdx]),
			SourceFile:     file,
		})
	}
	return out, nil
}

func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
