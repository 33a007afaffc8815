package models

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"plexmaint/internal/units"
)

// Node types and group operators for the predicate tree.
const (
	NodeCondition = "condition"
	NodeGroup     = "group"

	GroupAnd = "AND"
	GroupOr  = "OR"
)

// Node is one node of the predicate tree: either a typed field comparison
// (type "condition") or a boolean group (type "group"). The Operator field
// carries the comparison operator for conditions and AND/OR for groups.
type Node struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Field     string `json:"field,omitempty"`
	Operator  string `json:"operator"`
	Value     any    `json:"value,omitempty"`
	ValueUnit string `json:"valueUnit,omitempty"`
	Conditions []Node `json:"conditions,omitempty"`
}

// Criteria is the root of a rule's predicate tree. The root is always a
// group; LibraryIDs scopes the scan to specific library sections.
type Criteria struct {
	Node
	LibraryIDs []string `json:"libraryIds,omitempty"`
}

// NewNodeID returns a short opaque id for a tree node.
func NewNodeID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "node0000"
	}
	return hex.EncodeToString(b)
}

// ParseCriteria decodes stored criteria JSON. Criteria written before the
// tree format lack a root "type" marker and are migrated on the fly;
// persisted rules are not rewritten.
func ParseCriteria(raw json.RawMessage) (*Criteria, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty criteria")
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("parse criteria: %w", err)
	}

	if head.Type == "" {
		return MigrateLegacyCriteria(raw)
	}

	var c Criteria
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse criteria: %w", err)
	}
	if c.Type != NodeGroup {
		return nil, fmt.Errorf("criteria root must be a group, got %q", c.Type)
	}
	return &c, nil
}

// legacyCriteria is the flat pre-tree rule shape.
type legacyCriteria struct {
	NeverWatched      bool              `json:"neverWatched"`
	MaxPlayCount      *int              `json:"maxPlayCount"`
	LastWatchedBefore *legacyValueUnit  `json:"lastWatchedBefore"`
	MinFileSize       *legacyValueUnit  `json:"minFileSize"`
	LibraryIDs        []string          `json:"libraryIds"`
	Tags              []string          `json:"tags"`
	Operator          string            `json:"operator"`
}

type legacyValueUnit struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// MigrateLegacyCriteria maps a flat legacy criteria bag one-to-one onto
// conditions under a single root group.
func MigrateLegacyCriteria(raw json.RawMessage) (*Criteria, error) {
	var legacy legacyCriteria
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("parse legacy criteria: %w", err)
	}

	op := legacy.Operator
	if op != GroupAnd && op != GroupOr {
		op = GroupAnd
	}

	var conditions []Node
	cond := func(field, operator string, value any, unit string) {
		conditions = append(conditions, Node{
			Type:      NodeCondition,
			ID:        NewNodeID(),
			Field:     field,
			Operator:  operator,
			Value:     value,
			ValueUnit: unit,
		})
	}

	if legacy.NeverWatched {
		cond("neverWatched", "equals", true, "")
	}
	if legacy.MaxPlayCount != nil {
		cond("playCount", "le", float64(*legacy.MaxPlayCount), "")
	}
	if legacy.LastWatchedBefore != nil {
		cond("lastWatchedAt", "olderThan", legacy.LastWatchedBefore.Value, legacy.LastWatchedBefore.Unit)
	}
	if legacy.MinFileSize != nil {
		bytes := legacy.MinFileSize.Value
		if legacy.MinFileSize.Unit == "GB" {
			bytes = float64(units.GBToBytes(legacy.MinFileSize.Value))
		}
		cond("fileSize", "ge", bytes, "")
	}
	if len(legacy.Tags) > 0 {
		tags := make([]any, len(legacy.Tags))
		for i, t := range legacy.Tags {
			tags[i] = t
		}
		cond("labels", "containsAny", tags, "")
	}

	return &Criteria{
		Node: Node{
			Type:       NodeGroup,
			ID:         NewNodeID(),
			Operator:   op,
			Conditions: conditions,
		},
		LibraryIDs: legacy.LibraryIDs,
	}, nil
}
