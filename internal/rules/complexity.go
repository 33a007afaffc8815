package rules

import "plexmaint/internal/models"

// Complexity thresholds. Used for UI warnings only; evaluation is
// unaffected by the label.
const (
	moderateConditions = 5
	moderateDepth      = 2
	complexConditions  = 10
	complexDepth       = 3
)

type ComplexityInfo struct {
	ConditionCount int    `json:"condition_count"`
	GroupCount     int    `json:"group_count"`
	MaxDepth       int    `json:"max_depth"`
	Label          string `json:"label"` // simple | moderate | complex
}

// Complexity measures the size and nesting of a predicate tree.
func Complexity(c *models.Criteria) ComplexityInfo {
	var info ComplexityInfo
	if c != nil {
		walkComplexity(&c.Node, 1, &info)
	}

	switch {
	case info.ConditionCount > complexConditions || info.MaxDepth > complexDepth:
		info.Label = "complex"
	case info.ConditionCount > moderateConditions || info.MaxDepth > moderateDepth:
		info.Label = "moderate"
	default:
		info.Label = "simple"
	}
	return info
}

func walkComplexity(n *models.Node, depth int, info *ComplexityInfo) {
	switch n.Type {
	case models.NodeGroup:
		info.GroupCount++
		if depth > info.MaxDepth {
			info.MaxDepth = depth
		}
		for i := range n.Conditions {
			walkComplexity(&n.Conditions[i], depth+1, info)
		}
	case models.NodeCondition:
		info.ConditionCount++
	}
}
