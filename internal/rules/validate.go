package rules

import (
	"fmt"

	"plexmaint/internal/fields"
	"plexmaint/internal/models"
)

// ValidateCriteria checks a predicate tree against the field registry:
// every referenced field must exist, be applicable to the rule's media
// type, allow the operator, and carry a value of the right shape. Called
// at rule save time; the evaluator itself fails safe at runtime.
func ValidateCriteria(mt models.MediaType, c *models.Criteria) error {
	if c == nil {
		return fmt.Errorf("criteria is required")
	}
	if c.Type != models.NodeGroup {
		return fmt.Errorf("criteria root must be a group")
	}
	if mt == models.MediaTypeMovie || mt == models.MediaTypeTV {
		if len(c.LibraryIDs) == 0 {
			return fmt.Errorf("at least one library must be selected")
		}
	}
	return validateNode(mt, &c.Node)
}

func validateNode(mt models.MediaType, n *models.Node) error {
	switch n.Type {
	case models.NodeGroup:
		if n.Operator != models.GroupAnd && n.Operator != models.GroupOr {
			return fmt.Errorf("group operator must be AND or OR, got %q", n.Operator)
		}
		for i := range n.Conditions {
			if err := validateNode(mt, &n.Conditions[i]); err != nil {
				return err
			}
		}
		return nil
	case models.NodeCondition:
		return validateCondition(mt, n)
	default:
		return fmt.Errorf("unknown node type %q", n.Type)
	}
}

func validateCondition(mt models.MediaType, n *models.Node) error {
	field := fields.Lookup(n.Field)
	if field == nil {
		return fmt.Errorf("unknown field %q", n.Field)
	}
	if !field.AppliesTo(mt) {
		return fmt.Errorf("field %q does not apply to media type %q", n.Field, mt)
	}
	if !field.AllowsOperator(n.Operator) {
		return fmt.Errorf("operator %q is not allowed for field %q", n.Operator, n.Field)
	}

	// valueUnit is required exactly for relative-date operators.
	relative := field.Type == fields.TypeDate &&
		(n.Operator == fields.OpOlderThan || n.Operator == fields.OpNewerThan)
	if relative {
		switch n.ValueUnit {
		case "days", "months", "years":
		default:
			return fmt.Errorf("field %q with %s requires a valueUnit of days, months or years", n.Field, n.Operator)
		}
	} else if n.ValueUnit != "" {
		return fmt.Errorf("field %q with %s does not take a valueUnit", n.Field, n.Operator)
	}

	return validateValueShape(field, n)
}

func validateValueShape(field *fields.Field, n *models.Node) error {
	// Null and emptiness checks take no value.
	switch n.Operator {
	case fields.OpIsNull, fields.OpIsNotNull, fields.OpIsEmpty, fields.OpIsNotEmpty:
		return nil
	}
	if n.Value == nil {
		return fmt.Errorf("field %q with %s requires a value", n.Field, n.Operator)
	}

	bad := func() error {
		return fmt.Errorf("field %q with %s has a value of the wrong shape", n.Field, n.Operator)
	}

	switch n.Operator {
	case fields.OpIn, fields.OpNotIn, fields.OpContainsAny, fields.OpContainsAll:
		if len(asStringSlice(n.Value)) == 0 {
			return bad()
		}
		return nil
	case fields.OpBetween:
		if field.Type == fields.TypeDate {
			vals := asAnySlice(n.Value)
			if len(vals) != 2 {
				return bad()
			}
			for _, v := range vals {
				if _, ok := asTime(v); !ok {
					return bad()
				}
			}
			return nil
		}
		if _, _, ok := asRange(n.Value); !ok {
			return bad()
		}
		return nil
	}

	switch field.Type {
	case fields.TypeNumber:
		if _, ok := asFloat(n.Value); !ok {
			return bad()
		}
	case fields.TypeBoolean:
		if _, ok := n.Value.(bool); !ok {
			return bad()
		}
	case fields.TypeDate:
		switch n.Operator {
		case fields.OpOlderThan, fields.OpNewerThan:
			if _, ok := asFloat(n.Value); !ok {
				return bad()
			}
		default:
			if _, ok := asTime(n.Value); !ok {
				return bad()
			}
		}
	case fields.TypeString, fields.TypeEnum, fields.TypeArray:
		if asString(n.Value) == "" {
			return bad()
		}
	}
	return nil
}
