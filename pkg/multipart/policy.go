package multipart

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/s3gw-project/s3gw/pkg/s3err"
)

// Policy is the decoded POST policy document, spec §4.3/§4.10: an
// expiration and a sequence of conditions, each either an exact-match
// object or a three-element [operator, field, value] array.
type Policy struct {
	Expiration time.Time
	Conditions []Condition
}

// ConditionOp is the operator of a three-element policy condition.
type ConditionOp string

const (
	OpEq                ConditionOp = "eq"
	OpStartsWith         ConditionOp = "starts-with"
	OpContentLengthRange ConditionOp = "content-length-range"
)

// Condition is one normalized policy condition. Exact-match object
// conditions ({field: value}) are represented as OpEq.
type Condition struct {
	Op    ConditionOp
	Field string // without the leading "$"
	Value string
	Min   int64 // content-length-range only
	Max   int64 // content-length-range only
}

// DecodePolicy base64-decodes and JSON-parses the policy field (spec
// §4.10 step 1-2).
func DecodePolicy(base64Policy string) (Policy, *s3err.Error) {
	raw, err := base64.StdEncoding.DecodeString(base64Policy)
	if err != nil {
		return Policy{}, s3err.New(s3err.CodeInvalidPolicyDocument, "policy is not valid base64")
	}

	var doc struct {
		Expiration string        `json:"expiration"`
		Conditions []interface{} `json:"conditions"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Policy{}, s3err.New(s3err.CodeInvalidPolicyDocument, "policy is not valid JSON")
	}

	expiration, err := time.Parse(time.RFC3339, doc.Expiration)
	if err != nil {
		return Policy{}, s3err.New(s3err.CodeInvalidPolicyDocument, "invalid expiration timestamp")
	}

	conditions := make([]Condition, 0, len(doc.Conditions))
	for _, raw := range doc.Conditions {
		cond, serr := parseCondition(raw)
		if serr != nil {
			return Policy{}, serr
		}
		conditions = append(conditions, cond)
	}

	return Policy{Expiration: expiration, Conditions: conditions}, nil
}

func parseCondition(raw interface{}) (Condition, *s3err.Error) {
	switch v := raw.(type) {
	case map[string]interface{}:
		for field, value := range v {
			s, ok := value.(string)
			if !ok {
				return Condition{}, s3err.New(s3err.CodeInvalidPolicyDocument, "exact-match condition value must be a string")
			}
			return Condition{Op: OpEq, Field: strings.TrimPrefix(field, "$"), Value: s}, nil
		}
		return Condition{}, s3err.New(s3err.CodeInvalidPolicyDocument, "empty exact-match condition")
	case []interface{}:
		if len(v) != 3 {
			return Condition{}, s3err.New(s3err.CodeInvalidPolicyDocument, "condition array must have 3 elements")
		}
		op, ok := v[0].(string)
		if !ok {
			return Condition{}, s3err.New(s3err.CodeInvalidPolicyDocument, "condition operator must be a string")
		}
		switch ConditionOp(op) {
		case OpEq, OpStartsWith:
			field, _ := v[1].(string)
			value, _ := v[2].(string)
			return Condition{Op: ConditionOp(op), Field: strings.TrimPrefix(field, "$"), Value: value}, nil
		case OpContentLengthRange:
			min, max, ok := toInt64Pair(v[1], v[2])
			if !ok {
				return Condition{}, s3err.New(s3err.CodeInvalidPolicyDocument, "content-length-range bounds must be numbers")
			}
			return Condition{Op: OpContentLengthRange, Min: min, Max: max}, nil
		default:
			return Condition{}, s3err.New(s3err.CodeInvalidPolicyDocument, fmt.Sprintf("unknown condition operator %q", op))
		}
	default:
		return Condition{}, s3err.New(s3err.CodeInvalidPolicyDocument, "condition must be an object or array")
	}
}

func toInt64Pair(a, b interface{}) (int64, int64, bool) {
	x, ok1 := toInt64(a)
	y, ok2 := toInt64(b)
	return x, y, ok1 && ok2
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// Evaluate checks the policy's expiration and every condition against the
// decoded form and file size (spec §4.10 steps 3-4).
func Evaluate(p Policy, now time.Time, form *Form, fileSize int64) *s3err.Error {
	if now.After(p.Expiration) {
		return s3err.New(s3err.CodeAccessDenied, "policy expired")
	}

	for _, c := range p.Conditions {
		switch c.Op {
		case OpEq:
			value, ok := form.Get(c.Field)
			if !ok || value != c.Value {
				return s3err.New(s3err.CodeAccessDenied, fmt.Sprintf("policy condition failed: eq $%s", c.Field))
			}
		case OpStartsWith:
			value, ok := form.Get(c.Field)
			if !ok || !strings.HasPrefix(value, c.Value) {
				return s3err.New(s3err.CodeAccessDenied, fmt.Sprintf("policy condition failed: starts-with $%s", c.Field))
			}
		case OpContentLengthRange:
			if fileSize < c.Min {
				return s3err.New(s3err.CodeEntityTooSmall, "file size below policy content-length-range minimum")
			}
			if fileSize > c.Max {
				return s3err.New(s3err.CodeEntityTooLarge, "file size above policy content-length-range maximum")
			}
		}
	}
	return nil
}

// MaxFileSizeForPolicy returns the effective file-size cap given the
// policy's content-length-range conditions (if any), per spec §4.10:
// "5 GB, or the policy's upper bound, whichever is smaller."
func MaxFileSizeForPolicy(p Policy) int64 {
	max := int64(MaxFileSize)
	for _, c := range p.Conditions {
		if c.Op == OpContentLengthRange && c.Max < max {
			max = c.Max
		}
	}
	return max
}
