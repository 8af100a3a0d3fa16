package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	LabelField          = "label"
	AttackCategoryField = "attack_category"
)

// FeatureColumns is the exact column order the classifier was fit on.
var FeatureColumns = [...]string{
	"duration", "protocol_type", "service", "flag", "src_bytes", "dst_bytes",
	"land", "wrong_fragment", "urgent", "hot", "num_failed_logins", "logged_in",
	"num_compromised", "root_shell", "su_attempted", "num_root", "num_file_creations",
	"num_shells", "num_access_files", "num_outbound_cmds", "is_host_login",
	"is_guest_login", "count", "srv_count", "serror_rate", "srv_serror_rate",
	"rerror_rate", "srv_rerror_rate", "same_srv_rate", "diff_srv_rate",
	"srv_diff_host_rate", "dst_host_count", "dst_host_srv_count",
	"dst_host_same_srv_rate", "dst_host_diff_srv_rate", "dst_host_same_src_port_rate",
	"dst_host_srv_diff_host_rate", "dst_host_serror_rate", "dst_host_srv_serror_rate",
	"dst_host_rerror_rate", "dst_host_srv_rerror_rate",
}

const FeatureCount = len(FeatureColumns)

// CategoricalColumns are encoded by fitted label encoders before inference.
var CategoricalColumns = [...]string{"protocol_type", "service", "flag"}

var featureIndex = func() map[string]int {
	m := make(map[string]int, FeatureCount)
	for i, name := range FeatureColumns {
		m[name] = i
	}
	return m
}()

func FeatureIndex(name string) (int, bool) {
	i, ok := featureIndex[name]
	return i, ok
}

func IsCategorical(name string) bool {
	for _, c := range CategoricalColumns {
		if c == name {
			return true
		}
	}
	return false
}

// FeatureRow is one connection record keyed by column name. Rows handed out
// by the sample store and the live publisher are shared between goroutines
// and must be treated as read-only; use Clone before modifying.
type FeatureRow map[string]any

func (r FeatureRow) Clone() FeatureRow {
	if r == nil {
		return nil
	}
	out := make(FeatureRow, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Stripped returns a copy without the label and attack_category fields.
func (r FeatureRow) Stripped() FeatureRow {
	out := r.Clone()
	if out == nil {
		return FeatureRow{}
	}
	delete(out, LabelField)
	delete(out, AttackCategoryField)
	return out
}

func (r FeatureRow) MissingFeatures() []string {
	var missing []string
	for _, name := range FeatureColumns {
		if _, ok := r[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func (r FeatureRow) Categorical(name string) (string, error) {
	v, ok := r[name]
	if !ok {
		return "", &MalformedRowError{Missing: []string{name}}
	}
	s, ok := v.(string)
	if !ok {
		return "", &MalformedRowError{Field: name, Reason: fmt.Sprintf("expected string, got %T", v)}
	}
	return s, nil
}

func (r FeatureRow) Numeric(name string) (float64, error) {
	v, ok := r[name]
	if !ok {
		return 0, &MalformedRowError{Missing: []string{name}}
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, &MalformedRowError{Field: name, Reason: err.Error()}
	}
	return f, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("missing value")
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

// ParseCell converts one CSV cell into the value type a row carries.
func ParseCell(raw string) any {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return s
}

// ParseColumn is ParseCell for a named column. Categorical columns and the
// label stay text even when they look numeric.
func ParseColumn(name, raw string) any {
	if !IsCategorical(name) && name != LabelField {
		return ParseCell(raw)
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	return s
}
