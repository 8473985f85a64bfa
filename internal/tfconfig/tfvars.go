package tfconfig

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kompox/sandboxops/domain/model"
)

// TFVarsFile is the variables file written into each workspace.
const TFVarsFile = "terraform.tfvars"

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// ValidateVariables checks names and scalar types. Declared variables must
// match their declared type.
func ValidateVariables(vars model.Variables) error {
	for name, v := range vars {
		if !identRe.MatchString(name) {
			return fmt.Errorf("invalid variable name %q", name)
		}
		if _, err := formatValue(v); err != nil {
			return fmt.Errorf("variable %q: %w", name, err)
		}
		def, ok := Lookup(name)
		if !ok {
			continue
		}
		switch def.Type {
		case "bool":
			if _, isBool := v.(bool); !isBool {
				return fmt.Errorf("variable %q must be a bool", name)
			}
		case "string":
			if _, isStr := v.(string); !isStr {
				return fmt.Errorf("variable %q must be a string", name)
			}
		}
	}
	return nil
}

// EncodeTFVars renders vars as HCL assignments. Declared variables come first in
// declaration order, followed by the rest sorted by name.
func EncodeTFVars(vars model.Variables) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# Terraform variables for this sandbox workspace\n")
	for _, name := range orderedNames(vars) {
		s, err := formatValue(vars[name])
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		fmt.Fprintf(&buf, "%s = %s\n", name, s)
	}
	return buf.Bytes(), nil
}

func orderedNames(vars model.Variables) []string {
	names := make([]string, 0, len(vars))
	seen := make(map[string]bool, len(vars))
	for _, d := range Definitions {
		if _, ok := vars[d.Name]; ok {
			names = append(names, d.Name)
			seen[d.Name] = true
		}
	}
	var extra []string
	for name := range vars {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

func formatValue(v any) (string, error) {
	switch x := v.(type) {
	case bool:
		return strconv.FormatBool(x), nil
	case string:
		return QuoteHCL(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "", fmt.Errorf("non-finite number")
		}
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

// DecodeTFVars parses the flat `name = value` assignments written by EncodeTFVars.
// Blank lines and # or // comments are skipped.
func DecodeTFVars(data []byte) (model.Variables, error) {
	vars := model.Variables{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		name, raw, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: expected name = value", lineNo)
		}
		name = strings.TrimSpace(name)
		if !identRe.MatchString(name) {
			return nil, fmt.Errorf("line %d: invalid variable name %q", lineNo, name)
		}
		v, err := parseValue(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		vars[name] = v
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return vars, nil
}

func parseValue(raw string) (any, error) {
	switch {
	case raw == "true":
		return true, nil
	case raw == "false":
		return false, nil
	case strings.HasPrefix(raw, `"`):
		return UnquoteHCL(raw)
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("unsupported value %q", raw)
}

// NormalizeVariables converts integral float64 values, as produced by JSON
// decoding, to int so that they encode without a fraction.
func NormalizeVariables(vars model.Variables) model.Variables {
	out := make(model.Variables, len(vars))
	for k, v := range vars {
		if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			v = int(f)
		}
		out[k] = v
	}
	return out
}
