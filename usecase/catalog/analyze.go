package catalog

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/kompox/sandboxops/domain/model"
)

// Severity levels of a finding.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// AnalyzeInput carries Terraform configuration text.
type AnalyzeInput struct {
	Config string `json:"config"`
}

// Finding is one review remark.
type Finding struct {
	Severity       string `json:"severity"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
	// Resource is the address the finding refers to, when known.
	Resource string `json:"resource,omitempty"`
	Line     int    `json:"line,omitempty"`
}

// AnalyzeOutput lists findings in configuration order per check.
type AnalyzeOutput struct {
	Results []Finding `json:"results"`
}

var (
	providerAWSRe  = regexp.MustCompile(`provider\s+"aws"\s*\{`)
	regionRe       = regexp.MustCompile(`(?m)^\s*region\s*=`)
	tagsRe         = regexp.MustCompile(`(?m)^\s*tags\s*=`)
	microRe        = regexp.MustCompile(`instance_type\s*=\s*"t2\.micro"`)
	instanceRe     = regexp.MustCompile(`resource\s+"aws_instance"\s+"([^"]+)"\s*\{`)
	ingressBlockRe = regexp.MustCompile(`(?m)^\s*ingress\s*\{`)
	ingressRuleRe  = regexp.MustCompile(`resource\s+"aws_(?:vpc_security_group_ingress_rule|security_group_rule)"\s+"([^"]+)"\s*\{`)
	openCIDRRe     = regexp.MustCompile(`"0\.0\.0\.0/0"|"::/0"`)
	ruleTypeEgress = regexp.MustCompile(`type\s*=\s*"egress"`)
	credentialRe   = regexp.MustCompile(`(?m)^\s*(access_key|secret_key|password|token)\s*=\s*"([^"$]+)"`)
	accessKeyIDRe  = regexp.MustCompile(`\b(AKIA|ASIA)[0-9A-Z]{16}\b`)
)

// Analyze reviews configuration text with simple heuristics: provider region,
// instance tags and sizes, open security group ingress, and hard-coded
// credentials.
func (u *UseCase) Analyze(_ context.Context, in *AnalyzeInput) (*AnalyzeOutput, error) {
	if in == nil || strings.TrimSpace(in.Config) == "" {
		return nil, fmt.Errorf("%w: no configuration provided", model.ErrConfigInvalid)
	}
	src := stripComments(in.Config)
	out := &AnalyzeOutput{Results: []Finding{}}
	add := func(f Finding) { out.Results = append(out.Results, f) }

	for _, loc := range providerAWSRe.FindAllStringIndex(src, -1) {
		body := block(src, loc[1]-1)
		if !regionRe.MatchString(body) {
			add(Finding{
				Severity:       SeverityWarning,
				Title:          "Missing AWS Region",
				Description:    "AWS provider is defined but no region is specified.",
				Recommendation: "Add a region parameter to the AWS provider block.",
				Line:           lineOf(src, loc[0]),
			})
		}
	}

	for _, m := range instanceRe.FindAllStringSubmatchIndex(src, -1) {
		name := src[m[2]:m[3]]
		body := block(src, m[1]-1)
		addr := "aws_instance." + name
		if !tagsRe.MatchString(body) {
			add(Finding{
				Severity:       SeverityWarning,
				Title:          "Missing Resource Tags",
				Description:    "EC2 instances should have tags for better resource management.",
				Recommendation: "Add tags to your EC2 instances including at minimum: Name, Environment, and Owner.",
				Resource:       addr,
				Line:           lineOf(src, m[0]),
			})
		}
		if microRe.MatchString(body) {
			add(Finding{
				Severity:       SeverityInfo,
				Title:          "Consider Instance Type",
				Description:    "You are using t2.micro which is suitable for development but may not be ideal for production workloads.",
				Recommendation: "For production, consider instance types with dedicated CPU (e.g., c5, m5) based on your workload requirements.",
				Resource:       addr,
				Line:           lineOf(src, m[0]),
			})
		}
	}

	openIngress := func(line int, resource string) {
		add(Finding{
			Severity:       SeverityError,
			Title:          "Unrestricted Ingress",
			Description:    "A security group rule allows inbound traffic from anywhere (0.0.0.0/0 or ::/0).",
			Recommendation: "Restrict access to specific IP ranges or security groups, especially for ports 22 (SSH), 3389 (RDP), and database ports.",
			Resource:       resource,
			Line:           line,
		})
	}
	for _, loc := range ingressBlockRe.FindAllStringIndex(src, -1) {
		if openCIDRRe.MatchString(block(src, loc[1]-1)) {
			openIngress(lineOf(src, loc[0]), "")
		}
	}
	for _, m := range ingressRuleRe.FindAllStringSubmatchIndex(src, -1) {
		body := block(src, m[1]-1)
		if openCIDRRe.MatchString(body) && !ruleTypeEgress.MatchString(body) {
			openIngress(lineOf(src, m[0]), src[m[2]:m[3]])
		}
	}

	for _, m := range credentialRe.FindAllStringSubmatchIndex(src, -1) {
		add(Finding{
			Severity:       SeverityError,
			Title:          "Hard-coded Credentials",
			Description:    fmt.Sprintf("The %s attribute is set to a literal value.", src[m[2]:m[3]]),
			Recommendation: "Use variables marked sensitive, environment credentials, or a secrets manager instead of literals.",
			Line:           lineOf(src, m[0]),
		})
	}
	if loc := accessKeyIDRe.FindStringIndex(src); loc != nil && len(credentialRe.FindAllString(src, -1)) == 0 {
		add(Finding{
			Severity:       SeverityError,
			Title:          "Hard-coded Credentials",
			Description:    "The configuration contains what looks like an AWS access key ID.",
			Recommendation: "Remove the key, rotate it, and rely on roles or environment credentials.",
			Line:           lineOf(src, loc[0]),
		})
	}
	return out, nil
}

// block returns the text between the brace at open and its match, or the
// rest of src when braces are unbalanced. Braces inside strings are counted
// too, which is good enough for the attribute checks above.
func block(src string, open int) string {
	depth := 0
	for i := open; i < len(src); i++ {
		switch src[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return src[open+1 : i]
			}
		}
	}
	return src[open+1:]
}

func lineOf(src string, offset int) int {
	return strings.Count(src[:offset], "\n") + 1
}

// stripComments blanks # and // line comments outside string literals so
// commented-out attributes are ignored. Offsets are preserved.
func stripComments(src string) string {
	b := []byte(src)
	inString := false
	for i := 0; i < len(b); i++ {
		switch c := b[i]; {
		case inString && c == '\\':
			i++
		case c == '"':
			inString = !inString
		case c == '\n':
			inString = false
		case !inString && (c == '#' || (c == '/' && i+1 < len(b) && b[i+1] == '/')):
			for ; i < len(b) && b[i] != '\n'; i++ {
				b[i] = ' '
			}
			i--
		}
	}
	return string(b)
}
