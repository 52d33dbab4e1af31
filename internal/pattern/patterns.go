// Package pattern holds the static signature set used by the injection and
// anomaly detectors. All expressions are compiled once at init and are safe
// for concurrent matching.
package pattern

import "regexp"

// Signature pairs a stable name with a compiled expression. The name is
// what ends up in the emitted event's evidence.
type Signature struct {
	Name string
	Expr *regexp.Regexp
}

// Injection signatures, checked in order; the first match wins.
var injectionSignatures = []Signature{
	{
		Name: "sql_injection",
		Expr: regexp.MustCompile(`(?i)(\b(union|select|insert|update|delete|drop|alter|exec|execute)\b[\s\S]{0,40}\b(from|into|table|where|database)\b|'\s*(or|and)\s+['\d]|'\s*or\s+1\s*=\s*1|--\s|/\*|\bxp_cmdshell\b)`),
	},
	{
		Name: "xss",
		Expr: regexp.MustCompile(`(?i)(<\s*script|javascript\s*:|on(error|load|click|mouseover|focus)\s*=|<\s*iframe|document\.(cookie|location)|alert\s*\()`),
	},
	{
		Name: "command_injection",
		Expr: regexp.MustCompile(`(?i)([;&|` + "`" + `]\s*(cat|ls|pwd|whoami|id|uname|curl|wget|nc|bash|sh|cmd|powershell)\b|\$\((cat|ls|whoami|id|curl|wget)\b)`),
	},
	{
		Name: "path_traversal",
		Expr: regexp.MustCompile(`(?i)(\.\./|\.\.\\|%2e%2e%2f|%2e%2e/|\.\.%2f|%252e%252e%252f)`),
	},
	{
		Name: "ldap_injection",
		Expr: regexp.MustCompile(`(?i)(\*\)\s*\(|\)\s*\(\||\(\s*[&|]\s*\(|[()|&*]\s*(objectclass|uid|cn)\s*=)`),
	},
}

// User-agent signatures for automation tooling and attack scanners.
var userAgentSignatures = []Signature{
	{Name: "automation_tool", Expr: regexp.MustCompile(`(?i)(curl|wget|python|go-http|java)`)},
	{Name: "crawler", Expr: regexp.MustCompile(`(?i)(bot|crawler|spider|scraper)`)},
	{Name: "scanner", Expr: regexp.MustCompile(`(?i)(scanner|exploit|attack)`)},
}

// MatchInjection tests content against every injection signature and
// returns the name of the first one that matches.
func MatchInjection(content string) (string, bool) {
	for _, sig := range injectionSignatures {
		if sig.Expr.MatchString(content) {
			return sig.Name, true
		}
	}
	return "", false
}

// MatchUserAgent tests a user-agent string against the automation and
// scanner signatures.
func MatchUserAgent(ua string) (string, bool) {
	for _, sig := range userAgentSignatures {
		if sig.Expr.MatchString(ua) {
			return sig.Name, true
		}
	}
	return "", false
}
