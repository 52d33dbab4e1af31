package event

import "security-monitor/internal/model"

// Base risk per event kind. Kinds without an entry score 1.0.
var baseRisk = map[model.EventKind]float64{
	model.KindAuthFailure:         3.0,
	model.KindBruteForceAttempt:   8.0,
	model.KindInjectionAttempt:    9.0,
	model.KindPrivilegeEscalation: 9.5,
	model.KindSuspiciousActivity:  5.0,
	model.KindAPIAbuse:            6.0,
}

var severityMultiplier = map[model.Severity]float64{
	model.SeverityLow:      0.5,
	model.SeverityMedium:   1.0,
	model.SeverityHigh:     1.5,
	model.SeverityCritical: 2.0,
}

// RiskScore maps (kind, severity) to a score clamped to [0, 10]. Pure
// function, no request context involved.
func RiskScore(kind model.EventKind, severity model.Severity) float64 {
	base, ok := baseRisk[kind]
	if !ok {
		base = 1.0
	}
	mult, ok := severityMultiplier[severity]
	if !ok {
		mult = 1.0
	}
	score := base * mult
	if score > 10.0 {
		return 10.0
	}
	if score < 0 {
		return 0
	}
	return score
}
