package forecast

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnknownScenario is returned for a scenario name outside the closed set
var ErrUnknownScenario = errors.New("unknown scenario")

// Scenario projects an exogenous covariate from its last known value
type Scenario string

const (
	// ScenarioConstant holds every covariate at its last known value
	ScenarioConstant Scenario = "constant"
	// ScenarioGrowth compounds covariates upward by the configured rate per year
	ScenarioGrowth Scenario = "growth"
	// ScenarioDecay compounds covariates downward by the configured rate per year
	ScenarioDecay Scenario = "decay"
)

// Scenarios lists the available scenarios in display order
func Scenarios() []Scenario {
	return []Scenario{ScenarioConstant, ScenarioGrowth, ScenarioDecay}
}

// Project returns the covariate value k steps after the last known value v
func (s Scenario) Project(v, rate float64, k int) float64 {
	switch s {
	case ScenarioGrowth:
		return v * math.Pow(1+rate, float64(k))
	case ScenarioDecay:
		return v * math.Pow(1-rate, float64(k))
	default:
		return v
	}
}

// DisplayName returns the label shown to users, e.g. "+2%/Jahr"
func (s Scenario) DisplayName(rate float64) string {
	pct := strconv.FormatFloat(rate*100, 'f', -1, 64)

	switch s {
	case ScenarioGrowth:
		return "+" + pct + "%/Jahr"
	case ScenarioDecay:
		return "-" + pct + "%/Jahr"
	default:
		return "Konstant (letzte Werte)"
	}
}

// ParseScenario accepts a short name, or the display name a scenario has at
// rate. A display name for any other rate is rejected. An empty name means constant.
func ParseScenario(name string, rate float64) (Scenario, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return ScenarioConstant, nil
	}

	for _, s := range Scenarios() {
		if n == string(s) || n == strings.ToLower(s.DisplayName(rate)) {
			return s, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownScenario, name)
}
