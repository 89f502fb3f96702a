package registry

import (
	"fmt"
	"sync"

	"github.com/efreitasn/orderledger/internal/domain"
)

// RiskCheck is a pluggable predicate gating order admission. It reports
// whether the order passes and, if not, a human-readable reason.
type RiskCheck func(o *domain.Order) (ok bool, reason string)

type namedCheck struct {
	name  string
	check RiskCheck
}

// riskPipeline holds the ordered list of registered risk checks.
type riskPipeline struct {
	mu     sync.RWMutex
	checks []namedCheck
}

func newRiskPipeline() *riskPipeline {
	return &riskPipeline{}
}

// Register appends a check to the pipeline. Checks run in registration
// order.
func (p *riskPipeline) Register(name string, check RiskCheck) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks = append(p.checks, namedCheck{name: name, check: check})
}

// Evaluate runs every registered check against the order and returns
// the aggregated failure reasons. All checks run — there is no
// short-circuit — so the caller sees every reason at once. Each check
// receives its own snapshot, and a panicking check counts as a failure
// with a synthesized reason instead of crashing the pipeline.
func (p *riskPipeline) Evaluate(o *domain.Order) []string {
	p.mu.RLock()
	checks := make([]namedCheck, len(p.checks))
	copy(checks, p.checks)
	p.mu.RUnlock()

	var reasons []string
	for _, nc := range checks {
		ok, reason := runCheck(nc, o.Clone())
		if !ok {
			if reason == "" {
				reason = fmt.Sprintf("rejected by %s", nc.name)
			}
			reasons = append(reasons, reason)
		}
	}
	return reasons
}

func runCheck(nc namedCheck, o *domain.Order) (ok bool, reason string) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			reason = fmt.Sprintf("risk check %q panicked: %v", nc.name, r)
		}
	}()
	return nc.check(o)
}
