package broadcast

// ActiveCounter reports how many jobs are currently live.
type ActiveCounter interface {
	Active() int
}

// AdmissionGuard caps new job starts. It reads the count without holding any
// lock across the subsequent start, so concurrent starts may overshoot the
// ceiling by the number of racing callers. Running jobs are never touched.
type AdmissionGuard struct {
	ceiling int
	counter ActiveCounter
}

// NewAdmissionGuard returns a guard; ceiling <= 0 admits everything.
func NewAdmissionGuard(ceiling int, counter ActiveCounter) *AdmissionGuard {
	return &AdmissionGuard{ceiling: ceiling, counter: counter}
}

func (g *AdmissionGuard) Admit() error {
	if g == nil || g.ceiling <= 0 || g.counter == nil {
		return nil
	}
	if g.counter.Active() >= g.ceiling {
		return ErrRejected
	}
	return nil
}

func (g *AdmissionGuard) Ceiling() int {
	if g == nil {
		return 0
	}
	return g.ceiling
}
