package domain

import "time"

// AdapterOutcome records how one retrieval strategy behaved during a fusion pass.
type AdapterOutcome struct {
	Adapter  string
	Results  int
	Err      error
	Duration time.Duration
}

func (o AdapterOutcome) Failed() bool {
	return o.Err != nil
}

type FusionReport struct {
	CoreDocuments int
	Outcomes      []AdapterOutcome
	Fused         int
}

// AllAdaptersFailed is true only when at least one adapter ran and none succeeded.
func (r FusionReport) AllAdaptersFailed() bool {
	if len(r.Outcomes) == 0 {
		return false
	}
	for _, o := range r.Outcomes {
		if !o.Failed() {
			return false
		}
	}
	return true
}

func (r FusionReport) FailedAdapters() []string {
	out := make([]string, 0)
	for _, o := range r.Outcomes {
		if o.Failed() {
			out = append(out, o.Adapter)
		}
	}
	return out
}
