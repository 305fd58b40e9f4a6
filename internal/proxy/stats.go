package proxy

import "time"

// Stats counts liveness probe results for one endpoint. Not safe for concurrent use.
type Stats struct {
	Probes    int
	Successes int
	Failures  int
	LastProbe time.Time
}

func (s *Stats) Record(ok bool) {
	s.Probes++
	if ok {
		s.Successes++
	} else {
		s.Failures++
	}
	s.LastProbe = time.Now()
}

func (s *Stats) SuccessRate() float64 {
	if s.Probes == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Probes)
}
