package port

// AuthMetrics records domain level counters for the session lifecycle.
type AuthMetrics interface {
	ObserveLogin(method, outcome string)
	ObserveRefresh(outcome string)
	ObserveRevocations(reason string, count int)
	ObserveAdmission(scope string, allowed bool)
}

// NopAuthMetrics discards every observation.
type NopAuthMetrics struct{}

func (NopAuthMetrics) ObserveLogin(string, string)   {}
func (NopAuthMetrics) ObserveRefresh(string)         {}
func (NopAuthMetrics) ObserveRevocations(string, int) {}
func (NopAuthMetrics) ObserveAdmission(string, bool) {}
