package telemetry

// MetricDefinition documents one metric a package emits, purely for
// self-description — packages call DeclareMetrics in their init() so the
// full instrumentation surface is discoverable by grepping for the call,
// the way orchestration/instrumentation.go enumerates workflow.*/executor.*
// metrics up front instead of scattering ad hoc names through the code.
type MetricDefinition struct {
	Name        string
	Description string
	Kind        string // "counter" | "histogram" | "gauge"
	Unit        string
}

// ModuleConfig groups a package's metric declarations under a module name.
type ModuleConfig struct {
	Metrics []MetricDefinition
}

var declared = struct {
	modules map[string]ModuleConfig
}{modules: make(map[string]ModuleConfig)}

// DeclareMetrics registers a module's metric set for documentation/startup
// validation purposes. It performs no I/O; the instruments themselves are
// created lazily on first use by Counter/Histogram/Gauge.
func DeclareMetrics(module string, cfg ModuleConfig) {
	declared.modules[module] = cfg
}

// DeclaredModules returns the modules registered so far, for tests and
// startup diagnostics that want to confirm every component instrumented
// itself.
func DeclaredModules() []string {
	names := make([]string, 0, len(declared.modules))
	for name := range declared.modules {
		names = append(names, name)
	}
	return names
}
