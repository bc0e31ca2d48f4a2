package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistry_CounterHistogramGaugeDoNotPanic(t *testing.T) {
	r := NewRegistry()
	r.Counter("scheduler.ticks", "plan_id", "p1")
	r.Histogram("executor.duration_ms", 12.5, "tool", "read_file")
	r.Gauge("scheduler.ready_steps", 3, "plan_id", "p1")
	r.Duration("executor.total_ms", time.Now().Add(-5*time.Millisecond))
}

func TestDeclareMetrics_RegistersModule(t *testing.T) {
	DeclareMetrics("scheduler_test_module", ModuleConfig{
		Metrics: []MetricDefinition{{Name: "scheduler.ticks", Kind: "counter"}},
	})
	require.Contains(t, DeclaredModules(), "scheduler_test_module")
}

func TestTimeOperation_RecordsOnInvocation(t *testing.T) {
	stop := TimeOperation("test.operation.duration_ms")
	stop()
}
