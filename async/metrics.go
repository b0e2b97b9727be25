package async

import (
	"github.com/VictoriaMetrics/metrics"
)

// Execution counters, exposed through the VictoriaMetrics push/pull
// endpoints of the embedding application.
var (
	metricCommandsCompleted = metrics.NewCounter(`nimbus_commands_completed_total`)
	metricCommandsFailed    = metrics.NewCounter(`nimbus_commands_failed_total`)
	metricCommandsRejected  = metrics.NewCounter(`nimbus_commands_rejected_total`)
	metricCommandRetries    = metrics.NewCounter(`nimbus_command_retries_total`)
	metricBufferRegrows     = metrics.NewCounter(`nimbus_buffer_regrows_total`)
)
