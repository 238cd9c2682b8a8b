package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricNotificationEmitted = "ShutdownWarningEmitted"
	MetricDeliveryAttempt     = "DeliveryAttempt"
	MetricDeliveryDropped     = "DeliveryDropped"

	// Dimension Keys
	DimThreshold = "Threshold"
	DimSink      = "Sink"
	DimResult    = "Result"

	// Metric Namespace
	MetricNamespace = "AutoShutdown"
)
