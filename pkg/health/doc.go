/*
Package health probes the external allow-list service.

Submissions to the allow-list service happen only when an operator promotes
hosts, so an outage would otherwise go unnoticed until then. Monitor dials
the service's TCP endpoint on an interval and publishes the result as the
"proxy" component in the metrics health registry. A dependency is marked down
only after Retries consecutive failures.

	checker, _ := health.NewEndpointChecker("http://127.0.0.1:9099/add-domain")
	m := health.NewMonitor(metrics.ComponentProxy, checker, health.DefaultConfig())
	m.Start()
	defer m.Stop()
*/
package health
