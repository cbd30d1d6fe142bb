// Package monitoring provides Prometheus metrics for the kernel core.
//
// Each Kernel instance owns its own registry, so multiple kernels (and
// parallel tests) never collide on metric registration. Metrics cover
// object and handle population, channel traffic, port packet flow, and
// blocking-wait outcomes.
package monitoring
