/*
Package monitoring provides Prometheus-based metrics collection.

# Overview

This package tracks HTTP requests, storage backend operations, and sandbox
executions for the agentfs service.

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Time backend operations
	timer := monitoring.NewTimer(metrics, "disk", "write")
	// ... perform operation ...
	timer.Stop("success")

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
