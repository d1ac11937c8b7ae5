/*
Package monitoring provides Prometheus metrics for the terminal backend.

# Overview

Metrics covers HTTP traffic, terminal session lifecycle, relayed output,
usage capture and WebSocket fan-out. Its methods satisfy the recorder
interfaces declared by the terminal, scraper and ws packages, so the
domain never imports Prometheus directly.

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
*/
package monitoring
