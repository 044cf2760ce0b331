// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime control surface of a dispatcher: effective configuration with
// reload listeners, a metrics map, named debug probes and a Prometheus
// collector over work queue counters.
package control
