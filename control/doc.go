// File: control/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package control exposes runtime telemetry of endpoints: Prometheus
// collectors for session and traffic counters and a registry of debug state reporters
// whose output is collected into state dumps.
package control
