// Package metrics exports gate and mailbox activity as Prometheus metrics.
//
// A [Collector] subscribes to the event bus and turns gate and mailbox events
// into counters and histograms. Gauges for the live holder and waiter count
// are read straight from the gate at scrape time.
//
// # Exported Metrics
//
//   - sleepgate_gate_acquired_total{mode}
//   - sleepgate_gate_busy_total
//   - sleepgate_gate_cancelled_total{reason}
//   - sleepgate_gate_released_total
//   - sleepgate_gate_wait_seconds, sleepgate_gate_hold_seconds
//   - sleepgate_gate_held, sleepgate_gate_waiters
//   - sleepgate_mailbox_written_bytes_total, sleepgate_mailbox_truncated_writes_total
//   - sleepgate_mailbox_reads_total{result}
package metrics
