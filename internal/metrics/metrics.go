package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 拉取指标
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "investigator_polls_total",
			Help: "Total number of polls issued, by result (record, empty, error)",
		},
		[]string{"topic", "result"},
	)

	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "investigator_poll_duration_seconds",
			Help:    "Poll duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 3, 5, 10, 30},
		},
	)

	RecordBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "investigator_record_bytes_total",
			Help: "Total key and value bytes of polled records",
		},
		[]string{"topic"},
	)

	// 提交指标
	CommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "investigator_commits_total",
			Help: "Total number of commits, by kind (record, assignment) and status",
		},
		[]string{"kind", "status"},
	)

	CommitRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "investigator_commit_retries_total",
			Help: "Total number of assignment commit retries after transient coordination errors",
		},
	)

	// Offset操作指标
	OffsetActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "investigator_offset_actions_total",
			Help: "Total number of assignment changes, by action and status",
		},
		[]string{"action", "status"},
	)

	// 导出与Schema查询
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "investigator_exports_total",
			Help: "Total number of exported records",
		},
		[]string{"status"},
	)

	SchemaLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "investigator_schema_lookups_total",
			Help: "Total number of schema registry lookups, by status (hit, fetched, error)",
		},
		[]string{"status"},
	)

	MenuActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "investigator_menu_actions_total",
			Help: "Total number of menu actions executed, by menu and action",
		},
		[]string{"menu", "action"},
	)
)

// Status 将错误转换为指标标签
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
