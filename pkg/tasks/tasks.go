// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// IngestionTask represents one on-demand re-ingestion job.
// SnapshotObject 指向 MinIO 中的快照对象，一次摄取只读这一份字节。
type IngestionTask struct {
	SnapshotObject string `json:"snapshot_object"`
	TriggeredBy    string `json:"triggered_by"`
	RequestedAt    int64  `json:"requested_at"`
}
