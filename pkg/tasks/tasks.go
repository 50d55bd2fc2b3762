// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// IndexingTask represents an indexing job for one corpus object.
type IndexingTask struct {
	ObjectName  string `json:"object_name"`
	ObjectMD5   string `json:"object_md5"`
	RequestedBy uint   `json:"requested_by"`
	Reindex     bool   `json:"reindex"`
}
