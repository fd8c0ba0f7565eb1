package partition

// Recorder is an optional metrics hook a Directory reports liveness
// transitions to. The metrics package supplies a Prometheus-backed
// implementation; tests and simple deployments can leave it unset and get
// the no-op default.
type Recorder interface {
	PartitionDead(id string)
	PartitionAlive(id string)
}

type noopRecorder struct{}

func (noopRecorder) PartitionDead(string)  {}
func (noopRecorder) PartitionAlive(string) {}
