package model

// InfrastructureFeature is an OSM element flattened to its coordinates.
// A node has one point, a way has one point per member node in order.
type InfrastructureFeature struct {
	ID     int64             `json:"id"`
	Type   string            `json:"type"`
	Tags   map[string]string `json:"tags"`
	Points []Point           `json:"points"`
}

// IsLine reports whether the feature should be measured segment by segment.
func (f InfrastructureFeature) IsLine() bool {
	return len(f.Points) > 1
}
