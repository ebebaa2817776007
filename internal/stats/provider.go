// Package stats supplies the numeric stat axes the scoring pipeline reads.
// The engine treats stat computation as an external collaborator: a
// Provider is optional, and a missing provider or missing axis always
// degrades to neutral scoring.
package stats

// Provider returns a snapshot of stat axes for one agent at a point in
// world time. Implementations must tolerate unknown ids and return nil
// rather than erroring.
type Provider interface {
	Axes(worldID, sessionID, agentID string, worldTime float64) map[string]float64
}

// Merge layers axis maps, later maps overriding earlier ones. Nil maps
// are skipped.
func Merge(layers ...map[string]float64) map[string]float64 {
	out := make(map[string]float64)
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

// Multi fans one Axes call out to several providers, merging in order.
type Multi []Provider

// Axes implements Provider.
func (m Multi) Axes(worldID, sessionID, agentID string, worldTime float64) map[string]float64 {
	var layers []map[string]float64
	for _, p := range m {
		if p == nil {
			continue
		}
		layers = append(layers, p.Axes(worldID, sessionID, agentID, worldTime))
	}
	return Merge(layers...)
}
