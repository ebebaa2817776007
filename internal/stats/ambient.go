package stats

import (
	"hash/fnv"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Ambient derives slow-varying environmental axes (weather quality and
// ambient energy) from smooth noise over world time. Deterministic for a
// given seed, so a world's weather replays identically after a restart to
// the same checkpointed time.
type Ambient struct {
	noise opensimplex.Noise
}

// NewAmbient creates an ambient provider seeded per deployment.
func NewAmbient(seed int64) *Ambient {
	return &Ambient{noise: opensimplex.NewNormalized(seed)}
}

// Axis names produced by the ambient provider.
const (
	AxisWeather       = "weather"        // 0 (storm) … 1 (clear)
	AxisAmbientEnergy = "ambient_energy" // 0 (torpid) … 1 (charged)
)

// Axes implements Provider. Each world samples a distinct noise lane so
// worlds sharing a process get independent weather.
func (a *Ambient) Axes(worldID, sessionID, agentID string, worldTime float64) map[string]float64 {
	if a == nil {
		return nil
	}
	lane := float64(worldLane(worldID))
	day := worldTime / 86400
	return map[string]float64{
		AxisWeather:       a.noise.Eval2(day*0.7, lane),
		AxisAmbientEnergy: a.noise.Eval2(day*2.3, lane+0.5),
	}
}

func worldLane(worldID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(worldID))
	return h.Sum32() % 4096
}
