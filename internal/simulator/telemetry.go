package simulator

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const randomFloatDivisor = 1000000

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// flight is the state of one drone between batches.
type flight struct {
	drone   string
	x, y, z float64
	yaw     float64
	battery float64
}

func newFlight(droneID string) *flight {
	return &flight{
		drone:   droneID,
		x:       getRandomFloat() * fieldLength,
		y:       getRandomFloat() * fieldWidth,
		z:       1 + getRandomFloat()*(ceiling-1),
		battery: fullBattery,
	}
}

// step moves the drone by a bounded random walk and drains its battery.
func (f *flight) step(at time.Time) Sample {
	f.x = clamp(f.x+(getRandomFloat()*2-1)*stepSize, 0, fieldLength)
	f.y = clamp(f.y+(getRandomFloat()*2-1)*stepSize, 0, fieldWidth)
	f.z = clamp(f.z+(getRandomFloat()*2-1)*stepSize/2, 0, ceiling)
	f.yaw = math.Mod(f.yaw+(getRandomFloat()*2-1)*maxTilt+360, 360)
	f.battery = math.Max(0, f.battery-batteryDrain)
	return Sample{
		Timestamp: at.UnixMilli(),
		X:         f.x,
		Y:         f.y,
		Z:         f.z,
		Pitch:     (getRandomFloat()*2 - 1) * maxTilt,
		Roll:      (getRandomFloat()*2 - 1) * maxTilt,
		Yaw:       f.yaw,
		Battery:   f.battery,
	}
}

// batch builds a batch of n samples spread evenly over interval ending at now.
func (f *flight) batch(matchID string, round, n int, now time.Time, interval time.Duration) Batch {
	if n < 1 {
		n = 1
	}
	samples := make([]Sample, n)
	gap := interval / time.Duration(n)
	for i := range samples {
		samples[i] = f.step(now.Add(-gap * time.Duration(n-1-i)))
	}
	return Batch{
		BatchID:     uuid.NewString(),
		MatchID:     matchID,
		RoundNumber: round,
		DroneID:     f.drone,
		Samples:     samples,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
