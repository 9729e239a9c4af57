package room

import "time"

// EstimatePosition extrapolates the playback position at now from the last
// anchored snapshot. While playing the elapsed wall time since the anchor is
// added; paused rooms stay at the snapshot. Negative elapsed (anchor stamped
// ahead of now) is clamped to zero rather than rewinding.
func EstimatePosition(lastKnownTime float64, updatedAt time.Time, playing bool, now time.Time) float64 {
	if !playing {
		return lastKnownTime
	}
	elapsed := now.Sub(updatedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return lastKnownTime + elapsed
}
