package quiz

const basePoints = 100
const speedBonusPerSecond = 2

// Score awards points for a single submission. A correct answer is worth
// basePoints plus a speed bonus proportional to the time left on the clock;
// a wrong answer is worth nothing. timeRemainingSec comes from the client
// and is clamped into [0, maxTimeSec] so it can never inflate the bonus.
func Score(q Question, submitted string, timeRemainingSec, maxTimeSec int) int {
	if submitted != q.Answer {
		return 0
	}
	return basePoints + speedBonusPerSecond*clamp(timeRemainingSec, 0, maxTimeSec)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
