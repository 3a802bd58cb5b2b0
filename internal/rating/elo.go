// Package rating implements the Elo update applied after each pairwise
// song comparison.
package rating

import "math"

// Default is the rating assigned to a song before it has been compared.
const Default = 1500

// KFactor is the maximum rating swing a single comparison can produce.
// It is fixed; the service does not support per-song K values.
const KFactor = 32

// spread controls how strongly a rating gap translates into an expected
// score. With 400, a song rated 400 points above its opponent is expected
// to win ten times as often.
const spread = 400.0

// Normalize maps an unset or invalid stored rating to Default.
// A non-positive value only occurs for rows predating the column default.
func Normalize(r int) int {
	if r <= 0 {
		return Default
	}
	return r
}

// expectedScore returns the probability, in [0,1], that a side rated a
// beats a side rated b under the logistic model.
func expectedScore(a, b int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(b-a)/spread))
}

// Update computes new ratings after the winner side beats the loser side.
// Both inputs are normalized first. Each side's delta is K*(actual-expected)
// with actual 1 for the winner and 0 for the loser. Results are rounded
// half away from zero (math.Round), so Update(1500, 1500) = (1516, 1484).
func Update(winner, loser int) (newWinner, newLoser int) {
	winner = Normalize(winner)
	loser = Normalize(loser)

	newWinner = winner + int(math.Round(KFactor*(1.0-expectedScore(winner, loser))))
	newLoser = loser + int(math.Round(KFactor*(0.0-expectedScore(loser, winner))))
	return newWinner, newLoser
}
