package freshness

import "github.com/cfmlabs/freshness-monitor/internal/models"

// Classify maps an age in days onto fresh, aging or stale.
// Ages below half the threshold are fresh; ties go to the older band.
func Classify(ageDays, threshold int) models.Band {
	if threshold < 1 {
		threshold = DefaultThresholdDays
	}
	switch {
	case 2*ageDays < threshold:
		return models.BandFresh
	case ageDays < threshold:
		return models.BandAging
	default:
		return models.BandStale
	}
}

// agingDays is the smallest whole-day age classified as aging or older
func agingDays(threshold int) int {
	return (threshold + 1) / 2
}

// StalePercent rounds stale/total to a whole percentage, 0 for an empty set
func StalePercent(stale, total int) int {
	if total <= 0 {
		return 0
	}
	return (stale*200 + total) / (2 * total)
}

// Health grades a snapshot. An empty site is vacuously fresh.
func Health(s models.StatsSnapshot) models.HealthScore {
	if s.Total == 0 {
		return grade(100)
	}
	return grade(100 - s.StalePercent)
}

func grade(score int) models.HealthScore {
	switch {
	case score >= 90:
		return models.HealthScore{Score: score, Grade: "A", Label: "Excellent", Class: "grade-a"}
	case score >= 80:
		return models.HealthScore{Score: score, Grade: "B", Label: "Good", Class: "grade-b"}
	case score >= 70:
		return models.HealthScore{Score: score, Grade: "C", Label: "Fair", Class: "grade-c"}
	case score >= 60:
		return models.HealthScore{Score: score, Grade: "D", Label: "Poor", Class: "grade-d"}
	default:
		return models.HealthScore{Score: score, Grade: "F", Label: "Critical", Class: "grade-f"}
	}
}
