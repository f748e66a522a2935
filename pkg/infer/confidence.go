package infer

// ConfidenceScore records how well supported one inferred path is.
type ConfidenceScore struct {
	// Score is the overall confidence in [0, 1].
	Score float64 `json:"score"`

	// SampleCount is the number of exchanges behind the path.
	SampleCount int `json:"sampleCount"`

	// Reason summarizes the contributing factors.
	Reason string `json:"reason"`
}

// scoreCluster computes the confidence for one cluster:
//
//	confidence = clamp01(0.4*example_ratio + 0.3*consistency + 0.3*body_score)
//
// where example_ratio is the cluster's share of all samples, consistency is
// 1.0 for at most two distinct status codes (0.7 otherwise), and body_score
// is 1.0 when any exchange carries a body (0.5 otherwise).
func scoreCluster(c *cluster, totalSamples int) ConfidenceScore {
	if totalSamples == 0 || len(c.exchanges) == 0 {
		return ConfidenceScore{Reason: "no samples"}
	}

	exampleRatio := float64(len(c.exchanges)) / float64(totalSamples)

	statuses := make(map[int]bool)
	hasBody := false
	for _, ex := range c.exchanges {
		statuses[ex.Status] = true
		if len(ex.RequestBody) > 0 || len(ex.ResponseBody) > 0 {
			hasBody = true
		}
	}

	consistency := 1.0
	if len(statuses) > 2 {
		consistency = 0.7
	}
	bodyScore := 0.5
	if hasBody {
		bodyScore = 1.0
	}

	score := 0.4*exampleRatio + 0.3*consistency + 0.3*bodyScore
	if score > 1.0 {
		score = 1.0
	}
	if score < 0 {
		score = 0
	}

	return ConfidenceScore{
		Score:       score,
		SampleCount: len(c.exchanges),
		Reason:      reasonString(exampleRatio, consistency, bodyScore),
	}
}

func reasonString(exampleRatio, consistency, bodyScore float64) string {
	switch {
	case exampleRatio >= 0.5 && consistency == 1.0 && bodyScore == 1.0:
		return "well supported: many samples, consistent statuses, bodies observed"
	case consistency < 1.0:
		return "status codes vary widely across samples"
	case bodyScore < 1.0:
		return "no bodies observed"
	default:
		return "supported by a minority of samples"
	}
}
