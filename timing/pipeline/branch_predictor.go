package pipeline

import "fmt"

// Predictor guesses conditional branch directions at fetch and learns the
// actual outcome at commit.
type Predictor interface {
	// Predict returns whether the branch at pc is expected to be taken.
	Predict(pc uint32) bool

	// Feedback reports the resolved direction of the branch at pc.
	Feedback(pc uint32, taken bool)
}

// BranchPredictorConfig holds configuration for the branch predictor.
type BranchPredictorConfig struct {
	// BHTSize is the number of entries in the Branch History Table.
	// Must be a power of 2. Default is 1024.
	BHTSize uint32
}

// DefaultBranchPredictorConfig returns a default configuration.
func DefaultBranchPredictorConfig() BranchPredictorConfig {
	return BranchPredictorConfig{
		BHTSize: 1024,
	}
}

// BranchPredictorStats holds statistics for the branch predictor.
type BranchPredictorStats struct {
	// Predictions is the total number of branch predictions made.
	Predictions uint64
	// Correct is the number of correct predictions.
	Correct uint64
	// Mispredictions is the number of incorrect predictions.
	Mispredictions uint64
}

// Accuracy returns the prediction accuracy as a percentage.
func (s BranchPredictorStats) Accuracy() float64 {
	total := s.Correct + s.Mispredictions
	if total == 0 {
		return 0
	}
	return float64(s.Correct) / float64(total) * 100
}

// MispredictionRate returns the misprediction rate as a percentage.
func (s BranchPredictorStats) MispredictionRate() float64 {
	total := s.Correct + s.Mispredictions
	if total == 0 {
		return 0
	}
	return float64(s.Mispredictions) / float64(total) * 100
}

// BranchPredictor implements a 2-bit saturating counter (bimodal) predictor.
// Branch targets are PC-relative and known at fetch, so no target buffer is
// kept.
type BranchPredictor struct {
	// Branch History Table (BHT) - 2-bit saturating counters
	// States: 0=Strongly Not Taken, 1=Weakly Not Taken,
	//         2=Weakly Taken, 3=Strongly Taken
	bht []uint8

	bhtSize uint32

	stats BranchPredictorStats
}

// NewBranchPredictor creates a new branch predictor with the given configuration.
func NewBranchPredictor(config BranchPredictorConfig) *BranchPredictor {
	bhtSize := config.BHTSize
	if bhtSize == 0 {
		bhtSize = 1024
	}

	bp := &BranchPredictor{
		bht:     make([]uint8, bhtSize),
		bhtSize: bhtSize,
	}
	bp.Reset()

	return bp
}

// bhtIndex uses the low pc bits above the alignment bits.
func (bp *BranchPredictor) bhtIndex(pc uint32) uint32 {
	return (pc >> 2) & (bp.bhtSize - 1)
}

// Predict makes a branch prediction for the given PC.
func (bp *BranchPredictor) Predict(pc uint32) bool {
	bp.stats.Predictions++
	return bp.bht[bp.bhtIndex(pc)] >= 2
}

// Feedback updates the counter for pc with the actual outcome.
func (bp *BranchPredictor) Feedback(pc uint32, taken bool) {
	idx := bp.bhtIndex(pc)
	counter := bp.bht[idx]

	if (counter >= 2) == taken {
		bp.stats.Correct++
	} else {
		bp.stats.Mispredictions++
	}

	if taken {
		if counter < 3 {
			bp.bht[idx] = counter + 1
		}
	} else if counter > 0 {
		bp.bht[idx] = counter - 1
	}
}

// Stats returns the branch predictor statistics.
func (bp *BranchPredictor) Stats() BranchPredictorStats {
	return bp.stats
}

// Reset clears all predictor state and statistics. Counters restart weakly
// taken.
func (bp *BranchPredictor) Reset() {
	for i := range bp.bht {
		bp.bht[i] = 2
	}
	bp.stats = BranchPredictorStats{}
}

// StaticPredictor always predicts the same direction.
type StaticPredictor struct {
	Taken bool
}

// NewAlwaysTaken returns a predictor that predicts every branch taken.
func NewAlwaysTaken() *StaticPredictor { return &StaticPredictor{Taken: true} }

// NewNeverTaken returns a predictor that predicts every branch not taken.
func NewNeverTaken() *StaticPredictor { return &StaticPredictor{Taken: false} }

// Predict returns the fixed direction.
func (s *StaticPredictor) Predict(uint32) bool { return s.Taken }

// Feedback is a no-op.
func (s *StaticPredictor) Feedback(uint32, bool) {}

// NewPredictor builds a predictor by name: "bimodal", "taken" or
// "not-taken".
func NewPredictor(name string) (Predictor, error) {
	switch name {
	case "", "bimodal":
		return NewBranchPredictor(DefaultBranchPredictorConfig()), nil
	case "taken":
		return NewAlwaysTaken(), nil
	case "not-taken":
		return NewNeverTaken(), nil
	default:
		return nil, fmt.Errorf("unknown predictor %q", name)
	}
}
