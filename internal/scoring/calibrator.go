package scoring

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Rating is a coarse risk tier. Tiers are ordered from the lowest score band upwards.
type Rating string

// RatingTier is the lowest score that earns Rating.
type RatingTier struct {
	Rating   Rating `json:"rating" yaml:"rating" mapstructure:"rating"`
	MinScore int    `json:"minScore" yaml:"min_score" mapstructure:"min_score"`
}

// Calibration maps probabilities onto the score scale [BaseScore, BaseScore+ScoreRange].
type Calibration struct {
	BaseScore  int          `json:"baseScore" yaml:"base_score" mapstructure:"base_score"`
	ScoreRange int          `json:"scoreRange" yaml:"score_range" mapstructure:"score_range"`
	Tiers      []RatingTier `json:"tiers" yaml:"tiers" mapstructure:"tiers"`
}

// IsZero reports whether no calibration was supplied.
func (c Calibration) IsZero() bool {
	return c.BaseScore == 0 && c.ScoreRange == 0 && len(c.Tiers) == 0
}

// Calibrator converts a default probability into a credit score and rating.
type Calibrator struct {
	base  int
	span  int
	tiers []RatingTier
	id    string
}

// NewCalibrator validates c. The first tier must start at BaseScore and minimums must be
// strictly ascending inside the scale, so every score falls into exactly one tier.
func NewCalibrator(c Calibration) (*Calibrator, error) {
	if c.IsZero() {
		return nil, fmt.Errorf("%w: calibration is absent", ErrModelArtifactMissing)
	}
	if c.ScoreRange <= 0 {
		return nil, fmt.Errorf("%w: score range must be positive, got %d", ErrModelArtifactCorrupt, c.ScoreRange)
	}
	if len(c.Tiers) == 0 {
		return nil, fmt.Errorf("%w: no rating tiers", ErrModelArtifactMissing)
	}
	if c.Tiers[0].MinScore != c.BaseScore {
		return nil, fmt.Errorf("%w: first tier starts at %d, scale starts at %d", ErrModelArtifactCorrupt, c.Tiers[0].MinScore, c.BaseScore)
	}

	max := c.BaseScore + c.ScoreRange
	names := make(map[Rating]bool, len(c.Tiers))
	for i, t := range c.Tiers {
		if t.Rating == "" || names[t.Rating] {
			return nil, fmt.Errorf("%w: tier %d has empty or duplicate rating %q", ErrModelArtifactCorrupt, i, t.Rating)
		}
		names[t.Rating] = true
		if t.MinScore > max {
			return nil, fmt.Errorf("%w: tier %q starts above the scale maximum %d", ErrModelArtifactCorrupt, t.Rating, max)
		}
		if i > 0 && t.MinScore <= c.Tiers[i-1].MinScore {
			return nil, fmt.Errorf("%w: tier %q does not start above tier %q", ErrModelArtifactCorrupt, t.Rating, c.Tiers[i-1].Rating)
		}
	}

	return &Calibrator{
		base:  c.BaseScore,
		span:  c.ScoreRange,
		tiers: append([]RatingTier(nil), c.Tiers...),
		id:    calibrationID(c),
	}, nil
}

// calibrationID hashes the scale and tiers. Calibrators with equal constants share an id.
func calibrationID(c Calibration) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(c.BaseScore))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(c.ScoreRange))
	for _, t := range c.Tiers {
		b.WriteByte('|')
		b.WriteString(string(t.Rating))
		b.WriteByte('=')
		b.WriteString(strconv.Itoa(t.MinScore))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}

// ID identifies the calibration constants.
func (c *Calibrator) ID() string { return c.id }

// MinScore is the lowest score on the scale.
func (c *Calibrator) MinScore() int { return c.base }

// MaxScore is the highest score on the scale.
func (c *Calibrator) MaxScore() int { return c.base + c.span }

// Tiers returns the rating tiers in ascending order.
func (c *Calibrator) Tiers() []RatingTier {
	return append([]RatingTier(nil), c.tiers...)
}

// CreditScore returns round(base + (1-p) * range). p must be a probability.
func (c *Calibrator) CreditScore(p float64) (int, error) {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("%w: probability %v outside [0,1]", ErrModelOutput, p)
	}
	return int(math.Round(float64(c.base) + (1-p)*float64(c.span))), nil
}

// Rate returns the tier containing score.
func (c *Calibrator) Rate(score int) (Rating, error) {
	if score < c.MinScore() || score > c.MaxScore() {
		return "", fmt.Errorf("%w: score %d outside [%d,%d]", ErrInputOutOfRange, score, c.MinScore(), c.MaxScore())
	}
	rating := c.tiers[0].Rating
	for _, t := range c.tiers[1:] {
		if score < t.MinScore {
			break
		}
		rating = t.Rating
	}
	return rating, nil
}

// Calibrate returns the score and rating for p.
func (c *Calibrator) Calibrate(p float64) (int, Rating, error) {
	score, err := c.CreditScore(p)
	if err != nil {
		return 0, "", err
	}
	rating, err := c.Rate(score)
	if err != nil {
		return 0, "", err
	}
	return score, rating, nil
}
