package workflow

import (
	"embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/neurobridge-coursegen/internal/contextasm"
	"github.com/yungbote/neurobridge-coursegen/internal/course"
)

const policyEnv = "COURSEGEN_POLICY_YAML"

//go:embed policy.yaml
var policyFS embed.FS

// Policy holds the refinement loop thresholds and the context-window sizes agents use.
type Policy struct {
	QualityThreshold float64
	MaxIterations    int
	LowScoreCutoff   float64
	Context          contextasm.Options
	ProgressInterval time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		QualityThreshold: 0.8,
		MaxIterations:    2,
		LowScoreCutoff:   0.3,
		Context:          contextasm.DefaultOptions(),
		ProgressInterval: 250 * time.Millisecond,
	}
}

type yamlPolicy struct {
	Version    int `yaml:"version"`
	Refinement struct {
		QualityThreshold *float64 `yaml:"quality_threshold"`
		MaxIterations    *int     `yaml:"max_iterations"`
		LowScoreCutoff   *float64 `yaml:"low_score_cutoff"`
	} `yaml:"refinement"`
	Context  contextasm.Options `yaml:"context"`
	Progress struct {
		MinIntervalMS *int `yaml:"min_interval_ms"`
	} `yaml:"progress"`
}

// LoadPolicy reads the policy from COURSEGEN_POLICY_YAML when set, else the embedded default.
// Keys missing from the file keep their default values.
func LoadPolicy() (Policy, error) {
	data, err := readPolicy()
	if err != nil {
		return DefaultPolicy(), err
	}
	return ParsePolicy(data)
}

func readPolicy() ([]byte, error) {
	if path := strings.TrimSpace(os.Getenv(policyEnv)); path != "" {
		return os.ReadFile(path)
	}
	return policyFS.ReadFile("policy.yaml")
}

func ParsePolicy(data []byte) (Policy, error) {
	p := DefaultPolicy()
	var raw yamlPolicy
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return p, fmt.Errorf("parse policy: %w", err)
	}
	if v := raw.Refinement.QualityThreshold; v != nil {
		p.QualityThreshold = *v
	}
	if v := raw.Refinement.MaxIterations; v != nil {
		p.MaxIterations = *v
	}
	if v := raw.Refinement.LowScoreCutoff; v != nil {
		p.LowScoreCutoff = *v
	}
	if raw.Context.WindowSize > 0 {
		p.Context.WindowSize = raw.Context.WindowSize
	}
	if raw.Context.SummaryThreshold > 0 {
		p.Context.SummaryThreshold = raw.Context.SummaryThreshold
	}
	if raw.Context.ExcerptChars > 0 {
		p.Context.ExcerptChars = raw.Context.ExcerptChars
	}
	if v := raw.Progress.MinIntervalMS; v != nil && *v >= 0 {
		p.ProgressInterval = time.Duration(*v) * time.Millisecond
	}
	return p, p.Validate()
}

func (p Policy) Validate() error {
	var errs []error
	if p.QualityThreshold <= 0 || p.QualityThreshold > 1 {
		errs = append(errs, fmt.Errorf("quality_threshold must be in (0,1], got %v", p.QualityThreshold))
	}
	if p.LowScoreCutoff < 0 || p.LowScoreCutoff >= p.QualityThreshold {
		errs = append(errs, fmt.Errorf("low_score_cutoff must be in [0,quality_threshold), got %v", p.LowScoreCutoff))
	}
	if p.MaxIterations < 0 {
		errs = append(errs, fmt.Errorf("max_iterations must be >= 0, got %d", p.MaxIterations))
	}
	return errors.Join(errs...)
}

const (
	nodeRefine   = "refine"
	nodeGenerate = "generate_content"
)

// ShouldRefine decides whether another refinement pass runs for a validated course.
func ShouldRefine(score float64, iterations int, p Policy) bool {
	switch {
	case score >= p.QualityThreshold:
		return false
	case iterations >= p.MaxIterations:
		return false
	case score < p.LowScoreCutoff && iterations >= 1:
		return false
	default:
		return true
	}
}

// Route picks the node that follows validation. Missing or malformed alignment data goes
// straight to content generation so the loop cannot spin on it.
func Route(a *course.Alignment, iterations int, p Policy) string {
	if a == nil || !a.Evaluated {
		return nodeGenerate
	}
	s := a.OverallScore
	if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 || s > 1 {
		return nodeGenerate
	}
	if ShouldRefine(s, iterations, p) {
		return nodeRefine
	}
	return nodeGenerate
}
