package cache

import "fmt"

// Keyer builds cache keys.
type Keyer interface {
	// SolutionKey addresses a solved model for one map and parameter set.
	SolutionKey(mapHash string, opts SolutionKeyOpts) string
	// ArtifactKey addresses a rendered output of one solution.
	ArtifactKey(solutionHash string, opts ArtifactKeyOpts) string
}

// SolutionKeyOpts are the inputs that change a solve result.
type SolutionKeyOpts struct {
	MaxMachineOutput float64 `json:"max_machine_output"`
	MaxBeltOutput    float64 `json:"max_belt_output"`
	OreCounting      string  `json:"ore_counting"`
	Prune            bool    `json:"prune"`
	Engine           string  `json:"engine"`
}

// ArtifactKeyOpts are the inputs that change a rendered artifact.
type ArtifactKeyOpts struct {
	Format  string `json:"format"`
	Terrain bool   `json:"terrain"`
	Glyphs  string `json:"glyphs"`
	Styled  bool   `json:"styled"`
}

// DefaultKeyer hashes key options into fixed-length keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// SolutionKey returns "solution:<sha256>".
func (DefaultKeyer) SolutionKey(mapHash string, opts SolutionKeyOpts) string {
	return hashKey("solution", mapHash, opts)
}

// ArtifactKey returns "artifact:<format>:<sha256>".
func (DefaultKeyer) ArtifactKey(solutionHash string, opts ArtifactKeyOpts) string {
	return hashKey(fmt.Sprintf("artifact:%s", opts.Format), solutionHash, opts)
}

var _ Keyer = DefaultKeyer{}
