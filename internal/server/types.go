package server

import (
	"strings"

	"github.com/matzehuels/oreflow/pkg/errors"
	"github.com/matzehuels/oreflow/pkg/model"
	"github.com/matzehuels/oreflow/pkg/pipeline"
	"github.com/matzehuels/oreflow/pkg/render"
)

// NoOptimalMessage is reported for every non-optimal outcome.
const NoOptimalMessage = pipeline.NoOptimalMessage

// SolveRequest is the body of POST /v1/solve and the first websocket message
// of /v1/solve/stream.
type SolveRequest struct {
	Map              string   `json:"map"`
	MaxMachineOutput float64  `json:"max_machine_output,omitempty"`
	MaxBeltOutput    float64  `json:"max_belt_output,omitempty"`
	OreCounting      string   `json:"ore_counting,omitempty"`
	Formats          []string `json:"formats,omitempty"`
	Terrain          bool     `json:"terrain,omitempty"`
	Detailed         bool     `json:"detailed,omitempty"`
	KeepIdle         bool     `json:"keep_idle,omitempty"`
	Refresh          bool     `json:"refresh,omitempty"`
	NodeLimit        int      `json:"node_limit,omitempty"`
	TimeoutMS        int64    `json:"timeout_ms,omitempty"`
}

func (r *SolveRequest) cells() int {
	n := 0
	for _, line := range strings.Split(r.Map, "\n") {
		n += len([]rune(strings.TrimSpace(line)))
	}
	return n
}

// SolveResponse is the result of a solve.
type SolveResponse struct {
	RunID     string            `json:"run_id"`
	Status    string            `json:"status"`
	Message   string            `json:"message,omitempty"`
	Objective float64           `json:"objective"`
	Layout    *render.Layout    `json:"layout,omitempty"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
	Model     model.Stats       `json:"model"`
	Stats     ResponseStats     `json:"stats"`
}

// ResponseStats reports work and timing.
type ResponseStats struct {
	Nodes        int   `json:"nodes"`
	BuildMS      int64 `json:"build_ms"`
	SolveMS      int64 `json:"solve_ms"`
	RenderMS     int64 `json:"render_ms"`
	SolutionHit  bool  `json:"solution_cached"`
	ArtifactsHit bool  `json:"artifacts_cached"`
}

// ErrorResponse wraps an error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newErrorBody(err error) ErrorBody {
	code := string(errors.GetCode(err))
	if code == "" {
		code = string(errors.ErrCodeInternal)
	}
	return ErrorBody{Code: code, Message: errors.UserMessage(err)}
}

func newResponse(res *pipeline.Result) SolveResponse {
	out := SolveResponse{
		RunID:     res.RunID,
		Status:    res.Solution.Status.String(),
		Objective: res.Solution.Objective,
		Layout:    res.Layout,
		Stats: ResponseStats{
			Nodes:        res.Stats.Nodes,
			BuildMS:      res.Stats.BuildTime.Milliseconds(),
			SolveMS:      res.Stats.SolveTime.Milliseconds(),
			RenderMS:     res.Stats.RenderTime.Milliseconds(),
			SolutionHit:  res.CacheInfo.SolutionHit,
			ArtifactsHit: res.CacheInfo.RenderHit,
		},
	}
	if res.Model != nil {
		out.Model = res.Model.Stats()
	}
	if !res.Solution.IsOptimal() {
		out.Message = NoOptimalMessage
		out.Objective = 0
		return out
	}
	if len(res.Artifacts) > 0 {
		out.Artifacts = make(map[string]string, len(res.Artifacts))
		for format, data := range res.Artifacts {
			out.Artifacts[format] = string(data)
		}
	}
	return out
}
