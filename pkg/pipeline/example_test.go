package pipeline_test

import (
	"context"
	"fmt"

	"github.com/matzehuels/oreflow/pkg/pipeline"
)

func ExampleRunner_Execute() {
	runner := pipeline.NewRunner(nil, nil, nil)
	defer runner.Close()

	res, err := runner.Execute(context.Background(), pipeline.Options{
		Map:           "o..\n...",
		MaxBeltOutput: 2,
		Formats:       []string{pipeline.FormatJSON},
	})
	if err != nil {
		panic(err)
	}
	if res.Layout == nil {
		fmt.Println(pipeline.NoOptimalMessage)
		return
	}
	fmt.Printf("%s: export %.4g from %d machine\n", res.Solution.Status, res.Layout.Export, len(res.Layout.Machines))
	// Output: optimal: export 4 from 1 machine
}
