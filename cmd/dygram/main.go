// Command dygram demonstrates wiring a machine definition through the
// runtime, effect executor, and facade: a mock weather tool feeds a
// mock chat model, with a log emitter attached.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dygram-dev/dygram/effectexec"
	"github.com/dygram-dev/dygram/emit"
	"github.com/dygram-dev/dygram/executor"
	"github.com/dygram-dev/dygram/machine"
	"github.com/dygram-dev/dygram/model"
	"github.com/dygram-dev/dygram/registry"
	"github.com/dygram-dev/dygram/runtime"
	"github.com/dygram-dev/dygram/vfs"
)

func main() {
	def := machine.Definition{
		Title: "weather-brief",
		Nodes: []machine.Node{
			{
				Name: "start",
				Type: machine.NodeInput,
				Attributes: []machine.Attribute{
					{Name: "city", Type: "string", RawValue: `"Lisbon"`},
				},
			},
			{
				Name: "lookup",
				Type: machine.NodeTask,
				Attributes: []machine.Attribute{
					{Name: "uses", Type: "string", RawValue: "get_weather"},
					{Name: "city", Type: "string", RawValue: "{{start.city}}"},
					{Name: "prompt", Type: "string", RawValue: "Summarize this forecast for {{start.city}}: {{lookup.output}}"},
				},
			},
			{
				Name: "done",
				Type: machine.NodeOutput,
				Attributes: []machine.Attribute{
					{Name: "summary", Type: "string", RawValue: "{{lookup.output}}"},
				},
			},
		},
		Edges: []machine.Edge{
			{Source: "start", Target: "lookup", Type: "next"},
			{Source: "lookup", Target: "done", Type: "next"},
		},
	}

	if err := def.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid machine:", err)
		os.Exit(1)
	}

	tools := registry.New()
	tools.Register(&registry.MockTool{
		ToolName:  "get_weather",
		Responses: []map[string]any{{"forecast": "sunny, 24C"}},
	})

	chatModel := &model.MockChatModel{
		Responses: []model.ChatOut{{Text: "It'll be sunny and warm in Lisbon today."}},
	}

	ex := &effectexec.Executor{
		Tools:   tools,
		Model:   chatModel,
		VFS:     vfs.NewMemory(),
		Emitter: emit.NewLogEmitter(os.Stdout, false),
	}

	f, err := executor.NewFacade(def, runtime.DefaultOptions(), ex)
	if err != nil {
		fmt.Fprintln(os.Stderr, "initialize:", err)
		os.Exit(1)
	}

	ctx := context.Background()
	final, err := f.Execute(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "execute:", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Printf("status after %d step(s):\n", final.StepCount)
	for _, p := range final.Paths {
		fmt.Printf("  path %s: %s at %s, visited %v\n", p.ID, p.Status, p.CurrentNode, p.VisitedNodes)
	}
	if out, ok := final.Attributes[runtime.AttrKey("done", "summary")]; ok {
		fmt.Println("summary:", out)
	}
}
