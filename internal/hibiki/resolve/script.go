package resolve

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dmoraru/hibiki/internal/hibiki/catalog"
	"github.com/dmoraru/hibiki/internal/hibiki/dispatch"
	"github.com/dmoraru/hibiki/internal/hibiki/nlp"
)

// Script resolves script-execution requests against the catalogue. A single
// message may name several scripts; they are proposed as one batch action
// and each runs independently.
type Script struct {
	interp  nlp.Interpreter
	catalog *catalog.Catalog
}

var _ dispatch.Resolver = (*Script)(nil)

// NewScript creates a script resolver.
func NewScript(interp nlp.Interpreter, cat *catalog.Catalog) *Script {
	return &Script{interp: interp, catalog: cat}
}

// Resolve implements dispatch.Resolver. The catalogue snapshot taken here is
// the set the proposal is judged against; a script removed between proposal
// and confirmation is reported as missing at execution time.
func (r *Script) Resolve(ctx context.Context, userID, message string) (*dispatch.Resolution, error) {
	infos := r.catalog.Infos()
	if len(infos) == 0 {
		return &dispatch.Resolution{
			Status: dispatch.StatusUnresolvable,
			Reply:  "There are no scripts available to run.",
		}, nil
	}

	requests, err := r.interp.ScriptDetails(ctx, message, infos)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return &dispatch.Resolution{
			Status: dispatch.StatusUnresolvable,
			Reply:  "I couldn't match that to any of the available scripts. Ask me to list scripts to see what I can run.",
		}, nil
	}

	var (
		invocations []dispatch.ScriptInvocation
		known       []string
		unknown     []string
	)
	for _, req := range requests {
		script, ok := r.catalog.Lookup(req.ScriptName)
		if !ok {
			unknown = append(unknown, req.ScriptName)
			invocations = append(invocations, dispatch.ScriptInvocation{
				Name:  req.ScriptName,
				Known: false,
			})
			continue
		}

		if script.RequiresArguments && len(req.Arguments) == 0 {
			reply := fmt.Sprintf("%s needs arguments and you didn't give me any.", script.Name)
			if script.ExampleUsage != "" {
				reply += fmt.Sprintf(" For example: %s", script.ExampleUsage)
			}
			return &dispatch.Resolution{
				Status: dispatch.StatusNeedsClarification,
				Reply:  reply,
			}, nil
		}

		known = append(known, script.Name)
		invocations = append(invocations, dispatch.ScriptInvocation{
			Name:        script.Name,
			Path:        script.Path,
			Interpreter: interpreterFor(script.Name, req.ExecutionMethod),
			Args:        req.Arguments,
			Known:       true,
		})
	}

	if len(known) == 0 {
		return &dispatch.Resolution{
			Status: dispatch.StatusUnresolvable,
			Reply:  fmt.Sprintf("I don't know any script called %s.", strings.Join(unknown, ", ")),
		}, nil
	}

	summary := "Run script " + known[0]
	if len(known) > 1 {
		summary = fmt.Sprintf("Run %d scripts: %s", len(known), strings.Join(known, ", "))
	}
	if len(unknown) > 0 {
		summary += fmt.Sprintf(" (not found: %s)", strings.Join(unknown, ", "))
	}

	return &dispatch.Resolution{
		Status: dispatch.StatusExecutable,
		Action: &dispatch.Action{
			Domain:  dispatch.DomainScript,
			Kind:    dispatch.KindRunScripts,
			Summary: summary,
			Scripts: invocations,
		},
	}, nil
}

// interpreterFor picks the interpreter binary from the requested execution
// method when it is sane, falling back to the file extension.
func interpreterFor(name, requested string) string {
	switch strings.ToLower(strings.TrimSpace(requested)) {
	case "bash", "sh":
		return "bash"
	case "python", "python3":
		return "python3"
	}
	if filepath.Ext(name) == ".py" {
		return "python3"
	}
	return "bash"
}
