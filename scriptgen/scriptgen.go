// Package scriptgen assembles executable analysis programs around
// caller-supplied fragments: an optimization wrapper, a Monte-Carlo
// simulation driver, and heuristic synthesis for task requests that carry no
// script of their own.
//
// Generated programs are plain script text; callers are expected to run the
// fragment and the assembled result through the security validator before
// execution.
package scriptgen

import (
	"fmt"
	"strings"

	"github.com/isdmx/scriptbox/sandbox"
)

const defaultIterations = 1000

// Optimization wraps a Python objective expression in a scipy minimizer.
// The objective is an expression over a vector x, e.g. "x[0]**2 + x[1]**2".
// constraints, when non-empty, must be a Python expression evaluating to a
// scipy constraints sequence. method defaults to Nelder-Mead.
func Optimization(objective string, initialGuess []float64, constraints, method string) (string, error) {
	if strings.TrimSpace(objective) == "" {
		return "", fmt.Errorf("objective function is required")
	}
	if len(initialGuess) == 0 {
		return "", fmt.Errorf("initial guess is required")
	}
	if method == "" {
		method = "Nelder-Mead"
	}

	guess := make([]string, len(initialGuess))
	for i, g := range initialGuess {
		guess[i] = fmt.Sprintf("%g", g)
	}

	var b strings.Builder
	b.WriteString("import json\n")
	b.WriteString("from scipy.optimize import minimize\n\n")
	fmt.Fprintf(&b, "objective = lambda x: %s\n", objective)
	fmt.Fprintf(&b, "x0 = [%s]\n", strings.Join(guess, ", "))
	if strings.TrimSpace(constraints) != "" {
		fmt.Fprintf(&b, "constraints = %s\n", constraints)
		fmt.Fprintf(&b, "res = minimize(objective, x0, method=%q, constraints=constraints)\n", method)
	} else {
		fmt.Fprintf(&b, "res = minimize(objective, x0, method=%q)\n", method)
	}
	b.WriteString(`print(json.dumps({
    "success": bool(res.success),
    "x": [float(v) for v in res.x],
    "fun": float(res.fun),
    "iterations": int(res.get("nit", -1)),
    "message": str(res.message),
}))
`)
	return b.String(), nil
}

// Simulation wraps caller-supplied per-iteration logic in a Monte-Carlo
// driver. The body must assign its per-iteration outcome to a variable named
// "result". parameters are made available under the script_data convention.
func Simulation(body string, iterations int, parameters map[string]any) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("simulation script is required")
	}
	if iterations <= 0 {
		iterations = defaultIterations
	}

	params := parameters
	if params == nil {
		params = map[string]any{}
	}
	lit, err := sandbox.PythonJSONLiteral(params)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("import json\n")
	b.WriteString("import random\n")
	b.WriteString("import statistics\n\n")
	fmt.Fprintf(&b, "parameters = json.loads(%s)\n", lit)
	fmt.Fprintf(&b, "iterations = %d\n", iterations)
	b.WriteString("outcomes = []\n")
	b.WriteString("for _iteration in range(iterations):\n")
	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		b.WriteString("    " + line + "\n")
	}
	b.WriteString("    outcomes.append(result)\n")
	b.WriteString(`
numeric = [o for o in outcomes if isinstance(o, (int, float)) and not isinstance(o, bool)]
summary = {"iterations": iterations, "count": len(outcomes)}
if numeric:
    summary["mean"] = statistics.fmean(numeric)
    summary["min"] = min(numeric)
    summary["max"] = max(numeric)
    if len(numeric) > 1:
        summary["stdev"] = statistics.stdev(numeric)
print(json.dumps(summary))
`)
	return b.String(), nil
}

// FromTask synthesizes a script for a task request that carries no
// script_content, keyed on the task name and execution_type: validation,
// optimization, and simulation tasks get purpose-built templates, everything
// else a generic analysis summary of the supplied parameters.
func FromTask(taskName string, variables map[string]any) (string, error) {
	execType, _ := variables["execution_type"].(string)
	hint := strings.ToLower(execType + " " + taskName)

	parameters, _ := variables["parameters"].(map[string]any)
	if parameters == nil {
		parameters = map[string]any{}
	}
	lit, err := sandbox.PythonJSONLiteral(parameters)
	if err != nil {
		return "", err
	}

	switch {
	case strings.Contains(hint, "valid"):
		return fmt.Sprintf(`import json

parameters = json.loads(%s)
report = {"task": %q, "checked": len(parameters), "missing": [k for k, v in parameters.items() if v is None]}
report["valid"] = not report["missing"]
print(json.dumps(report))
`, lit, taskName), nil

	case strings.Contains(hint, "optim"):
		objective, _ := variables["objective_function"].(string)
		if objective == "" {
			objective = "sum(v**2 for v in x)"
		}
		return Optimization(objective, []float64{0, 0}, "", "")

	case strings.Contains(hint, "simul"), strings.Contains(hint, "monte"):
		body, _ := variables["simulation_script"].(string)
		if body == "" {
			body = "result = random.random()"
		}
		return Simulation(body, defaultIterations, parameters)

	default:
		return fmt.Sprintf(`import json

parameters = json.loads(%s)
summary = {"task": %q, "parameter_count": len(parameters), "parameters": parameters}
numeric = [v for v in parameters.values() if isinstance(v, (int, float)) and not isinstance(v, bool)]
if numeric:
    summary["numeric_total"] = sum(numeric)
print(json.dumps(summary))
`, lit, taskName), nil
	}
}
