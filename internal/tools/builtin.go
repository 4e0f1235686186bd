package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/nugget/reactor/internal/action"
)

func (r *Registry) registerBuiltins() {
	r.Register(&Tool{
		Name:        "calculator",
		Description: "Perform arithmetic. Operations: add, subtract, multiply, divide, pow, sqrt (sqrt uses only a).",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"operation": map[string]any{
					"type": "string",
					"enum": []string{"add", "subtract", "multiply", "divide", "pow", "sqrt"},
				},
				"a": map[string]any{"type": "number"},
				"b": map[string]any{"type": "number"},
			},
			"required": []string{"operation", "a"},
		},
		Handler: handleCalculator,
	})

	r.Register(&Tool{
		Name:        "echo",
		Description: "Return the given text unchanged. Useful for testing the tool path.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required": []string{"text"},
		},
		Handler: handleEcho,
	})

	r.Register(&Tool{
		Name:        "current_time",
		Description: "Get the current date and time, optionally in an IANA timezone such as America/Chicago.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"timezone": map[string]any{"type": "string"},
			},
		},
		Handler: handleCurrentTime,
	})
}

// errDivideByZero is reported to the model as a tool failure.
var errDivideByZero = errors.New("division by zero")

func handleCalculator(_ context.Context, args action.Value) (string, error) {
	opVal, _ := args.Field("operation")
	op, ok := opVal.AsString()
	if !ok || op == "" {
		return "", fmt.Errorf("operation is required")
	}
	a, err := numberArg(args, "a")
	if err != nil {
		return "", err
	}

	var out float64
	switch op {
	case "sqrt":
		if a < 0 {
			return "", fmt.Errorf("sqrt of negative number %s", formatNumber(a))
		}
		out = math.Sqrt(a)
	case "add", "subtract", "multiply", "divide", "pow":
		b, err := numberArg(args, "b")
		if err != nil {
			return "", err
		}
		switch op {
		case "add":
			out = a + b
		case "subtract":
			out = a - b
		case "multiply":
			out = a * b
		case "divide":
			if b == 0 {
				return "", errDivideByZero
			}
			out = a / b
		case "pow":
			out = math.Pow(a, b)
		}
	default:
		return "", fmt.Errorf("unknown operation %q", op)
	}

	if math.IsInf(out, 0) || math.IsNaN(out) {
		return "", fmt.Errorf("result of %s is not a finite number", op)
	}
	return formatNumber(out), nil
}

// numberArg reads a numeric argument, accepting numeric strings.
func numberArg(args action.Value, name string) (float64, error) {
	v, ok := args.Field(name)
	if !ok {
		return 0, fmt.Errorf("argument %q is required", name)
	}
	if n, ok := v.AsFloat(); ok {
		return n, nil
	}
	if s, ok := v.AsString(); ok {
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("argument %q must be a number, got %s", name, v.Kind())
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func handleEcho(_ context.Context, args action.Value) (string, error) {
	v, ok := args.Field("text")
	if !ok {
		return "", fmt.Errorf("argument %q is required", "text")
	}
	if s, ok := v.AsString(); ok {
		return s, nil
	}
	return v.String(), nil
}

func handleCurrentTime(_ context.Context, args action.Value) (string, error) {
	now := time.Now()
	if v, ok := args.Field("timezone"); ok {
		if tz, _ := v.AsString(); tz != "" {
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return "", fmt.Errorf("unknown timezone %q", tz)
			}
			now = now.In(loc)
		}
	}
	return now.Format("Monday, January 2, 2006 15:04:05 MST"), nil
}
