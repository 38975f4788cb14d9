package tools

import (
	"context"
	"encoding/json"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// Func wraps a native Go function as a tool body. Parameters arrive as the
// directive's parameter map, get marshalled through JSON into the function's
// input struct, and the call result is returned as-is.
type Func struct {
	call      func(ctx context.Context, params map[string]any) (any, error)
	inputType reflect.Type
}

var (
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

// NewToolFromFunc builds a Definition from a Go function. Supported
// signatures:
//
//	func(Input) (Result, error)
//	func(context.Context, Input) (Result, error)
//
// where Input is a struct whose fields define the parameter schema.
func NewToolFromFunc(name, description string, fn any) (*Definition, error) {
	funcType := reflect.TypeOf(fn)
	if funcType == nil || funcType.Kind() != reflect.Func {
		return nil, errors.New("provided value is not a function")
	}
	if funcType.NumOut() != 2 || !funcType.Out(1).Implements(errType) {
		return nil, errors.New("function must return (result, error)")
	}

	var inputType reflect.Type
	wantsCtx := false
	switch funcType.NumIn() {
	case 1:
		inputType = funcType.In(0)
	case 2:
		if funcType.In(0) != ctxType {
			return nil, errors.New("two-arg tool function must be (context.Context, Input)")
		}
		wantsCtx = true
		inputType = funcType.In(1)
	default:
		return nil, errors.New("function must take (Input) or (context.Context, Input)")
	}
	if inputType.Kind() != reflect.Struct {
		return nil, errors.Errorf("tool input must be a struct, got %s", inputType)
	}

	schema, err := schemaFromType(inputType)
	if err != nil {
		return nil, errors.Wrap(err, "generating parameter schema")
	}

	funcValue := reflect.ValueOf(fn)
	call := func(ctx context.Context, params map[string]any) (any, error) {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, errors.Wrap(err, "marshalling parameters")
		}
		input := reflect.New(inputType)
		if err := json.Unmarshal(raw, input.Interface()); err != nil {
			return nil, errors.Wrap(err, "unmarshalling parameters")
		}
		args := []reflect.Value{input.Elem()}
		if wantsCtx {
			args = []reflect.Value{reflect.ValueOf(ctx), input.Elem()}
		}
		out := funcValue.Call(args)
		if errV := out[1].Interface(); errV != nil {
			return out[0].Interface(), errV.(error)
		}
		return out[0].Interface(), nil
	}

	return &Definition{
		Name:        name,
		Description: description,
		Parameters:  schema,
		Environment: EnvironmentSandbox,
		Timeout:     30 * time.Second,
		Enabled:     true,
		fn:          &Func{call: call, inputType: inputType},
	}, nil
}

// schemaFromType reflects a struct type into the declared parameter schema.
func schemaFromType(t reflect.Type) (*Schema, error) {
	reflector := jsonschema.Reflector{DoNotReference: true}
	js := reflector.Reflect(reflect.New(t).Elem().Interface())

	out := &Schema{
		Type:       "object",
		Properties: map[string]Property{},
		Required:   js.Required,
	}
	if js.Properties == nil {
		return out, nil
	}
	for pair := js.Properties.Oldest(); pair != nil; pair = pair.Next() {
		out.Properties[pair.Key] = Property{
			Type:        pair.Value.Type,
			Description: pair.Value.Description,
			Enum:        pair.Value.Enum,
		}
	}
	return out, nil
}
