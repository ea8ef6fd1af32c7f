package codec

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"

	"mini-soap/contract"
	"mini-soap/message"
)

// jsonAPI matches sonic.ConfigStd but keeps numbers as json.Number so ints
// and floats stay distinguishable.
var jsonAPI = sonic.Config{
	EscapeHTML:       true,
	SortMapKeys:      true,
	CompactMarshaler: true,
	CopyString:       true,
	ValidateString:   true,
	UseNumber:        true,
}.Froze()

var genericJSONFault = []byte(`{"fault":{"code":"` + message.CodeServer + `","message":"` +
	message.UnknownErrorMessage + `","kind":"OperationFailure"}}`)

// JSONCodec is the JSON envelope alternative to SOAP, picked when a request
// is sent with a JSON content type.
//
//	request:  {"operation":"add","args":{"a":2,"b":3}}   or "args":[2,3]
//	response: {"operation":"add","result":5}
//	fault:    {"operation":"add","fault":{"code":"client-error","message":"...","kind":"TypeMismatch"}}
type JSONCodec struct{}

type jsonRequest struct {
	Operation string `json:"operation"`
	Args      any    `json:"args,omitempty"`
}

type jsonFault struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

type jsonResponse struct {
	Operation string     `json:"operation,omitempty"`
	Result    any        `json:"result,omitempty"`
	Fault     *jsonFault `json:"fault,omitempty"`
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}

func (c *JSONCodec) ContentType() string {
	return "application/json; charset=utf-8"
}

func (c *JSONCodec) DecodeRequest(data []byte, ct *contract.Contract) (*message.Request, error) {
	var env jsonRequest
	if err := jsonAPI.Unmarshal(data, &env); err != nil {
		return nil, malformed("unparseable envelope: %v", err)
	}
	if env.Operation == "" {
		return nil, malformed("missing operation name")
	}
	req := &message.Request{Operation: env.Operation}

	var names []string
	var raw []any
	switch args := env.Args.(type) {
	case nil:
	case []any:
		names = make([]string, len(args))
		raw = args
	case map[string]any:
		names = orderedKeys(ct, env.Operation, args)
		for _, n := range names {
			raw = append(raw, args[n])
		}
	default:
		return nil, malformed("args must be an object or an array")
	}

	params := declaredParams(ct, env.Operation, names)
	registered := isRegistered(ct, env.Operation)
	for i, r := range raw {
		v, err := fromJSON(r, params[i].Type, label(params[i], names[i], i))
		if err != nil {
			if registered {
				return nil, err
			}
			v = rawJSON(r)
		}
		req.Args = append(req.Args, message.Arg{Name: names[i], Value: v})
	}
	return req, nil
}

func (c *JSONCodec) Encode(resp *message.Response) []byte {
	if resp == nil || resp.Failed() {
		var f *message.Fault
		op := ""
		if resp != nil {
			f, op = resp.Fault, resp.Operation
		}
		return c.encodeFault(op, f)
	}
	result, err := toJSON(resp.Result)
	if err != nil {
		return c.encodeFault(resp.Operation, message.FaultFrom(err))
	}
	b, err := jsonAPI.Marshal(&jsonResponse{Operation: resp.Operation, Result: result})
	if err != nil {
		return c.encodeFault(resp.Operation, message.FaultFrom(message.Wrap(message.OperationFailure, err, "")))
	}
	return b
}

func (c *JSONCodec) encodeFault(op string, f *message.Fault) []byte {
	if f == nil {
		f = message.FaultFrom(nil)
	}
	kind := f.Kind
	if kind == 0 {
		kind = message.OperationFailure
	}
	jf := &jsonFault{Code: f.Code, Message: strings.ToValidUTF8(f.Message, ""), Kind: kind.String()}
	if jf.Code == "" {
		jf.Code = kind.Code()
	}
	if strings.TrimSpace(jf.Message) == "" {
		jf.Message = message.UnknownErrorMessage
	}
	b, err := jsonAPI.Marshal(&jsonResponse{Operation: op, Fault: jf})
	if err != nil {
		return genericJSONFault
	}
	return b
}

func (c *JSONCodec) EncodeRequest(req *message.Request) ([]byte, error) {
	named := len(req.Args) > 0
	for _, a := range req.Args {
		if a.Name == "" {
			named = false
		}
	}
	env := jsonRequest{Operation: req.Operation}
	if named {
		obj := make(map[string]any, len(req.Args))
		for _, a := range req.Args {
			v, err := toJSON(a.Value)
			if err != nil {
				return nil, err
			}
			obj[a.Name] = v
		}
		env.Args = obj
	} else if len(req.Args) > 0 {
		arr := make([]any, len(req.Args))
		for i, a := range req.Args {
			v, err := toJSON(a.Value)
			if err != nil {
				return nil, err
			}
			arr[i] = v
		}
		env.Args = arr
	}
	return jsonAPI.Marshal(&env)
}

func (c *JSONCodec) DecodeResponse(data []byte, returns message.Type) (*message.Response, error) {
	var env jsonResponse
	if err := jsonAPI.Unmarshal(data, &env); err != nil {
		return nil, malformed("unparseable response: %v", err)
	}
	if env.Fault != nil {
		return &message.Response{Operation: env.Operation, Fault: &message.Fault{
			Code:    env.Fault.Code,
			Message: env.Fault.Message,
			Kind:    message.ParseErrorKind(env.Fault.Kind),
		}}, nil
	}
	v, err := fromJSON(env.Result, returns, "return")
	if err != nil {
		return nil, err
	}
	return &message.Response{Operation: env.Operation, Result: v}, nil
}

// orderedKeys lists object keys in declaration order when the operation is
// known, with any undeclared keys appended sorted.
func orderedKeys(ct *contract.Contract, operation string, obj map[string]any) []string {
	var keys []string
	seen := make(map[string]bool, len(obj))
	if ct != nil {
		if op, ok := ct.Lookup(operation); ok {
			for _, p := range op.Params {
				if _, ok := obj[p.Name]; ok {
					keys = append(keys, p.Name)
					seen[p.Name] = true
				}
			}
		}
	}
	var rest []string
	for k := range obj {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func fromJSON(raw any, declared message.Type, label string) (message.Value, error) {
	switch v := raw.(type) {
	case nil:
		return message.Value{}, mismatch(label, "null is not allowed")
	case string:
		return message.StringValue(v), nil
	case bool:
		return message.BoolValue(v), nil
	case json.Number:
		switch declared.Kind {
		case message.KindFloat:
			return parseScalar(message.KindFloat, v.String(), label)
		case message.KindInt:
			return parseScalar(message.KindInt, v.String(), label)
		}
		if n, err := v.Int64(); err == nil {
			return message.IntValue(n), nil
		}
		return parseScalar(message.KindFloat, v.String(), label)
	case map[string]any:
		var keys []string
		seen := make(map[string]bool, len(v))
		if declared.Kind == message.KindRecord {
			for _, f := range declared.Fields {
				if _, ok := v[f.Name]; ok {
					keys = append(keys, f.Name)
					seen[f.Name] = true
				}
			}
		}
		var rest []string
		for k := range v {
			if !seen[k] {
				rest = append(rest, k)
			}
		}
		sort.Strings(rest)
		keys = append(keys, rest...)

		fields := make([]message.FieldValue, 0, len(keys))
		for _, k := range keys {
			var ft message.Type
			for _, f := range declared.Fields {
				if f.Name == k {
					ft = f.Type
				}
			}
			fv, err := fromJSON(v[k], ft, label+"."+k)
			if err != nil {
				return message.Value{}, err
			}
			fields = append(fields, message.FieldValue{Name: k, Value: fv})
		}
		name := ""
		if declared.Kind == message.KindRecord {
			name = declared.Name
		}
		return message.RecordValue(name, fields...), nil
	}
	return message.Value{}, mismatch(label, "unsupported JSON value")
}

func toJSON(v message.Value) (any, error) {
	switch v.Kind() {
	case message.KindInt:
		return v.Int(), nil
	case message.KindString:
		return v.Str(), nil
	case message.KindFloat:
		return v.Float(), nil
	case message.KindBool:
		return v.Bool(), nil
	case message.KindRecord:
		obj := make(map[string]any, len(v.Fields()))
		for _, f := range v.Fields() {
			fv, err := toJSON(f.Value)
			if err != nil {
				return nil, err
			}
			obj[f.Name] = fv
		}
		return obj, nil
	}
	return nil, message.Errorf(message.OperationFailure, "value has no representation")
}

// rawJSON keeps the shape of an argument of an unregistered operation without
// rejecting anything.
func rawJSON(raw any) message.Value {
	switch v := raw.(type) {
	case nil:
		return message.StringValue("")
	case string:
		return message.StringValue(v)
	case bool:
		return message.BoolValue(v)
	case json.Number:
		return message.StringValue(v.String())
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]message.FieldValue, len(keys))
		for i, k := range keys {
			fields[i] = message.FieldValue{Name: k, Value: rawJSON(v[k])}
		}
		return message.RecordValue("", fields...)
	}
	return message.StringValue(fmt.Sprint(raw))
}
