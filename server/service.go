package server

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mini-soap/contract"
	"mini-soap/message"
)

// Phase is where a dispatch stands. Every call goes
// Idle → Resolving → Invoking → Completed, or stops in Failed.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseResolving
	PhaseInvoking
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseResolving:
		return "resolving"
	case PhaseInvoking:
		return "invoking"
	case PhaseCompleted:
		return "completed"
	default:
		return "failed"
	}
}

// Dispatcher resolves requests against a contract and invokes the matching
// operation. It holds no per-request state and is safe for concurrent use.
type Dispatcher struct {
	contract *contract.Contract
	tracer   trace.Tracer
}

// NewDispatcher creates a dispatcher over a built contract.
func NewDispatcher(c *contract.Contract) *Dispatcher {
	return &Dispatcher{
		contract: c,
		tracer:   otel.Tracer("mini-soap/server"),
	}
}

// Dispatch runs one call. Errors are always *message.Error:
//   - UnknownOperation when no operation has exactly that name
//   - TypeMismatch when the argument count or any argument type is wrong;
//     nothing is invoked in that case
//   - OperationFailure when the operation returned an error, panicked, or
//     returned a value that does not match its declared return type
func (d *Dispatcher) Dispatch(ctx context.Context, req *message.Request) (message.Value, error) {
	ctx, span := d.tracer.Start(ctx, "soap.dispatch",
		trace.WithAttributes(attribute.String("soap.operation", req.Operation)))
	defer span.End()

	phase := PhaseIdle
	v, err := d.dispatch(ctx, req, &phase)
	if err != nil {
		failedIn := phase
		phase = PhaseFailed
		span.SetAttributes(attribute.String("soap.failed_in", failedIn.String()))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("soap.phase", phase.String()))
	return v, err
}

func (d *Dispatcher) dispatch(ctx context.Context, req *message.Request, phase *Phase) (message.Value, error) {
	*phase = PhaseResolving
	op, ok := d.contract.Lookup(req.Operation)
	if !ok {
		return message.Value{}, message.Errorf(message.UnknownOperation, "unknown operation %q", req.Operation)
	}
	args, err := checkArgs(op.OperationDescriptor, req.Args)
	if err != nil {
		return message.Value{}, err
	}

	*phase = PhaseInvoking
	v, err := invoke(ctx, op, args)
	if err != nil {
		if _, typed := message.KindOf(err); typed {
			return message.Value{}, err
		}
		return message.Value{}, message.Wrap(message.OperationFailure, err, "")
	}
	if !v.Conforms(op.Returns) {
		return message.Value{}, message.Errorf(message.OperationFailure,
			"operation %s returned %s, declared %s", op.Name, describe(v), op.Returns)
	}
	*phase = PhaseCompleted
	return v, nil
}

// checkArgs verifies every argument before anything runs and returns them in
// declaration order.
func checkArgs(op contract.OperationDescriptor, in []message.Arg) (contract.Args, error) {
	if len(in) != len(op.Params) {
		return nil, message.Errorf(message.TypeMismatch,
			"operation %s expects %d argument(s), got %d", op.Name, len(op.Params), len(in))
	}
	names := make([]string, len(in))
	for i, a := range in {
		names[i] = a.Name
	}
	args := make(contract.Args, len(op.Params))
	for i, j := range op.Bind(names) {
		p := op.Params[j]
		if !in[i].Value.Conforms(p.Type) {
			return nil, message.Errorf(message.TypeMismatch,
				"parameter %s: expected %s, got %s", p.Name, p.Type, describe(in[i].Value))
		}
		args[j] = in[i].Value
	}
	return args, nil
}

// invoke calls the handler exactly once. A panic is reported as an
// OperationFailure instead of taking the server down.
func invoke(ctx context.Context, op contract.Operation, args contract.Args) (v message.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = message.Errorf(message.OperationFailure, "operation %s panicked: %v", op.Name, r)
		}
	}()
	return op.Handler(ctx, args)
}

func describe(v message.Value) string {
	if v.Kind() == message.KindRecord && v.TypeName() != "" {
		return fmt.Sprintf("record %s", v.TypeName())
	}
	return v.Kind().String()
}

// Handle adapts Dispatch to the middleware handler signature. It is the
// innermost handler of the chain.
func (d *Dispatcher) Handle(ctx context.Context, req *message.Request) *message.Response {
	v, err := d.Dispatch(ctx, req)
	if err != nil {
		return message.NewFault(req.Operation, err)
	}
	return message.NewResult(req.Operation, v)
}
