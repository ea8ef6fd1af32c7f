// Package webservice holds the operations soapd exposes.
package webservice

import (
	"context"
	"fmt"
	"math"

	"mini-soap/contract"
	"mini-soap/message"
)

// ServiceName is the name the contract is published under.
const ServiceName = "WebService"

// Point is the record accepted by describePoint.
var Point = message.Record("Point",
	message.Field{Name: "x", Type: message.Int},
	message.Field{Name: "y", Type: message.Int})

// ErrDivisionByZero is returned by divide for a zero divisor.
var ErrDivisionByZero = message.Errorf(message.OperationFailure, "division by zero")

// Operations returns every operation of the service.
func Operations() []contract.Operation {
	return []contract.Operation{
		contract.Op("hello", message.String, hello).
			WithDoc("Returns a greeting."),
		contract.Op("test", message.String, test,
			contract.Param("n", message.Int)).
			WithDoc("Echoes the number it was given."),
		contract.Op("add", message.Int, add,
			contract.Param("a", message.Int),
			contract.Param("b", message.Int)).
			WithDoc("Returns a + b."),
		contract.Op("divide", message.Float, divide,
			contract.Param("a", message.Float),
			contract.Param("b", message.Float)).
			WithDoc("Returns a / b. Fails when b is zero."),
		contract.Op("describePoint", message.String, describePoint,
			contract.Param("p", Point)).
			WithDoc("Formats a point as (x, y)."),
	}
}

// Build registers the operations and freezes the contract at baseAddress.
func Build(baseAddress string) (*contract.Contract, error) {
	return contract.NewBuilder(ServiceName).
		Register(Operations()...).
		Build(baseAddress)
}

func hello(_ context.Context, _ contract.Args) (message.Value, error) {
	return message.StringValue("Hello world!"), nil
}

func test(_ context.Context, args contract.Args) (message.Value, error) {
	return message.StringValue(fmt.Sprintf("test %d", args.Int(0))), nil
}

func add(_ context.Context, args contract.Args) (message.Value, error) {
	return message.IntValue(args.Int(0) + args.Int(1)), nil
}

func divide(_ context.Context, args contract.Args) (message.Value, error) {
	a, b := args.Float(0), args.Float(1)
	if b == 0 {
		return message.Value{}, ErrDivisionByZero
	}
	q := a / b
	if math.IsInf(q, 0) {
		return message.Value{}, message.Errorf(message.OperationFailure, "result of %g / %g overflows", a, b)
	}
	return message.FloatValue(q), nil
}

func describePoint(_ context.Context, args contract.Args) (message.Value, error) {
	p := args.Record(0)
	x, _ := p.Field("x")
	y, _ := p.Field("y")
	return message.StringValue(fmt.Sprintf("(%d, %d)", x.Int(), y.Int())), nil
}
