// Package message defines the envelope model exchanged between the SOAP codec,
// the dispatcher and the middleware chain.
//
// A Request is what the codec extracts from an inbound SOAP Body; a Response is
// what the dispatcher hands back to the codec. A Response carries either a
// Result or a Fault, never both.
package message

// Arg is one decoded argument. Name is the element name it arrived under and
// may be empty when the client sent positional arguments only.
type Arg struct {
	Name  string
	Value Value
}

// Request carries the data for a single SOAP operation call.
type Request struct {
	Operation string // Local name of the first SOAP Body child, e.g. "add"
	Args      []Arg  // In wire order
}

// Response is the outcome of a single call.
//
//   - On success: Result holds the operation's return value, Fault is nil.
//   - On failure: Fault is set and Result is the zero Value.
type Response struct {
	Operation string
	Result    Value
	Fault     *Fault
}

// Failed reports whether the response carries a fault.
func (r *Response) Failed() bool {
	return r.Fault != nil
}

// NewResult builds a success response.
func NewResult(operation string, v Value) *Response {
	return &Response{Operation: operation, Result: v}
}

// NewFault translates err into a fault response.
func NewFault(operation string, err error) *Response {
	return &Response{Operation: operation, Fault: FaultFrom(err)}
}
