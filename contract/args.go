package contract

import "mini-soap/message"

// Args are the checked arguments of a call, in declaration order. The
// accessors assume the dispatcher already verified the types.
type Args []message.Value

func (a Args) Int(i int) int64            { return a[i].Int() }
func (a Args) String(i int) string        { return a[i].Str() }
func (a Args) Float(i int) float64        { return a[i].Float() }
func (a Args) Bool(i int) bool            { return a[i].Bool() }
func (a Args) Record(i int) message.Value { return a[i] }
