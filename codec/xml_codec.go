package codec

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"mini-soap/contract"
	"mini-soap/message"
)

// SOAP 1.1 namespaces. SOAP 1.2 envelopes are accepted on input.
const (
	NSEnvelope   = "http://schemas.xmlsoap.org/soap/envelope/"
	NSEnvelope12 = "http://www.w3.org/2003/05/soap-envelope"
	NSEncoding   = "http://schemas.xmlsoap.org/soap/encoding/"
	NSXSD        = "http://www.w3.org/2001/XMLSchema"
	NSXSI        = "http://www.w3.org/2001/XMLSchema-instance"
)

const (
	envPrefix = "SOAP-ENV"
	opPrefix  = "ns1"
)

// genericFault is written when even the fault envelope cannot be rendered.
var genericFault = []byte(`<?xml version="1.0" encoding="UTF-8"?>
<SOAP-ENV:Envelope xmlns:SOAP-ENV="` + NSEnvelope + `"><SOAP-ENV:Body><SOAP-ENV:Fault>` +
	`<faultcode>` + message.CodeServer + `</faultcode><faultstring>` + message.UnknownErrorMessage + `</faultstring>` +
	`<detail><kind>OperationFailure</kind></detail></SOAP-ENV:Fault></SOAP-ENV:Body></SOAP-ENV:Envelope>
`)

// XMLCodec reads and writes SOAP 1.1 rpc/encoded envelopes. Values carry
// xsi:type annotations; on input an xsi:type always wins over the declared
// parameter type so the dispatcher sees what the client actually sent.
type XMLCodec struct {
	Namespace string // Namespace of operation elements and record types
}

func (c *XMLCodec) Type() CodecType {
	return CodecTypeXML
}

func (c *XMLCodec) ContentType() string {
	return "application/xml; charset=utf-8"
}

// DecodeRequest parses a SOAP request envelope. The operation is the first
// child of Body; its children are the arguments.
func (c *XMLCodec) DecodeRequest(data []byte, ct *contract.Contract) (*message.Request, error) {
	body, err := readBody(data)
	if err != nil {
		return nil, err
	}
	opEl := firstChild(body)
	if opEl == nil || opEl.Tag == "" {
		return nil, malformed("missing operation element in SOAP body")
	}

	req := &message.Request{Operation: opEl.Tag}
	children := opEl.ChildElements()
	names := make([]string, len(children))
	for i, el := range children {
		names[i] = el.Tag
	}
	params := declaredParams(ct, req.Operation, names)
	registered := isRegistered(ct, req.Operation)
	for i, el := range children {
		v, err := decodeValue(el, params[i].Type, label(params[i], el.Tag, i))
		if err != nil {
			if registered {
				return nil, err
			}
			// Left for the dispatcher to report as UnknownOperation.
			v = rawValue(el)
		}
		req.Args = append(req.Args, message.Arg{Name: el.Tag, Value: v})
	}
	return req, nil
}

// Encode renders a response envelope. It never fails: a result that cannot be
// rendered becomes a fault.
func (c *XMLCodec) Encode(resp *message.Response) []byte {
	if resp == nil {
		return c.encodeFault(nil)
	}
	if resp.Failed() {
		return c.encodeFault(resp.Fault)
	}
	doc, env := c.newEnvelope()
	opEl := env.CreateElement(envPrefix + ":Body").CreateElement(opPrefix + ":" + resp.Operation + "Response")
	if err := c.writeValue(opEl, "return", resp.Result); err != nil {
		return c.encodeFault(message.FaultFrom(err))
	}
	b, err := doc.WriteToBytes()
	if err != nil {
		return c.encodeFault(message.FaultFrom(err))
	}
	return b
}

// EncodeFault renders a fault envelope. A nil fault or empty message yields
// "Unknown error".
func (c *XMLCodec) EncodeFault(f *message.Fault) []byte {
	return c.encodeFault(f)
}

func (c *XMLCodec) encodeFault(f *message.Fault) []byte {
	code, msg, kind := message.CodeServer, "", message.OperationFailure
	if f != nil {
		code, msg, kind = f.Code, f.Message, f.Kind
	}
	if kind == 0 {
		kind = message.OperationFailure
	}
	if code = sanitizeXML(code); code == "" {
		code = kind.Code()
	}
	if msg = sanitizeXML(msg); strings.TrimSpace(msg) == "" {
		msg = message.UnknownErrorMessage
	}

	doc := newDocument()
	env := doc.CreateElement(envPrefix + ":Envelope")
	env.CreateAttr("xmlns:"+envPrefix, NSEnvelope)
	fault := env.CreateElement(envPrefix + ":Body").CreateElement(envPrefix + ":Fault")
	fault.CreateElement("faultcode").SetText(code)
	fault.CreateElement("faultstring").SetText(msg)
	fault.CreateElement("detail").CreateElement("kind").SetText(kind.String())

	b, err := doc.WriteToBytes()
	if err != nil {
		return genericFault
	}
	return b
}

// EncodeRequest renders a request envelope. Unnamed arguments are sent as
// param0, param1, ...
func (c *XMLCodec) EncodeRequest(req *message.Request) ([]byte, error) {
	doc, env := c.newEnvelope()
	opEl := env.CreateElement(envPrefix + ":Body").CreateElement(opPrefix + ":" + req.Operation)
	for i, a := range req.Args {
		name := a.Name
		if name == "" {
			name = fmt.Sprintf("param%d", i)
		}
		if err := c.writeValue(opEl, name, a.Value); err != nil {
			return nil, err
		}
	}
	return doc.WriteToBytes()
}

// DecodeResponse parses a response envelope. A Fault body yields a response
// whose Fault is set.
func (c *XMLCodec) DecodeResponse(data []byte, returns message.Type) (*message.Response, error) {
	body, err := readBody(data)
	if err != nil {
		return nil, err
	}
	el := firstChild(body)
	if el == nil {
		return nil, malformed("empty SOAP body in response")
	}
	if el.Tag == "Fault" {
		f := &message.Fault{
			Code:    childText(el, "faultcode"),
			Message: childText(el, "faultstring"),
			Kind:    message.OperationFailure,
		}
		if d := el.SelectElement("detail"); d != nil {
			if k := childText(d, "kind"); k != "" {
				f.Kind = message.ParseErrorKind(k)
			}
		}
		return &message.Response{Fault: f}, nil
	}

	resp := &message.Response{Operation: strings.TrimSuffix(el.Tag, "Response")}
	ret := firstChild(el)
	if ret == nil {
		return nil, malformed("response for %s carries no return value", resp.Operation)
	}
	v, err := decodeValue(ret, returns, ret.Tag)
	if err != nil {
		return nil, err
	}
	resp.Result = v
	return resp, nil
}

// newDocument starts an XML document whose text keeps carriage returns as
// character references; a raw CR would read back as LF.
func newDocument() *etree.Document {
	doc := etree.NewDocument()
	doc.WriteSettings.CanonicalText = true
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	return doc
}

func (c *XMLCodec) newEnvelope() (*etree.Document, *etree.Element) {
	doc := newDocument()
	env := doc.CreateElement(envPrefix + ":Envelope")
	env.CreateAttr("xmlns:"+envPrefix, NSEnvelope)
	env.CreateAttr("xmlns:"+opPrefix, c.Namespace)
	env.CreateAttr("xmlns:xsd", NSXSD)
	env.CreateAttr("xmlns:xsi", NSXSI)
	env.CreateAttr("xmlns:SOAP-ENC", NSEncoding)
	env.CreateAttr(envPrefix+":encodingStyle", NSEncoding)
	return doc, env
}

func (c *XMLCodec) writeValue(parent *etree.Element, name string, v message.Value) error {
	el := parent.CreateElement(name)
	switch v.Kind() {
	case message.KindRecord:
		if v.TypeName() != "" {
			el.CreateAttr("xsi:type", opPrefix+":"+v.TypeName())
		} else {
			el.CreateAttr("xsi:type", "SOAP-ENC:Struct")
		}
		for _, f := range v.Fields() {
			if err := c.writeValue(el, f.Name, f.Value); err != nil {
				return err
			}
		}
		return nil
	case message.KindInvalid:
		return message.Errorf(message.OperationFailure, "%s has no value", name)
	}
	text := formatScalar(v)
	if !xmlSafe(text) {
		return message.Errorf(message.OperationFailure, "%s holds characters that cannot be encoded in XML", name)
	}
	el.CreateAttr("xsi:type", typeOf(v).XSD())
	el.SetText(text)
	return nil
}

func typeOf(v message.Value) message.Type {
	return message.Type{Kind: v.Kind(), Name: v.TypeName()}
}

// readBody parses an envelope and returns its Body element.
func readBody(data []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, malformed("unparseable envelope: %v", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "Envelope" {
		return nil, malformed("missing SOAP Envelope")
	}
	ns := root.NamespaceURI()
	if ns != NSEnvelope && ns != NSEnvelope12 {
		return nil, malformed("unsupported envelope namespace %q", ns)
	}
	for _, el := range root.ChildElements() {
		if el.Tag == "Body" && el.NamespaceURI() == ns {
			return el, nil
		}
	}
	return nil, malformed("missing SOAP Body")
}

func firstChild(el *etree.Element) *etree.Element {
	children := el.ChildElements()
	if len(children) == 0 {
		return nil
	}
	return children[0]
}

func childText(el *etree.Element, tag string) string {
	if c := el.SelectElement(tag); c != nil {
		return c.Text()
	}
	return ""
}

// xsdKinds maps XML Schema type local names to value kinds.
var xsdKinds = map[string]message.Kind{
	"int": message.KindInt, "integer": message.KindInt, "long": message.KindInt,
	"short": message.KindInt, "byte": message.KindInt,
	"unsignedInt": message.KindInt, "unsignedShort": message.KindInt, "unsignedByte": message.KindInt,
	"nonNegativeInteger": message.KindInt, "positiveInteger": message.KindInt,
	"nonPositiveInteger": message.KindInt, "negativeInteger": message.KindInt,
	"double": message.KindFloat, "float": message.KindFloat, "decimal": message.KindFloat,
	"string": message.KindString, "normalizedString": message.KindString,
	"token": message.KindString, "anyURI": message.KindString,
	"boolean": message.KindBool,
}

// xsiType returns the local part of the element's xsi:type, if any.
func xsiType(el *etree.Element) string {
	for i := range el.Attr {
		a := &el.Attr[i]
		if a.Key == "type" && (a.NamespaceURI() == NSXSI || a.Space == "xsi") {
			v := a.Value
			if j := strings.IndexByte(v, ':'); j >= 0 {
				v = v[j+1:]
			}
			return v
		}
	}
	return ""
}

func isNil(el *etree.Element) bool {
	for _, a := range el.Attr {
		if a.Key == "nil" && (a.Value == "true" || a.Value == "1") {
			return true
		}
	}
	return false
}

// decodeValue reads one value element. The kind comes from xsi:type when
// present, else from the declared type, else from the element's shape.
func decodeValue(el *etree.Element, declared message.Type, label string) (message.Value, error) {
	if isNil(el) {
		return message.Value{}, mismatch(label, "nil is not allowed")
	}

	kind := declared.Kind
	recordName := ""
	if declared.Kind == message.KindRecord {
		recordName = declared.Name
	}
	if t := xsiType(el); t != "" {
		if k, ok := xsdKinds[t]; ok {
			kind = k
		} else {
			kind = message.KindRecord
			if t != "Struct" {
				recordName = t
			}
		}
	}
	switch {
	case len(el.ChildElements()) > 0 && kind != message.KindRecord:
		// Children where a scalar is expected: keep them as a record.
		kind, recordName = message.KindRecord, ""
	case kind == message.KindInvalid:
		kind = message.KindString
	}

	if kind != message.KindRecord {
		return parseScalar(kind, el.Text(), label)
	}

	var fields []message.FieldValue
	for _, child := range el.ChildElements() {
		var ft message.Type
		if declared.Kind == message.KindRecord {
			for _, f := range declared.Fields {
				if f.Name == child.Tag {
					ft = f.Type
					break
				}
			}
		}
		v, err := decodeValue(child, ft, label+"."+child.Tag)
		if err != nil {
			return message.Value{}, err
		}
		fields = append(fields, message.FieldValue{Name: child.Tag, Value: v})
	}
	return message.RecordValue(recordName, fields...), nil
}

// rawValue keeps an element's shape without interpreting types: text becomes
// a string, children become an anonymous record.
func rawValue(el *etree.Element) message.Value {
	children := el.ChildElements()
	if len(children) == 0 {
		return message.StringValue(el.Text())
	}
	fields := make([]message.FieldValue, len(children))
	for i, child := range children {
		fields[i] = message.FieldValue{Name: child.Tag, Value: rawValue(child)}
	}
	return message.RecordValue("", fields...)
}
