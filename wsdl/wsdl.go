// Package wsdl renders a contract.Contract as a WSDL 1.1 document using the
// rpc/encoded SOAP binding.
//
// Output is deterministic: operations and record types are emitted sorted by
// name, attributes in a fixed order, with fixed indentation. Generating twice
// from the same contract yields identical bytes, so clients may cache it.
package wsdl

import (
	"fmt"

	"github.com/beevik/etree"

	"mini-soap/contract"
	"mini-soap/message"
)

// Namespaces used in the generated document.
const (
	NSWSDL     = "http://schemas.xmlsoap.org/wsdl/"
	NSSOAP     = "http://schemas.xmlsoap.org/wsdl/soap/"
	NSXSD      = "http://www.w3.org/2001/XMLSchema"
	NSSOAPEnc  = "http://schemas.xmlsoap.org/soap/encoding/"
	HTTPTransp = "http://schemas.xmlsoap.org/soap/http"
)

// ContentType is the media type the document is served with.
const ContentType = "text/xml; charset=UTF-8"

// SOAPAction returns the action URI advertised for an operation.
func SOAPAction(c *contract.Contract, operation string) string {
	return c.Namespace() + "#" + operation
}

// Generate renders the contract document.
func Generate(c *contract.Contract) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	ns := c.Namespace()
	defs := doc.CreateElement("definitions")
	defs.CreateAttr("xmlns", NSWSDL)
	defs.CreateAttr("xmlns:tns", ns)
	defs.CreateAttr("xmlns:soap", NSSOAP)
	defs.CreateAttr("xmlns:xsd", NSXSD)
	defs.CreateAttr("xmlns:soap-enc", NSSOAPEnc)
	defs.CreateAttr("xmlns:wsdl", NSWSDL)
	defs.CreateAttr("name", c.Name())
	defs.CreateAttr("targetNamespace", ns)

	writeTypes(defs, ns, c.Records())

	ops := c.Operations()
	portName := c.Name() + "Port"
	bindingName := c.Name() + "Binding"

	portType := defs.CreateElement("portType")
	portType.CreateAttr("name", portName)
	for _, op := range ops {
		o := portType.CreateElement("operation")
		o.CreateAttr("name", op.Name)
		if op.Doc != "" {
			o.CreateElement("documentation").SetText(op.Doc)
		}
		o.CreateElement("input").CreateAttr("message", "tns:"+op.Name+"In")
		o.CreateElement("output").CreateAttr("message", "tns:"+op.Name+"Out")
	}

	binding := defs.CreateElement("binding")
	binding.CreateAttr("name", bindingName)
	binding.CreateAttr("type", "tns:"+portName)
	sb := binding.CreateElement("soap:binding")
	sb.CreateAttr("style", "rpc")
	sb.CreateAttr("transport", HTTPTransp)
	for _, op := range ops {
		o := binding.CreateElement("operation")
		o.CreateAttr("name", op.Name)
		o.CreateElement("soap:operation").CreateAttr("soapAction", SOAPAction(c, op.Name))
		for _, dir := range []string{"input", "output"} {
			body := o.CreateElement(dir).CreateElement("soap:body")
			body.CreateAttr("use", "encoded")
			body.CreateAttr("encodingStyle", NSSOAPEnc)
			body.CreateAttr("namespace", ns)
		}
	}

	svc := defs.CreateElement("service")
	svc.CreateAttr("name", c.Name()+"Service")
	port := svc.CreateElement("port")
	port.CreateAttr("name", portName)
	port.CreateAttr("binding", "tns:"+bindingName)
	port.CreateElement("soap:address").CreateAttr("location", c.BaseAddress())

	for _, op := range ops {
		in := defs.CreateElement("message")
		in.CreateAttr("name", op.Name+"In")
		for _, p := range op.Params {
			part := in.CreateElement("part")
			part.CreateAttr("name", p.Name)
			part.CreateAttr("type", p.Type.XSD())
		}
		out := defs.CreateElement("message")
		out.CreateAttr("name", op.Name+"Out")
		part := out.CreateElement("part")
		part.CreateAttr("name", "return")
		part.CreateAttr("type", op.Returns.XSD())
	}

	doc.Indent(2)
	b, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("wsdl: render %s: %w", c.Name(), err)
	}
	return b, nil
}

// writeTypes emits one complexType per record. Nothing is written when the
// contract only uses scalars.
func writeTypes(defs *etree.Element, ns string, records []message.Type) {
	if len(records) == 0 {
		return
	}
	schema := defs.CreateElement("types").CreateElement("xsd:schema")
	schema.CreateAttr("targetNamespace", ns)
	for _, r := range records {
		ct := schema.CreateElement("xsd:complexType")
		ct.CreateAttr("name", r.Name)
		all := ct.CreateElement("xsd:all")
		for _, f := range r.Fields {
			el := all.CreateElement("xsd:element")
			el.CreateAttr("name", f.Name)
			el.CreateAttr("type", f.Type.XSD())
			el.CreateAttr("nillable", "false")
		}
	}
}
