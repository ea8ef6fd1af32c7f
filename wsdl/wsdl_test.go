package wsdl

import (
	"context"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-soap/contract"
	"mini-soap/message"
)

func noop(context.Context, contract.Args) (message.Value, error) {
	return message.IntValue(0), nil
}

func buildContract(t *testing.T, ops ...contract.Operation) *contract.Contract {
	t.Helper()
	c, err := contract.NewBuilder("Arith").Register(ops...).Build("https://soap.example.org/arith")
	require.NoError(t, err)
	return c
}

func arith(t *testing.T) *contract.Contract {
	point := message.Record("Point",
		message.Field{Name: "x", Type: message.Int},
		message.Field{Name: "y", Type: message.Int})
	return buildContract(t,
		contract.Op("sub", message.Int, noop, contract.Param("a", message.Int), contract.Param("b", message.Int)),
		contract.Op("add", message.Int, noop, contract.Param("a", message.Int), contract.Param("b", message.Int)).
			WithDoc("Adds two integers."),
		contract.Op("norm", message.Float, noop, contract.Param("p", point)),
	)
}

func TestGenerateDeterministic(t *testing.T) {
	c := arith(t)
	first, err := Generate(c)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Generate(c)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestGenerateDescribesEveryOperation(t *testing.T) {
	b, err := Generate(arith(t))
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(b))
	defs := doc.SelectElement("definitions")
	require.NotNil(t, defs)
	assert.Equal(t, "https://soap.example.org/arith", defs.SelectAttrValue("targetNamespace", ""))

	var names []string
	for _, op := range doc.FindElements("//portType/operation") {
		names = append(names, op.SelectAttrValue("name", ""))
	}
	assert.Equal(t, []string{"add", "norm", "sub"}, names)

	assert.Equal(t, "Adds two integers.",
		doc.FindElement("//portType/operation[@name='add']/documentation").Text())

	in := doc.FindElement("//message[@name='addIn']")
	require.NotNil(t, in)
	parts := in.SelectElements("part")
	require.Len(t, parts, 2)
	assert.Equal(t, "a", parts[0].SelectAttrValue("name", ""))
	assert.Equal(t, "xsd:int", parts[0].SelectAttrValue("type", ""))

	out := doc.FindElement("//message[@name='normOut']/part")
	require.NotNil(t, out)
	assert.Equal(t, "xsd:double", out.SelectAttrValue("type", ""))

	ct := doc.FindElement("//complexType[@name='Point']")
	require.NotNil(t, ct)
	assert.Len(t, ct.FindElements(".//element"), 2)

	action := doc.FindElement("//binding/operation[@name='sub']/operation")
	require.NotNil(t, action)
	assert.Equal(t, "https://soap.example.org/arith#sub", action.SelectAttrValue("soapAction", ""))

	addr := doc.FindElement("//service/port/address")
	require.NotNil(t, addr)
	assert.Equal(t, "https://soap.example.org/arith", addr.SelectAttrValue("location", ""))
}

func TestGenerateWithoutRecords(t *testing.T) {
	b, err := Generate(buildContract(t, contract.Op("hello", message.String, noop)))
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(b))
	assert.Nil(t, doc.FindElement("//types"))
	assert.NotNil(t, doc.FindElement("//message[@name='helloIn']"))
}
