package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendSetsHeaders(t *testing.T) {
	var gotAction, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAction = r.Header.Get("SOAPAction")
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("<fault/>"))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.Client())
	reply, err := tr.Send(context.Background(), srv.URL, []byte("<env/>"), "urn:arith#add", ContentTypeSOAP)
	require.NoError(t, err)

	assert.Equal(t, `"urn:arith#add"`, gotAction)
	assert.Equal(t, ContentTypeSOAP, gotType)
	assert.Equal(t, "<env/>", gotBody)
	assert.Equal(t, http.StatusInternalServerError, reply.Status)
	assert.Equal(t, "<fault/>", string(reply.Body))
}

func TestSendConcurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(w, r.Body)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.Client())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := []byte{byte('a' + i)}
			reply, err := tr.Send(context.Background(), srv.URL, body, "", ContentTypeSOAP)
			assert.NoError(t, err)
			if err == nil {
				assert.Equal(t, body, reply.Body)
			}
		}(i)
	}
	wg.Wait()
}

func TestFetchWSDL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.URL.Query()["wsdl"]; !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("<definitions/>"))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.Client())
	doc, err := tr.FetchWSDL(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<definitions/>", string(doc))

	_, err = tr.FetchWSDL(context.Background(), srv.URL+"/missing?x=1")
	require.NoError(t, err, "query is appended with &")
}

func TestFetchWSDLNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewHTTPTransport(nil).FetchWSDL(context.Background(), srv.URL)
	require.Error(t, err)
}

func TestResponseLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.Client())
	tr.maxResponseBytes = 16
	_, err := tr.Send(context.Background(), srv.URL, nil, "", ContentTypeSOAP)
	require.Error(t, err)
}
