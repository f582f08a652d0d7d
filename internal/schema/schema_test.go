package schema

import (
	"context"
	"encoding/binary"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/fatih/color"
	"github.com/linkedin/goavro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kafka-investigator/kafka-investigator/internal/config"
	ierrors "github.com/kafka-investigator/kafka-investigator/pkg/errors"
	"github.com/kafka-investigator/kafka-investigator/pkg/logger"
)

const (
	userSchema  = `{"type":"record","name":"User","fields":[{"name":"name","type":"string"},{"name":"age","type":"long"}]}`
	orderSchema = `{"type":"record","name":"Order","namespace":"com.acme","fields":[{"name":"customer","type":"com.acme.Customer"}]}`
)

func init() {
	logger.Set(zap.NewNop())
	color.NoColor = true
}

func frame(id int32, body []byte) []byte {
	b := make([]byte, 5, 5+len(body))
	binary.BigEndian.PutUint32(b[1:], uint32(id))
	return append(b, body...)
}

func newRegistry(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "reader" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error_code":401,"message":"Unauthorized"}`)
			return
		}
		switch r.URL.Path {
		case "/schemas/ids/7":
			fmt.Fprintf(w, `{"schema":%q}`, userSchema)
		case "/schemas/ids/9":
			fmt.Fprintf(w, `{"schema":%q,"references":[{"name":"com.acme.Customer","subject":"customer-value","version":3}]}`, orderSchema)
		case "/schemas/ids/8":
			fmt.Fprint(w, `{"schema":"{\"type\":\"object\"}","schemaType":"JSON"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error_code":40403,"message":"Schema not found"}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newFetcher(t *testing.T, url string) *Fetcher {
	t.Helper()
	f, err := NewFetcher(config.SchemaRegistryConfig{
		Name:     "local",
		URL:      url + "/",
		Username: "reader",
		Password: "secret",
		Timeout:  5,
	})
	require.NoError(t, err)
	return f
}

func TestNewFetcher_RequiresURL(t *testing.T) {
	_, err := NewFetcher(config.SchemaRegistryConfig{Name: "empty"})
	assert.True(t, ierrors.IsCode(err, ierrors.ErrCodeSchemaConnect))
}

func TestFetcher_GetSchema(t *testing.T) {
	var calls int32
	srv := newRegistry(t, &calls)
	f := newFetcher(t, srv.URL)
	defer f.Close()

	s, err := f.GetSchema(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int32(7), s.ID)
	assert.Equal(t, TypeAvro, s.Type)
	assert.Equal(t, userSchema, s.Text)

	// 第二次查询命中缓存
	_, err = f.GetSchema(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	js, err := f.GetSchema(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, TypeJSON, js.Type)
}

func TestFetcher_GetSchema_Errors(t *testing.T) {
	var calls int32
	srv := newRegistry(t, &calls)

	f := newFetcher(t, srv.URL)
	_, err := f.GetSchema(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, ierrors.IsCode(err, ierrors.ErrCodeSchemaFetch))
	assert.Contains(t, err.Error(), "Schema not found")

	// 失败的查询不缓存
	_, err = f.GetSchema(context.Background(), 99)
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	unauthorized, err := NewFetcher(config.SchemaRegistryConfig{Name: "anon", URL: srv.URL})
	require.NoError(t, err)
	_, err = unauthorized.GetSchema(context.Background(), 7)
	assert.Contains(t, err.Error(), "Unauthorized")
}

func TestFetcher_GetSchema_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := newFetcher(t, url)
	_, err := f.GetSchema(context.Background(), 1)
	assert.True(t, ierrors.IsCode(err, ierrors.ErrCodeSchemaConnect))
}

func TestFetcher_GetSchema_References(t *testing.T) {
	var calls int32
	srv := newRegistry(t, &calls)
	f := newFetcher(t, srv.URL)

	// 引用类型无法单独编译，但schema文本仍然可用
	s, err := f.GetSchema(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, orderSchema, s.Text)
	assert.Equal(t, []Reference{{Name: "com.acme.Customer", Subject: "customer-value", Version: 3}}, s.References)

	_, err = Decode(s, frame(9, []byte{0x02}))
	assert.True(t, ierrors.IsCode(err, ierrors.ErrCodeSchemaDecode))
	assert.Contains(t, err.Error(), "com.acme.Customer")
}

func TestSchema_Codec(t *testing.T) {
	invalid := NewSchema(1, TypeAvro, `{"type":"nope"}`)
	_, err := invalid.Codec()
	assert.Error(t, err)
	_, err = invalid.Codec()
	assert.Error(t, err)

	s := NewSchema(2, "", userSchema)
	assert.Equal(t, TypeAvro, s.Type)
	first, err := s.Codec()
	require.NoError(t, err)
	second, err := s.Codec()
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = NewSchema(3, TypeJSON, `{"type":"object"}`).Codec()
	assert.Error(t, err)
}

func TestDecode_Avro(t *testing.T) {
	s := NewSchema(7, TypeAvro, userSchema)

	codec, err := goavro.NewCodec(userSchema)
	require.NoError(t, err)
	body, err := codec.BinaryFromNative(nil, map[string]interface{}{"name": "bob", "age": int64(42)})
	require.NoError(t, err)

	out, err := Decode(s, frame(7, body))
	require.NoError(t, err)
	assert.Contains(t, string(out), `"name": "bob"`)
	assert.Contains(t, string(out), `"age": 42`)
}

func TestDecode_JSON(t *testing.T) {
	s := NewSchema(8, TypeJSON, `{"type":"object"}`)

	out, err := Decode(s, frame(8, []byte(`{"id":1}`)))
	require.NoError(t, err)
	assert.Contains(t, string(out), `"id": 1`)

	_, err = Decode(s, frame(8, []byte(`{broken`)))
	assert.True(t, ierrors.IsCode(err, ierrors.ErrCodeSchemaDecode))
}

func TestDecode_Errors(t *testing.T) {
	s := NewSchema(7, TypeAvro, userSchema)

	for _, tc := range []struct {
		name    string
		payload []byte
	}{
		{name: "not framed", payload: []byte(`{"id":1}`)},
		{name: "other schema id", payload: frame(9, []byte{0x06, 'b', 'o', 'b', 0x54})},
		{name: "truncated body", payload: frame(7, []byte{0x06, 'b'})},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(s, tc.payload)
			assert.True(t, ierrors.IsCode(err, ierrors.ErrCodeSchemaDecode))
		})
	}

	proto := NewSchema(10, TypeProtobuf, `syntax = "proto3";`)
	_, err := Decode(proto, frame(10, []byte{0x08, 0x01}))
	assert.True(t, ierrors.IsCode(err, ierrors.ErrCodeSchemaDecode))
}
