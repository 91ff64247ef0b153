package graphql_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gql "github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invictusops/invictus/pkg/graphql"
)

func schema(t *testing.T) gql.Schema {
	t.Helper()
	s, err := graphql.NewSchema(gql.NewObject(gql.ObjectConfig{
		Name: "Query",
		Fields: gql.Fields{
			"reorderCount": &gql.Field{
				Type: gql.Int,
				Args: gql.FieldConfigArgument{"plus": &gql.ArgumentConfig{Type: gql.Int}},
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					n, _ := p.Args["plus"].(int)
					return 2 + n, nil
				},
			},
		},
	}))
	require.NoError(t, err)
	return s
}

func TestHandler_Query(t *testing.T) {
	body := `{"query":"query($p:Int){ reorderCount(plus:$p) }","variables":{"p":3}}`
	rec := httptest.NewRecorder()
	graphql.Handler(schema(t))(rec, httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Data struct {
			ReorderCount int `json:"reorderCount"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 5, out.Data.ReorderCount)
}

func TestHandler_BadBody(t *testing.T) {
	rec := httptest.NewRecorder()
	graphql.Handler(schema(t))(rec, httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_FieldErrorsAreReported(t *testing.T) {
	rec := httptest.NewRecorder()
	graphql.Handler(schema(t))(rec, httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ nope }"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "errors")
}
