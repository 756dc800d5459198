package postgrest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matryer/is"
	"github.com/supaconn/supaconn/errors"
)

func TestBuilderRendersDeterministically(t *testing.T) {
	is := is.New(t)

	a := Select("countries", "id", "name").Eq("continent", "EU").Gte("population", "1000000").Limit(10)
	b := Select("countries", "id", "name").Gte("population", "1000000").Eq("continent", "EU").Limit(10)

	is.Equal(a.String(), b.String())
}

func TestBuilderDistinguishesQueries(t *testing.T) {
	is := is.New(t)

	base := Select("countries").Eq("continent", "EU").String()

	is.True(base != Select("cities").Eq("continent", "EU").String())
	is.True(base != Select("countries").Eq("continent", "AS").String())
	is.True(base != Select("countries").Neq("continent", "EU").String())
	is.True(base != Select("countries").Eq("continent", "EU").Count(CountExact).String())
}

func TestBuilderParams(t *testing.T) {
	is := is.New(t)

	b := Select("cities", "id", "name").
		In("country_id", "1", "2", "3").
		ILike("name", "%ber%").
		OrderDesc("population").
		Order("name").
		Range(0, 24)

	p := b.params()
	is.Equal("id,name", p.Get("select"))
	is.Equal("in.(1,2,3)", p.Get("country_id"))
	is.Equal("ilike.%ber%", p.Get("name"))
	is.Equal("population.desc,name.asc", p.Get("order"))
	is.Equal("25", p.Get("limit"))
	is.Equal("0", p.Get("offset"))
}

func TestExecute(t *testing.T) {
	is := is.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is.Equal("/rest/v1/countries", r.URL.Path)
		is.Equal("service-key", r.Header.Get("apikey"))
		is.Equal("Bearer service-key", r.Header.Get("Authorization"))
		is.Equal("api", r.Header.Get("Accept-Profile"))
		is.Equal("count=exact", r.Header.Get("Prefer"))
		is.Equal("eq.EU", r.URL.Query().Get("continent"))
		is.Equal("id,name", r.URL.Query().Get("select"))

		w.Header().Set("Content-Range", "0-1/57")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"name":"France"},{"id":2,"name":"Germany"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "service-key", "api", srv.Client())

	res, err := c.Execute(context.Background(), Select("countries", "id", "name").Eq("continent", "EU").Count(CountExact))
	is.NoErr(err)
	is.Equal(2, len(res.Rows))
	is.Equal(int64(57), res.Count)
	is.Equal("France", res.Rows[0]["name"])
}

func TestExecuteWithoutCountMethod(t *testing.T) {
	is := is.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is.Equal("", r.Header.Get("Prefer"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "", srv.Client())

	res, err := c.Execute(context.Background(), Select("countries"))
	is.NoErr(err)
	is.Equal(0, len(res.Rows))
	is.Equal(int64(-1), res.Count)
}

func TestExecuteSurfacesBackendError(t *testing.T) {
	is := is.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"42P01","message":"relation \"nope\" does not exist"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "", srv.Client())

	_, err := c.Execute(context.Background(), Select("nope"))
	var apiErr *APIError
	is.True(errors.As(err, &apiErr))
	is.Equal(http.StatusNotFound, apiErr.StatusCode)
	is.Equal("42P01", apiErr.Code)
}

func TestResultDecode(t *testing.T) {
	is := is.New(t)

	type country struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	res := Result{Rows: []map[string]any{
		{"id": float64(1), "name": "France"},
		{"id": float64(2), "name": "Germany"},
	}}

	var countries []country
	is.NoErr(res.Decode(&countries))
	is.Equal(2, len(countries))
	is.Equal(country{ID: 1, Name: "France"}, countries[0])
}

func TestParseContentRangeTotal(t *testing.T) {
	is := is.New(t)

	is.Equal(int64(3573), parseContentRangeTotal("0-24/3573"))
	is.Equal(int64(-1), parseContentRangeTotal("0-24/*"))
	is.Equal(int64(-1), parseContentRangeTotal(""))
}
