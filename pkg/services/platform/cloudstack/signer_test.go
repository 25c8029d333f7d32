package cloudstack

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalQuery(t *testing.T) {
	params := url.Values{}
	params.Set("response", "json")
	params.Set("command", "listProjects")
	params.Set("apiKey", "Key With Spaces")
	params.Set("name", "Acme/Prod")

	assert.Equal(t,
		"apikey=Key%20With%20Spaces&command=listProjects&name=Acme%2FProd&response=json",
		CanonicalQuery(params))
}

func TestSign_IsOrderIndependent(t *testing.T) {
	a := url.Values{}
	a.Set("command", "listCapacity")
	a.Set("response", "json")
	a.Set("apiKey", "abc")

	b := url.Values{}
	b.Set("apiKey", "abc")
	b.Set("response", "json")
	b.Set("command", "listCapacity")

	assert.Equal(t, Sign(a, "s3cret"), Sign(b, "s3cret"))
	assert.NotEqual(t, Sign(a, "s3cret"), Sign(a, "other"))
}

func TestSign_PreservesValueCase(t *testing.T) {
	lower := url.Values{"command": {"listprojects"}}
	mixed := url.Values{"command": {"listProjects"}}
	assert.NotEqual(t, Sign(lower, "k"), Sign(mixed, "k"))

	// key case does not matter
	assert.Equal(t, Sign(url.Values{"ApiKey": {"x"}}, "k"), Sign(url.Values{"apikey": {"x"}}, "k"))
}
