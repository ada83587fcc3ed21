package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := runCmd(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "licensectl version")
}

func TestSerialCmd(t *testing.T) {
	out, err := runCmd(t, "serial", "--app", "abc", "--empty")
	require.NoError(t, err)
	assert.Equal(t, "SNABC-0000-0000-0000-6LUX\n", out)

	out, err = runCmd(t, "serial", "--check", "SNABC-0000-0000-0000-6LUX", "--app", "ABC")
	require.NoError(t, err)
	assert.Contains(t, out, "Serial number is valid")

	_, err = runCmd(t, "serial", "--check", "SNABC-0000-0000-0000-6LUX", "--app", "XYZ")
	assert.Error(t, err)

	_, err = runCmd(t, "serial", "--check", "SNABC-0000-0000-0000-6LUY")
	assert.Error(t, err)
}

func TestParseProperties(t *testing.T) {
	props, err := parseProperties([]string{"Name=Jane Doe", "Email=jane=doe@example.com"})
	require.NoError(t, err)
	assert.Equal(t, []map[string]string{
		{"key": "Name", "value": "Jane Doe"},
		{"key": "Email", "value": "jane=doe@example.com"},
	}, props)

	_, err = parseProperties([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseProperties([]string{"=value"})
	assert.Error(t, err)
}

func TestKeysCreateCmd(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"application_code":"ABC","generation":1,"status":"active"}`))
	}))
	defer srv.Close()

	out, err := runCmd(t, "--api-url", srv.URL+"/", "keys", "create", "--app", "ABC")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/v1/applications/ABC/keys", gotPath)
	assert.Contains(t, out, `Created signing key for application "ABC" (generation: 1)`)
}

func TestKeysCreateCmd_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":"KEY_ALREADY_EXISTS","message":"signing key already exists for this application"}`))
	}))
	defer srv.Close()

	_, err := runCmd(t, "--api-url", srv.URL, "keys", "create", "--app", "ABC")
	require.Error(t, err)
	assert.Equal(t, "KEY_ALREADY_EXISTS: signing key already exists for this application", err.Error())
}

func TestLicenseIssueCmd(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		buf.ReadFrom(r.Body)
		gotBody = buf.String()
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"serial_number":"SNABC-0000-0000-0000-6LUX","content":"CONTENT"}`))
	}))
	defer srv.Close()

	out, err := runCmd(t, "--api-url", srv.URL, "license", "issue", "--app", "ABC",
		"--expires", "2030-01-02", "--property", "Name=Jane Doe")
	require.NoError(t, err)
	assert.Equal(t, "CONTENT\n", out)
	assert.Contains(t, gotBody, `"expiration_date":"2030-01-02T00:00:00Z"`)
	assert.Contains(t, gotBody, `{"key":"Name","value":"Jane Doe"}`)

	_, err = runCmd(t, "--api-url", srv.URL, "license", "issue", "--app", "ABC",
		"--expires", "2030-01-02", "--valid-for", "24h")
	assert.Error(t, err)
}

func TestCallAPI_WithoutURL(t *testing.T) {
	t.Setenv("LICENSECTL_API_URL", "")
	_, err := runCmd(t, "keys", "list", "--app", "ABC")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "--api-url is required"))
}
