// Package integration drives the full HTTP surface with a virtual
// authenticator, exercising the registration and authentication
// ceremonies end to end the way a real browser and passkey would.
package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/descope/virtualwebauthn"
	"github.com/stretchr/testify/require"

	"github.com/passkeyrp/webauthn-rp/httpapi"
	"github.com/passkeyrp/webauthn-rp/store"
	"github.com/passkeyrp/webauthn-rp/webauthn"
)

func newTestServer(t *testing.T) (*httptest.Server, webauthn.Config) {
	t.Helper()
	cfg := webauthn.Config{
		RPID:          "example.localhost",
		RPDisplayName: "Example Corp",
		RPOrigins:     []string{"https://example.localhost:8443"},
	}
	cfg.SetDefaults()

	rp := &webauthn.RelyingParty{Config: cfg}
	options := &webauthn.OptionsGenerator{Config: cfg}
	handler := &httpapi.Handler{
		RP:          rp,
		Options:     options,
		Challenges:  store.NewMemoryChallengeStore(0),
		Credentials: store.NewMemoryCredentialStore(),
		Users:       store.NewMemoryUserStore(),
	}
	srv := httptest.NewServer(httpapi.NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv, cfg
}

func newTestClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func postJSON(t *testing.T, client *http.Client, url string, body []byte) []byte {
	t.Helper()
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", buf.String())
	return buf.Bytes()
}

// TestIntegration_RegistrationAndLogin drives a full passkey registration
// followed by an authentication against the same credential, using a
// virtual authenticator in place of a real browser.
func TestIntegration_RegistrationAndLogin(t *testing.T) {
	srv, cfg := newTestServer(t)
	client := newTestClient(t)

	rp := virtualwebauthn.RelyingParty{
		Name:   cfg.RPDisplayName,
		ID:     cfg.RPID,
		Origin: cfg.RPOrigins[0],
	}
	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	// Step 1: begin registration.
	optionsBody := postJSON(t, client, srv.URL+"/webauthn/register/options", []byte(`{"username":"passkey-user"}`))

	parsedCreation, err := virtualwebauthn.ParseAttestationOptions(string(optionsBody))
	require.NoError(t, err)

	attestationResponse := virtualwebauthn.CreateAttestationResponse(rp, authenticator, credential, *parsedCreation)

	// Step 2: finish registration.
	registerBody, err := json.Marshal(map[string]any{
		"publicKey": map[string]any{
			"credential": json.RawMessage(attestationResponse),
			"label":      "integration test passkey",
		},
	})
	require.NoError(t, err)
	verifyBody := postJSON(t, client, srv.URL+"/webauthn/register", registerBody)

	var verifyResp struct{ Verified bool `json:"verified"` }
	require.NoError(t, json.Unmarshal(verifyBody, &verifyResp))
	require.True(t, verifyResp.Verified, "registration should verify: %s", verifyBody)

	authenticator.AddCredential(credential)

	// Step 3: begin authentication.
	assertionOptionsBody := postJSON(t, client, srv.URL+"/webauthn/authenticate/options", []byte(`{"username":"passkey-user"}`))

	parsedRequest, err := virtualwebauthn.ParseAssertionOptions(string(assertionOptionsBody))
	require.NoError(t, err)

	assertionResponse := virtualwebauthn.CreateAssertionResponse(rp, authenticator, credential, *parsedRequest)

	// Step 4: finish authentication.
	loginBody := postJSON(t, client, srv.URL+"/login/webauthn", []byte(assertionResponse))

	var loginResp struct {
		Authenticated bool `json:"authenticated"`
	}
	require.NoError(t, json.Unmarshal(loginBody, &loginResp))
	require.True(t, loginResp.Authenticated, "login should authenticate: %s", loginBody)
}

// TestIntegration_WrongChallengeRejected checks that replaying a stale
// assertion against a fresh set of authentication options is rejected
// rather than silently accepted.
func TestIntegration_WrongChallengeRejected(t *testing.T) {
	srv, cfg := newTestServer(t)
	client := newTestClient(t)

	rp := virtualwebauthn.RelyingParty{
		Name:   cfg.RPDisplayName,
		ID:     cfg.RPID,
		Origin: cfg.RPOrigins[0],
	}
	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	optionsBody := postJSON(t, client, srv.URL+"/webauthn/register/options", []byte(`{"username":"replay-user"}`))
	parsedCreation, err := virtualwebauthn.ParseAttestationOptions(string(optionsBody))
	require.NoError(t, err)
	attestationResponse := virtualwebauthn.CreateAttestationResponse(rp, authenticator, credential, *parsedCreation)
	registerBody, err := json.Marshal(map[string]any{
		"publicKey": map[string]any{"credential": json.RawMessage(attestationResponse)},
	})
	require.NoError(t, err)
	postJSON(t, client, srv.URL+"/webauthn/register", registerBody)
	authenticator.AddCredential(credential)

	// Request fresh assertion options, then replay a response built against
	// a DIFFERENT (earlier, superseded) options issuance.
	firstOptionsBody := postJSON(t, client, srv.URL+"/webauthn/authenticate/options", nil)
	parsedFirst, err := virtualwebauthn.ParseAssertionOptions(string(firstOptionsBody))
	require.NoError(t, err)
	staleAssertion := virtualwebauthn.CreateAssertionResponse(rp, authenticator, credential, *parsedFirst)

	// Issue a second round of options (rotates the session cookie's target
	// entry), then attempt to finish login with the stale assertion, which
	// was signed against the first challenge.
	postJSON(t, client, srv.URL+"/webauthn/authenticate/options", nil)
	loginBody := postJSON(t, client, srv.URL+"/login/webauthn", []byte(staleAssertion))

	var loginResp struct {
		Authenticated bool   `json:"authenticated"`
		ErrorURL      string `json:"errorUrl"`
	}
	require.NoError(t, json.Unmarshal(loginBody, &loginResp))
	require.False(t, loginResp.Authenticated, "stale assertion must not authenticate: %s", loginBody)
}
