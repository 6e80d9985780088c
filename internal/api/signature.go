package api

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

const signatureHeader = "X-Twilio-Signature"

// SignatureVerifier checks that webhook requests were signed by the carrier
// with the account auth token.
type SignatureVerifier struct {
	authToken string
	publicURL string
}

// NewSignatureVerifier builds a verifier. publicURL, when set, replaces the
// scheme and host seen by the server, for deployments behind a proxy.
func NewSignatureVerifier(authToken, publicURL string) *SignatureVerifier {
	return &SignatureVerifier{
		authToken: authToken,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// Sign returns the base64 HMAC-SHA1 of fullURL followed by every POST
// parameter name and value, sorted by name.
func (v *SignatureVerifier) Sign(fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		vals := append([]string(nil), params[k]...)
		sort.Strings(vals)
		for _, val := range vals {
			b.WriteString(k)
			b.WriteString(val)
		}
	}

	mac := hmac.New(sha1.New, []byte(v.authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (v *SignatureVerifier) requestURL(r *http.Request) string {
	if v.publicURL != "" {
		return v.publicURL + r.URL.RequestURI()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// Middleware rejects requests whose signature header is missing or wrong
// with 403. The form is parsed here so handlers see it unchanged.
func (v *SignatureVerifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form body", http.StatusBadRequest)
			return
		}

		got := r.Header.Get(signatureHeader)
		want := v.Sign(v.requestURL(r), r.PostForm)
		if got == "" || !hmac.Equal([]byte(got), []byte(want)) {
			slog.Warn("webhook signature rejected", "path", r.URL.Path, "remote", r.RemoteAddr)
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
