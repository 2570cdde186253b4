package oauth

import (
	"net/http"
	"time"
)

type options struct {
	httpClient HTTPClient
	crypto     CryptoProvider
	codec      Codec
	clock      Clock
	flowTTL    time.Duration
}

// Option configures an Orchestrator or a TokenManager.
type Option func(*options)

// WithHTTPClient sets the transport for token endpoint requests.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(o *options) {
		o.httpClient = httpClient
	}
}

// WithHTTPTimeout replaces the transport with an *http.Client using timeout
// d. Non-positive values leave the transport unchanged.
func WithHTTPTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithCrypto sets the source of randomness and hashing for PKCE.
func WithCrypto(crypto CryptoProvider) Option {
	return func(o *options) {
		o.crypto = crypto
	}
}

// WithCodec sets the base64url codec.
func WithCodec(codec Codec) Option {
	return func(o *options) {
		o.codec = codec
	}
}

// WithClock sets the time source used for flow and token expiry.
func WithClock(clock Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithFlowTTL sets how long a pending flow can be redeemed.
// Zero disables expiry.
func WithFlowTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.flowTTL = ttl
	}
}

func newOptions(opts []Option) options {
	o := options{
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		crypto:     DefaultCrypto,
		codec:      Base64URL,
		clock:      systemClock{},
		flowTTL:    DefaultFlowTTL,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
