package oracle_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/norruva/dpp-service/internal"
	"github.com/norruva/dpp-service/internal/oracle"
	"github.com/norruva/dpp-service/internal/product"
)

func TestOracle(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Oracle Suite")
}

var _ = Describe("Client", func() {
	var (
		client *oracle.Client
		server *httptest.Server

		mu         sync.Mutex
		lastPath   string
		lastAPIKey string
		respond    func(w http.ResponseWriter)
	)

	setRespond := func(f func(w http.ResponseWriter)) {
		mu.Lock()
		defer mu.Unlock()
		respond = f
	}

	lastRequest := func() (string, string) {
		mu.Lock()
		defer mu.Unlock()
		return lastPath, lastAPIKey
	}

	BeforeEach(func() {
		respond = func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{}`))
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			lastPath = r.URL.Path
			lastAPIKey = r.Header.Get("X-API-Key")
			handle := respond
			mu.Unlock()
			handle(w)
		}))
		DeferCleanup(server.Close)

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		client = oracle.NewClient(internal.OracleConfig{
			BaseURL: server.URL,
			APIKey:  "test-key",
			Timeout: 5 * time.Second,
		}, logger)
	})

	Describe("CreateVerifiableCredential", func() {
		It("should post to the credentials endpoint with the api key", func() {
			setRespond(func(w http.ResponseWriter) {
				_ = json.NewEncoder(w).Encode(map[string]string{"credential": "vc-jwt"})
			})

			credential, err := client.CreateVerifiableCredential(context.Background(), &product.Product{ID: "prod-1", Name: "Panel"})

			Expect(err).ToNot(HaveOccurred())
			Expect(credential).To(Equal("vc-jwt"))
			path, apiKey := lastRequest()
			Expect(path).To(Equal("/v1/credentials"))
			Expect(apiKey).To(Equal("test-key"))
		})

		It("should reject an empty credential in the response", func() {
			_, err := client.CreateVerifiableCredential(context.Background(), &product.Product{ID: "prod-1"})
			Expect(err).To(MatchError(ContainSubstring("empty credential")))
		})
	})

	Describe("AnchorToPolygon", func() {
		It("should return the receipt with chain defaults filled in", func() {
			setRespond(func(w http.ResponseWriter) {
				_ = json.NewEncoder(w).Encode(map[string]string{"tx_hash": "0xabc"})
			})

			proof, err := client.AnchorToPolygon(context.Background(), "prod-1")

			Expect(err).ToNot(HaveOccurred())
			Expect(proof.TxHash).To(Equal("0xabc"))
			Expect(proof.Chain).To(Equal("polygon"))
			Expect(proof.AnchoredAt).ToNot(BeZero())
			path, _ := lastRequest()
			Expect(path).To(Equal("/v1/anchors"))
		})
	})

	Describe("VerifyComplianceProof", func() {
		It("should pass the oracle's verdict through", func() {
			setRespond(func(w http.ResponseWriter) {
				_ = json.NewEncoder(w).Encode(map[string]bool{"valid": true})
			})

			valid, err := client.VerifyComplianceProof(context.Background(), "proof-blob")

			Expect(err).ToNot(HaveOccurred())
			Expect(valid).To(BeTrue())
			path, _ := lastRequest()
			Expect(path).To(Equal("/v1/proofs/verify"))
		})
	})

	Describe("error handling", func() {
		It("should surface non-2xx responses with a body snippet", func() {
			setRespond(func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte("upstream chain unavailable"))
			})

			_, err := client.AnchorToPolygon(context.Background(), "prod-1")

			Expect(err).To(MatchError(ContainSubstring("status 502")))
			Expect(err).To(MatchError(ContainSubstring("upstream chain unavailable")))
		})
	})
})
