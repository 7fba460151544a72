package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/brojonat/chainsync/service/chain"
	"github.com/brojonat/chainsync/service/evm"
	solanago "github.com/gagliardetto/solana-go"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	maxAddressLength   = 100     // EVM addresses are 42 chars, Solana up to 44
	maxOwnerIDLength   = 200
	maxLabelLength     = 200
)

// OwnerHeader carries the authenticated owner identity. Authentication
// itself happens upstream of this service.
const OwnerHeader = "X-Owner-ID"

// requireOwner rejects requests without an owner identity.
func requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
		if owner == "" {
			writeError(w, "missing "+OwnerHeader+" header", http.StatusUnauthorized)
			return
		}
		if len(owner) > maxOwnerIDLength || hasControl(owner) {
			writeError(w, "invalid "+OwnerHeader+" header", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ownerID returns the owner set on a request that passed requireOwner.
func ownerID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(OwnerHeader))
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errorf("invalid request body: %v", err)
	}
	return nil
}

// parseChain validates a chain tag.
func parseChain(tag string) (chain.Chain, error) {
	if tag == "" {
		return "", errorf("chain is required")
	}
	c, err := chain.Parse(tag)
	if err != nil {
		return "", errorf("%v", err)
	}
	return c, nil
}

// validateAddress validates an address for the given chain.
func validateAddress(c chain.Chain, address string) error {
	if address == "" {
		return errorf("address is required")
	}

	if len(address) > maxAddressLength {
		return errorf("address too long: maximum length is %d characters", maxAddressLength)
	}

	if hasControl(address) {
		return errorf("invalid characters in address: control characters not allowed")
	}

	switch c.Family() {
	case chain.FamilyEVM:
		if !evm.ValidAddress(address) {
			return errorf("invalid address format: expected 0x-prefixed 20-byte hex")
		}
	case chain.FamilySolana:
		if _, err := solanago.PublicKeyFromBase58(address); err != nil {
			return errorf("invalid address format: must be a base58 public key")
		}
	default:
		return errorf("unsupported chain: %s", c)
	}

	return nil
}

func hasControl(s string) bool {
	for _, r := range s {
		if r == 0 || unicode.IsControl(r) {
			return true
		}
	}
	return false
}

// parseLimitOffset parses limit (default def, max 1000) and offset (default 0).
func parseLimitOffset(r *http.Request, def int32) (int32, int32, error) {
	query := r.URL.Query()

	limit := def
	if limitStr := query.Get("limit"); limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, errorf("invalid limit parameter: must be an integer")
		}
		if parsedLimit < 1 {
			return 0, 0, errorf("limit must be at least 1")
		}
		if parsedLimit > 1000 {
			return 0, 0, errorf("limit cannot exceed 1000")
		}
		limit = int32(parsedLimit)
	}

	offset := int32(0)
	if offsetStr := query.Get("offset"); offsetStr != "" {
		parsedOffset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return 0, 0, errorf("invalid offset parameter: must be an integer")
		}
		if parsedOffset < 0 {
			return 0, 0, errorf("offset cannot be negative")
		}
		offset = int32(parsedOffset)
	}

	return limit, offset, nil
}

// chainAddressFilter reads the optional chain and address query filters.
func chainAddressFilter(r *http.Request) (*chain.Chain, *string, error) {
	query := r.URL.Query()
	var cp *chain.Chain
	if tag := query.Get("chain"); tag != "" {
		c, err := parseChain(tag)
		if err != nil {
			return nil, nil, err
		}
		cp = &c
	}
	var ap *string
	if address := query.Get("address"); address != "" {
		if cp == nil {
			return nil, nil, errorf("address filter requires chain")
		}
		if err := validateAddress(*cp, address); err != nil {
			return nil, nil, err
		}
		canonical := chain.CanonicalAddress(*cp, address)
		ap = &canonical
	}
	return cp, ap, nil
}

// errorf is a helper to format error strings.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
