package client

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Approval is a stored allowance snapshot.
type Approval struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"owner_id"`
	WalletAddress  string     `json:"wallet_address"`
	Chain          string     `json:"chain"`
	TokenAddress   string     `json:"token_address"`
	TokenName      *string    `json:"token_name,omitempty"`
	TokenSymbol    *string    `json:"token_symbol,omitempty"`
	SpenderAddress string     `json:"spender_address"`
	SpenderName    *string    `json:"spender_name,omitempty"`
	Allowance      *string    `json:"allowance,omitempty"`
	IsUnlimited    bool       `json:"is_unlimited"`
	RiskLevel      string     `json:"risk_level"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`
	LastCheckedAt  time.Time  `json:"last_checked_at"`
	IsRevoked      bool       `json:"is_revoked"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
	RevokeTxHash   *string    `json:"revoke_tx_hash,omitempty"`
}

// CheckApprovalRequest identifies one (token, spender) pair.
type CheckApprovalRequest struct {
	Chain          string  `json:"chain"`
	WalletAddress  string  `json:"wallet_address"`
	TokenAddress   string  `json:"token_address"`
	SpenderAddress string  `json:"spender_address"`
	SpenderName    *string `json:"spender_name,omitempty"`
}

// ApprovalFilter narrows approval listings.
type ApprovalFilter struct {
	Chain          string
	Address        string
	IncludeRevoked bool
}

// ListApprovals lists the owner's approvals.
func (c *Client) ListApprovals(ctx context.Context, filter ApprovalFilter) ([]*Approval, error) {
	q := url.Values{}
	if filter.Chain != "" {
		q.Set("chain", filter.Chain)
	}
	if filter.Address != "" {
		q.Set("address", filter.Address)
	}
	if filter.IncludeRevoked {
		q.Set("include_revoked", "true")
	}
	path := "/api/v1/approvals"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Approvals []*Approval `json:"approvals"`
	}
	if _, err := c.do(ctx, "GET", path, nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Approvals, nil
}

// CheckApproval reads the current allowance and stores it.
func (c *Client) CheckApproval(ctx context.Context, req CheckApprovalRequest) (*Approval, error) {
	var out Approval
	if _, err := c.do(ctx, "POST", "/api/v1/approvals/check", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// RevokeApproval sets the allowance to zero through the server's signer.
func (c *Client) RevokeApproval(ctx context.Context, id string) (*Approval, error) {
	var out Approval
	if _, err := c.do(ctx, "POST", "/api/v1/approvals/"+url.PathEscape(id)+"/revoke", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	c.logger.Debug("approval revoked", "id", id)
	return &out, nil
}

// ReapproveApproval clears a revocation. A nil approvedAt means now.
func (c *Client) ReapproveApproval(ctx context.Context, id string, approvedAt *time.Time) (*Approval, error) {
	var in interface{}
	if approvedAt != nil {
		in = map[string]time.Time{"approved_at": *approvedAt}
	}
	var out Approval
	if _, err := c.do(ctx, "POST", "/api/v1/approvals/"+url.PathEscape(id)+"/reapprove", in, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
