package wallet

import (
	"github.com/aviate-labs/agent-go/candid/idl"
	"github.com/aviate-labs/agent-go/principal"

	multisig "github.com/zCloak-Network/multisig-x402"
)

// transferAuthorizationPayload is the candid record submitted for
// co-signing. Field names follow the canister interface.
type transferAuthorizationPayload struct {
	To                string `ic:"to"`
	Value             string `ic:"value"`
	ValidAfter        string `ic:"validAfter"`
	ValidBefore       string `ic:"validBefore"`
	Nonce             string `ic:"nonce"`
	VerifyingContract string `ic:"verifyingContract"`
	ChainID           string `ic:"chainId"`
	DomainName        string `ic:"domainName"`
	DomainVersion     string `ic:"domainVersion"`
	VaultID           uint64 `ic:"vaultId"`
}

// requestAction is the action variant the orchestrator emits. The canister's
// action union carries many more variants; this type stays closed because
// the orchestrator never constructs or interprets the others.
type requestAction struct {
	SignTransferAuthorization *transferAuthorizationPayload `ic:"signTransferAuthorization,variant"`
}

// createRequestArgs wraps one action plus an optional expiry (nanoseconds).
type createRequestArgs struct {
	Action    requestAction `ic:"action"`
	ExpiresAt *uint64       `ic:"expiresAt"`
}

// requestStatusVariant is the canister's status union.
type requestStatusVariant struct {
	Pending  *idl.Null `ic:"pending,variant"`
	Approved *idl.Null `ic:"approved,variant"`
	Rejected *idl.Null `ic:"rejected,variant"`
	Expired  *idl.Null `ic:"expired,variant"`
	Executed *idl.Null `ic:"executed,variant"`
}

func (v requestStatusVariant) status() multisig.RequestStatus {
	switch {
	case v.Executed != nil:
		return multisig.StatusExecuted
	case v.Approved != nil:
		return multisig.StatusApproved
	case v.Rejected != nil:
		return multisig.StatusRejected
	case v.Expired != nil:
		return multisig.StatusExpired
	default:
		return multisig.StatusPending
	}
}

type approvalRecord struct {
	Approver  principal.Principal `ic:"approver"`
	Approved  bool                `ic:"approved"`
	Timestamp uint64              `ic:"timestamp"`
}

// requestRecord is the decoded view of a canister request. It declares only
// the fields the orchestrator consumes; in particular the action union is
// not declared, so records carrying foreign action variants still decode.
type requestRecord struct {
	ID             uint64               `ic:"id"`
	CreatedAt      uint64               `ic:"createdAt"`
	Proposer       principal.Principal  `ic:"proposer"`
	Approvals      []approvalRecord     `ic:"approvals"`
	Status         requestStatusVariant `ic:"status"`
	ExecutedResult *string              `ic:"executedResult"`
	ExecutedAt     *uint64              `ic:"executedAt"`
}

func (r *requestRecord) toDomain() *multisig.RequestRecord {
	rec := &multisig.RequestRecord{
		ID:         r.ID,
		CreatedAt:  r.CreatedAt,
		Proposer:   r.Proposer.Encode(),
		Status:     r.Status.status(),
		Signature:  r.ExecutedResult,
		ExecutedAt: r.ExecutedAt,
	}
	for _, a := range r.Approvals {
		rec.Approvals = append(rec.Approvals, multisig.Approval{
			Approver:  a.Approver.Encode(),
			Approved:  a.Approved,
			Timestamp: a.Timestamp,
		})
	}
	return rec
}

func payloadFromAuthorization(a multisig.TransferAuthorization) transferAuthorizationPayload {
	return transferAuthorizationPayload{
		To:                a.To,
		Value:             a.Value,
		ValidAfter:        a.ValidAfter,
		ValidBefore:       a.ValidBefore,
		Nonce:             a.Nonce,
		VerifyingContract: a.VerifyingContract,
		ChainID:           a.ChainID,
		DomainName:        a.DomainName,
		DomainVersion:     a.DomainVersion,
		VaultID:           a.VaultID,
	}
}
