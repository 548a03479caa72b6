package access

import (
	"context"
	"errors"
)

// CredentialDelivery hands the issued credential to an external channel
// (email, SMS). Implementations live outside this package.
type CredentialDelivery interface {
	Send(ctx context.Context, ev CredentialIssued) error
}

// ProvisionResult is what the workflow returns: the persisted user, the
// one-time credential, and the delivery outcome. DeliveryErr is a
// warning, not a failure: the user record persists regardless and the
// caller may retry delivery independently.
type ProvisionResult struct {
	User        User
	Credential  Credential
	Delivered   bool
	DeliveryErr error
}

// Provisioner orchestrates account creation: validate, create the user
// through the directory, then best-effort notify the delivery channel.
type Provisioner struct {
	directory *Directory
	delivery  CredentialDelivery
}

// NewProvisioner constructs the workflow. Delivery may be nil when no
// channel is configured; provisioning then succeeds with Delivered
// false.
func NewProvisioner(directory *Directory, delivery CredentialDelivery) (*Provisioner, error) {
	if directory == nil {
		return nil, errors.New("access: directory is required")
	}
	return &Provisioner{directory: directory, delivery: delivery}, nil
}

// Provision creates the account and emits the credential. Each step
// short-circuits on failure; once the user is persisted, nothing rolls
// it back. The delivery call runs after the store write completes, so no
// store lock is held while waiting on the external channel.
func (p *Provisioner) Provision(ctx context.Context, in NewUser) (ProvisionResult, error) {
	user, cred, err := p.directory.CreateUser(ctx, in)
	if err != nil {
		return ProvisionResult{}, err
	}
	res := ProvisionResult{User: user, Credential: cred}
	if p.delivery == nil {
		return res, nil
	}
	if err := p.delivery.Send(ctx, CredentialIssued{User: user, Credential: cred}); err != nil {
		res.DeliveryErr = err
		return res, nil
	}
	res.Delivered = true
	return res, nil
}
