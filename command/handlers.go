package command

import (
	"context"

	"github.com/classpilot/billing/core"
	gocmd "github.com/goliatone/go-command"
)

type MutatingService interface {
	CreateSchool(ctx context.Context, in core.CreateSchoolInput) (core.School, error)
	CreateMembership(ctx context.Context, in core.CreateMembershipInput) (core.Membership, error)
	CreateCampaign(ctx context.Context, in core.CreateCampaignInput) (core.Campaign, error)
	ReconcileSubscriptionEvent(ctx context.Context, event core.SubscriptionEvent) (core.Outcome, error)
	CancelSubscription(ctx context.Context, externalID string) (core.Subscription, error)
}

type CreateSchoolCommand struct {
	service MutatingService
}

func NewCreateSchoolCommand(service MutatingService) *CreateSchoolCommand {
	return &CreateSchoolCommand{service: service}
}

func (c *CreateSchoolCommand) Execute(ctx context.Context, msg CreateSchoolMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: school service is required")
	}
	out, err := c.service.CreateSchool(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateMembershipCommand struct {
	service MutatingService
}

func NewCreateMembershipCommand(service MutatingService) *CreateMembershipCommand {
	return &CreateMembershipCommand{service: service}
}

func (c *CreateMembershipCommand) Execute(ctx context.Context, msg CreateMembershipMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: membership service is required")
	}
	out, err := c.service.CreateMembership(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateCampaignCommand struct {
	service MutatingService
}

func NewCreateCampaignCommand(service MutatingService) *CreateCampaignCommand {
	return &CreateCampaignCommand{service: service}
}

func (c *CreateCampaignCommand) Execute(ctx context.Context, msg CreateCampaignMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: campaign service is required")
	}
	out, err := c.service.CreateCampaign(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

// CancelSubscriptionCommand closes a subscription from the admin side without
// waiting for the external processor's deleted event.
type CancelSubscriptionCommand struct {
	service MutatingService
}

func NewCancelSubscriptionCommand(service MutatingService) *CancelSubscriptionCommand {
	return &CancelSubscriptionCommand{service: service}
}

func (c *CancelSubscriptionCommand) Execute(ctx context.Context, msg CancelSubscriptionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: subscription service is required")
	}
	out, err := c.service.CancelSubscription(ctx, msg.ExternalID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

// ReconcileEventCommand applies one subscription event through the service.
// The reconcile outcome, including skips, is stored as the command result;
// the returned error reports infrastructure failures only.
type ReconcileEventCommand struct {
	service MutatingService
}

func NewReconcileEventCommand(service MutatingService) *ReconcileEventCommand {
	return &ReconcileEventCommand{service: service}
}

func (c *ReconcileEventCommand) Execute(ctx context.Context, msg ReconcileEventMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: reconcile service is required")
	}
	out, err := c.service.ReconcileSubscriptionEvent(ctx, msg.Event)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
