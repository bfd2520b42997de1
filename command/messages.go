package command

import (
	"fmt"
	"strings"

	"github.com/classpilot/billing/core"
)

const (
	TypeCreateSchool       = "billing.command.school.create"
	TypeCreateMembership   = "billing.command.membership.create"
	TypeCreateCampaign     = "billing.command.campaign.create"
	TypeReconcileEvent     = "billing.command.subscription.reconcile"
	TypeCancelSubscription = "billing.command.subscription.cancel"
)

type CreateSchoolMessage struct {
	Input core.CreateSchoolInput
}

func (CreateSchoolMessage) Type() string { return TypeCreateSchool }

func (m CreateSchoolMessage) Validate() error {
	if strings.TrimSpace(m.Input.Name) == "" {
		return fmt.Errorf("command: school name is required")
	}
	if strings.TrimSpace(m.Input.Kind) == "" {
		return fmt.Errorf("command: school kind is required")
	}
	if strings.TrimSpace(m.Input.MarketID) == "" {
		return fmt.Errorf("command: market id is required")
	}
	return nil
}

type CreateMembershipMessage struct {
	Input core.CreateMembershipInput
}

func (CreateMembershipMessage) Type() string { return TypeCreateMembership }

func (m CreateMembershipMessage) Validate() error {
	if strings.TrimSpace(m.Input.Name) == "" {
		return fmt.Errorf("command: membership name is required")
	}
	if strings.TrimSpace(m.Input.PriceID) == "" {
		return fmt.Errorf("command: membership price id is required")
	}
	return nil
}

type CreateCampaignMessage struct {
	Input core.CreateCampaignInput
}

func (CreateCampaignMessage) Type() string { return TypeCreateCampaign }

func (m CreateCampaignMessage) Validate() error {
	if strings.TrimSpace(m.Input.Name) == "" {
		return fmt.Errorf("command: campaign name is required")
	}
	return nil
}

type CancelSubscriptionMessage struct {
	ExternalID string
}

func (CancelSubscriptionMessage) Type() string { return TypeCancelSubscription }

func (m CancelSubscriptionMessage) Validate() error {
	if strings.TrimSpace(m.ExternalID) == "" {
		return fmt.Errorf("command: subscription external id is required")
	}
	return nil
}

type ReconcileEventMessage struct {
	Event core.SubscriptionEvent
}

func (ReconcileEventMessage) Type() string { return TypeReconcileEvent }

func (m ReconcileEventMessage) Validate() error {
	if err := m.Event.Validate(); err != nil {
		return commandWrapValidation(err, "command: invalid subscription event")
	}
	return nil
}
