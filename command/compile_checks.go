package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[CreateSchoolMessage]       = (*CreateSchoolCommand)(nil)
	_ gocmd.Commander[CreateMembershipMessage]   = (*CreateMembershipCommand)(nil)
	_ gocmd.Commander[CreateCampaignMessage]     = (*CreateCampaignCommand)(nil)
	_ gocmd.Commander[ReconcileEventMessage]     = (*ReconcileEventCommand)(nil)
	_ gocmd.Commander[CancelSubscriptionMessage] = (*CancelSubscriptionCommand)(nil)
)
