package billing

import (
	"fmt"

	billingcommand "github.com/classpilot/billing/command"
	billingquery "github.com/classpilot/billing/query"
)

// CommandQueryService is the surface the facade needs from the domain
// service. core.Service satisfies it.
type CommandQueryService interface {
	billingcommand.MutatingService
	billingquery.SchoolReader
	billingquery.MembershipReader
	billingquery.SubscriptionReader
	billingquery.ActivityReader
}

type Commands struct {
	CreateSchool       *billingcommand.CreateSchoolCommand
	CreateMembership   *billingcommand.CreateMembershipCommand
	CreateCampaign     *billingcommand.CreateCampaignCommand
	ReconcileEvent     *billingcommand.ReconcileEventCommand
	CancelSubscription *billingcommand.CancelSubscriptionCommand
}

type Queries struct {
	GetSchool         *billingquery.GetSchoolQuery
	ListSchools       *billingquery.ListSchoolsQuery
	ListMemberships   *billingquery.ListMembershipsQuery
	GetSubscription   *billingquery.GetSubscriptionQuery
	ListSubscriptions *billingquery.ListSubscriptionsQuery
	ListActivity      *billingquery.ListActivityQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("billing: command/query service is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		CreateSchool:       billingcommand.NewCreateSchoolCommand(service),
		CreateMembership:   billingcommand.NewCreateMembershipCommand(service),
		CreateCampaign:     billingcommand.NewCreateCampaignCommand(service),
		ReconcileEvent:     billingcommand.NewReconcileEventCommand(service),
		CancelSubscription: billingcommand.NewCancelSubscriptionCommand(service),
	}
	facade.queries = Queries{
		GetSchool:         billingquery.NewGetSchoolQuery(service),
		ListSchools:       billingquery.NewListSchoolsQuery(service),
		ListMemberships:   billingquery.NewListMembershipsQuery(service),
		GetSubscription:   billingquery.NewGetSubscriptionQuery(service),
		ListSubscriptions: billingquery.NewListSubscriptionsQuery(service),
		ListActivity:      billingquery.NewListActivityQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

var _ CommandQueryService = (*Service)(nil)
