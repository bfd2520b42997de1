package query

import (
	"github.com/classpilot/billing/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[GetSchoolMessage, core.School]              = (*GetSchoolQuery)(nil)
	_ gocmd.Querier[ListSchoolsMessage, SchoolPage]             = (*ListSchoolsQuery)(nil)
	_ gocmd.Querier[ListMembershipsMessage, MembershipPage]     = (*ListMembershipsQuery)(nil)
	_ gocmd.Querier[GetSubscriptionMessage, core.Subscription]  = (*GetSubscriptionQuery)(nil)
	_ gocmd.Querier[ListSubscriptionsMessage, SubscriptionPage] = (*ListSubscriptionsQuery)(nil)
	_ gocmd.Querier[ListActivityMessage, ActivityPage]          = (*ListActivityQuery)(nil)
)
