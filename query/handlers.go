package query

import (
	"context"

	"github.com/classpilot/billing/core"
)

type SchoolReader interface {
	GetSchool(ctx context.Context, id string) (core.School, error)
	ListSchoolsByMarket(ctx context.Context, marketID string, limit, offset int) ([]core.School, int, error)
}

type MembershipReader interface {
	ListMemberships(ctx context.Context, limit, offset int) ([]core.Membership, int, error)
}

type SubscriptionReader interface {
	GetSubscriptionByExternalID(ctx context.Context, externalID string) (core.Subscription, error)
	ListSubscriptionsBySchool(ctx context.Context, schoolID string, limit, offset int) ([]core.Subscription, int, error)
}

type ActivityReader interface {
	ListActivityBySchool(ctx context.Context, schoolID string, limit, offset int) ([]core.ActivityEntry, int, error)
}

type SchoolPage struct {
	Items []core.School
	Total int
}

type MembershipPage struct {
	Items []core.Membership
	Total int
}

type SubscriptionPage struct {
	Items []core.Subscription
	Total int
}

type ActivityPage struct {
	Items []core.ActivityEntry
	Total int
}

type GetSchoolQuery struct {
	reader SchoolReader
}

func NewGetSchoolQuery(reader SchoolReader) *GetSchoolQuery {
	return &GetSchoolQuery{reader: reader}
}

func (q *GetSchoolQuery) Query(ctx context.Context, msg GetSchoolMessage) (core.School, error) {
	if q == nil || q.reader == nil {
		return core.School{}, queryDependencyError("query: school reader is required")
	}
	return q.reader.GetSchool(ctx, msg.SchoolID)
}

type ListSchoolsQuery struct {
	reader SchoolReader
}

func NewListSchoolsQuery(reader SchoolReader) *ListSchoolsQuery {
	return &ListSchoolsQuery{reader: reader}
}

func (q *ListSchoolsQuery) Query(ctx context.Context, msg ListSchoolsMessage) (SchoolPage, error) {
	if q == nil || q.reader == nil {
		return SchoolPage{}, queryDependencyError("query: school reader is required")
	}
	items, total, err := q.reader.ListSchoolsByMarket(ctx, msg.MarketID, msg.Limit, msg.Offset)
	if err != nil {
		return SchoolPage{}, err
	}
	return SchoolPage{Items: items, Total: total}, nil
}

type ListMembershipsQuery struct {
	reader MembershipReader
}

func NewListMembershipsQuery(reader MembershipReader) *ListMembershipsQuery {
	return &ListMembershipsQuery{reader: reader}
}

func (q *ListMembershipsQuery) Query(ctx context.Context, msg ListMembershipsMessage) (MembershipPage, error) {
	if q == nil || q.reader == nil {
		return MembershipPage{}, queryDependencyError("query: membership reader is required")
	}
	items, total, err := q.reader.ListMemberships(ctx, msg.Limit, msg.Offset)
	if err != nil {
		return MembershipPage{}, err
	}
	return MembershipPage{Items: items, Total: total}, nil
}

type GetSubscriptionQuery struct {
	reader SubscriptionReader
}

func NewGetSubscriptionQuery(reader SubscriptionReader) *GetSubscriptionQuery {
	return &GetSubscriptionQuery{reader: reader}
}

func (q *GetSubscriptionQuery) Query(ctx context.Context, msg GetSubscriptionMessage) (core.Subscription, error) {
	if q == nil || q.reader == nil {
		return core.Subscription{}, queryDependencyError("query: subscription reader is required")
	}
	return q.reader.GetSubscriptionByExternalID(ctx, msg.ExternalID)
}

type ListSubscriptionsQuery struct {
	reader SubscriptionReader
}

func NewListSubscriptionsQuery(reader SubscriptionReader) *ListSubscriptionsQuery {
	return &ListSubscriptionsQuery{reader: reader}
}

func (q *ListSubscriptionsQuery) Query(
	ctx context.Context,
	msg ListSubscriptionsMessage,
) (SubscriptionPage, error) {
	if q == nil || q.reader == nil {
		return SubscriptionPage{}, queryDependencyError("query: subscription reader is required")
	}
	items, total, err := q.reader.ListSubscriptionsBySchool(ctx, msg.SchoolID, msg.Limit, msg.Offset)
	if err != nil {
		return SubscriptionPage{}, err
	}
	return SubscriptionPage{Items: items, Total: total}, nil
}

type ListActivityQuery struct {
	reader ActivityReader
}

func NewListActivityQuery(reader ActivityReader) *ListActivityQuery {
	return &ListActivityQuery{reader: reader}
}

func (q *ListActivityQuery) Query(ctx context.Context, msg ListActivityMessage) (ActivityPage, error) {
	if q == nil || q.reader == nil {
		return ActivityPage{}, queryDependencyError("query: activity reader is required")
	}
	items, total, err := q.reader.ListActivityBySchool(ctx, msg.SchoolID, msg.Limit, msg.Offset)
	if err != nil {
		return ActivityPage{}, err
	}
	return ActivityPage{Items: items, Total: total}, nil
}
