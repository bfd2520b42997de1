package query

import (
	"fmt"
	"strings"
)

const (
	TypeGetSchool         = "billing.query.school.get"
	TypeListSchools       = "billing.query.school.list"
	TypeListMemberships   = "billing.query.membership.list"
	TypeGetSubscription   = "billing.query.subscription.get"
	TypeListSubscriptions = "billing.query.subscription.list"
	TypeListActivity      = "billing.query.activity.list"
)

type GetSchoolMessage struct {
	SchoolID string
}

func (GetSchoolMessage) Type() string { return TypeGetSchool }

func (m GetSchoolMessage) Validate() error {
	if strings.TrimSpace(m.SchoolID) == "" {
		return fmt.Errorf("query: school id is required")
	}
	return nil
}

type ListSchoolsMessage struct {
	MarketID string
	Limit    int
	Offset   int
}

func (ListSchoolsMessage) Type() string { return TypeListSchools }

func (m ListSchoolsMessage) Validate() error {
	if strings.TrimSpace(m.MarketID) == "" {
		return fmt.Errorf("query: market id is required")
	}
	return validatePaging(m.Limit, m.Offset)
}

type ListMembershipsMessage struct {
	Limit  int
	Offset int
}

func (ListMembershipsMessage) Type() string { return TypeListMemberships }

func (m ListMembershipsMessage) Validate() error {
	return validatePaging(m.Limit, m.Offset)
}

type GetSubscriptionMessage struct {
	ExternalID string
}

func (GetSubscriptionMessage) Type() string { return TypeGetSubscription }

func (m GetSubscriptionMessage) Validate() error {
	if strings.TrimSpace(m.ExternalID) == "" {
		return fmt.Errorf("query: external subscription id is required")
	}
	return nil
}

type ListSubscriptionsMessage struct {
	SchoolID string
	Limit    int
	Offset   int
}

func (ListSubscriptionsMessage) Type() string { return TypeListSubscriptions }

func (m ListSubscriptionsMessage) Validate() error {
	if strings.TrimSpace(m.SchoolID) == "" {
		return fmt.Errorf("query: school id is required")
	}
	return validatePaging(m.Limit, m.Offset)
}

type ListActivityMessage struct {
	SchoolID string
	Limit    int
	Offset   int
}

func (ListActivityMessage) Type() string { return TypeListActivity }

func (m ListActivityMessage) Validate() error {
	if strings.TrimSpace(m.SchoolID) == "" {
		return fmt.Errorf("query: school id is required")
	}
	return validatePaging(m.Limit, m.Offset)
}

func validatePaging(limit, offset int) error {
	if limit < 0 {
		return fmt.Errorf("query: limit must be >= 0")
	}
	if offset < 0 {
		return fmt.Errorf("query: offset must be >= 0")
	}
	return nil
}
