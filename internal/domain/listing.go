package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Condition is the item condition offered by the marketplace form.
type Condition string

const (
	ConditionNew          Condition = "New"
	ConditionUsedLikeNew  Condition = "UsedLikeNew"
	ConditionUsedGood     Condition = "UsedGood"
	ConditionUsedFair     Condition = "UsedFair"
)

// Label returns the visible option text the listing form shows for the condition.
func (c Condition) Label() string {
	switch c {
	case ConditionUsedLikeNew:
		return "Used - Like New"
	case ConditionUsedGood:
		return "Used - Good"
	case ConditionUsedFair:
		return "Used - Fair"
	default:
		return "New"
	}
}

// ParseCondition maps stored text (either enum form or the visible label)
// back to a Condition. Unknown values default to New.
func ParseCondition(s string) Condition {
	switch strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(s, " ", ""), "-", "")) {
	case "usedlikenew":
		return ConditionUsedLikeNew
	case "usedgood":
		return ConditionUsedGood
	case "usedfair":
		return ConditionUsedFair
	default:
		return ConditionNew
	}
}

// DeliveryMethod is how the buyer receives the item.
type DeliveryMethod string

const (
	DeliveryPublicMeetup DeliveryMethod = "PublicMeetup"
	DeliveryDoorPickup   DeliveryMethod = "DoorPickup"
	DeliveryDoorDropoff  DeliveryMethod = "DoorDropoff"
)

// Label returns the visible option text for the delivery method.
func (d DeliveryMethod) Label() string {
	switch d {
	case DeliveryPublicMeetup:
		return "Public meetup"
	case DeliveryDoorDropoff:
		return "Door dropoff"
	default:
		return "Door pickup"
	}
}

// ParseDeliveryMethod maps stored text to a DeliveryMethod, defaulting to
// door pickup so rows created before the column existed keep working.
func ParseDeliveryMethod(s string) DeliveryMethod {
	switch strings.ToLower(strings.ReplaceAll(s, " ", "")) {
	case "publicmeetup":
		return DeliveryPublicMeetup
	case "doordropoff":
		return DeliveryDoorDropoff
	default:
		return DeliveryDoorPickup
	}
}

// MaxGroups is the most groups a single listing may be cross-posted to.
const MaxGroups = 20

// ListingPayload is one concrete listing to publish. It is immutable once
// handed to the submission state machine; the scheduler owns it for the
// duration of a single attempt.
type ListingPayload struct {
	Title          string
	Description    string
	Price          float64
	Category       string
	Condition      Condition
	Location       string
	DeliveryMethod DeliveryMethod
	Images         []string
	Groups         []string
	Boost          bool
}

// Validate rejects payloads the form cannot possibly accept.
func (p ListingPayload) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("listing title is empty")
	}
	if p.Price < 0 {
		return fmt.Errorf("listing price is negative: %v", p.Price)
	}
	if len(p.Images) == 0 {
		return fmt.Errorf("listing has no images")
	}
	if len(p.Groups) > MaxGroups {
		return fmt.Errorf("listing targets %d groups, max is %d", len(p.Groups), MaxGroups)
	}
	return nil
}

// PriceString renders the price the way a human would type it: integer
// prices without a decimal point, everything else as the exact decimal.
func (p ListingPayload) PriceString() string {
	if p.Price == math.Trunc(p.Price) {
		return strconv.FormatInt(int64(p.Price), 10)
	}
	return strconv.FormatFloat(p.Price, 'f', -1, 64)
}

// SubmissionResult is produced exactly once per submission attempt.
type SubmissionResult struct {
	Success     bool
	ErrorDetail string
}

// Succeeded returns a successful result.
func Succeeded() SubmissionResult {
	return SubmissionResult{Success: true}
}

// Failed returns a failed result carrying the error text.
func Failed(err error) SubmissionResult {
	return SubmissionResult{Success: false, ErrorDetail: err.Error()}
}
