package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriceString(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		want  string
	}{
		{"whole number drops decimals", 25.0, "25"},
		{"zero", 0, "0"},
		{"cents kept exactly", 19.99, "19.99"},
		{"single decimal", 10.5, "10.5"},
		{"large whole", 120000, "120000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ListingPayload{Price: tt.price}
			assert.Equal(t, tt.want, p.PriceString())
		})
	}
}

func TestValidate(t *testing.T) {
	valid := ListingPayload{
		Title:  "Desk Lamp",
		Price:  25,
		Images: []string{"lamp.jpg"},
	}
	assert.NoError(t, valid.Validate())

	noTitle := valid
	noTitle.Title = "   "
	assert.Error(t, noTitle.Validate())

	negative := valid
	negative.Price = -1
	assert.Error(t, negative.Validate())

	noImages := valid
	noImages.Images = nil
	assert.Error(t, noImages.Validate())

	tooManyGroups := valid
	tooManyGroups.Groups = make([]string, MaxGroups+1)
	assert.Error(t, tooManyGroups.Validate())
}

func TestConditionLabels(t *testing.T) {
	assert.Equal(t, "New", ConditionNew.Label())
	assert.Equal(t, "Used - Like New", ConditionUsedLikeNew.Label())
	assert.Equal(t, "Used - Good", ConditionUsedGood.Label())
	assert.Equal(t, "Used - Fair", ConditionUsedFair.Label())
}

func TestParseCondition(t *testing.T) {
	// Both the stored enum form and the visible label round-trip.
	for _, c := range []Condition{ConditionNew, ConditionUsedLikeNew, ConditionUsedGood, ConditionUsedFair} {
		assert.Equal(t, c, ParseCondition(string(c)))
		assert.Equal(t, c, ParseCondition(c.Label()))
	}
	assert.Equal(t, ConditionNew, ParseCondition("something else"))
	assert.Equal(t, ConditionNew, ParseCondition(""))
}

func TestParseDeliveryMethod(t *testing.T) {
	for _, d := range []DeliveryMethod{DeliveryPublicMeetup, DeliveryDoorPickup, DeliveryDoorDropoff} {
		assert.Equal(t, d, ParseDeliveryMethod(string(d)))
		assert.Equal(t, d, ParseDeliveryMethod(d.Label()))
	}
	// Rows from before the column existed default to door pickup.
	assert.Equal(t, DeliveryDoorPickup, ParseDeliveryMethod(""))
}

func TestSubmissionResult(t *testing.T) {
	ok := Succeeded()
	assert.True(t, ok.Success)
	assert.Empty(t, ok.ErrorDetail)

	failed := Failed(assert.AnError)
	assert.False(t, failed.Success)
	assert.Equal(t, assert.AnError.Error(), failed.ErrorDetail)
}
