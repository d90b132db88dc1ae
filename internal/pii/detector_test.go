package pii

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect_PhoneNumber(t *testing.T) {
	d := NewDetector()
	set := d.Detect("Ring meg på 91234567 i morgen.")

	require.Contains(t, set.Detections, CategoryPhone)
	phones := set.Detections[CategoryPhone]
	// Mobile and generic digit patterns both hit the same span; one survives.
	require.Len(t, phones, 1)
	assert.Equal(t, "91234567", phones[0].Text)
	assert.InDelta(t, 0.9, phones[0].Confidence, 1e-9)
	assert.Equal(t, "91234567", "Ring meg på 91234567 i morgen."[phones[0].Start:phones[0].End])
}

func TestDetect_PhoneWithCountryCode(t *testing.T) {
	d := NewDetector()
	set := d.Detect("Nummeret er +47 91234567.")

	require.Contains(t, set.Detections, CategoryPhone)
	phones := set.Detections[CategoryPhone]
	require.Len(t, phones, 1)
	// The word boundary cannot sit between space and "+", so the match
	// starts at the subscriber digits.
	assert.Equal(t, "91234567", phones[0].Text)
}

func TestDetect_Email(t *testing.T) {
	d := NewDetector()
	set := d.Detect("Send avtalen til ola.nordmann@example.no takk.")

	require.Contains(t, set.Detections, CategoryEmail)
	emails := set.Detections[CategoryEmail]
	require.Len(t, emails, 1)
	assert.Equal(t, "ola.nordmann@example.no", emails[0].Text)
	assert.InDelta(t, 0.95, emails[0].Confidence, 1e-9)
}

func TestDetect_NorwegianID_ChecksumGated(t *testing.T) {
	d := NewDetector()

	valid := d.Detect("Personnummeret mitt er 01018512366.")
	require.Contains(t, valid.Detections, CategoryNorwegianID)
	assert.InDelta(t, 0.98, valid.Detections[CategoryNorwegianID][0].Confidence, 1e-9)

	invalid := d.Detect("Personnummeret mitt er 01018512367.")
	assert.NotContains(t, invalid.Detections, CategoryNorwegianID)
}

func TestDetect_CreditCard_LuhnGated(t *testing.T) {
	d := NewDetector()

	valid := d.Detect("Kortnummer 4111 1111 1111 1111 er registrert.")
	require.Contains(t, valid.Detections, CategoryCreditCard)
	assert.Equal(t, "4111 1111 1111 1111", valid.Detections[CategoryCreditCard][0].Text)

	invalid := d.Detect("Kortnummer 4111 1111 1111 1112 er registrert.")
	assert.NotContains(t, invalid.Detections, CategoryCreditCard)
}

func TestDetect_Address(t *testing.T) {
	d := NewDetector()
	set := d.Detect("Jeg bor i Storgata 12 i sentrum.")

	require.Contains(t, set.Detections, CategoryAddress)
	assert.Equal(t, "Storgata 12", set.Detections[CategoryAddress][0].Text)
}

func TestDetect_Name(t *testing.T) {
	d := NewDetector()
	set := d.Detect("Jeg snakket med Ola Nordmann i går.")

	require.Contains(t, set.Detections, CategoryName)
	names := set.Detections[CategoryName]
	require.Len(t, names, 1)
	assert.Equal(t, "Ola Nordmann", names[0].Text)
	assert.InDelta(t, 0.6, names[0].Confidence, 1e-9)
}

func TestDetect_BrandTermsExcludedFromNames(t *testing.T) {
	d := NewDetector()
	set := d.Detect("Telenor Norge har et godt tilbud.")

	assert.NotContains(t, set.Detections, CategoryName)
}

func TestDetect_NothingSensitive(t *testing.T) {
	d := NewDetector()
	set := d.Detect("en helt vanlig setning uten noe sensitivt")

	assert.Empty(t, set.Detections)
	assert.Zero(t, set.TotalCount)
	assert.Empty(t, set.TypesFound)
}

func TestDetect_TypesFoundSortedAndCounted(t *testing.T) {
	d := NewDetector()
	set := d.Detect("Ring 91234567 eller skriv til kari@example.no.")

	assert.Equal(t, 2, set.TotalCount)
	assert.Equal(t, []string{CategoryEmail, CategoryPhone}, set.TypesFound)
	assert.Len(t, set.Flatten(), 2)
}

func TestDropOverlaps_KeepsLongestEarliest(t *testing.T) {
	dets := []Detection{
		{Category: CategoryPhone, Text: "91234567", Start: 10, End: 18},
		{Category: CategoryPhone, Text: "91234567", Start: 10, End: 18},
		{Category: CategoryPhone, Text: "1234567", Start: 11, End: 18},
		{Category: CategoryPhone, Text: "99887766", Start: 30, End: 38},
	}
	kept := dropOverlaps(dets)

	require.Len(t, kept, 2)
	assert.Equal(t, 10, kept[0].Start)
	assert.Equal(t, 30, kept[1].Start)
}
