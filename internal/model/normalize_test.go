package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+55 (31) 3333-4444", "3133334444"},
		{"+55 31 99999-0000", "31999990000"},
		{"5531999990000", "31999990000"},
		{"(31) 3333-4444", "3133334444"},
		{"31 99999-0000", "31999990000"},
		{"55 3333-4444", "5533334444"}, // too short to carry a calling code
		{"", ""},
		{"n/a", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.in))
		})
	}
}

func TestNormalizePhone_StripsExactlyThePrefix(t *testing.T) {
	for _, national := range []string{"3133334444", "31999990000", "1140041234"} {
		got := NormalizePhone("55" + national)
		assert.Equal(t, national, got)
	}
}

func TestNormalizeRegistrationID(t *testing.T) {
	assert.Equal(t, "12345678000190", NormalizeRegistrationID("12.345.678/0001-90"))
	assert.Equal(t, "01234567000190", NormalizeRegistrationID("1234567000190"))
	assert.Equal(t, "", NormalizeRegistrationID("123456780001901"))
	assert.Equal(t, "", NormalizeRegistrationID("abc"))
	assert.Equal(t, "00345678000190", NormalizeRegistrationID("345678000190"))
	assert.Equal(t, "", NormalizeRegistrationID("45678000190"))
	assert.Equal(t, "", NormalizeRegistrationID("123"))
}

func TestFormatRegistrationID(t *testing.T) {
	assert.Equal(t, "12.345.678/0001-90", FormatRegistrationID("12345678000190"))
	assert.Equal(t, "", FormatRegistrationID(""))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "contato@acme.com.br", NormalizeEmail("mailto:Contato@Acme.com.br?subject=Oi"))
	assert.Equal(t, "a@b.com", NormalizeEmail("  A@B.COM "))
	assert.Equal(t, "", NormalizeEmail("not-an-email"))
	assert.Equal(t, "", NormalizeEmail("a@b@c"))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "acme dental", NormalizeName("  ACME   Dental! "))
	assert.Equal(t, "clinica sao joao", NormalizeName("Clínica São-João"))
	assert.Equal(t, NormalizeName("Acme Dental"), NormalizeName("acme dental"))
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "rua a, 100", NormalizeAddress("Rua  A, 100 "))
	assert.NotEqual(t, NormalizeAddress("Av. Brasil"), NormalizeAddress("Avenida Brasil"))
}

func TestSocialPlatform(t *testing.T) {
	assert.Equal(t, PlatformFacebook, SocialPlatform("https://www.facebook.com/acme"))
	assert.Equal(t, PlatformFacebook, SocialPlatform("https://m.facebook.com/acme"))
	assert.Equal(t, PlatformInstagram, SocialPlatform("https://instagram.com/acme/"))
	assert.Equal(t, PlatformLinkedIn, SocialPlatform("https://br.linkedin.com/company/acme"))
	assert.Equal(t, PlatformTwitter, SocialPlatform("https://x.com/acme"))
	assert.Equal(t, "", SocialPlatform("https://notfacebook.com/acme"))
	assert.Equal(t, "", SocialPlatform("/relative"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		lead Lead
		want Tier
	}{
		{"email and website", Lead{Email: "a@b.com", Website: "https://b.com"}, TierHigh},
		{"email website phone", Lead{Email: "a@b.com", Website: "https://b.com", Phone: "1"}, TierHigh},
		{"phone and website", Lead{Phone: "3133334444", Website: "https://b.com"}, TierMedium},
		{"phone only", Lead{Phone: "3133334444"}, TierLow},
		{"email only", Lead{Email: "a@b.com"}, TierVeryLow},
		{"nothing", Lead{Name: "x"}, TierVeryLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.lead))
			assert.Equal(t, Classify(tt.lead), Classify(tt.lead))
		})
	}
}

func TestTierString(t *testing.T) {
	assert.Equal(t, "high", TierHigh.String())
	assert.Equal(t, "very_low", TierVeryLow.String())
	b, err := TierMedium.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "medium", string(b))
}
