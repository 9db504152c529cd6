package catalog

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorKey(t *testing.T) {
	d := Descriptor{Kind: Skills, Params: []string{"web"}, Language: "en"}
	assert.Equal(t, "skills_web_en", d.Key())

	assert.Equal(t, "countries_de", Descriptor{Kind: Countries, Language: "de"}.Key())
	assert.Equal(t, "cities_FR_north_fr", Descriptor{Kind: Cities, Params: []string{"FR", "north"}, Language: "fr"}.Key())
	assert.Equal(t, "hobbies", Descriptor{Kind: Hobbies}.Key())
}

func TestDescriptorWithLanguageCopiesParams(t *testing.T) {
	d := Descriptor{Kind: Skills, Params: []string{"web"}, Language: "en"}
	other := d.WithLanguage("es")
	other.Params[0] = "mobile"

	assert.Equal(t, "skills_web_en", d.Key())
	assert.Equal(t, "skills_mobile_es", other.Key())
}

func TestKeyHelpers(t *testing.T) {
	assert.Equal(t, "skills_", KeyPrefix(Skills))
	assert.True(t, KeyHasLanguage("skills_web_en", "en"))
	assert.False(t, KeyHasLanguage("skills_web_en", "n"))
	assert.False(t, KeyHasLanguage("skills_web_en", ""))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Countries ")
	require.NoError(t, err)
	assert.Equal(t, Countries, k)

	_, err = ParseKind("planets")
	assert.True(t, errors.Is(err, ErrUnknownKind))
	assert.Len(t, Kinds(), 5)
}

func TestDefaultTTL(t *testing.T) {
	assert.Equal(t, time.Hour, Skills.DefaultTTL())
	assert.Equal(t, time.Hour, Hobbies.DefaultTTL())
	assert.Equal(t, 24*time.Hour, Countries.DefaultTTL())
	assert.Equal(t, 24*time.Hour, Cities.DefaultTTL())
	assert.Equal(t, 24*time.Hour, Occupations.DefaultTTL())
}

func TestDecode(t *testing.T) {
	t.Run("bare array", func(t *testing.T) {
		items, err := Decode[Skill](Skills, []byte(` [{"id":"go","name":"Go"},{"id":"rust","name":"Rust"}] `))
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "Rust", items[1].Name)
	})

	t.Run("envelope", func(t *testing.T) {
		items, err := Decode[Country](Countries, []byte(`{"data":[{"code":"DE","name":"Germany","native_name":"Deutschland"}]}`))
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "Deutschland", items[0].NativeName)
	})

	t.Run("empty array is not nil", func(t *testing.T) {
		items, err := Decode[Hobby](Hobbies, []byte(`[]`))
		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)
	})

	for name, payload := range map[string]string{
		"empty":        "",
		"scalar":       `42`,
		"missing data": `{"items":[]}`,
		"wrong shape":  `[{"id":1}]`,
		"truncated":    `[{"id":"go"`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode[Skill](Skills, []byte(payload))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidResponse)
			var invalid *InvalidResponseError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, Skills, invalid.Kind)
		})
	}
}

func TestSearchText(t *testing.T) {
	var records = []Record{
		Skill{ID: "go", Name: "Go", Category: "Languages"},
		Country{Code: "DE", Name: "Germany"},
		City{ID: "ber", Name: "Berlin", CountryCode: "DE"},
		Occupation{ID: "eng", Title: "Engineer"},
		Hobby{ID: "chess", Name: "Chess"},
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.Identifier()
		assert.NotEmpty(t, r.SearchText())
	}
	assert.Equal(t, []string{"go", "DE", "ber", "eng", "chess"}, ids)
}
