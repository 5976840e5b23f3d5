package template

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"WITH_UNDERSCORE", "withUnderscore"},
		{"_START_WITH_UNDERSCORE", "startWithUnderscore"},
		{"END_WITH_UNDERSCORE_", "endWithUnderscore"},
		{"WITHOUTUNDERSCORE", "withoutunderscore"},
		{"all_lower_case", "allLowerCase"},
		{"ALL_UPPER_CASE", "allUpperCase"},
		{"NB_DAYS", "nbDays"},
		{"MY_param", "myParam"},
		{"other_PARAM", "otherParam"},
		{"key_1", "key1"},
		{"DOUBLE__UNDERSCORE", "doubleUnderscore"},
		{"_", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeProperties(t *testing.T) {
	inputs := []string{
		"PARAM", "Mixed_Case_Value", "__x__y__", "a_b_c_d", "ÉTÉ_CHAUD", "with space_inside", "1_2_3",
	}

	t.Run("result never contains underscores", func(t *testing.T) {
		for _, in := range inputs {
			assert.NotContains(t, Normalize(in), "_", in)
		}
	})

	t.Run("first character is lower case", func(t *testing.T) {
		for _, in := range inputs {
			out := Normalize(in)
			if out == "" {
				continue
			}
			first := []rune(out)[0]
			assert.Equal(t, strings.ToLower(string(first)), string(first), in)
		}
	})

	t.Run("identifiers without underscore are lower cased", func(t *testing.T) {
		for _, in := range []string{"PARAM", "MixedCase", "already", "ÉTÉ"} {
			assert.Equal(t, strings.ToLower(in), Normalize(in))
		}
	})
}
