package speech

import (
	"strings"
	"testing"
)

func TestPrepareForSpeech(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			"plain text untouched",
			"Son las 3 de la tarde",
			"Son las 3 de la tarde",
		},
		{
			"http url replaced",
			"Mira http://example.com ahora",
			"Mira Enlace proporcionado en el texto ahora",
		},
		{
			"https url with path replaced",
			"Visita https://example.com/a/b?c=1 hoy",
			"Visita Enlace proporcionado en el texto hoy",
		},
		{
			"multiple urls",
			"https://a.example https://b.example",
			"Enlace proporcionado en el texto Enlace proporcionado en el texto",
		},
		{
			"whitespace collapsed",
			"hola \n  mundo",
			"hola mundo",
		},
		{
			"empty",
			"",
			"",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := PrepareForSpeech(tc.in)
			if got != tc.want {
				t.Errorf("PrepareForSpeech(%q) = %q, want %q", tc.in, got, tc.want)
			}
			if strings.Contains(got, "http://") || strings.Contains(got, "https://") {
				t.Errorf("literal URL survived: %q", got)
			}
		})
	}
}
