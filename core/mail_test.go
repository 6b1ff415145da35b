package core_test

import (
	"net/mail"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cuota/assets"
	"github.com/trezcool/cuota/core"
)

func TestParseEmailTemplates(t *testing.T) {
	require.NoError(t, core.ParseEmailTemplates(assets.FS, assets.EmailTemplatesDir, true))

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: "Ana", Address: "ana@example.com"}},
		Subject:      "Password reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":     "Ana",
			"Username": "anaq",
			"UID":      "Nw",
			"Token":    "abc-123",
		},
		FrontendBaseURL: "https://cuota.test",
	}
	require.NoError(t, msg.Render())
	assert.True(t, msg.HasContent())
	assert.Contains(t, msg.TextContent, "Hello Ana,")
	assert.Contains(t, msg.TextContent, "https://cuota.test/password-reset/Nw/abc-123")
	assert.Contains(t, msg.TextContent, "Cuota - https://cuota.test", "rendered within the base template")
	assert.Contains(t, msg.HTMLContent, `<a href="https://cuota.test/password-reset/Nw/abc-123">`)
	assert.Contains(t, msg.HTMLContent, "<strong>anaq</strong>")
}

func TestParseEmailTemplates_errors(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{
			name: "missing base template",
			fsys: fstest.MapFS{
				"email/welcome.txt": {Data: []byte(`{{define "content"}}Hi{{end}}`)},
			},
		},
		{
			name: "syntax error",
			fsys: fstest.MapFS{
				"email/_base.txt":   {Data: []byte(`{{block "content" .}}{{end}}`)},
				"email/welcome.txt": {Data: []byte(`{{define "content"}}Hi {{.Data.Name}{{end}}`)},
			},
		},
		{
			name: "no templates",
			fsys: fstest.MapFS{
				"email/_base.txt": {Data: []byte(`{{block "content" .}}{{end}}`)},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, core.ParseEmailTemplates(tc.fsys, "email", true))
		})
	}
}
