// Package assets embeds the static files shipped with the binaries.
package assets

import "embed"

// EmailTemplatesDir is the directory of FS holding the email templates.
const EmailTemplatesDir = "templates/email"

//go:embed all:templates
var FS embed.FS

// CommonPasswords is a gzipped, newline separated list of lowercase passwords users may not pick.
//
//go:embed common-passwords.txt.gz
var CommonPasswords []byte
