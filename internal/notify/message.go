// Package notify renders completion notices for finished batch sessions.
package notify

import (
	"fmt"
	"html"
	"strings"

	"invoicer/internal/domain"
)

// Message is a rendered completion notice.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// maxListedFailures caps the failed files listed in one notice.
const maxListedFailures = 20

// Build renders the notice for sess. archiveURL may be empty.
func Build(sess *domain.Session, archiveURL string) Message {
	subject := fmt.Sprintf("Invoice batch %s %s: %d/%d renamed",
		sess.ID, sess.Status, sess.Successful, sess.Total)

	var text strings.Builder
	fmt.Fprintf(&text, "Batch %s finished with status %s.\n\n", sess.ID, sess.Status)
	fmt.Fprintf(&text, "Processed: %d of %d\nRenamed: %d\nFailed: %d\n", sess.Processed, sess.Total, sess.Successful, sess.Failed)
	if sess.ErrorMessage != "" {
		fmt.Fprintf(&text, "Error: %s\n", sess.ErrorMessage)
	}
	if archiveURL != "" {
		fmt.Fprintf(&text, "\nDownload the renamed invoices:\n%s\n", archiveURL)
	}
	failures := sess.FailedFiles
	if len(failures) > 0 {
		text.WriteString("\nFailed files:\n")
		for i, f := range failures {
			if i == maxListedFailures {
				fmt.Fprintf(&text, "... and %d more\n", len(failures)-maxListedFailures)
				break
			}
			fmt.Fprintf(&text, "- %s [%s]: %s\n", f.Name, f.Category, f.Error)
		}
	}

	return Message{Subject: subject, Text: text.String(), HTML: buildHTML(sess, archiveURL)}
}

func buildHTML(sess *domain.Session, archiveURL string) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
`)
	fmt.Fprintf(&b, "  <h2 style=\"color: #333;\">Batch %s: %s</h2>\n", html.EscapeString(sess.ID), html.EscapeString(string(sess.Status)))
	fmt.Fprintf(&b, "  <p>Renamed %d of %d files (%d failed).</p>\n", sess.Successful, sess.Total, sess.Failed)
	if sess.ErrorMessage != "" {
		fmt.Fprintf(&b, "  <p style=\"color: #B91C1C;\">%s</p>\n", html.EscapeString(sess.ErrorMessage))
	}
	if archiveURL != "" {
		fmt.Fprintf(&b, `  <p style="text-align: center; margin: 30px 0;">
    <a href="%s" style="background-color: #4F46E5; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">Download ZIP</a>
  </p>
`, html.EscapeString(archiveURL))
	}
	if len(sess.FailedFiles) > 0 {
		b.WriteString("  <ul>\n")
		for i, f := range sess.FailedFiles {
			if i == maxListedFailures {
				fmt.Fprintf(&b, "    <li>... and %d more</li>\n", len(sess.FailedFiles)-maxListedFailures)
				break
			}
			fmt.Fprintf(&b, "    <li><b>%s</b> [%s]: %s</li>\n",
				html.EscapeString(f.Name), html.EscapeString(string(f.Category)), html.EscapeString(f.Error))
		}
		b.WriteString("  </ul>\n")
	}
	b.WriteString(`  <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
  <p style="color: #999; font-size: 12px;">Invoice Renamer</p>
</body>
</html>`)
	return b.String()
}
