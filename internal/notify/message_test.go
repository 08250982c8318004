package notify_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"invoicer/internal/domain"
	"invoicer/internal/notify"
)

func TestBuild_CompletedWithFailures(t *testing.T) {
	sess := &domain.Session{
		ID: "session-1", Status: domain.SessionStatusCompleted,
		Total: 3, Processed: 3, Successful: 2, Failed: 1,
		FailedFiles: []domain.FailedFile{{Name: "scan<1>.pdf", Error: "Failed after 3 attempts: boom", Category: domain.CategoryAPI}},
	}

	msg := notify.Build(sess, "https://example.com/a.zip")

	assert.Equal(t, "Invoice batch session-1 completed: 2/3 renamed", msg.Subject)
	assert.Contains(t, msg.Text, "Renamed: 2")
	assert.Contains(t, msg.Text, "https://example.com/a.zip")
	assert.Contains(t, msg.Text, "- scan<1>.pdf [API Error]: Failed after 3 attempts: boom")
	assert.Contains(t, msg.HTML, "scan&lt;1&gt;.pdf")
	assert.Contains(t, msg.HTML, `href="https://example.com/a.zip"`)
}

func TestBuild_TruncatesFailureList(t *testing.T) {
	sess := &domain.Session{ID: "s", Status: domain.SessionStatusCancelled}
	for i := 0; i < 25; i++ {
		sess.FailedFiles = append(sess.FailedFiles, domain.FailedFile{Name: fmt.Sprintf("f%d.pdf", i)})
	}

	msg := notify.Build(sess, "")

	assert.Contains(t, msg.Text, "... and 5 more")
	assert.NotContains(t, msg.Text, "f20.pdf")
	assert.NotContains(t, msg.Text, "Download")
	assert.NotContains(t, msg.HTML, "Download ZIP")
}
