package emailsvc

import (
	"io"
	"io/ioutil"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/spis/core"
)

func Test_consoleService_mimeBody(t *testing.T) {
	svc := consoleService{
		defaultFromEmail: mail.Address{Name: "SPIS", Address: "noreply@spis.test"},
		subjPrefix:       "[SPIS] ",
	}
	replyTo := mail.Address{Address: "asha@test.edu"}

	body, err := svc.mimeBody(core.EmailMessage{
		To:          []mail.Address{{Address: "admin@spis.test"}},
		ReplyTo:     &replyTo,
		Subject:     "Help request",
		TextContent: "cannot log in",
		HTMLContent: "<p>cannot log in</p>",
	})
	require.NoError(t, err)

	msg, err := mail.ReadMessage(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "[SPIS] Help request", msg.Header.Get("Subject"))
	assert.Equal(t, "<asha@test.edu>", msg.Header.Get("Reply-To"))

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", mediaType)

	var parts []string
	r := multipart.NewReader(msg.Body, params["boundary"])
	for {
		part, err := r.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err, "the closing boundary must be written")
		content, err := ioutil.ReadAll(part)
		require.NoError(t, err)
		parts = append(parts, part.Header.Get("Content-Type")+": "+strings.TrimSpace(string(content)))
	}
	assert.Equal(t, []string{"text/plain: cannot log in", "text/html: <p>cannot log in</p>"}, parts)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(body), "--"+params["boundary"]+"--"))
}
