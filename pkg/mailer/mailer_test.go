package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNullMailer_AlwaysErrors(t *testing.T) {
	err := NullMailer{}.Send(context.Background(), Message{To: []string{"ops@acme.com"}, Subject: "test"})
	assert.Error(t, err)
}
