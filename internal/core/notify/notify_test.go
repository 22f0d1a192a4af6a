package notify

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("load profile: %w", &Error{Kind: KindNotFound, Message: "profile not found"})

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, IsNotFound(wrapped))
	assert.Equal(t, KindBackend, KindOf(errors.New("boom")))
}

func TestNotifier_ReportAndDismiss(t *testing.T) {
	n := NewNotifier(nil, 2)

	n.Report("like", errors.New("connection reset"))
	n.Report("comment", &Error{Kind: KindValidation, Message: "Comment cannot be empty."})
	n.Report("noop", nil)

	items := n.Pending()
	require.Len(t, items, 2)
	assert.Equal(t, KindBackend, items[0].Kind)
	assert.Equal(t, "Something went wrong. Please try again.", items[0].Message)
	assert.Equal(t, "Comment cannot be empty.", items[1].Message)

	n.Dismiss(items[0].ID)
	items = n.Pending()
	require.Len(t, items, 1)
	assert.Equal(t, "comment", items[0].Op)

	n.DismissAll()
	assert.Empty(t, n.Pending())
}

func TestNotifier_KeepsMostRecent(t *testing.T) {
	n := NewNotifier(nil, 2)
	for i := 0; i < 4; i++ {
		n.Report(fmt.Sprintf("op%d", i), errors.New("fail"))
	}

	items := n.Pending()
	require.Len(t, items, 2)
	assert.Equal(t, "op2", items[0].Op)
	assert.Equal(t, "op3", items[1].Op)
}

func TestError_Message(t *testing.T) {
	err := &Error{Kind: KindAuth, Op: "GET /me", Err: errors.New("401 unauthorized")}
	assert.Equal(t, "GET /me: 401 unauthorized", err.Error())
	assert.ErrorContains(t, errors.Unwrap(err), "401")
}
