package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resonantlabs/negotiator/session"
)

func TestStore_CreateAndGet(t *testing.T) {
	store := session.NewStore()
	sess := session.New("nego-1", session.Demand{RawIntent: "x"}, 6)

	gate, err := store.Create(sess)
	require.NoError(t, err)
	require.NotNil(t, gate)

	assert.Equal(t, sess, store.Get("nego-1"))
	assert.Nil(t, store.Get("unknown"))
}

func TestStore_CreateDuplicateRejected(t *testing.T) {
	store := session.NewStore()
	sess := session.New("nego-1", session.Demand{}, 6)
	_, err := store.Create(sess)
	require.NoError(t, err)

	_, err = store.Create(sess)
	assert.Error(t, err)
}

func TestConfirmationGate_UserConfirmBeforeTimeout(t *testing.T) {
	gate := session.NewConfirmationGate()
	go func() {
		time.Sleep(5 * time.Millisecond)
		gate.Confirm()
	}()

	confirmed, auto, err := gate.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.True(t, confirmed)
	assert.False(t, auto)
}

func TestConfirmationGate_AutoConfirmOnTimeout(t *testing.T) {
	gate := session.NewConfirmationGate()
	confirmed, auto, err := gate.Wait(context.Background(), 5*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, confirmed)
	assert.True(t, auto)
}

func TestConfirmationGate_DoubleConfirmIsNoop(t *testing.T) {
	gate := session.NewConfirmationGate()
	gate.Confirm()
	gate.Confirm() // must not panic on double-close

	confirmed, auto, err := gate.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.True(t, confirmed)
	assert.False(t, auto)
}

func TestStore_MaybeDestroy(t *testing.T) {
	store := session.NewStore()
	sess := session.New("nego-1", session.Demand{}, 6)
	_, err := store.Create(sess)
	require.NoError(t, err)

	// Not completed yet: must not be destroyed.
	assert.False(t, store.MaybeDestroy("nego-1"))

	sess.State = session.StateCompleted
	store.SetSubscribed("nego-1", true)
	assert.False(t, store.MaybeDestroy("nego-1"), "still has a subscriber")

	store.SetSubscribed("nego-1", false)
	assert.True(t, store.MaybeDestroy("nego-1"))
	assert.Nil(t, store.Get("nego-1"))
}

func TestStore_MaybeDestroy_KeepsParentWithLiveChild(t *testing.T) {
	store := session.NewStore()
	parent := session.New("parent", session.Demand{}, 6)
	parent.State = session.StateCompleted
	_, err := store.Create(parent)
	require.NoError(t, err)

	child := session.New("child", session.Demand{}, 6)
	child.ParentNegotiationID = "parent"
	_, err = store.Create(child)
	require.NoError(t, err)

	assert.False(t, store.MaybeDestroy("parent"), "parent referenced by a live child must not be destroyed")
}
