package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"olmstead/internal/domain"
	"olmstead/internal/protocol/megolm"
	"olmstead/internal/protocol/olm"
)

func newOutboundGroup() (*megolm.OutboundSession, error) {
	return megolm.NewOutboundSession()
}

func newInboundGroup(out *megolm.OutboundSession) (*domain.InboundGroupSession, error) {
	in, err := megolm.NewInboundSession(out.SessionKey())
	if err != nil {
		return nil, err
	}
	return &domain.InboundGroupSession{
		RoomID:            "!room:example.org",
		SenderKey:         "sender-curve25519",
		SenderFingerprint: "sender-ed25519",
		Session:           in,
	}, nil
}

func TestStateStoreMissingFileIsFreshStart(t *testing.T) {
	s := NewStateStore(t.TempDir(), "@alice:example.org", "AAAA", "pw")
	st, err := s.Load()
	require.NoError(t, err)
	require.Nil(t, st)
}

func TestStateStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	acct, err := olm.NewAccount()
	require.NoError(t, err)
	require.NoError(t, acct.GenerateOneTimeKeys(2))

	sess, _ := twoSessionsOneKey(t)
	out, err := newOutboundGroup()
	require.NoError(t, err)
	group, err := newInboundGroup(out)
	require.NoError(t, err)

	s := NewStateStore(dir, "@alice:example.org", "AAAA", "pw")
	err = s.Save(&State{
		Account:       acct,
		Sessions:      []*domain.OlmSession{sess},
		GroupSessions: []*domain.InboundGroupSession{group},
		OutboundGroup: map[string]*megolm.OutboundSession{"!room:example.org": out},
	})
	require.NoError(t, err)

	loaded, err := NewStateStore(dir, "@alice:example.org", "AAAA", "pw").Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)

	require.Equal(t, acct.IdentityKeys(), loaded.Account.IdentityKeys())
	require.Equal(t, acct.OneTimeKeys(), loaded.Account.OneTimeKeys())

	require.Len(t, loaded.Sessions, 1)
	require.Equal(t, sess.ID(), loaded.Sessions[0].ID())
	require.Equal(t, sess.SenderKey, loaded.Sessions[0].SenderKey)

	require.Len(t, loaded.GroupSessions, 1)
	require.Equal(t, group.ID(), loaded.GroupSessions[0].ID())

	require.Contains(t, loaded.OutboundGroup, "!room:example.org")
	require.Equal(t, out.ID(), loaded.OutboundGroup["!room:example.org"].ID())
}

func TestStateStoreReloadedSessionStillWorks(t *testing.T) {
	dir := t.TempDir()

	out, err := newOutboundGroup()
	require.NoError(t, err)
	group, err := newInboundGroup(out)
	require.NoError(t, err)

	acct, err := olm.NewAccount()
	require.NoError(t, err)

	s := NewStateStore(dir, "@alice:example.org", "AAAA", "pw")
	require.NoError(t, s.Save(&State{
		Account:       acct,
		GroupSessions: []*domain.InboundGroupSession{group},
	}))

	loaded, err := s.Load()
	require.NoError(t, err)

	wire, err := out.Encrypt([]byte("after reload"))
	require.NoError(t, err)
	pt, _, err := loaded.GroupSessions[0].Session.Decrypt(wire)
	require.NoError(t, err)
	require.Equal(t, "after reload", string(pt))
}

func TestStateStoreWrongPassphrase(t *testing.T) {
	dir := t.TempDir()

	acct, err := olm.NewAccount()
	require.NoError(t, err)
	require.NoError(t, NewStateStore(dir, "@alice:example.org", "AAAA", "right").Save(&State{Account: acct}))

	_, err = NewStateStore(dir, "@alice:example.org", "AAAA", "wrong").Load()
	require.Error(t, err)
}

func TestStateStorePathPerDevice(t *testing.T) {
	dir := t.TempDir()
	a := NewStateStore(dir, "@alice:example.org", "AAAA", "pw")
	b := NewStateStore(dir, "@alice:example.org", "BBBB", "pw")
	require.NotEqual(t, a.Path(), b.Path())
}
