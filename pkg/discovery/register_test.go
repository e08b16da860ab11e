// ABOUTME: Tests for the discovery register payloads and validation
// ABOUTME: Announcements are captured by an in-memory publisher
package discovery

import (
	"errors"
	"testing"

	"github.com/collabnet/svnedge-discovery/pkg/transport"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegister(t *testing.T) (*Register, *fakePublisher) {
	t.Helper()

	fp := &fakePublisher{}
	r, err := NewRegister(nil, WithPublisher(fp), WithRegisterLogger(zerolog.Nop()))
	require.NoError(t, err)
	return r, fp
}

func TestRegisterCSVN(t *testing.T) {
	r, fp := newTestRegister(t)

	err := r.RegisterService(8080, ServiceTypeCSVN, map[ServiceKey]string{
		CSVNContextPath:   "/csvn",
		CSVNTeamForgePath: "/integration",
	})
	require.NoError(t, err)
	require.Len(t, fp.published, 1)

	ann := fp.published[0].ann
	assert.Equal(t, DefaultServiceName, ann.Instance)
	assert.Equal(t, "_csvn._tcp.local.", ann.Type)
	assert.Equal(t, 8080, ann.Port)
	assert.Equal(t, uint16(0), ann.Priority)
	assert.Equal(t, uint16(0), ann.Weight)
	assert.Equal(t, []string{"path=/csvn", "tfpath=/integration"}, ann.Text)
	assert.Equal(t, []transport.Announcement{ann}, r.Announcements())
}

func TestRegisterHTTP(t *testing.T) {
	r, fp := newTestRegister(t)

	err := r.RegisterService(80, ServiceTypeHTTP, map[ServiceKey]string{
		HTTPPath:        "/app",
		CSVNContextPath: "/ignored",
	})
	require.NoError(t, err)
	require.Len(t, fp.published, 1)
	assert.Equal(t, "_http._tcp.local.", fp.published[0].ann.Type)
	assert.Equal(t, []string{"path=/app"}, fp.published[0].ann.Text)
}

func TestRegisterMissingKey(t *testing.T) {
	r, fp := newTestRegister(t)

	err := r.RegisterService(8080, ServiceTypeCSVN, map[ServiceKey]string{
		CSVNContextPath: "/csvn",
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "tfpath", verr.Field)
	assert.Contains(t, err.Error(), "tfpath")
	assert.Empty(t, fp.published, "nothing is published on validation failure")
}

func TestRegisterEmptyValueAllowed(t *testing.T) {
	r, fp := newTestRegister(t)

	err := r.RegisterService(8080, ServiceTypeCSVN, map[ServiceKey]string{
		CSVNContextPath:   "",
		CSVNTeamForgePath: "",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"path=", "tfpath="}, fp.published[0].ann.Text)
}

func TestRegisterInvalidInput(t *testing.T) {
	r, fp := newTestRegister(t)
	props := map[ServiceKey]string{HTTPPath: "/"}

	var verr *ValidationError
	require.ErrorAs(t, r.RegisterService(0, ServiceTypeHTTP, props), &verr)
	assert.Equal(t, "port", verr.Field)
	require.ErrorAs(t, r.RegisterService(65536, ServiceTypeHTTP, props), &verr)
	require.ErrorAs(t, r.RegisterService(80, ServiceType(0), props), &verr)
	assert.Equal(t, "serviceType", verr.Field)
	assert.Empty(t, fp.published)
}

func TestRegisterPublishFailure(t *testing.T) {
	r, fp := newTestRegister(t)
	fp.err = errors.New("socket gone")

	err := r.RegisterService(80, ServiceTypeHTTP, map[ServiceKey]string{HTTPPath: "/"})
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "publish", terr.Op)
	assert.Empty(t, r.Announcements())
}

func TestRegisterUnregisterServices(t *testing.T) {
	r, fp := newTestRegister(t)

	require.NoError(t, r.RegisterService(80, ServiceTypeHTTP, map[ServiceKey]string{HTTPPath: "/"}))
	require.NoError(t, r.UnregisterServices())

	assert.Equal(t, 1, fp.published[0].withdraws)
	assert.Empty(t, r.Announcements())
	assert.Equal(t, 0, fp.closes)

	require.NoError(t, r.RegisterService(80, ServiceTypeHTTP, map[ServiceKey]string{HTTPPath: "/"}))
	assert.Len(t, fp.published, 2)
}

func TestRegisterCloseIsIdempotent(t *testing.T) {
	r, fp := newTestRegister(t)
	require.NoError(t, r.RegisterService(8080, ServiceTypeCSVN, map[ServiceKey]string{
		CSVNContextPath:   "/csvn",
		CSVNTeamForgePath: "/integration",
	}))

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	assert.Equal(t, 1, fp.closes)
	assert.Equal(t, 1, fp.published[0].withdraws)

	err := r.RegisterService(80, ServiceTypeHTTP, map[ServiceKey]string{HTTPPath: "/"})
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestRegisterNeedsBindAddress(t *testing.T) {
	_, err := NewRegister(nil, WithRegisterLogger(zerolog.Nop()))

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, ErrBindAddressRequired)
}

func TestRegisterServiceName(t *testing.T) {
	fp := &fakePublisher{}
	r, err := NewRegister(nil,
		WithPublisher(fp),
		WithServiceName("edge-build"),
		WithRegisterHostname("buildhost"),
		WithRegisterLogger(zerolog.Nop()),
	)
	require.NoError(t, err)

	require.NoError(t, r.RegisterService(80, ServiceTypeHTTP, map[ServiceKey]string{HTTPPath: "/"}))
	assert.Equal(t, "edge-build", fp.published[0].ann.Instance)
	assert.Equal(t, "buildhost", fp.published[0].ann.Host)

	_, err = NewRegister(nil, WithPublisher(fp), WithServiceName(""))
	assert.Error(t, err)
}
